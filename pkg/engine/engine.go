// Package engine wraps the embedded analytical database that every pipeline
// stage runs against. One Engine backs a whole run; all heavy lifting
// (ingestion, transforms, exports) happens as SQL inside the database.
package engine

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	duckdb "github.com/marcboeker/go-duckdb/v2"
)

// Options configure the embedded database at open time.
type Options struct {
	// DatabaseFile is the on-disk database path. Empty runs in memory.
	DatabaseFile string
	// MemoryLimit caps engine memory, e.g. "4GB".
	MemoryLimit string
	// Threads caps engine parallelism. Zero keeps the engine default.
	Threads int
}

// Engine is the shared handle to the analytical database.
type Engine struct {
	db  *sql.DB
	log *slog.Logger
}

var memoryLimitPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?\s?(KiB|MiB|GiB|TiB|KB|MB|GB|TB)$`)

// Open connects to the embedded database, applies resource settings per
// connection and loads the file-format extensions. Any failure here aborts
// the run; there is no degraded mode without the engine.
func Open(opts Options) (*Engine, error) {
	boot, err := bootStatements(opts)
	if err != nil {
		return nil, err
	}

	if opts.DatabaseFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.DatabaseFile), 0o755); err != nil {
			return nil, fmt.Errorf("engine: create database dir: %w", err)
		}
	}

	connector, err := duckdb.NewConnector(opts.DatabaseFile, func(execer driver.ExecerContext) error {
		for _, stmt := range boot {
			if _, err := execer.ExecContext(context.Background(), stmt, nil); err != nil {
				return fmt.Errorf("boot statement %q: %w", stmt, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("engine: open %q: %w", opts.DatabaseFile, err)
	}

	db := sql.OpenDB(connector)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("engine: ping: %w", err)
	}

	e := &Engine{db: db, log: slog.With("component", "engine")}
	e.loadExtensions(context.Background())
	return e, nil
}

func bootStatements(opts Options) ([]string, error) {
	var boot []string
	if opts.MemoryLimit != "" {
		if !memoryLimitPattern.MatchString(opts.MemoryLimit) {
			return nil, fmt.Errorf("engine: invalid memory limit %q", opts.MemoryLimit)
		}
		boot = append(boot, fmt.Sprintf("SET memory_limit='%s'", opts.MemoryLimit))
	}
	if opts.Threads < 0 {
		return nil, fmt.Errorf("engine: invalid thread count %d", opts.Threads)
	}
	if opts.Threads > 0 {
		boot = append(boot, fmt.Sprintf("SET threads=%d", opts.Threads))
	}
	return boot, nil
}

// loadExtensions makes the JSON and Parquet readers available. Both ship
// bundled with the driver, so a failed INSTALL (e.g. offline) is harmless.
func (e *Engine) loadExtensions(ctx context.Context) {
	for _, ext := range []string{"json", "parquet"} {
		if _, err := e.db.ExecContext(ctx, "INSTALL "+ext); err != nil {
			e.log.Debug("extension install skipped", "extension", ext, "error", err)
		}
		if _, err := e.db.ExecContext(ctx, "LOAD "+ext); err != nil {
			e.log.Debug("extension load skipped", "extension", ext, "error", err)
		}
	}
}

// Close releases the database handle.
func (e *Engine) Close() error {
	return e.db.Close()
}

// DB exposes the underlying pool for row streaming in sink writers.
func (e *Engine) DB() *sql.DB {
	return e.db
}

// Exec runs a statement. Values must go through placeholders; identifiers
// must have been validated by the caller.
func (e *Engine) Exec(ctx context.Context, query string, args ...any) error {
	e.log.Debug("exec", "sql", query)
	if _, err := e.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("engine: exec: %w", err)
	}
	return nil
}

// Query runs a SELECT and returns the row iterator.
func (e *Engine) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	e.log.Debug("query", "sql", query)
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("engine: query: %w", err)
	}
	return rows, nil
}

// QueryRow runs a single-row SELECT.
func (e *Engine) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return e.db.QueryRowContext(ctx, query, args...)
}

// Transaction runs fn inside a single transaction, committing when fn
// returns nil and rolling back otherwise.
func (e *Engine) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("engine: begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("engine: rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("engine: commit: %w", err)
	}
	return nil
}

// ReadParquet loads a Parquet file into a table, replacing any previous
// contents. A negative limit loads every row; zero creates an empty table
// with the file's schema.
func (e *Engine) ReadParquet(ctx context.Context, path, table string, limit int) error {
	if err := ValidateIdent(table); err != nil {
		return err
	}
	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM read_parquet(%s)",
		table, QuoteString(path))
	if limit >= 0 {
		stmt += fmt.Sprintf(" LIMIT %d", limit)
	}
	if err := e.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("engine: read parquet %q: %w", path, err)
	}
	return nil
}

// TableExists reports whether a base table or view with the given name exists.
func (e *Engine) TableExists(ctx context.Context, name string) (bool, error) {
	if err := ValidateIdent(name); err != nil {
		return false, err
	}
	var n int
	err := e.db.QueryRowContext(ctx,
		"SELECT count(*) FROM information_schema.tables WHERE table_name = ?", name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("engine: table lookup %q: %w", name, err)
	}
	return n > 0, nil
}

// RowCount counts the rows of a table or view.
func (e *Engine) RowCount(ctx context.Context, name string) (int64, error) {
	if err := ValidateIdent(name); err != nil {
		return 0, err
	}
	var n int64
	if err := e.db.QueryRowContext(ctx, "SELECT count(*) FROM "+name).Scan(&n); err != nil {
		return 0, fmt.Errorf("engine: count %q: %w", name, err)
	}
	return n, nil
}

// Column describes one column of a table or view.
type Column struct {
	Name string
	Type string
}

// TableSchema returns the columns of a table or view in definition order,
// with the engine's declared type for each.
func (e *Engine) TableSchema(ctx context.Context, name string) ([]Column, error) {
	if err := ValidateIdent(name); err != nil {
		return nil, err
	}
	rows, err := e.db.QueryContext(ctx,
		"SELECT column_name, data_type FROM duckdb_columns WHERE table_name = ? ORDER BY column_index", name)
	if err != nil {
		return nil, fmt.Errorf("engine: columns of %q: %w", name, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("engine: columns of %q: %w", name, err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// ColumnNames returns the column names of a table in definition order.
func (e *Engine) ColumnNames(ctx context.Context, name string) ([]string, error) {
	schema, err := e.TableSchema(ctx, name)
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(schema))
	for i, c := range schema {
		cols[i] = c.Name
	}
	return cols, nil
}

// DropTable removes a table if it exists.
func (e *Engine) DropTable(ctx context.Context, name string) error {
	if err := ValidateIdent(name); err != nil {
		return err
	}
	return e.Exec(ctx, "DROP TABLE IF EXISTS "+name)
}

// DropView removes a view if it exists.
func (e *Engine) DropView(ctx context.Context, name string) error {
	if err := ValidateIdent(name); err != nil {
		return err
	}
	return e.Exec(ctx, "DROP VIEW IF EXISTS "+name)
}

// QuoteString escapes a value for the rare statements that cannot take
// placeholders (COPY targets, ATTACH paths).
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
