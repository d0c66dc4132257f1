package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// JoinKind selects the join flavor used by Relation.Join.
type JoinKind string

const (
	InnerJoin JoinKind = "JOIN"
	LeftJoin  JoinKind = "LEFT JOIN"
)

// Relation is a lazily composed SELECT. Builder methods derive new relations
// without touching the database; only CreateTable, CreateView, Count, Rows
// and CopyToParquet execute SQL. An identifier error anywhere in the chain
// is carried forward and surfaces at execution time.
type Relation struct {
	eng   *Engine
	err   error
	from  string
	joins []string
	where []string
	cols  []string
	group string
	limit int64
}

// Table starts a relation over a base table or view.
func (e *Engine) Table(name string) *Relation {
	r := &Relation{eng: e, from: name, limit: -1}
	if err := ValidateIdent(name); err != nil {
		r.err = err
	}
	return r
}

// RelationFromQuery starts a relation over an arbitrary SELECT.
func (e *Engine) RelationFromQuery(query string) *Relation {
	return &Relation{eng: e, from: "(" + query + ") AS q", limit: -1}
}

func (r *Relation) clone() *Relation {
	c := *r
	c.joins = append([]string(nil), r.joins...)
	c.where = append([]string(nil), r.where...)
	c.cols = append([]string(nil), r.cols...)
	return &c
}

// Filter adds a WHERE predicate. Multiple predicates combine with AND.
func (r *Relation) Filter(cond string) *Relation {
	c := r.clone()
	c.where = append(c.where, cond)
	return c
}

// Project replaces the projected expression list.
func (r *Relation) Project(exprs ...string) *Relation {
	c := r.clone()
	c.cols = append([]string(nil), exprs...)
	return c
}

// Join appends a join against another relation, inlined as a subquery under
// the given alias.
func (r *Relation) Join(kind JoinKind, other *Relation, alias, on string) *Relation {
	c := r.clone()
	if err := ValidateIdent(alias); err != nil && c.err == nil {
		c.err = err
	}
	if other.err != nil && c.err == nil {
		c.err = other.err
	}
	c.joins = append(c.joins, fmt.Sprintf("%s (%s) AS %s ON %s", kind, other.SQL(), alias, on))
	return c
}

// JoinTable appends a join against a named table.
func (r *Relation) JoinTable(kind JoinKind, table, alias, on string) *Relation {
	c := r.clone()
	for _, name := range []string{table, alias} {
		if err := ValidateIdent(name); err != nil && c.err == nil {
			c.err = err
		}
	}
	c.joins = append(c.joins, fmt.Sprintf("%s %s AS %s ON %s", kind, table, alias, on))
	return c
}

// Aggregate sets a GROUP BY clause together with its select expressions.
func (r *Relation) Aggregate(groupBy string, selects ...string) *Relation {
	c := r.clone()
	c.group = groupBy
	c.cols = append([]string(nil), selects...)
	return c
}

// Limit caps the row count. Negative values remove the cap.
func (r *Relation) Limit(n int64) *Relation {
	c := r.clone()
	c.limit = n
	return c
}

// Wrap materializes the current SELECT as a subquery so that later
// predicates can reference projected columns by name.
func (r *Relation) Wrap(alias string) *Relation {
	c := &Relation{eng: r.eng, err: r.err, limit: -1}
	if err := ValidateIdent(alias); err != nil && c.err == nil {
		c.err = err
	}
	c.from = "(" + r.SQL() + ") AS " + alias
	return c
}

// Err returns the first builder error, if any.
func (r *Relation) Err() error {
	return r.err
}

// SQL renders the SELECT statement for this relation.
func (r *Relation) SQL() string {
	cols := "*"
	if len(r.cols) > 0 {
		cols = strings.Join(r.cols, ", ")
	}
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(cols)
	b.WriteString(" FROM ")
	b.WriteString(r.from)
	for _, j := range r.joins {
		b.WriteString(" ")
		b.WriteString(j)
	}
	if len(r.where) > 0 {
		b.WriteString(" WHERE (")
		b.WriteString(strings.Join(r.where, ") AND ("))
		b.WriteString(")")
	}
	if r.group != "" {
		b.WriteString(" GROUP BY ")
		b.WriteString(r.group)
	}
	if r.limit >= 0 {
		fmt.Fprintf(&b, " LIMIT %d", r.limit)
	}
	return b.String()
}

// CreateTable materializes the relation as CREATE OR REPLACE TABLE.
func (r *Relation) CreateTable(ctx context.Context, name string) error {
	if r.err != nil {
		return r.err
	}
	if err := ValidateIdent(name); err != nil {
		return err
	}
	return r.eng.Exec(ctx, fmt.Sprintf("CREATE OR REPLACE TABLE %s AS %s", name, r.SQL()))
}

// CreateView publishes the relation as CREATE OR REPLACE VIEW.
func (r *Relation) CreateView(ctx context.Context, name string) error {
	if r.err != nil {
		return r.err
	}
	if err := ValidateIdent(name); err != nil {
		return err
	}
	return r.eng.Exec(ctx, fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s", name, r.SQL()))
}

// Count executes the relation and returns its row count.
func (r *Relation) Count(ctx context.Context) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	var n int64
	err := r.eng.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM (%s) AS t", r.SQL())).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("engine: relation count: %w", err)
	}
	return n, nil
}

// Rows executes the relation and streams its result.
func (r *Relation) Rows(ctx context.Context) (*sql.Rows, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.eng.Query(ctx, r.SQL())
}

// CopyToParquet exports the relation with the engine's native Parquet
// writer. The export never iterates rows through Go.
func (r *Relation) CopyToParquet(ctx context.Context, path string, rowGroupSize int) error {
	if r.err != nil {
		return r.err
	}
	if rowGroupSize <= 0 {
		return fmt.Errorf("engine: invalid parquet row group size %d", rowGroupSize)
	}
	stmt := fmt.Sprintf(
		"COPY (%s) TO %s (FORMAT PARQUET, COMPRESSION ZSTD, COMPRESSION_LEVEL 1, ROW_GROUP_SIZE %d)",
		r.SQL(), QuoteString(path), rowGroupSize)
	return r.eng.Exec(ctx, stmt)
}
