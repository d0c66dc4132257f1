// Package bronze loads the raw source files into the Bronze layer. Bronze
// tables reproduce the reader-inferred schema of each source verbatim; the
// only permitted filter is row limiting for sampled runs.
package bronze

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"roofline/pkg/catalog"
	"roofline/pkg/config"
	"roofline/pkg/engine"
	"roofline/pkg/metadata"
)

// wikiAttachAlias is the schema name the Wikipedia source database is
// attached under for the duration of its ingest.
const wikiAttachAlias = "wiki_src"

// Ingester creates Bronze tables from the configured source files.
type Ingester struct {
	eng *engine.Engine
	cfg config.DataConfig
	log *slog.Logger
}

// NewIngester wires an ingester to the engine and data configuration.
func NewIngester(eng *engine.Engine, cfg config.DataConfig) *Ingester {
	return &Ingester{eng: eng, cfg: cfg, log: slog.With("component", "bronze")}
}

func requireFiles(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			return fmt.Errorf("bronze: source path not configured")
		}
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("bronze: source file missing: %w", err)
		}
	}
	return nil
}

// jsonSourceList renders the file list argument of read_json_auto.
func jsonSourceList(paths []string) string {
	quoted := make([]string, len(paths))
	for i, p := range paths {
		quoted[i] = engine.QuoteString(p)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// ingestJSON creates a Bronze table from one or more JSON array files using
// the engine's native reader, so the table schema is the reader's inferred
// schema with no projection or rename. A negative sample ingests everything;
// zero creates an empty table with the inferred schema.
func (i *Ingester) ingestJSON(ctx context.Context, entity catalog.Entity, paths []string, sample int) (metadata.BronzeMetadata, error) {
	started := time.Now()
	if err := requireFiles(paths...); err != nil {
		return metadata.BronzeMetadata{}, err
	}

	table := catalog.MustTable(entity, catalog.Bronze)
	if err := i.eng.DropTable(ctx, table); err != nil {
		return metadata.BronzeMetadata{}, err
	}

	stmt := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM read_json_auto(%s, union_by_name=true)",
		table, jsonSourceList(paths))
	if sample >= 0 {
		stmt += fmt.Sprintf(" LIMIT %d", sample)
	}
	if err := i.eng.Exec(ctx, stmt); err != nil {
		return metadata.BronzeMetadata{}, fmt.Errorf("bronze: ingest %s: %w", entity, err)
	}

	rows, err := i.eng.RowCount(ctx, table)
	if err != nil {
		return metadata.BronzeMetadata{}, err
	}
	i.log.Info("bronze ingested", "entity", entity, "table", table, "rows", rows, "sample", sample)
	return metadata.NewBronzeMetadata(string(entity), table, paths, rows, sample, started, time.Now())
}

// IngestProperties loads the property listing files.
func (i *Ingester) IngestProperties(ctx context.Context, sample int) (metadata.BronzeMetadata, error) {
	return i.ingestJSON(ctx, catalog.Property, i.cfg.PropertiesFiles, sample)
}

// IngestNeighborhoods loads the neighborhood files.
func (i *Ingester) IngestNeighborhoods(ctx context.Context, sample int) (metadata.BronzeMetadata, error) {
	return i.ingestJSON(ctx, catalog.Neighborhood, i.cfg.NeighborhoodsFiles, sample)
}

// IngestLocations loads the geographic hierarchy reference file.
func (i *Ingester) IngestLocations(ctx context.Context, sample int) (metadata.BronzeMetadata, error) {
	return i.ingestJSON(ctx, catalog.Location, []string{i.cfg.LocationsFile}, sample)
}

// IngestWikipedia attaches the external article database, copies its
// articles table into Bronze and always detaches before returning. The
// sqlite extension is required here and its absence is fatal.
func (i *Ingester) IngestWikipedia(ctx context.Context, sample int) (meta metadata.BronzeMetadata, err error) {
	started := time.Now()
	if err := requireFiles(i.cfg.WikipediaDB); err != nil {
		return metadata.BronzeMetadata{}, err
	}

	for _, stmt := range []string{"INSTALL sqlite", "LOAD sqlite"} {
		if err := i.eng.Exec(ctx, stmt); err != nil {
			return metadata.BronzeMetadata{}, fmt.Errorf("bronze: sqlite extension unavailable: %w", err)
		}
	}

	attach := fmt.Sprintf("ATTACH %s AS %s (TYPE sqlite)", engine.QuoteString(i.cfg.WikipediaDB), wikiAttachAlias)
	if err := i.eng.Exec(ctx, attach); err != nil {
		return metadata.BronzeMetadata{}, fmt.Errorf("bronze: attach wikipedia db: %w", err)
	}
	defer func() {
		if detachErr := i.eng.Exec(ctx, "DETACH "+wikiAttachAlias); detachErr != nil && err == nil {
			err = detachErr
		}
	}()

	table := catalog.MustTable(catalog.Wikipedia, catalog.Bronze)
	if err = i.eng.DropTable(ctx, table); err != nil {
		return metadata.BronzeMetadata{}, err
	}

	stmt := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s.articles", table, wikiAttachAlias)
	if sample >= 0 {
		stmt += fmt.Sprintf(" LIMIT %d", sample)
	}
	if err = i.eng.Exec(ctx, stmt); err != nil {
		return metadata.BronzeMetadata{}, fmt.Errorf("bronze: ingest wikipedia: %w", err)
	}

	rows, err := i.eng.RowCount(ctx, table)
	if err != nil {
		return metadata.BronzeMetadata{}, err
	}
	i.log.Info("bronze ingested", "entity", catalog.Wikipedia, "table", table, "rows", rows, "sample", sample)
	return metadata.NewBronzeMetadata(string(catalog.Wikipedia), table, []string{i.cfg.WikipediaDB}, rows, sample, started, time.Now())
}
