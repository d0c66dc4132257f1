// Package parquet exports the medallion layers as Parquet files through the
// engine's native COPY writer. No row ever passes through Go.
package parquet

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"roofline/pkg/catalog"
	"roofline/pkg/engine"
)

// Row group sizing per layer: Bronze tables mirror the raw sources, Silver
// and Gold relations are scanned analytically and take larger groups.
const (
	bronzeRowGroupSize  = 100_000
	refinedRowGroupSize = 500_000
)

func rowGroupSize(l catalog.Layer) int {
	if l == catalog.Bronze {
		return bronzeRowGroupSize
	}
	return refinedRowGroupSize
}

// Writer exports the layer tables to a Parquet directory tree.
type Writer struct {
	eng *engine.Engine
	dir string
	log *slog.Logger
}

// NewWriter wires a writer to the engine and output directory.
func NewWriter(eng *engine.Engine, dir string) *Writer {
	return &Writer{eng: eng, dir: dir, log: slog.With("component", "parquet")}
}

// ExportResult reports one exported file.
type ExportResult struct {
	Layer string
	Table string
	Path  string
	Rows  int64
}

// layerTables lists every exportable relation of a layer. The Gold layer
// includes the materialized graph tables.
func layerTables(l catalog.Layer) []string {
	var tables []string
	for _, e := range catalog.Entities() {
		tables = append(tables, catalog.MustTable(e, l))
	}
	if l != catalog.Gold {
		return tables
	}
	for _, label := range catalog.GraphLabels() {
		t, err := catalog.NodeTable(label)
		if err != nil {
			panic(err)
		}
		tables = append(tables, t)
	}
	for _, spec := range catalog.RelSpecs() {
		tables = append(tables, spec.Table)
	}
	return tables
}

// Export writes every existing Bronze, Silver and Gold relation into
// <dir>/<layer>/<table>.parquet. Tables a filtered run never built are
// skipped. Row counts come from the engine, never from reading files back.
func (w *Writer) Export(ctx context.Context) ([]ExportResult, error) {
	var out []ExportResult
	for _, layer := range []catalog.Layer{catalog.Bronze, catalog.Silver, catalog.Gold} {
		layerDir := filepath.Join(w.dir, string(layer))
		if err := os.MkdirAll(layerDir, 0o755); err != nil {
			return out, fmt.Errorf("parquet: create output dir: %w", err)
		}
		for _, table := range layerTables(layer) {
			exists, err := w.eng.TableExists(ctx, table)
			if err != nil {
				return out, err
			}
			if !exists {
				w.log.Warn("skipping export, table missing", "layer", layer, "table", table)
				continue
			}
			path := filepath.Join(layerDir, table+".parquet")
			if err := w.eng.Table(table).CopyToParquet(ctx, path, rowGroupSize(layer)); err != nil {
				return out, fmt.Errorf("parquet: export %s: %w", table, err)
			}
			rows, err := w.eng.RowCount(ctx, table)
			if err != nil {
				return out, err
			}
			w.log.Info("exported", "layer", layer, "table", table, "path", path, "rows", rows)
			out = append(out, ExportResult{Layer: string(layer), Table: table, Path: path, Rows: rows})
		}
	}
	return out, nil
}
