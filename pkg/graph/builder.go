// Package graph materializes the property graph as gold_graph_* tables:
// one table per node label, one per relationship type. The tables are the
// shared contract between the engine and the graph database writer.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"roofline/pkg/engine"
	"roofline/pkg/metadata"
)

// SimilarityThreshold is the minimum cosine similarity for a SIMILAR_TO edge.
const SimilarityThreshold = 0.85

// SimilarityLimit caps the SIMILAR_TO edge count, strongest pairs first.
const SimilarityLimit = 10000

// Builder materializes the graph tables from the Gold views.
type Builder struct {
	eng *engine.Engine
	log *slog.Logger
}

// NewBuilder wires a builder to the engine.
func NewBuilder(eng *engine.Engine) *Builder {
	return &Builder{eng: eng, log: slog.With("component", "graph")}
}

// BuildAll materializes every node and relationship table and returns one
// stage record per table.
func (b *Builder) BuildAll(ctx context.Context) ([]metadata.StageMetrics, error) {
	var out []metadata.StageMetrics

	nodes, err := b.BuildNodes(ctx)
	if err != nil {
		return out, err
	}
	out = append(out, nodes...)

	edges, err := b.BuildRelationships(ctx)
	if err != nil {
		return out, err
	}
	return append(out, edges...), nil
}

// materialize runs one CREATE OR REPLACE TABLE and records its row count.
func (b *Builder) materialize(ctx context.Context, table, query string) (metadata.StageMetrics, error) {
	started := time.Now()
	if err := engine.ValidateIdent(table); err != nil {
		return metadata.StageMetrics{}, err
	}
	if err := b.eng.Exec(ctx, fmt.Sprintf("CREATE OR REPLACE TABLE %s AS %s", table, query)); err != nil {
		return metadata.StageMetrics{}, fmt.Errorf("graph: build %s: %w", table, err)
	}
	rows, err := b.eng.RowCount(ctx, table)
	if err != nil {
		return metadata.StageMetrics{}, err
	}
	b.log.Info("graph table built", "table", table, "rows", rows)
	return metadata.StageMetrics{
		Stage:      "graph",
		Entity:     table,
		OutputRows: rows,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}, nil
}
