package silver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"roofline/pkg/catalog"
	"roofline/pkg/engine"
	"roofline/pkg/metadata"
)

// vectorColumns are appended to every embedded entity's projection; the
// attacher fills them in after the table materializes.
var vectorColumns = []string{
	"NULL::FLOAT[1024] AS embedding_vector",
	"CAST(NULL AS TIMESTAMP) AS embedding_generated_at",
}

// Transformer materializes Silver tables from Bronze.
type Transformer struct {
	eng *engine.Engine
	log *slog.Logger
}

// NewTransformer wires a transformer to the engine.
func NewTransformer(eng *engine.Engine) *Transformer {
	return &Transformer{eng: eng, log: slog.With("component", "silver")}
}

// materialize runs the relation, creates the Silver table and builds the
// stage record from the row counts.
func (t *Transformer) materialize(ctx context.Context, entity catalog.Entity, rel *engine.Relation, started time.Time) (metadata.SilverMetadata, error) {
	bronzeTable := catalog.MustTable(entity, catalog.Bronze)
	silverTable := catalog.MustTable(entity, catalog.Silver)

	in, err := t.eng.RowCount(ctx, bronzeTable)
	if err != nil {
		return metadata.SilverMetadata{}, err
	}
	if err := rel.CreateTable(ctx, silverTable); err != nil {
		return metadata.SilverMetadata{}, fmt.Errorf("silver: transform %s: %w", entity, err)
	}
	out, err := t.eng.RowCount(ctx, silverTable)
	if err != nil {
		return metadata.SilverMetadata{}, err
	}

	embedTextRows, err := t.embeddingTextCount(ctx, silverTable)
	if err != nil {
		return metadata.SilverMetadata{}, err
	}

	t.log.Info("silver materialized", "entity", entity, "table", silverTable,
		"input", in, "output", out, "dropped", in-out)
	return metadata.NewSilverMetadata(string(entity), silverTable, in, out, embedTextRows, started, time.Now())
}

// embeddingTextCount counts rows carrying a usable embedding text. Entities
// without an embedding_text column (the location reference) report zero.
func (t *Transformer) embeddingTextCount(ctx context.Context, table string) (int64, error) {
	cols, err := t.eng.ColumnNames(ctx, table)
	if err != nil {
		return 0, err
	}
	hasText := false
	for _, c := range cols {
		if c == "embedding_text" {
			hasText = true
			break
		}
	}
	if !hasText {
		return 0, nil
	}
	var n int64
	err = t.eng.QueryRow(ctx,
		"SELECT count(*) FROM "+table+" WHERE embedding_text IS NOT NULL AND trim(embedding_text) <> ''").Scan(&n)
	return n, err
}
