// Package gold publishes the enrichment layer: one CREATE OR REPLACE VIEW per
// entity over its Silver table. Views never copy data; every derived column
// is a deterministic expression over Silver, so identical Silver input yields
// byte-identical Gold results.
package gold

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"roofline/pkg/catalog"
	"roofline/pkg/engine"
	"roofline/pkg/metadata"
)

// Enricher builds the Gold views.
type Enricher struct {
	eng *engine.Engine
	log *slog.Logger
}

// NewEnricher wires an enricher to the engine.
func NewEnricher(eng *engine.Engine) *Enricher {
	return &Enricher{eng: eng, log: slog.With("component", "gold")}
}

// publish creates the view and builds the stage record from its row count.
func (g *Enricher) publish(ctx context.Context, entity catalog.Entity, rel *engine.Relation, started time.Time) (metadata.GoldMetadata, error) {
	view := catalog.MustTable(entity, catalog.Gold)
	if err := rel.CreateView(ctx, view); err != nil {
		return metadata.GoldMetadata{}, fmt.Errorf("gold: enrich %s: %w", entity, err)
	}
	rows, err := g.eng.RowCount(ctx, view)
	if err != nil {
		return metadata.GoldMetadata{}, err
	}
	g.log.Info("gold view published", "entity", entity, "view", view, "rows", rows)
	return metadata.NewGoldMetadata(string(entity), view, rows, started, time.Now())
}

// EnrichAll builds every Gold view in entity order.
func (g *Enricher) EnrichAll(ctx context.Context) ([]metadata.GoldMetadata, error) {
	builders := []func(context.Context) (metadata.GoldMetadata, error){
		g.EnrichLocations,
		g.EnrichProperties,
		g.EnrichNeighborhoods,
		g.EnrichWikipedia,
	}
	out := make([]metadata.GoldMetadata, 0, len(builders))
	for _, build := range builders {
		meta, err := build(ctx)
		if err != nil {
			return out, err
		}
		out = append(out, meta)
	}
	return out, nil
}
