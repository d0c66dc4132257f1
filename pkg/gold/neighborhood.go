package gold

import (
	"context"
	"time"

	"roofline/pkg/catalog"
	"roofline/pkg/metadata"
)

// EnrichNeighborhoods publishes gold_neighborhoods with the density, livability
// and investment columns.
func (g *Enricher) EnrichNeighborhoods(ctx context.Context) (metadata.GoldMetadata, error) {
	started := time.Now()
	silver := catalog.MustTable(catalog.Neighborhood, catalog.Silver)

	rel := g.eng.Table(silver).Project(
		"*",
		`CASE
		   WHEN population < 5000 THEN 'low'
		   WHEN population < 20000 THEN 'medium'
		   WHEN population < 50000 THEN 'high'
		   ELSE 'very_high'
		 END AS density_category`,
		LivabilitySQL("walkability_score", "school_rating")+" AS overall_livability_score",
		`CASE
		   WHEN walkability_score >= 80 AND school_rating >= 8 THEN 'premium_urban'
		   WHEN walkability_score >= 80 THEN 'urban_convenient'
		   WHEN school_rating >= 8 THEN 'family_friendly'
		   WHEN walkability_score >= 60 THEN 'balanced'
		   ELSE 'quiet_residential'
		 END AS lifestyle_category`,
	).Wrap("n").Project(
		"*",
		InvestmentSQL("population", "overall_livability_score", "city")+" AS investment_score",
	)

	return g.publish(ctx, catalog.Neighborhood, rel, started)
}
