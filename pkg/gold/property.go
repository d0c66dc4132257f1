package gold

import (
	"context"
	"time"

	"roofline/pkg/catalog"
	"roofline/pkg/metadata"
)

// EnrichProperties publishes gold_properties: silver columns plus the search
// bands and buyer profile used by downstream sinks.
func (g *Enricher) EnrichProperties(ctx context.Context) (metadata.GoldMetadata, error) {
	started := time.Now()
	silver := catalog.MustTable(catalog.Property, catalog.Silver)

	rel := g.eng.Table(silver).Project(
		"*",
		`CASE
		   WHEN price < 300000 THEN 'under300k'
		   WHEN price < 600000 THEN 'under600k'
		   WHEN price < 1000000 THEN 'under1m'
		   ELSE 'luxury'
		 END AS price_band`,
		`CASE bedrooms
		   WHEN 0 THEN 'studio'
		   WHEN 1 THEN '1br'
		   WHEN 2 THEN '2br'
		   WHEN 3 THEN '3br'
		   ELSE '4plus'
		 END AS bedroom_band`,
		"{'type': CASE WHEN garage_spaces > 0 THEN 'garage' ELSE 'none' END," +
			" 'spaces': coalesce(garage_spaces, 0)} AS parking",
	).Wrap("p").Project(
		"*",
		"[property_type, bedroom_band, price_band] AS search_tags",
		`CASE
		   WHEN bedrooms >= 4 THEN 'family'
		   WHEN square_feet < 1000 THEN 'starter'
		   WHEN price >= 1000000 THEN 'premium'
		   ELSE 'general'
		 END AS buyer_profile`,
	)

	return g.publish(ctx, catalog.Property, rel, started)
}
