package gold

import (
	"context"
	"time"

	"roofline/pkg/catalog"
	"roofline/pkg/metadata"
)

// EnrichLocations publishes gold_locations with node IDs for both ends of the
// hierarchy edge, so the graph builder can emit parent edges from one scan.
func (g *Enricher) EnrichLocations(ctx context.Context) (metadata.GoldMetadata, error) {
	started := time.Now()
	silver := catalog.MustTable(catalog.Location, catalog.Silver)

	rel := g.eng.Table(silver).Project(
		"*",
		"CASE WHEN location_id IS NOT NULL THEN level || ':' || location_id END AS graph_node_id",
		"CASE WHEN parent_id IS NOT NULL THEN parent_level || ':' || parent_id END AS parent_node_id",
	)

	return g.publish(ctx, catalog.Location, rel, started)
}
