package silver

import (
	"context"
	"time"

	"roofline/pkg/catalog"
	"roofline/pkg/engine"
	"roofline/pkg/metadata"
)

// TransformNeighborhoods standardizes neighborhoods and left-joins the
// location reference to pull in the canonical county and hierarchy IDs.
// Requires silver_locations to exist.
func (t *Transformer) TransformNeighborhoods(ctx context.Context) (metadata.SilverMetadata, error) {
	started := time.Now()
	bronze := catalog.MustTable(catalog.Neighborhood, catalog.Bronze)
	locations := catalog.MustTable(catalog.Location, catalog.Silver)

	joined := t.eng.Table(bronze).
		Filter(bronze+".neighborhood_id IS NOT NULL").
		Filter(bronze+".name IS NOT NULL AND trim("+bronze+".name) <> ''").
		JoinTable(engine.LeftJoin, locations, "loc",
			"lower(trim("+bronze+".name)) = lower(loc.neighborhood)"+
				" AND lower(trim("+bronze+".city)) = lower(loc.city)"+
				" AND "+StateCodeSQL(bronze+".state")+" = loc.state").
		Project(
			"coalesce(nullif(trim("+bronze+".neighborhood_id), ''), "+
				HierarchyIDSQL("trim("+bronze+".name)", "trim("+bronze+".city)")+") AS neighborhood_id",
			"trim("+bronze+".name) AS name",
			"trim("+bronze+".city) AS city",
			StateCodeSQL(bronze+".state")+" AS state",
			StateNameSQL(bronze+".state")+" AS state_name",
			"loc.county AS county",
			"loc.city_id AS city_id",
			"loc.county_id AS county_id",
			"loc.state_id AS state_id",
			"["+bronze+".coordinates.longitude, "+bronze+".coordinates.latitude] AS location",
			"CAST("+bronze+".demographics.population AS INTEGER) AS population",
			"CAST("+bronze+".demographics.median_household_income AS DOUBLE) AS median_household_income",
			"CAST("+bronze+".characteristics.walkability_score AS DOUBLE) AS walkability_score",
			"CAST("+bronze+".characteristics.school_rating AS DOUBLE) AS school_rating",
			"trim("+bronze+".description) AS description",
			"CAST("+bronze+".wikipedia_correlations.primary_wiki_article.page_id AS BIGINT) AS wikipedia_page_id",
			"CAST("+bronze+".wikipedia_correlations.primary_wiki_article.confidence AS DOUBLE) AS wikipedia_confidence",
		)

	final := joined.Wrap("n").Project(append([]string{
		"*",
		"concat_ws(' ', name, city, state_name, description) AS embedding_text",
	}, vectorColumns...)...)

	return t.materialize(ctx, catalog.Neighborhood, final, started)
}
