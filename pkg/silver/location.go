package silver

import (
	"context"
	"time"

	"roofline/pkg/catalog"
	"roofline/pkg/metadata"
)

// TransformLocations standardizes the geographic hierarchy reference. The
// reference keeps every row (no filter); rows naming no level at all come
// out with level 'unknown' and a NULL location_id. The reference carries no
// embedding text.
func (t *Transformer) TransformLocations(ctx context.Context) (metadata.SilverMetadata, error) {
	started := time.Now()
	bronze := catalog.MustTable(catalog.Location, catalog.Bronze)

	cleaned := t.eng.Table(bronze).Project(
		"nullif(trim(neighborhood), '') AS neighborhood",
		"nullif(trim(city), '') AS city",
		"nullif("+StripCountySuffixSQL("county")+", '') AS county",
		StateCodeSQL("state")+" AS state",
		StateNameSQL("state")+" AS state_name",
		"nullif(trim(zip_code), '') AS zip_code",
		ZipStatusSQL("zip_code")+" AS zip_code_status",
	)

	withIDs := cleaned.Wrap("c").Project(
		"*",
		"CASE WHEN state_name IS NOT NULL THEN 'state_' || "+LowerAlnumSQL("state_name")+" END AS state_id",
		"CASE WHEN county IS NOT NULL AND state IS NOT NULL THEN "+HierarchyIDSQL("county", "state")+" END AS county_id",
		"CASE WHEN city IS NOT NULL AND state IS NOT NULL THEN "+HierarchyIDSQL("city", "state")+" END AS city_id",
		"CASE WHEN neighborhood IS NOT NULL AND city IS NOT NULL THEN "+HierarchyIDSQL("neighborhood", "city")+" END AS neighborhood_id",
	)

	classified := withIDs.Wrap("ids").Project(
		"*",
		"coalesce(neighborhood_id, city_id, county_id, state_id) AS location_id",
		`CASE
		   WHEN neighborhood_id IS NOT NULL THEN 'neighborhood'
		   WHEN city_id IS NOT NULL THEN 'city'
		   WHEN county_id IS NOT NULL THEN 'county'
		   WHEN state_id IS NOT NULL THEN 'state'
		   ELSE 'unknown'
		 END AS level`,
	)

	final := classified.Wrap("l").Project(
		"*",
		`CASE level
		   WHEN 'neighborhood' THEN city_id
		   WHEN 'city' THEN coalesce(county_id, state_id)
		   WHEN 'county' THEN state_id
		 END AS parent_id`,
		`CASE level
		   WHEN 'neighborhood' THEN 'city'
		   WHEN 'city' THEN CASE WHEN county_id IS NOT NULL THEN 'county' ELSE 'state' END
		   WHEN 'county' THEN 'state'
		 END AS parent_level`,
	)

	return t.materialize(ctx, catalog.Location, final, started)
}
