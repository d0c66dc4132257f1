package silver

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roofline/pkg/catalog"
	"roofline/pkg/engine"
)

// These tests exercise the real embedded engine and are skipped in -short runs.
func openTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping engine-backed test in short mode")
	}
	eng, err := engine.Open(engine.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func seedLocations(t *testing.T, eng *engine.Engine, ctx context.Context) {
	t.Helper()
	table := catalog.MustTable(catalog.Location, catalog.Bronze)
	require.NoError(t, eng.Exec(ctx, `CREATE TABLE `+table+` AS
		SELECT * FROM (VALUES
			('Mission District', 'San Francisco', 'San Francisco County', 'California', '94110'),
			(NULL, 'Park City', 'Summit County', 'Utah', '84060'),
			(NULL, NULL, 'Summit County', 'UT', NULL),
			(NULL, NULL, NULL, 'Utah', '90001'),
			(NULL, NULL, NULL, NULL, 'abc')
		) AS v(neighborhood, city, county, state, zip_code)`))
}

func TestTransformLocations(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()
	seedLocations(t, eng, ctx)

	meta, err := NewTransformer(eng).TransformLocations(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), meta.InputRows)
	assert.Equal(t, int64(5), meta.OutputRows)
	assert.Equal(t, int64(0), meta.Dropped)

	silver := catalog.MustTable(catalog.Location, catalog.Silver)

	var locationID, level, parentID, parentLevel, county string
	row := eng.QueryRow(ctx, `SELECT location_id, level, parent_id, parent_level, county
		FROM `+silver+` WHERE neighborhood = 'Mission District'`)
	require.NoError(t, row.Scan(&locationID, &level, &parentID, &parentLevel, &county))
	assert.Equal(t, "missiondistrict_sanfrancisco", locationID)
	assert.Equal(t, "neighborhood", level)
	assert.Equal(t, "sanfrancisco_ca", parentID)
	assert.Equal(t, "city", parentLevel)
	assert.Equal(t, "San Francisco", county)

	row = eng.QueryRow(ctx, `SELECT location_id, level, parent_id, parent_level
		FROM `+silver+` WHERE city = 'Park City'`)
	require.NoError(t, row.Scan(&locationID, &level, &parentID, &parentLevel))
	assert.Equal(t, "parkcity_ut", locationID)
	assert.Equal(t, "city", level)
	assert.Equal(t, "summit_ut", parentID)
	assert.Equal(t, "county", parentLevel)

	var status string
	row = eng.QueryRow(ctx, `SELECT zip_code_status FROM `+silver+` WHERE zip_code = '90001'`)
	require.NoError(t, row.Scan(&status))
	assert.Equal(t, "placeholder", status)

	var n int64
	row = eng.QueryRow(ctx, `SELECT count(*) FROM `+silver+` WHERE level = 'unknown' AND location_id IS NULL`)
	require.NoError(t, row.Scan(&n))
	assert.Equal(t, int64(1), n)
}

func seedProperties(t *testing.T, eng *engine.Engine, ctx context.Context) {
	t.Helper()
	table := catalog.MustTable(catalog.Property, catalog.Bronze)
	require.NoError(t, eng.Exec(ctx, `CREATE TABLE `+table+` AS
		SELECT * FROM (VALUES
			('prop-001', 'missiondistrict_sanfrancisco', 1200000.0,
			 {'bedrooms': 3, 'bathrooms': 2.5, 'square_feet': 1500, 'property_type': 'Condo',
			  'year_built': 1998, 'garage_spaces': 1, 'lot_size': 0.25},
			 {'street': '123 Valencia St', 'city': 'San Francisco', 'state': 'California', 'zip': '94110'},
			 {'latitude': 37.76, 'longitude': -122.42},
			 'Bright corner condo', ['hardwood floors', 'balcony'], DATE '2026-05-01'),
			('prop-003', NULL, 650000.0,
			 {'bedrooms': 2, 'bathrooms': 1.0, 'square_feet': 1000, 'property_type': 'Condo',
			  'year_built': 1985, 'garage_spaces': 0, 'lot_size': 0.05},
			 {'street': '3 Fog Ln', 'city': 'Daly City', 'state': 'CA', 'zip': '94014'},
			 {'latitude': CAST(NULL AS DOUBLE), 'longitude': CAST(NULL AS DOUBLE)},
			 'No coordinates, kept', ['patio'], DATE '2026-02-01'),
			('prop-002', NULL, 0.0,
			 {'bedrooms': 2, 'bathrooms': 1.0, 'square_feet': 900, 'property_type': 'House',
			  'year_built': 1950, 'garage_spaces': 0, 'lot_size': 0.1},
			 {'street': '1 Nowhere', 'city': 'Oakland', 'state': 'CA', 'zip': '90001'},
			 {'latitude': 37.80, 'longitude': -122.27},
			 'Zero price, dropped', ['garden'], DATE '2026-04-01'),
			('', NULL, 500000.0,
			 {'bedrooms': 1, 'bathrooms': 1.0, 'square_feet': 600, 'property_type': 'Condo',
			  'year_built': 2000, 'garage_spaces': 0, 'lot_size': 0.0},
			 {'street': '2 Nowhere', 'city': 'Oakland', 'state': 'CA', 'zip': '946'},
			 {'latitude': 37.81, 'longitude': -122.26},
			 'Blank id, dropped', [], DATE '2026-03-01')
		) AS v(listing_id, neighborhood_id, listing_price, property_details, address,
		       coordinates, description, features, listing_date)`))
}

func TestTransformProperties(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()
	seedProperties(t, eng, ctx)

	meta, err := NewTransformer(eng).TransformProperties(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), meta.InputRows)
	assert.Equal(t, int64(2), meta.OutputRows)
	assert.Equal(t, int64(2), meta.Dropped)
	assert.Equal(t, int64(2), meta.EmbeddingTextRows)

	silver := catalog.MustTable(catalog.Property, catalog.Silver)

	var state, zipStatus, text string
	var lotSqft int
	var pricePerSqft float64
	row := eng.QueryRow(ctx, `SELECT address.state, zip_code_status, embedding_text, lot_size_sqft, price_per_sqft
		FROM `+silver+` WHERE listing_id = 'prop-001'`)
	require.NoError(t, row.Scan(&state, &zipStatus, &text, &lotSqft, &pricePerSqft))
	assert.Equal(t, "CA", state)
	assert.Equal(t, "valid", zipStatus)
	assert.Equal(t, 10890, lotSqft)
	assert.Equal(t, 800.0, pricePerSqft)
	assert.Contains(t, text, "Bright corner condo")
	assert.Contains(t, text, "3 bedrooms")
	assert.Contains(t, text, "1500 sqft")
	assert.Contains(t, text, "San Francisco")

	// Null coordinates do not drop a listing; the geo point just stays null.
	var lon sql.NullFloat64
	row = eng.QueryRow(ctx, `SELECT address.location[1] FROM `+silver+` WHERE listing_id = 'prop-003'`)
	require.NoError(t, row.Scan(&lon))
	assert.False(t, lon.Valid)
}

func seedNeighborhoods(t *testing.T, eng *engine.Engine, ctx context.Context) {
	t.Helper()
	table := catalog.MustTable(catalog.Neighborhood, catalog.Bronze)
	require.NoError(t, eng.Exec(ctx, `CREATE TABLE `+table+` AS
		SELECT * FROM (VALUES
			('missiondistrict_sanfrancisco', 'Mission District', 'San Francisco', 'California',
			 {'latitude': 37.76, 'longitude': -122.42},
			 {'population': 60000, 'median_household_income': 110000.0},
			 {'walkability_score': 95.0, 'school_rating': 7.5},
			 'Vibrant neighborhood',
			 {'primary_wiki_article': {'page_id': 12345, 'confidence': 0.9}}),
			('', 'Old Town', 'Park City', 'UT',
			 {'latitude': 40.64, 'longitude': -111.49},
			 {'population': 2500, 'median_household_income': 90000.0},
			 {'walkability_score': 80.0, 'school_rating': 8.0},
			 'Historic core',
			 {'primary_wiki_article': {'page_id': 12345, 'confidence': 0.7}}),
			(NULL, 'Dropped', 'Nowhere', 'CA',
			 {'latitude': 0.0, 'longitude': 0.0},
			 {'population': 0, 'median_household_income': 0.0},
			 {'walkability_score': 0.0, 'school_rating': 0.0},
			 NULL,
			 {'primary_wiki_article': {'page_id': NULL, 'confidence': NULL}})
		) AS v(neighborhood_id, name, city, state, coordinates, demographics,
		       characteristics, description, wikipedia_correlations)`))
}

func TestTransformNeighborhoods(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()
	seedLocations(t, eng, ctx)
	seedNeighborhoods(t, eng, ctx)

	tr := NewTransformer(eng)
	_, err := tr.TransformLocations(ctx)
	require.NoError(t, err)

	meta, err := tr.TransformNeighborhoods(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), meta.InputRows)
	assert.Equal(t, int64(2), meta.OutputRows)

	silver := catalog.MustTable(catalog.Neighborhood, catalog.Silver)

	var id, stateName, county string
	row := eng.QueryRow(ctx, `SELECT neighborhood_id, state_name, coalesce(county, '')
		FROM `+silver+` WHERE name = 'Mission District'`)
	require.NoError(t, row.Scan(&id, &stateName, &county))
	assert.Equal(t, "missiondistrict_sanfrancisco", id)
	assert.Equal(t, "California", stateName)
	assert.Equal(t, "San Francisco", county)

	// Blank source ID gets the computed hierarchy form.
	row = eng.QueryRow(ctx, `SELECT neighborhood_id FROM `+silver+` WHERE name = 'Old Town'`)
	require.NoError(t, row.Scan(&id))
	assert.Equal(t, "oldtown_parkcity", id)
}

func seedWikipedia(t *testing.T, eng *engine.Engine, ctx context.Context) {
	t.Helper()
	table := catalog.MustTable(catalog.Wikipedia, catalog.Bronze)
	require.NoError(t, eng.Exec(ctx, `CREATE TABLE `+table+` AS
		SELECT * FROM (VALUES
			(12345, 'Mission District, San Francisco', 'https://en.wikipedia.org/wiki/Mission_District',
			 repeat('history ', 800), ['Neighborhoods'], 37.76, -122.42,
			 'San Francisco', 'San Francisco County', 'California', 0.9, 150,
			 TIMESTAMP '2026-06-01 00:00:00'),
			(12345, 'Mission District, San Francisco', 'https://en.wikipedia.org/wiki/Mission_District',
			 'short older crawl', ['Neighborhoods'], 37.76, -122.42,
			 'San Francisco', 'San Francisco County', 'California', 0.9, 20,
			 TIMESTAMP '2026-01-01 00:00:00'),
			(99999, 'Park City, Utah', 'https://en.wikipedia.org/wiki/Park_City',
			 repeat('ski ', 500), ['Cities'], 40.64, -111.49,
			 'Park City', 'Summit County', 'Utah', 0.8, 60,
			 TIMESTAMP '2026-06-01 00:00:00'),
			(NULL, 'No page id', NULL, 'dropped', [], NULL, NULL,
			 NULL, NULL, NULL, 0.0, 0, TIMESTAMP '2026-06-01 00:00:00')
		) AS v(pageid, title, url, extract, categories, latitude, longitude,
		       best_city, best_county, best_state, relevance_score, links_count, crawled_at)`))
}

func TestTransformWikipedia(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()
	seedLocations(t, eng, ctx)
	seedNeighborhoods(t, eng, ctx)
	seedWikipedia(t, eng, ctx)

	tr := NewTransformer(eng)
	_, err := tr.TransformLocations(ctx)
	require.NoError(t, err)
	_, err = tr.TransformNeighborhoods(ctx)
	require.NoError(t, err)

	meta, err := tr.TransformWikipedia(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), meta.InputRows)
	// Two valid pages after dedup; the NULL pageid row is dropped.
	assert.Equal(t, int64(2), meta.OutputRows)

	silver := catalog.MustTable(catalog.Wikipedia, catalog.Silver)

	// The richer crawl wins the dedup.
	var extract string
	var quality float64
	row := eng.QueryRow(ctx, `SELECT extract, article_quality_score FROM `+silver+` WHERE page_id = 12345`)
	require.NoError(t, row.Scan(&extract, &quality))
	assert.Contains(t, extract, "history")
	assert.Greater(t, quality, 0.5)
	assert.LessOrEqual(t, quality, 1.0)

	// Both test neighborhoods point at page 12345, so the 0.15 boost band applies
	// and both names are aggregated.
	var nAssoc int
	var primary, text, county string
	row = eng.QueryRow(ctx, `SELECT len(neighborhood_ids), primary_neighborhood_name, embedding_text, county
		FROM `+silver+` WHERE page_id = 12345`)
	require.NoError(t, row.Scan(&nAssoc, &primary, &text, &county))
	assert.Equal(t, 2, nAssoc)
	assert.Equal(t, "Mission District", primary)
	assert.Contains(t, text, "Mission District, San Francisco | ")
	assert.Equal(t, "San Francisco", county)

	// No associations: empty list, NULL primary.
	row = eng.QueryRow(ctx, `SELECT len(neighborhood_ids) FROM `+silver+` WHERE page_id = 99999`)
	require.NoError(t, row.Scan(&nAssoc))
	assert.Equal(t, 0, nAssoc)
}

func TestArticleQualityBoostDifference(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	// Same article inputs, association counts 0 and 2: the scores must differ
	// by exactly the 0.15 boost, well below the 1.0 cap.
	score := ArticleQualitySQL("extract", "links", "relevance", "n_assoc")
	row := eng.QueryRow(ctx, `SELECT max(s) - min(s) FROM (
		SELECT `+score+` AS s FROM (VALUES
			(repeat('x', 2000), 30, 0.5, 0),
			(repeat('x', 2000), 30, 0.5, 2)
		) AS v(extract, links, relevance, n_assoc)
	)`)
	var diff float64
	require.NoError(t, row.Scan(&diff))
	assert.InDelta(t, 0.15, diff, 1e-9)
}
