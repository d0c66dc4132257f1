package graph

import (
	"context"
	"regexp"
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

// seedGold creates minimal gold tables. Test vectors are FLOAT[3]; the
// similarity SQL is dimension-agnostic.
func seedGold(t *testing.T, eng *engine.Engine, ctx context.Context, withEmbeddings bool) {
	t.Helper()

	vec := func(x, y, z string) string {
		if !withEmbeddings {
			return "CAST(NULL AS FLOAT[3])"
		}
		return "CAST([" + x + ", " + y + ", " + z + "] AS FLOAT[3])"
	}

	require.NoError(t, eng.Exec(ctx, `CREATE TABLE `+catalog.MustTable(catalog.Property, catalog.Gold)+` AS
		SELECT * FROM (VALUES
			('p1', 'mission_sanfrancisco', 1200000.0, 3, 2.5, 1500, 'condo', 'luxury', '3br', 'premium',
			 {'city': 'San Francisco', 'state': 'CA', 'zip_code': '94110'}, 'valid',
			 ['Hardwood Floors', 'Balcony'], `+vec("1", "0", "0")+`),
			('p2', 'mission_sanfrancisco', 980000.0, 2, 1.0, 1100, 'condo', 'under1m', '2br', 'general',
			 {'city': 'San Francisco', 'state': 'CA', 'zip_code': '94110'}, 'valid',
			 ['Balcony'], `+vec("0.9", "0.1", "0")+`),
			('p3', 'ghost_neighborhood', 400000.0, 1, 1.0, 700, 'house', 'under600k', '1br', 'starter',
			 {'city': 'Oakland', 'state': 'CA', 'zip_code': NULL}, 'missing',
			 [], `+vec("0", "1", "0")+`)
		) AS v(listing_id, neighborhood_id, price, bedrooms, bathrooms, square_feet,
		       property_type, price_band, bedroom_band, buyer_profile, address,
		       zip_code_status, features, embedding_vector)`))

	require.NoError(t, eng.Exec(ctx, `CREATE TABLE `+catalog.MustTable(catalog.Neighborhood, catalog.Gold)+` AS
		SELECT * FROM (VALUES
			('mission_sanfrancisco', 'Mission District', 'San Francisco', 'CA', 'sanfrancisco_ca',
			 60000, 110000.0, 95.0, 7.5, 85.0, 0.91, 'urban_convenient', `+vec("1", "0", "0")+`)
		) AS v(neighborhood_id, name, city, state, city_id, population, median_household_income,
		       walkability_score, school_rating, overall_livability_score, investment_score,
		       lifestyle_category, embedding_vector)`))

	require.NoError(t, eng.Exec(ctx, `CREATE TABLE `+catalog.MustTable(catalog.Wikipedia, catalog.Gold)+` AS
		SELECT * FROM (VALUES
			(12345, 'Mission District, San Francisco', 'https://example.org', 'San Francisco', 'CA',
			 0.91, 'premium', 0.93, ['park'], `+vec("1", "0", "0")+`)
		) AS v(page_id, title, url, city, state, article_quality_score, article_quality,
		       search_ranking_score, key_topics, embedding_vector)`))

	require.NoError(t, eng.Exec(ctx, `CREATE TABLE `+catalog.MustTable(catalog.Location, catalog.Gold)+` AS
		SELECT * FROM (VALUES
			('neighborhood:mission_sanfrancisco', 'city:sanfrancisco_ca', 'neighborhood', 'city',
			 'mission_sanfrancisco', 'Mission District', 'San Francisco', 'CA', 'California',
			 'San Francisco', 'sanfrancisco_ca', 'sanfrancisco_ca', 'state_california'),
			('city:sanfrancisco_ca', 'county:sanfrancisco_ca', 'city', 'county',
			 'sanfrancisco_ca', NULL, 'San Francisco', 'CA', 'California',
			 'San Francisco', 'sanfrancisco_ca', 'sanfrancisco_ca', 'state_california'),
			('county:sanfrancisco_ca', 'state:state_california', 'county', 'state',
			 'sanfrancisco_ca', NULL, NULL, 'CA', 'California',
			 'San Francisco', NULL, 'sanfrancisco_ca', 'state_california'),
			('state:state_california', NULL, 'state', NULL,
			 'state_california', NULL, NULL, 'CA', 'California',
			 NULL, NULL, NULL, 'state_california')
		) AS v(graph_node_id, parent_node_id, level, parent_level, location_id,
		       neighborhood, city, state, state_name, county, city_id, county_id, state_id)`))
}

func TestBuildNodes(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()
	seedGold(t, eng, ctx, true)

	metrics, err := NewBuilder(eng).BuildNodes(ctx)
	require.NoError(t, err)
	require.Len(t, metrics, len(catalog.GraphLabels()))

	counts := map[string]int64{}
	for _, m := range metrics {
		counts[m.Entity] = m.OutputRows
	}
	assert.Equal(t, int64(3), counts["gold_graph_properties"])
	assert.Equal(t, int64(1), counts["gold_graph_neighborhoods"])
	assert.Equal(t, int64(1), counts["gold_graph_wikipedia"])
	// Hardwood Floors + Balcony, deduplicated across listings.
	assert.Equal(t, int64(2), counts["gold_graph_features"])
	assert.Equal(t, int64(2), counts["gold_graph_property_types"])
	assert.Equal(t, int64(3), counts["gold_graph_price_ranges"])
	assert.Equal(t, int64(1), counts["gold_graph_cities"])
	assert.Equal(t, int64(1), counts["gold_graph_states"])
	assert.Equal(t, int64(1), counts["gold_graph_counties"])
	// p3 has no valid zip.
	assert.Equal(t, int64(1), counts["gold_graph_zip_codes"])

	idPattern := regexp.MustCompile(`^[a-z_]+:[A-Za-z0-9_\-]+$`)
	for _, label := range catalog.GraphLabels() {
		table, err := catalog.NodeTable(label)
		require.NoError(t, err)
		rows, err := eng.Query(ctx, "SELECT graph_node_id FROM "+table)
		require.NoError(t, err)
		for rows.Next() {
			var id string
			require.NoError(t, rows.Scan(&id))
			assert.Regexp(t, idPattern, id, "label %s", label)
		}
		require.NoError(t, rows.Err())
		rows.Close()
	}
}

func TestBuildRelationships(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()
	seedGold(t, eng, ctx, true)

	b := NewBuilder(eng)
	_, err := b.BuildNodes(ctx)
	require.NoError(t, err)
	metrics, err := b.BuildRelationships(ctx)
	require.NoError(t, err)

	counts := map[string]int64{}
	for _, m := range metrics {
		counts[m.Entity] = m.OutputRows
	}
	// p3 points at a neighborhood with no node, so only p1 and p2 connect.
	assert.Equal(t, int64(2), counts["gold_graph_rel_located_in"])
	assert.Equal(t, int64(3), counts["gold_graph_rel_has_feature"])
	assert.Equal(t, int64(1), counts["gold_graph_rel_in_city"])
	assert.Equal(t, int64(1), counts["gold_graph_rel_in_state"])
	assert.Equal(t, int64(2), counts["gold_graph_rel_in_zip_code"])
	assert.Equal(t, int64(3), counts["gold_graph_rel_type_of"])
	assert.Equal(t, int64(3), counts["gold_graph_rel_in_price_range"])
	// neighborhood->city, city->county, county->state.
	assert.Equal(t, int64(3), counts["gold_graph_rel_geographic_hierarchy"])

	// p1 and p2 vectors are nearly parallel; p3 is orthogonal to both.
	assert.Equal(t, int64(1), counts["gold_graph_rel_similar_to"])
	var from, to string
	var weight float64
	row := eng.QueryRow(ctx, "SELECT from_id, to_id, weight FROM gold_graph_rel_similar_to")
	require.NoError(t, row.Scan(&from, &to, &weight))
	assert.Equal(t, "property:p1", from)
	assert.Equal(t, "property:p2", to)
	assert.Greater(t, weight, 0.85)
}

func TestHierarchyEdgesRequireBothEndpointNodes(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()
	seedGold(t, eng, ctx, true)

	// A location row whose neighborhood ID never became a node.
	require.NoError(t, eng.Exec(ctx, `INSERT INTO `+catalog.MustTable(catalog.Location, catalog.Gold)+` VALUES
		('neighborhood:phantom_nowhere', 'city:sanfrancisco_ca', 'neighborhood', 'city',
		 'phantom_nowhere', 'Phantom', 'San Francisco', 'CA', 'California',
		 'San Francisco', 'sanfrancisco_ca', 'sanfrancisco_ca', 'state_california')`))

	b := NewBuilder(eng)
	_, err := b.BuildNodes(ctx)
	require.NoError(t, err)
	_, err = b.BuildRelationships(ctx)
	require.NoError(t, err)

	var n int64
	row := eng.QueryRow(ctx, `SELECT count(*) FROM gold_graph_rel_geographic_hierarchy
		WHERE from_id = 'neighborhood:phantom_nowhere'`)
	require.NoError(t, row.Scan(&n))
	assert.Zero(t, n, "an edge must not reference a missing node")

	// The three fully resolvable hops survive.
	row = eng.QueryRow(ctx, "SELECT count(*) FROM gold_graph_rel_geographic_hierarchy")
	require.NoError(t, row.Scan(&n))
	assert.Equal(t, int64(3), n)
}

func TestSimilarToSkippedWithoutEmbeddings(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()
	seedGold(t, eng, ctx, false)

	b := NewBuilder(eng)
	_, err := b.BuildNodes(ctx)
	require.NoError(t, err)
	metrics, err := b.BuildRelationships(ctx)
	require.NoError(t, err)

	for _, m := range metrics {
		if m.Entity == "gold_graph_rel_similar_to" {
			assert.Equal(t, int64(0), m.OutputRows)
		}
	}
}
