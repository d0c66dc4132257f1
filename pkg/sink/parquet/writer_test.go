package parquet

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roofline/pkg/catalog"
	"roofline/pkg/engine"
)

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

func TestLayerTables(t *testing.T) {
	bronze := layerTables(catalog.Bronze)
	assert.Len(t, bronze, 4)
	assert.Contains(t, bronze, "bronze_properties")

	// Gold additionally carries the graph node and edge tables.
	gold := layerTables(catalog.Gold)
	assert.Contains(t, gold, "gold_properties")
	assert.Contains(t, gold, "gold_graph_properties")
	assert.Contains(t, gold, "gold_graph_rel_similar_to")
	assert.Len(t, gold, 4+len(catalog.GraphLabels())+len(catalog.RelSpecs()))
}

func TestRowGroupSizePerLayer(t *testing.T) {
	assert.Equal(t, 100_000, rowGroupSize(catalog.Bronze))
	assert.Equal(t, 500_000, rowGroupSize(catalog.Silver))
	assert.Equal(t, 500_000, rowGroupSize(catalog.Gold))
}

func TestExportAllLayers(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, eng.Exec(ctx, `CREATE TABLE `+catalog.MustTable(catalog.Property, catalog.Bronze)+` AS
		SELECT * FROM (VALUES ('p1', 100.0), ('p2', 200.0), ('p3', 300.0)) AS v(listing_id, listing_price)`))
	require.NoError(t, eng.Exec(ctx, `CREATE TABLE `+catalog.MustTable(catalog.Property, catalog.Silver)+` AS
		SELECT * FROM (VALUES ('p1', 100.0), ('p2', 200.0)) AS v(listing_id, price)`))
	require.NoError(t, eng.Exec(ctx, `CREATE TABLE `+catalog.MustTable(catalog.Property, catalog.Gold)+` AS
		SELECT * FROM (VALUES ('p1', 100.0), ('p2', 200.0)) AS v(listing_id, price)`))
	require.NoError(t, eng.Exec(ctx, `CREATE TABLE `+catalog.MustTable(catalog.Location, catalog.Gold)+` AS
		SELECT * FROM (VALUES ('sanfrancisco_ca', 'city')) AS v(location_id, level)`))

	results, err := NewWriter(eng, dir).Export(ctx)
	require.NoError(t, err)

	// Missing tables are skipped, present ones land under their layer.
	require.Len(t, results, 4)
	byTable := map[string]ExportResult{}
	for _, r := range results {
		byTable[r.Table] = r
	}
	assert.Equal(t, int64(3), byTable["bronze_properties"].Rows)
	assert.Equal(t, "bronze", byTable["bronze_properties"].Layer)
	assert.Equal(t, int64(2), byTable["silver_properties"].Rows)
	assert.Equal(t, int64(2), byTable["gold_properties"].Rows)
	assert.Equal(t, int64(1), byTable["gold_locations"].Rows)

	for _, r := range results {
		info, err := os.Stat(r.Path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
		assert.Equal(t, filepath.Join(dir, r.Layer, r.Table+".parquet"), r.Path)
	}

	// Files round-trip through the engine's own reader with identical counts.
	var n int64
	row := eng.QueryRow(ctx, "SELECT count(*) FROM read_parquet("+engine.QuoteString(byTable["gold_properties"].Path)+")")
	require.NoError(t, row.Scan(&n))
	assert.Equal(t, int64(2), n)
}
