package graphdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roofline/pkg/catalog"
)

func TestConstraintCypher(t *testing.T) {
	stmt, err := constraintCypher(catalog.LabelProperty)
	require.NoError(t, err)
	assert.Equal(t,
		"CREATE CONSTRAINT property_listing_id_unique IF NOT EXISTS FOR (n:Property) REQUIRE n.listing_id IS UNIQUE",
		stmt)

	stmt, err = constraintCypher(catalog.LabelZipCode)
	require.NoError(t, err)
	assert.Contains(t, stmt, "FOR (n:ZipCode) REQUIRE n.id IS UNIQUE")
}

func TestVectorIndexCypher(t *testing.T) {
	stmt, err := vectorIndexCypher(catalog.LabelNeighborhood)
	require.NoError(t, err)
	assert.Contains(t, stmt, "CREATE VECTOR INDEX neighborhood_embedding IF NOT EXISTS")
	assert.Contains(t, stmt, "`vector.dimensions`: 1024")
	assert.Contains(t, stmt, "'cosine'")
}

func TestNodeMergeCypher(t *testing.T) {
	assert.Equal(t,
		"UNWIND $rows AS r MERGE (n:Property {listing_id: r.pk}) SET n += r.props RETURN count(*) AS merged",
		nodeMergeCypher(catalog.LabelProperty, "listing_id"))
}

func TestEdgeMergeCypher(t *testing.T) {
	plain := edgeMergeCypher(catalog.RelLocatedIn, catalog.LabelProperty, catalog.LabelNeighborhood,
		"listing_id", "neighborhood_id", false)
	assert.Equal(t,
		"UNWIND $rows AS r MATCH (a:Property {listing_id: r.from}) MATCH (b:Neighborhood {neighborhood_id: r.to}) MERGE (a)-[e:LOCATED_IN]->(b) RETURN count(*) AS merged",
		plain)

	weighted := edgeMergeCypher(catalog.RelSimilarTo, catalog.LabelProperty, catalog.LabelProperty,
		"listing_id", "listing_id", true)
	assert.Contains(t, weighted, "SET e.weight = r.weight")
	// The merge count comes back from the statement itself.
	assert.Contains(t, weighted, "RETURN count(*) AS merged")
}

func TestNodeIDKey(t *testing.T) {
	pk, ok := nodeIDKey("property:prop-001")
	require.True(t, ok)
	assert.Equal(t, "prop-001", pk)

	// Only the first colon separates prefix from pk.
	pk, ok = nodeIDKey("wikipedia_article:123")
	require.True(t, ok)
	assert.Equal(t, "123", pk)

	_, ok = nodeIDKey("noprefix")
	assert.False(t, ok)
	_, ok = nodeIDKey("")
	assert.False(t, ok)
	_, ok = nodeIDKey(nil)
	assert.False(t, ok)
	_, ok = nodeIDKey("dangling:")
	assert.False(t, ok)
}

func TestChunked(t *testing.T) {
	rows := make([]map[string]any, 5)
	for i := range rows {
		rows[i] = map[string]any{"i": i}
	}

	chunks := chunked(rows, 2)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 2)
	assert.Len(t, chunks[2], 1)

	assert.Len(t, chunked(nil, 2), 0)
}

func TestNormalizeValue(t *testing.T) {
	assert.Nil(t, normalizeValue(nil))
	assert.Equal(t, "abc", normalizeValue([]byte("abc")))
	assert.Equal(t, float64(float32(1.5)), normalizeValue(float32(1.5)))
	assert.Equal(t, []any{1.0, 2.0}, normalizeValue([]float32{1, 2}))
	assert.Equal(t, []any{"a", 3.0}, normalizeValue([]any{"a", float32(3)}))
	assert.Equal(t, int64(7), normalizeValue(int64(7)))
}
