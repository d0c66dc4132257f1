package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Relation composition is pure string building, so these tests run without
// opening a database.
func newTestEngine() *Engine {
	return &Engine{}
}

func TestRelationSQLBasic(t *testing.T) {
	e := newTestEngine()
	r := e.Table("bronze_properties")
	assert.Equal(t, "SELECT * FROM bronze_properties", r.SQL())
	require.NoError(t, r.Err())
}

func TestRelationFilterProject(t *testing.T) {
	e := newTestEngine()
	r := e.Table("bronze_properties").
		Filter("price > 0").
		Filter("listing_id IS NOT NULL").
		Project("listing_id", "price * 2 AS doubled")
	assert.Equal(t,
		"SELECT listing_id, price * 2 AS doubled FROM bronze_properties WHERE (price > 0) AND (listing_id IS NOT NULL)",
		r.SQL())
}

func TestRelationIsImmutable(t *testing.T) {
	e := newTestEngine()
	base := e.Table("bronze_properties")
	_ = base.Filter("price > 0")
	assert.Equal(t, "SELECT * FROM bronze_properties", base.SQL(),
		"deriving a relation must not mutate its parent")
}

func TestRelationJoin(t *testing.T) {
	e := newTestEngine()
	locs := e.Table("silver_locations").Project("location_id", "city")
	r := e.Table("silver_properties").
		Join(LeftJoin, locs, "loc", "silver_properties.city = loc.city").
		Project("silver_properties.listing_id", "loc.location_id")
	assert.Equal(t,
		"SELECT silver_properties.listing_id, loc.location_id FROM silver_properties "+
			"LEFT JOIN (SELECT location_id, city FROM silver_locations) AS loc "+
			"ON silver_properties.city = loc.city",
		r.SQL())
}

func TestRelationJoinTable(t *testing.T) {
	e := newTestEngine()
	r := e.Table("gold_properties").
		JoinTable(InnerJoin, "gold_neighborhoods", "n", "gold_properties.neighborhood_id = n.neighborhood_id")
	assert.Equal(t,
		"SELECT * FROM gold_properties JOIN gold_neighborhoods AS n "+
			"ON gold_properties.neighborhood_id = n.neighborhood_id",
		r.SQL())
}

func TestRelationAggregateAndLimit(t *testing.T) {
	e := newTestEngine()
	r := e.Table("silver_properties").
		Aggregate("city", "city", "count(*) AS n", "avg(price) AS avg_price").
		Limit(10)
	assert.Equal(t,
		"SELECT city, count(*) AS n, avg(price) AS avg_price FROM silver_properties GROUP BY city LIMIT 10",
		r.SQL())
}

func TestRelationWrap(t *testing.T) {
	e := newTestEngine()
	r := e.Table("silver_properties").
		Project("city", "price * 2 AS doubled").
		Wrap("t").
		Filter("doubled > 100")
	assert.Equal(t,
		"SELECT * FROM (SELECT city, price * 2 AS doubled FROM silver_properties) AS t WHERE (doubled > 100)",
		r.SQL())
}

func TestRelationCarriesIdentifierError(t *testing.T) {
	e := newTestEngine()
	r := e.Table("bad name").Filter("price > 0")
	assert.ErrorIs(t, r.Err(), ErrInvalidIdentifier)

	err := r.CreateTable(context.Background(), "silver_properties")
	assert.ErrorIs(t, err, ErrInvalidIdentifier, "builder errors must surface at execution")

	ok := e.Table("silver_properties").Join(InnerJoin, e.Table("also bad"), "x", "1=1")
	assert.ErrorIs(t, ok.Err(), ErrInvalidIdentifier, "joined relation errors must propagate")
}

func TestRelationCreateRejectsBadTarget(t *testing.T) {
	e := newTestEngine()
	r := e.Table("bronze_properties")
	assert.ErrorIs(t, r.CreateTable(context.Background(), "drop table x"), ErrInvalidIdentifier)
	assert.ErrorIs(t, r.CreateView(context.Background(), "1view"), ErrInvalidIdentifier)
}

func TestRelationCopyToParquetValidation(t *testing.T) {
	e := newTestEngine()
	r := e.Table("gold_properties")
	assert.Error(t, r.CopyToParquet(context.Background(), "/tmp/x.parquet", 0),
		"zero row group size is rejected before SQL runs")
}
