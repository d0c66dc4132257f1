package graph

import (
	"context"
	"fmt"

	"roofline/pkg/catalog"
	"roofline/pkg/metadata"
	"roofline/pkg/silver"
)

// nodeID renders the graph node ID expression for a label over a pk column.
func nodeID(label catalog.GraphLabel, pkExpr string) string {
	prefix, err := catalog.NodeIDPrefix(label)
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("'%s:' || CAST(%s AS VARCHAR)", prefix, pkExpr)
}

// BuildNodes materializes every node table in label order.
func (b *Builder) BuildNodes(ctx context.Context) ([]metadata.StageMetrics, error) {
	properties := catalog.MustTable(catalog.Property, catalog.Gold)
	neighborhoods := catalog.MustTable(catalog.Neighborhood, catalog.Gold)
	wikipedia := catalog.MustTable(catalog.Wikipedia, catalog.Gold)
	locations := catalog.MustTable(catalog.Location, catalog.Gold)

	queries := map[catalog.GraphLabel]string{
		catalog.LabelProperty: `SELECT ` + nodeID(catalog.LabelProperty, "listing_id") + ` AS graph_node_id,
			listing_id, neighborhood_id, price, bedrooms, bathrooms, square_feet,
			property_type, price_band, bedroom_band, buyer_profile,
			address.city AS city, address.state AS state, address.zip_code AS zip_code,
			zip_code_status, embedding_vector AS embedding
			FROM ` + properties,

		catalog.LabelNeighborhood: `SELECT ` + nodeID(catalog.LabelNeighborhood, "neighborhood_id") + ` AS graph_node_id,
			neighborhood_id, name, city, state, city_id, population,
			median_household_income, walkability_score, school_rating,
			overall_livability_score, investment_score, lifestyle_category,
			embedding_vector AS embedding
			FROM ` + neighborhoods,

		catalog.LabelWikipediaArticle: `SELECT ` + nodeID(catalog.LabelWikipediaArticle, "page_id") + ` AS graph_node_id,
			page_id, title, url, city, state, article_quality_score, article_quality,
			search_ranking_score, key_topics, embedding_vector AS embedding
			FROM ` + wikipedia,

		catalog.LabelFeature: `SELECT DISTINCT 'feature:' || ` + silver.LowerAlnumSQL("name") + ` AS graph_node_id,
			` + silver.LowerAlnumSQL("name") + ` AS id, lower(trim(name)) AS name
			FROM (SELECT unnest(features) AS name FROM ` + properties + `)
			WHERE name IS NOT NULL AND trim(name) <> ''`,

		catalog.LabelPropertyType: `SELECT DISTINCT ` + nodeID(catalog.LabelPropertyType, "property_type") + ` AS graph_node_id,
			property_type AS id
			FROM ` + properties + ` WHERE property_type IS NOT NULL`,

		catalog.LabelPriceRange: `SELECT DISTINCT ` + nodeID(catalog.LabelPriceRange, "price_band") + ` AS graph_node_id,
			price_band AS id
			FROM ` + properties,

		// The geographic nodes come from the ID columns rather than the level
		// column, so a city named only under a neighborhood row still gets a
		// node. Reference rows repeat per zip code; grouping on the ID keeps
		// one deterministic row per node.
		catalog.LabelCity: `SELECT 'city:' || city_id AS graph_node_id,
			city_id AS id, min(city) AS name, min(state) AS state,
			min(state_id) AS state_id, min(county_id) AS county_id
			FROM ` + locations + ` WHERE city_id IS NOT NULL GROUP BY city_id`,

		catalog.LabelState: `SELECT 'state:' || state_id AS graph_node_id,
			state_id AS id, min(state) AS code, min(state_name) AS name
			FROM ` + locations + ` WHERE state_id IS NOT NULL GROUP BY state_id`,

		catalog.LabelCounty: `SELECT 'county:' || county_id AS graph_node_id,
			county_id AS id, min(county) AS name, min(state) AS state,
			min(state_id) AS state_id
			FROM ` + locations + ` WHERE county_id IS NOT NULL GROUP BY county_id`,

		catalog.LabelZipCode: `SELECT DISTINCT ` + nodeID(catalog.LabelZipCode, "address.zip_code") + ` AS graph_node_id,
			address.zip_code AS id, address.state AS state
			FROM ` + properties + ` WHERE zip_code_status = 'valid'`,
	}

	var out []metadata.StageMetrics
	for _, label := range catalog.GraphLabels() {
		table, err := catalog.NodeTable(label)
		if err != nil {
			return out, err
		}
		m, err := b.materialize(ctx, table, queries[label])
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}
