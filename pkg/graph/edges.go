package graph

import (
	"context"
	"fmt"

	"roofline/pkg/catalog"
	"roofline/pkg/metadata"
	"roofline/pkg/silver"
)

func mustNodeTable(l catalog.GraphLabel) string {
	t, err := catalog.NodeTable(l)
	if err != nil {
		panic(err)
	}
	return t
}

// BuildRelationships materializes every edge table. Edge SELECTs inner-join
// both endpoint node tables, so no edge can reference a missing node.
func (b *Builder) BuildRelationships(ctx context.Context) ([]metadata.StageMetrics, error) {
	props := mustNodeTable(catalog.LabelProperty)
	hoods := mustNodeTable(catalog.LabelNeighborhood)
	cities := mustNodeTable(catalog.LabelCity)
	counties := mustNodeTable(catalog.LabelCounty)
	states := mustNodeTable(catalog.LabelState)
	types := mustNodeTable(catalog.LabelPropertyType)
	ranges := mustNodeTable(catalog.LabelPriceRange)
	features := mustNodeTable(catalog.LabelFeature)
	zips := mustNodeTable(catalog.LabelZipCode)
	properties := catalog.MustTable(catalog.Property, catalog.Gold)
	locations := catalog.MustTable(catalog.Location, catalog.Gold)

	queries := map[catalog.RelType]string{
		catalog.RelLocatedIn: edgeSQL(catalog.RelLocatedIn,
			props+" p JOIN "+hoods+" n ON p.neighborhood_id = n.neighborhood_id",
			"p.graph_node_id", "n.graph_node_id", ""),

		catalog.RelHasFeature: edgeSQL(catalog.RelHasFeature,
			`(SELECT listing_id, unnest(features) AS feature FROM `+properties+`) x
			 JOIN `+props+` p ON p.listing_id = x.listing_id
			 JOIN `+features+` f ON f.id = `+silver.LowerAlnumSQL("x.feature"),
			"p.graph_node_id", "f.graph_node_id", ""),

		catalog.RelInCity: edgeSQL(catalog.RelInCity,
			hoods+" n JOIN "+cities+" c ON n.city_id = c.id",
			"n.graph_node_id", "c.graph_node_id", ""),

		catalog.RelInState: edgeSQL(catalog.RelInState,
			cities+" c JOIN "+states+" s ON c.state_id = s.id",
			"c.graph_node_id", "s.graph_node_id", ""),

		catalog.RelInZipCode: edgeSQL(catalog.RelInZipCode,
			props+" p JOIN "+zips+" z ON p.zip_code = z.id",
			"p.graph_node_id", "z.graph_node_id", ""),

		catalog.RelTypeOf: edgeSQL(catalog.RelTypeOf,
			props+" p JOIN "+types+" t ON p.property_type = t.id",
			"p.graph_node_id", "t.graph_node_id", ""),

		catalog.RelInPriceRange: edgeSQL(catalog.RelInPriceRange,
			props+" p JOIN "+ranges+" r ON p.price_band = r.id",
			"p.graph_node_id", "r.graph_node_id", ""),
	}

	var out []metadata.StageMetrics
	for _, spec := range catalog.RelSpecs() {
		var m metadata.StageMetrics
		var err error
		switch spec.Type {
		case catalog.RelSimilarTo:
			m, err = b.buildSimilarTo(ctx, spec.Table)
		case catalog.RelGeographicHierarchy:
			// Hierarchy endpoints span four node tables, so both sides join
			// a union of them. A location row whose endpoint never became a
			// node produces no edge.
			geoNodes := "SELECT graph_node_id FROM " + hoods +
				" UNION ALL SELECT graph_node_id FROM " + cities +
				" UNION ALL SELECT graph_node_id FROM " + counties +
				" UNION ALL SELECT graph_node_id FROM " + states
			m, err = b.materialize(ctx, spec.Table, `SELECT DISTINCT
				l.graph_node_id AS from_id, l.parent_node_id AS to_id,
				'`+string(catalog.RelGeographicHierarchy)+`' AS rel_type,
				l.level AS from_level, l.parent_level AS to_level,
				CAST(NULL AS DOUBLE) AS weight
				FROM `+locations+` l
				JOIN (`+geoNodes+`) src ON src.graph_node_id = l.graph_node_id
				JOIN (`+geoNodes+`) dst ON dst.graph_node_id = l.parent_node_id`)
		default:
			m, err = b.materialize(ctx, spec.Table, queries[spec.Type])
		}
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}

// edgeSQL renders the standard edge projection over a joined FROM clause.
func edgeSQL(rel catalog.RelType, fromClause, fromID, toID, weightExpr string) string {
	if weightExpr == "" {
		weightExpr = "CAST(NULL AS DOUBLE)"
	}
	return fmt.Sprintf("SELECT %s AS from_id, %s AS to_id, '%s' AS rel_type, %s AS weight FROM %s",
		fromID, toID, rel, weightExpr, fromClause)
}

// buildSimilarTo self-joins property embeddings. The listing_id ordering
// rules out self-pairs and mirrored duplicates. When no embeddings were
// attached the table is built empty and the run continues.
func (b *Builder) buildSimilarTo(ctx context.Context, table string) (metadata.StageMetrics, error) {
	props := mustNodeTable(catalog.LabelProperty)

	var embedded int64
	err := b.eng.QueryRow(ctx,
		"SELECT count(*) FROM "+props+" WHERE embedding IS NOT NULL").Scan(&embedded)
	if err != nil {
		return metadata.StageMetrics{}, err
	}
	if embedded == 0 {
		b.log.Warn("no property embeddings, skipping similarity edges", "table", table)
		return b.materialize(ctx, table, `SELECT CAST(NULL AS VARCHAR) AS from_id,
			CAST(NULL AS VARCHAR) AS to_id, CAST(NULL AS VARCHAR) AS rel_type,
			CAST(NULL AS DOUBLE) AS weight WHERE false`)
	}

	query := fmt.Sprintf(`SELECT a.graph_node_id AS from_id, b.graph_node_id AS to_id,
		'%s' AS rel_type,
		round(array_cosine_similarity(a.embedding, b.embedding), 4) AS weight
		FROM %s a JOIN %s b
		ON a.listing_id < b.listing_id
		WHERE a.embedding IS NOT NULL AND b.embedding IS NOT NULL
		AND array_cosine_similarity(a.embedding, b.embedding) >= %g
		ORDER BY array_cosine_similarity(a.embedding, b.embedding) DESC
		LIMIT %d`,
		catalog.RelSimilarTo, props, props, SimilarityThreshold, SimilarityLimit)
	return b.materialize(ctx, table, query)
}
