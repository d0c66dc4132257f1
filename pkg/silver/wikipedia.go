package silver

import (
	"context"
	"fmt"
	"time"

	"roofline/pkg/catalog"
	"roofline/pkg/engine"
	"roofline/pkg/metadata"
)

// ArticleQualitySQL renders the article quality score from its inputs. The
// same expression feeds the Silver deduplication ranking and the Gold
// quality columns, so the formula lives in exactly one place:
//
//	0.5*authority + 0.3*relevance + 0.2*content_factor + boost, capped at 1
//
// where authority = 0.4*content_factor + 0.3*links_factor + 0.3*relevance,
// content_factor = min(len/10000, 1), links_factor = min(links/100, 1), and
// boost is +0.10 for one neighborhood association, +0.15 for two or more.
func ArticleQualitySQL(extractExpr, linksExpr, relevanceExpr, assocCountExpr string) string {
	contentFactor := fmt.Sprintf("least(coalesce(length(%s), 0) / 10000.0, 1.0)", extractExpr)
	linksFactor := fmt.Sprintf("least(coalesce(%s, 0) / 100.0, 1.0)", linksExpr)
	relevance := fmt.Sprintf("least(greatest(coalesce(%s, 0), 0), 1)", relevanceExpr)
	authority := fmt.Sprintf("(0.4 * %s + 0.3 * %s + 0.3 * %s)", contentFactor, linksFactor, relevance)
	boost := fmt.Sprintf("CASE WHEN %[1]s >= 2 THEN 0.15 WHEN %[1]s >= 1 THEN 0.10 ELSE 0.0 END", assocCountExpr)
	return fmt.Sprintf("round(least(0.5 * %s + 0.3 * %s + 0.2 * %s + %s, 1.0), 4)",
		authority, relevance, contentFactor, boost)
}

// AuthorityScoreSQL renders the standalone authority component, re-exposed
// by Gold.
func AuthorityScoreSQL(extractExpr, linksExpr, relevanceExpr string) string {
	contentFactor := fmt.Sprintf("least(coalesce(length(%s), 0) / 10000.0, 1.0)", extractExpr)
	linksFactor := fmt.Sprintf("least(coalesce(%s, 0) / 100.0, 1.0)", linksExpr)
	relevance := fmt.Sprintf("least(greatest(coalesce(%s, 0), 0), 1)", relevanceExpr)
	return fmt.Sprintf("round(0.4 * %s + 0.3 * %s + 0.3 * %s, 4)", contentFactor, linksFactor, relevance)
}

// TransformWikipedia standardizes articles, attaches their neighborhood
// associations by left-aggregating silver_neighborhoods, scores them and
// deduplicates by page_id keeping the highest-quality row. Requires
// silver_neighborhoods to exist.
func (t *Transformer) TransformWikipedia(ctx context.Context) (metadata.SilverMetadata, error) {
	started := time.Now()
	bronze := catalog.MustTable(catalog.Wikipedia, catalog.Bronze)
	neighborhoods := catalog.MustTable(catalog.Neighborhood, catalog.Silver)

	associations := t.eng.Table(neighborhoods).
		Filter("wikipedia_page_id IS NOT NULL").
		Aggregate("wikipedia_page_id",
			"wikipedia_page_id",
			"list(neighborhood_id ORDER BY neighborhood_id) AS neighborhood_ids",
			"list(name ORDER BY neighborhood_id) AS neighborhood_names",
			"arg_min(name, neighborhood_id) AS primary_neighborhood_name",
		)

	projected := t.eng.Table(bronze).
		Filter(bronze+".pageid IS NOT NULL").
		Filter(bronze+".title IS NOT NULL AND trim("+bronze+".title) <> ''").
		Join(engine.LeftJoin, associations, "assoc",
			"CAST("+bronze+".pageid AS BIGINT) = assoc.wikipedia_page_id").
		Project(
			"CAST("+bronze+".pageid AS BIGINT) AS page_id",
			"trim("+bronze+".title) AS title",
			bronze+".url AS url",
			"trim("+bronze+".extract) AS extract",
			bronze+".categories AS categories",
			"CAST("+bronze+".latitude AS DOUBLE) AS latitude",
			"CAST("+bronze+".longitude AS DOUBLE) AS longitude",
			"nullif(trim("+bronze+".best_city), '') AS city",
			"nullif("+StripCountySuffixSQL(bronze+".best_county")+", '') AS county",
			StateCodeSQL(bronze+".best_state")+" AS state",
			"least(greatest(coalesce(CAST("+bronze+".relevance_score AS DOUBLE), 0), 0), 1) AS relevance_score",
			"CAST("+bronze+".links_count AS INTEGER) AS links_count",
			bronze+".crawled_at AS crawled_at",
			"coalesce(assoc.neighborhood_ids, []) AS neighborhood_ids",
			"coalesce(assoc.neighborhood_names, []) AS neighborhood_names",
			"assoc.primary_neighborhood_name AS primary_neighborhood_name",
		)

	scored := projected.Wrap("w").Project(append([]string{
		"*",
		ArticleQualitySQL("extract", "links_count", "relevance_score", "len(neighborhood_ids)") + " AS article_quality_score",
		"trim(title) || ' | ' || trim(extract) AS embedding_text",
	}, vectorColumns...)...)

	// One row per page_id, keeping the highest-quality crawl.
	deduped := scored.Wrap("s").Project(
		"*",
		"ROW_NUMBER() OVER (PARTITION BY page_id ORDER BY article_quality_score DESC, crawled_at DESC) AS dedup_rank",
	).Wrap("ranked").
		Filter("dedup_rank = 1").
		Project("* EXCLUDE (dedup_rank)")

	return t.materialize(ctx, catalog.Wikipedia, deduped, started)
}
