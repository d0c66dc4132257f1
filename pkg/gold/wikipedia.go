package gold

import (
	"context"
	"time"

	"roofline/pkg/catalog"
	"roofline/pkg/metadata"
	"roofline/pkg/silver"
)

// EnrichWikipedia publishes gold_wikipedia. The quality score itself is
// already materialized in Silver, where it drives deduplication; this view
// re-exposes it and derives the bands, topics and search ranking from the
// same inputs.
func (g *Enricher) EnrichWikipedia(ctx context.Context) (metadata.GoldMetadata, error) {
	started := time.Now()
	table := catalog.MustTable(catalog.Wikipedia, catalog.Silver)

	rel := g.eng.Table(table).Project(
		"*",
		"length(extract) AS content_length",
		`CASE
		   WHEN length(extract) > 5000 AND links_count > 50 THEN 'comprehensive'
		   WHEN length(extract) > 2000 THEN 'detailed'
		   WHEN length(extract) > 500 THEN 'standard'
		   ELSE 'stub'
		 END AS content_depth`,
		silver.AuthorityScoreSQL("extract", "links_count", "relevance_score")+" AS authority_score",
		`CASE
		   WHEN article_quality_score >= 0.85 THEN 'premium'
		   WHEN article_quality_score >= 0.65 THEN 'high'
		   WHEN article_quality_score >= 0.45 THEN 'medium'
		   ELSE 'basic'
		 END AS article_quality`,
		KeyTopicsSQL("categories")+" AS key_topics",
		SearchRankingSQL("article_quality_score", "latitude", "longitude", "title",
			"len(neighborhood_ids)")+" AS search_ranking_score",
	)

	return g.publish(ctx, catalog.Wikipedia, rel, started)
}
