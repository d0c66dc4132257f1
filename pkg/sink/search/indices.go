package search

import (
	"context"
	"fmt"
	"strings"
)

// VectorDims is the indexed embedding dimension, fixed across the system.
const VectorDims = 1024

// Entity index base names.
const (
	PropertiesIndex    = "properties"
	NeighborhoodsIndex = "neighborhoods"
	WikipediaIndex     = "wikipedia"
)

func textWithKeyword() string {
	return `{"type": "text", "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}}`
}

func denseVector() string {
	return fmt.Sprintf(`{"type": "dense_vector", "dims": %d, "index": true, "similarity": "cosine"}`, VectorDims)
}

var indexMappings = map[string]string{
	PropertiesIndex: `{
		"mappings": {
			"properties": {
				"listing_id": {"type": "keyword"},
				"price": {"type": "double"},
				"bedrooms": {"type": "integer"},
				"bathrooms": {"type": "double"},
				"square_feet": {"type": "integer"},
				"property_type": {"type": "keyword"},
				"price_band": {"type": "keyword"},
				"bedroom_band": {"type": "keyword"},
				"buyer_profile": {"type": "keyword"},
				"description": {"type": "text"},
				"features": ` + textWithKeyword() + `,
				"amenities": ` + textWithKeyword() + `,
				"address": {
					"properties": {
						"street": {"type": "text"},
						"city": ` + textWithKeyword() + `,
						"state": {"type": "keyword"},
						"zip_code": {"type": "keyword"},
						"location": {"type": "geo_point"}
					}
				},
				"neighborhood": {
					"properties": {
						"id": {"type": "keyword"},
						"name": ` + textWithKeyword() + `
					}
				},
				"embedding": ` + denseVector() + `
			}
		}
	}`,
	NeighborhoodsIndex: `{
		"mappings": {
			"properties": {
				"neighborhood_id": {"type": "keyword"},
				"name": ` + textWithKeyword() + `,
				"city": ` + textWithKeyword() + `,
				"state": {"type": "keyword"},
				"population": {"type": "integer"},
				"walkability_score": {"type": "double"},
				"school_rating": {"type": "double"},
				"overall_livability_score": {"type": "double"},
				"investment_score": {"type": "double"},
				"lifestyle_category": {"type": "keyword"},
				"density_category": {"type": "keyword"},
				"description": {"type": "text"},
				"location": {"type": "geo_point"},
				"embedding": ` + denseVector() + `
			}
		}
	}`,
	WikipediaIndex: `{
		"mappings": {
			"properties": {
				"page_id": {"type": "keyword"},
				"title": ` + textWithKeyword() + `,
				"url": {"type": "keyword"},
				"extract": {"type": "text"},
				"city": ` + textWithKeyword() + `,
				"state": {"type": "keyword"},
				"article_quality_score": {"type": "double"},
				"article_quality": {"type": "keyword"},
				"key_topics": {"type": "keyword"},
				"search_ranking_score": {"type": "double"},
				"location": {"type": "geo_point"},
				"embedding": ` + denseVector() + `
			}
		}
	}`,
}

// EnsureIndices creates each entity index that does not exist yet.
func (c *Client) EnsureIndices(ctx context.Context) error {
	for _, entity := range []string{PropertiesIndex, NeighborhoodsIndex, WikipediaIndex} {
		name := c.Index(entity)

		res, err := c.es.Indices.Exists([]string{name}, c.es.Indices.Exists.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("search: check index %s: %w", name, err)
		}
		res.Body.Close()
		if res.StatusCode == 200 {
			continue
		}

		create, err := c.es.Indices.Create(name,
			c.es.Indices.Create.WithContext(ctx),
			c.es.Indices.Create.WithBody(strings.NewReader(indexMappings[entity])))
		if err != nil {
			return fmt.Errorf("search: create index %s: %w", name, err)
		}
		failed := create.IsError()
		detail := ""
		if failed {
			detail = create.String()
		}
		create.Body.Close()
		if failed {
			return fmt.Errorf("search: create index %s: %s", name, detail)
		}
		c.log.Info("index created", "index", name)
	}
	return nil
}
