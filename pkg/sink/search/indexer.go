package search

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"roofline/pkg/catalog"
	"roofline/pkg/engine"
)

// IndexResult reports one entity's bulk run.
type IndexResult struct {
	Entity  string
	Indexed int64
	Skipped int64
	Failed  int64
}

// bulkWriter accumulates NDJSON action/document pairs and flushes them in
// batches. Item failures are counted, never fatal.
type bulkWriter struct {
	c         *Client
	index     string
	batchSize int
	buf       bytes.Buffer
	pending   int
	result    IndexResult
}

func (c *Client) newBulkWriter(entity string) *bulkWriter {
	return &bulkWriter{
		c:         c,
		index:     c.Index(entity),
		batchSize: c.batchSize,
		result:    IndexResult{Entity: entity},
	}
}

// wikipediaBatchSize halves the configured batch; article extracts run an
// order of magnitude larger than listing documents.
func wikipediaBatchSize(n int) int {
	if n < 2 {
		return 1
	}
	return n / 2
}

func (w *bulkWriter) add(ctx context.Context, doc document) error {
	if err := doc.Validate(); err != nil {
		w.result.Skipped++
		w.c.log.Warn("skipping document", "index", w.index, "reason", err)
		return nil
	}

	action := fmt.Sprintf(`{"index":{"_index":%q,"_id":%q}}`, w.index, doc.ID())
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("search: marshal document %s: %w", doc.ID(), err)
	}
	w.buf.WriteString(action)
	w.buf.WriteByte('\n')
	w.buf.Write(body)
	w.buf.WriteByte('\n')
	w.pending++

	if w.pending >= w.batchSize {
		return w.flush(ctx)
	}
	return nil
}

type bulkItem struct {
	Status int             `json:"status"`
	Error  json.RawMessage `json:"error"`
}

type bulkResponse struct {
	Errors bool                  `json:"errors"`
	Items  []map[string]bulkItem `json:"items"`
}

func (w *bulkWriter) flush(ctx context.Context) error {
	if w.pending == 0 {
		return nil
	}
	batch := int64(w.pending)

	res, err := w.c.es.Bulk(bytes.NewReader(w.buf.Bytes()), w.c.es.Bulk.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("search: bulk to %s: %w", w.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("search: bulk to %s: %s", w.index, res.String())
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("search: decode bulk response: %w", err)
	}

	var failed int64
	logged := 0
	if parsed.Errors {
		for _, item := range parsed.Items {
			for _, op := range item {
				if op.Status >= 300 {
					failed++
					if logged < 3 {
						w.c.log.Warn("bulk item failed", "index", w.index,
							"status", op.Status, "error", string(op.Error))
						logged++
					}
				}
			}
		}
	}
	w.result.Failed += failed
	w.result.Indexed += batch - failed

	w.buf.Reset()
	w.pending = 0
	return nil
}

// IndexProperties streams gold_properties (with its denormalized
// neighborhood) into the properties index.
func (c *Client) IndexProperties(ctx context.Context, eng *engine.Engine) (IndexResult, error) {
	props := catalog.MustTable(catalog.Property, catalog.Gold)
	hoods := catalog.MustTable(catalog.Neighborhood, catalog.Gold)

	rows, err := eng.Query(ctx, `SELECT p.listing_id,
		p.price, p.bedrooms, p.bathrooms, p.square_feet,
		p.property_type, p.price_band, p.bedroom_band, p.buyer_profile, p.description,
		coalesce(CAST(to_json(p.features) AS VARCHAR), ''),
		p.address.street, p.address.city, p.address.state, p.address.zip_code,
		p.address.location[2], p.address.location[1],
		n.neighborhood_id, n.name,
		coalesce(CAST(to_json(p.embedding_vector) AS VARCHAR), '')
		FROM `+props+` p LEFT JOIN `+hoods+` n ON p.neighborhood_id = n.neighborhood_id`)
	if err != nil {
		return IndexResult{}, err
	}
	defer rows.Close()

	w := c.newBulkWriter(PropertiesIndex)
	for rows.Next() {
		var doc PropertyDoc
		var propertyType, priceBand, bedroomBand, buyerProfile, description sql.NullString
		var featuresJSON, vectorJSON string
		var street, city, state, zip, hoodID, hoodName sql.NullString
		var lat, lon sql.NullFloat64

		if err := rows.Scan(&doc.ListingID, &doc.Price, &doc.Bedrooms, &doc.Bathrooms,
			&doc.SquareFeet, &propertyType, &priceBand, &bedroomBand, &buyerProfile,
			&description, &featuresJSON, &street, &city, &state, &zip,
			&lat, &lon, &hoodID, &hoodName, &vectorJSON); err != nil {
			return w.result, fmt.Errorf("search: scan property row: %w", err)
		}

		doc.PropertyType = propertyType.String
		doc.PriceBand = priceBand.String
		doc.BedroomBand = bedroomBand.String
		doc.BuyerProfile = buyerProfile.String
		doc.Description = description.String
		if doc.Features, err = decodeStrings(featuresJSON); err != nil {
			return w.result, err
		}
		doc.Address = Address{
			Street:   street.String,
			City:     city.String,
			State:    state.String,
			ZipCode:  zip.String,
			Location: geoPoint(nullFloat(lat), nullFloat(lon)),
		}
		if hoodID.Valid {
			doc.Neighborhood = &NeighborhoodRef{ID: hoodID.String, Name: hoodName.String}
		}
		if doc.Embedding, err = decodeVector(vectorJSON); err != nil {
			return w.result, err
		}

		if err := w.add(ctx, doc); err != nil {
			return w.result, err
		}
	}
	if err := rows.Err(); err != nil {
		return w.result, err
	}
	if err := w.flush(ctx); err != nil {
		return w.result, err
	}
	c.logResult(w.result)
	return w.result, nil
}

// IndexNeighborhoods streams gold_neighborhoods into the neighborhoods index.
func (c *Client) IndexNeighborhoods(ctx context.Context, eng *engine.Engine) (IndexResult, error) {
	hoods := catalog.MustTable(catalog.Neighborhood, catalog.Gold)

	rows, err := eng.Query(ctx, `SELECT neighborhood_id, name, city, state,
		population, walkability_score, school_rating,
		overall_livability_score, investment_score, lifestyle_category,
		density_category, description, location[2], location[1],
		coalesce(CAST(to_json(embedding_vector) AS VARCHAR), '')
		FROM `+hoods)
	if err != nil {
		return IndexResult{}, err
	}
	defer rows.Close()

	w := c.newBulkWriter(NeighborhoodsIndex)
	for rows.Next() {
		var doc NeighborhoodDoc
		var id, name, city, state, lifestyle, density, description sql.NullString
		var population sql.NullInt64
		var walk, school, livability, investment sql.NullFloat64
		var lat, lon sql.NullFloat64
		var vectorJSON string

		if err := rows.Scan(&id, &name, &city, &state, &population, &walk, &school,
			&livability, &investment, &lifestyle, &density, &description,
			&lat, &lon, &vectorJSON); err != nil {
			return w.result, fmt.Errorf("search: scan neighborhood row: %w", err)
		}

		doc.NeighborhoodID = id.String
		doc.Name = name.String
		doc.City = city.String
		doc.State = state.String
		doc.Population = int(population.Int64)
		doc.WalkabilityScore = walk.Float64
		doc.SchoolRating = school.Float64
		doc.OverallLivabilityScore = livability.Float64
		doc.InvestmentScore = investment.Float64
		doc.LifestyleCategory = lifestyle.String
		doc.DensityCategory = density.String
		doc.Description = description.String
		doc.Location = geoPoint(nullFloat(lat), nullFloat(lon))
		if doc.Embedding, err = decodeVector(vectorJSON); err != nil {
			return w.result, err
		}

		if err := w.add(ctx, doc); err != nil {
			return w.result, err
		}
	}
	if err := rows.Err(); err != nil {
		return w.result, err
	}
	if err := w.flush(ctx); err != nil {
		return w.result, err
	}
	c.logResult(w.result)
	return w.result, nil
}

// IndexWikipedia streams gold_wikipedia into the wikipedia index.
func (c *Client) IndexWikipedia(ctx context.Context, eng *engine.Engine) (IndexResult, error) {
	wiki := catalog.MustTable(catalog.Wikipedia, catalog.Gold)

	rows, err := eng.Query(ctx, `SELECT CAST(page_id AS VARCHAR), title, url, extract,
		city, state, article_quality, article_quality_score,
		coalesce(CAST(to_json(key_topics) AS VARCHAR), ''), search_ranking_score,
		latitude, longitude,
		coalesce(CAST(to_json(embedding_vector) AS VARCHAR), '')
		FROM `+wiki)
	if err != nil {
		return IndexResult{}, err
	}
	defer rows.Close()

	w := c.newBulkWriter(WikipediaIndex)
	w.batchSize = wikipediaBatchSize(w.batchSize)
	for rows.Next() {
		var doc WikipediaDoc
		var url, extract, city, state, quality sql.NullString
		var score, ranking sql.NullFloat64
		var topicsJSON, vectorJSON string
		var lat, lon sql.NullFloat64

		if err := rows.Scan(&doc.PageID, &doc.Title, &url, &extract, &city, &state,
			&quality, &score, &topicsJSON, &ranking, &lat, &lon, &vectorJSON); err != nil {
			return w.result, fmt.Errorf("search: scan wikipedia row: %w", err)
		}

		doc.URL = url.String
		doc.Extract = extract.String
		doc.City = city.String
		doc.State = state.String
		doc.ArticleQuality = quality.String
		doc.QualityScore = score.Float64
		doc.SearchRankingScore = ranking.Float64
		if doc.KeyTopics, err = decodeStrings(topicsJSON); err != nil {
			return w.result, err
		}
		doc.Location = geoPoint(nullFloat(lat), nullFloat(lon))
		if doc.Embedding, err = decodeVector(vectorJSON); err != nil {
			return w.result, err
		}

		if err := w.add(ctx, doc); err != nil {
			return w.result, err
		}
	}
	if err := rows.Err(); err != nil {
		return w.result, err
	}
	if err := w.flush(ctx); err != nil {
		return w.result, err
	}
	c.logResult(w.result)
	return w.result, nil
}

func (c *Client) logResult(r IndexResult) {
	c.log.Info("bulk indexing finished", "entity", r.Entity,
		"indexed", r.Indexed, "skipped", r.Skipped, "failed", r.Failed)
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
