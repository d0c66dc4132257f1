package search

import (
	"encoding/json"
	"fmt"
)

// GeoPoint is the lat/lon object form Elasticsearch accepts for geo_point.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Address is the nested address object on property documents.
type Address struct {
	Street   string    `json:"street,omitempty"`
	City     string    `json:"city,omitempty"`
	State    string    `json:"state,omitempty"`
	ZipCode  string    `json:"zip_code,omitempty"`
	Location *GeoPoint `json:"location,omitempty"`
}

// NeighborhoodRef is the denormalized neighborhood on property documents.
type NeighborhoodRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// PropertyDoc is the properties index document.
type PropertyDoc struct {
	ListingID    string           `json:"listing_id"`
	Price        float64          `json:"price"`
	Bedrooms     int              `json:"bedrooms"`
	Bathrooms    float64          `json:"bathrooms"`
	SquareFeet   int              `json:"square_feet"`
	PropertyType string           `json:"property_type,omitempty"`
	PriceBand    string           `json:"price_band,omitempty"`
	BedroomBand  string           `json:"bedroom_band,omitempty"`
	BuyerProfile string           `json:"buyer_profile,omitempty"`
	Description  string           `json:"description,omitempty"`
	Features     []string         `json:"features,omitempty"`
	Address      Address          `json:"address"`
	Neighborhood *NeighborhoodRef `json:"neighborhood,omitempty"`
	Embedding    []float32        `json:"embedding,omitempty"`
}

// ID returns the document _id.
func (d PropertyDoc) ID() string { return d.ListingID }

// Validate rejects documents that cannot be indexed.
func (d PropertyDoc) Validate() error {
	if d.ListingID == "" {
		return fmt.Errorf("property document missing listing_id")
	}
	return nil
}

// NeighborhoodDoc is the neighborhoods index document.
type NeighborhoodDoc struct {
	NeighborhoodID         string    `json:"neighborhood_id"`
	Name                   string    `json:"name"`
	City                   string    `json:"city,omitempty"`
	State                  string    `json:"state,omitempty"`
	Population             int       `json:"population,omitempty"`
	WalkabilityScore       float64   `json:"walkability_score,omitempty"`
	SchoolRating           float64   `json:"school_rating,omitempty"`
	OverallLivabilityScore float64   `json:"overall_livability_score,omitempty"`
	InvestmentScore        float64   `json:"investment_score,omitempty"`
	LifestyleCategory      string    `json:"lifestyle_category,omitempty"`
	DensityCategory        string    `json:"density_category,omitempty"`
	Description            string    `json:"description,omitempty"`
	Location               *GeoPoint `json:"location,omitempty"`
	Embedding              []float32 `json:"embedding,omitempty"`
}

func (d NeighborhoodDoc) ID() string { return d.NeighborhoodID }

func (d NeighborhoodDoc) Validate() error {
	if d.NeighborhoodID == "" {
		return fmt.Errorf("neighborhood document missing neighborhood_id")
	}
	return nil
}

// WikipediaDoc is the wikipedia index document.
type WikipediaDoc struct {
	PageID             string    `json:"page_id"`
	Title              string    `json:"title"`
	URL                string    `json:"url,omitempty"`
	Extract            string    `json:"extract,omitempty"`
	City               string    `json:"city,omitempty"`
	State              string    `json:"state,omitempty"`
	ArticleQuality     string    `json:"article_quality,omitempty"`
	QualityScore       float64   `json:"article_quality_score,omitempty"`
	KeyTopics          []string  `json:"key_topics,omitempty"`
	SearchRankingScore float64   `json:"search_ranking_score,omitempty"`
	Location           *GeoPoint `json:"location,omitempty"`
	Embedding          []float32 `json:"embedding,omitempty"`
}

func (d WikipediaDoc) ID() string { return d.PageID }

func (d WikipediaDoc) Validate() error {
	if d.PageID == "" {
		return fmt.Errorf("wikipedia document missing page_id")
	}
	return nil
}

// document is what the bulk indexer needs from any entity document.
type document interface {
	ID() string
	Validate() error
}

// decodeVector parses an engine-side JSON array into the embedding slice.
// NULL vectors come through as empty strings and yield nil.
func decodeVector(raw string) ([]float32, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	return vec, nil
}

// decodeStrings parses an engine-side JSON array of strings.
func decodeStrings(raw string) ([]string, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode string list: %w", err)
	}
	return out, nil
}

// geoPoint builds the optional geo_point, only when both coordinates exist.
func geoPoint(lat, lon *float64) *GeoPoint {
	if lat == nil || lon == nil {
		return nil
	}
	return &GeoPoint{Lat: *lat, Lon: *lon}
}
