package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"roofline/pkg/llm"
	"roofline/pkg/silver"
)

// LocationIntent is the location understanding extracted from a query.
type LocationIntent struct {
	City         string  `json:"city"`
	State        string  `json:"state"`
	Neighborhood string  `json:"neighborhood"`
	ZipCode      string  `json:"zip_code"`
	HasLocation  bool    `json:"has_location"`
	CleanedQuery string  `json:"cleaned_query"`
	Confidence   float64 `json:"confidence"`
}

// Extractor turns free-form query text into a location intent.
type Extractor interface {
	Extract(ctx context.Context, query string) (LocationIntent, error)
}

const intentPrompt = `Extract the location from this real estate search query.
Return a JSON object with exactly these fields:
  city: city name or ""
  state: US state name or two-letter code, or ""
  neighborhood: neighborhood name or ""
  zip_code: 5-digit ZIP or ""
  has_location: true when any location is mentioned
  cleaned_query: the query with location words removed
  confidence: 0.0 to 1.0

Query: `

// LLMExtractor asks a JSON-mode model for the location intent.
type LLMExtractor struct {
	provider llm.Provider
	log      *slog.Logger
}

// NewLLMExtractor wraps an LLM provider.
func NewLLMExtractor(p llm.Provider) *LLMExtractor {
	return &LLMExtractor{provider: p, log: slog.With("component", "retrieval")}
}

// Extract queries the model and normalizes its answer. Model failures
// surface to the caller, which falls back to the rule extractor.
func (e *LLMExtractor) Extract(ctx context.Context, query string) (LocationIntent, error) {
	var intent LocationIntent
	if err := e.provider.GenerateJSON(ctx, intentPrompt+query, &intent); err != nil {
		return LocationIntent{}, err
	}
	return normalizeIntent(intent, query), nil
}

// RuleExtractor is the no-model fallback: no location, original text kept.
type RuleExtractor struct{}

// Extract returns the query unchanged with no location understanding.
func (RuleExtractor) Extract(_ context.Context, query string) (LocationIntent, error) {
	return LocationIntent{CleanedQuery: query}, nil
}

// emptyMarkers are model outputs that mean "no value".
var emptyMarkers = map[string]bool{
	"": true, "unknown": true, "none": true, "null": true, "n/a": true,
}

func cleanField(s string) string {
	s = strings.TrimSpace(s)
	if emptyMarkers[strings.ToLower(s)] {
		return ""
	}
	return strings.ToLower(s)
}

// normalizeIntent makes model output safe to push into filters: fields
// lowercased and trimmed, marker words emptied, state reduced to its code,
// confidence clamped, has_location consistent with the fields.
func normalizeIntent(in LocationIntent, original string) LocationIntent {
	out := LocationIntent{
		City:         cleanField(in.City),
		Neighborhood: cleanField(in.Neighborhood),
		ZipCode:      cleanField(in.ZipCode),
		CleanedQuery: strings.TrimSpace(in.CleanedQuery),
		Confidence:   in.Confidence,
	}

	if s := cleanField(in.State); s != "" {
		out.State = silver.StateCode(s)
	}

	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}

	out.HasLocation = out.City != "" || out.State != "" ||
		out.Neighborhood != "" || out.ZipCode != ""

	if out.CleanedQuery == "" {
		out.CleanedQuery = original
	}
	return out
}
