package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"roofline/pkg/embedding"
	"roofline/pkg/sink/search"
)

// RRF fusion parameters.
const (
	rrfRankConstant   = 60
	rrfRankWindowSize = 100
)

// Vector retriever caps.
const (
	knnKMax          = 100
	knnCandidatesMax = 200
)

// lexicalFields are the multi_match targets with their boosts.
var lexicalFields = []string{
	"description^2", "features^1.5", "amenities^1.5",
	"address.street", "address.city", "neighborhood.name",
}

// SearchService runs hybrid queries against the entity indices.
type SearchService struct {
	es        *elasticsearch.Client
	client    *search.Client
	embedder  embedding.Provider
	extractor Extractor
	log       *slog.Logger
}

// NewService wires the search client, query embedder and intent extractor.
// A nil extractor falls back to rules-only behavior.
func NewService(client *search.Client, embedder embedding.Provider, extractor Extractor) *SearchService {
	if extractor == nil {
		extractor = RuleExtractor{}
	}
	return &SearchService{
		es:        client.ES(),
		client:    client,
		embedder:  embedder,
		extractor: extractor,
		log:       slog.With("component", "retrieval"),
	}
}

// slowQueryThreshold is the wall time past which a query logs a warning.
const slowQueryThreshold = 1000 * time.Millisecond

// plan is the fully resolved request before execution.
type plan struct {
	intent    LocationIntent
	rewritten string
	body      map[string]any
	embedTime time.Duration
}

// buildPlan resolves intent, rewrite, filters and the request body. An
// embedding failure degrades the plan to lexical-only.
func (s *SearchService) buildPlan(ctx context.Context, q Query) (plan, error) {
	intent, err := s.extractor.Extract(ctx, q.Text)
	if err != nil {
		s.log.Warn("intent extraction failed, using rules", "error", err)
		intent, _ = RuleExtractor{}.Extract(ctx, q.Text)
	}

	rewritten := intent.CleanedQuery
	if rewritten == "" {
		rewritten = q.Text
	}

	filters := compileFilters(mergeIntent(q.Filters, intent))

	var vector []float32
	var embedTime time.Duration
	if s.embedder != nil {
		embedStart := time.Now()
		vecs, err := s.embedder.Embed(ctx, []string{rewritten})
		embedTime = time.Since(embedStart)
		if err != nil || len(vecs) != 1 {
			s.log.Warn("query embedding failed, lexical-only search", "error", err)
		} else {
			vector = vecs[0]
		}
	}

	return plan{
		intent:    intent,
		rewritten: rewritten,
		body:      buildBody(rewritten, vector, filters, q.size()),
		embedTime: embedTime,
	}, nil
}

// buildBody renders the request body. With a query vector the lexical and
// vector retrievers fuse under RRF and carry the identical filter list; a
// nil vector yields a plain lexical query.
func buildBody(text string, vector []float32, filters []map[string]any, size int) map[string]any {
	lexical := map[string]any{
		"bool": map[string]any{
			"must": []map[string]any{{
				"multi_match": map[string]any{
					"query":     text,
					"type":      "best_fields",
					"fuzziness": "AUTO",
					"fields":    lexicalFields,
				},
			}},
			"filter": filters,
		},
	}

	body := map[string]any{
		"size":    size,
		"_source": map[string]any{"excludes": []string{"embedding"}},
	}

	if vector == nil {
		body["query"] = lexical
		return body
	}

	k := size * 5
	if k > knnKMax {
		k = knnKMax
	}
	candidates := size * 10
	if candidates > knnCandidatesMax {
		candidates = knnCandidatesMax
	}

	body["retriever"] = map[string]any{
		"rrf": map[string]any{
			"retrievers": []map[string]any{
				{"standard": map[string]any{"query": lexical}},
				{"knn": map[string]any{
					"field":          "embedding",
					"query_vector":   vector,
					"k":              k,
					"num_candidates": candidates,
					"filter":         filters,
				}},
			},
			"rank_constant":    rrfRankConstant,
			"rank_window_size": rrfRankWindowSize,
		},
	}
	return body
}

type searchResponse struct {
	Took int `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string         `json:"_id"`
			Score  float64        `json:"_score"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search executes a hybrid query with bounded retries.
func (s *SearchService) Search(ctx context.Context, q Query) (Result, error) {
	started := time.Now()
	p, err := s.buildPlan(ctx, q)
	if err != nil {
		return Result{}, err
	}

	payload, err := json.Marshal(p.body)
	if err != nil {
		return Result{}, fmt.Errorf("retrieval: marshal request: %w", err)
	}

	index := s.client.Index(q.entity())

	var parsed searchResponse
	for attempt := 0; ; attempt++ {
		err = s.execute(ctx, index, payload, &parsed)
		if err == nil {
			break
		}
		if attempt >= 2 || !isRetryable(err) {
			return Result{}, err
		}
		wait := time.Duration(1<<attempt) * time.Second
		s.log.Warn("search failed, retrying", "attempt", attempt+1, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(wait):
		}
	}

	result := Result{
		Total:          parsed.Hits.Total.Value,
		Took:           time.Duration(parsed.Took) * time.Millisecond,
		TotalTime:      time.Since(started),
		EmbedTime:      p.embedTime,
		Intent:         p.intent,
		RewrittenQuery: p.rewritten,
	}
	for _, h := range parsed.Hits.Hits {
		result.Hits = append(result.Hits, Hit{ID: h.ID, Score: h.Score, Source: h.Source})
	}

	s.log.Info("query executed", "total", result.TotalTime, "engine", result.Took,
		"embed", result.EmbedTime, "hits", len(result.Hits))
	if result.TotalTime > slowQueryThreshold {
		s.log.Warn("slow query", "total", result.TotalTime,
			"threshold", slowQueryThreshold, "query", q.Text)
	}
	return result, nil
}

// statusError marks a non-2xx search response with its status code.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("search returned status %d: %s", e.status, e.body)
}

// isRetryable treats transport errors, 429 and 5xx as transient.
func isRetryable(err error) bool {
	if se, ok := err.(*statusError); ok {
		return se.status == 429 || se.status >= 500
	}
	return true
}

func (s *SearchService) execute(ctx context.Context, index string, payload []byte, out *searchResponse) error {
	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(index),
		s.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("retrieval: search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return &statusError{status: res.StatusCode, body: res.String()}
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("retrieval: decode response: %w", err)
	}
	return nil
}

// Explain returns the compiled request body without executing it.
func (s *SearchService) Explain(ctx context.Context, q Query) ([]byte, error) {
	p, err := s.buildPlan(ctx, q)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(p.body, "", "  ")
}
