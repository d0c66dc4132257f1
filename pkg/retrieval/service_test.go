package retrieval

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roofline/pkg/config"
	"roofline/pkg/embedding"
	"roofline/pkg/sink/search"
)

// cannedLLM returns a fixed JSON payload for every prompt.
type cannedLLM struct {
	payload string
	err     error
}

func (c cannedLLM) GenerateJSON(_ context.Context, _ string, target any) error {
	if c.err != nil {
		return c.err
	}
	return json.Unmarshal([]byte(c.payload), target)
}

func (c cannedLLM) Name() string { return "canned" }

func testService(extractor Extractor, embedder embedding.Provider) *SearchService {
	return &SearchService{
		embedder:  embedder,
		extractor: extractor,
		log:       slog.Default(),
	}
}

func TestNormalizeIntent(t *testing.T) {
	in := LocationIntent{
		City:         "  San Francisco ",
		State:        "California",
		Neighborhood: "unknown",
		ZipCode:      "None",
		CleanedQuery: "",
		Confidence:   1.7,
	}
	out := normalizeIntent(in, "condo in san francisco")

	assert.Equal(t, "san francisco", out.City)
	assert.Equal(t, "CA", out.State)
	assert.Equal(t, "", out.Neighborhood)
	assert.Equal(t, "", out.ZipCode)
	assert.True(t, out.HasLocation)
	assert.Equal(t, "condo in san francisco", out.CleanedQuery)
	assert.Equal(t, 1.0, out.Confidence)

	empty := normalizeIntent(LocationIntent{City: "null", Confidence: -2}, "anything")
	assert.False(t, empty.HasLocation)
	assert.Equal(t, 0.0, empty.Confidence)
	assert.Equal(t, "anything", empty.CleanedQuery)
}

func TestRuleExtractor(t *testing.T) {
	intent, err := RuleExtractor{}.Extract(context.Background(), "modern condo")
	require.NoError(t, err)
	assert.False(t, intent.HasLocation)
	assert.Equal(t, "modern condo", intent.CleanedQuery)
	assert.Equal(t, 0.0, intent.Confidence)
}

func TestKnownCityFilterPushdown(t *testing.T) {
	llm := cannedLLM{payload: `{
		"city": "San Francisco", "state": "CA", "neighborhood": "",
		"zip_code": "", "has_location": true,
		"cleaned_query": "modern condo", "confidence": 0.9}`}
	svc := testService(NewLLMExtractor(llm), embedding.NewMockProvider(8))

	p, err := svc.buildPlan(context.Background(), Query{Text: "modern condo in San Francisco"})
	require.NoError(t, err)

	assert.Equal(t, "san francisco", p.intent.City)
	assert.Equal(t, "CA", p.intent.State)
	assert.Equal(t, "modern condo", p.rewritten)

	rrf := p.body["retriever"].(map[string]any)["rrf"].(map[string]any)
	retrievers := rrf["retrievers"].([]map[string]any)
	require.Len(t, retrievers, 2)

	lexicalQuery := retrievers[0]["standard"].(map[string]any)["query"].(map[string]any)
	lexicalFilter := lexicalQuery["bool"].(map[string]any)["filter"]
	knnFilter := retrievers[1]["knn"].(map[string]any)["filter"]

	// The identical filter list appears in both retrievers.
	assert.Equal(t, lexicalFilter, knnFilter)

	clauses := lexicalFilter.([]map[string]any)
	require.Len(t, clauses, 2)
	assert.Equal(t, "san francisco", clauses[0]["term"].(map[string]any)["address.city"])
	assert.Equal(t, "CA", clauses[1]["term"].(map[string]any)["address.state"])

	// The multi_match searches the rewritten text, not the location words.
	must := lexicalQuery["bool"].(map[string]any)["must"].([]map[string]any)
	assert.Equal(t, "modern condo", must[0]["multi_match"].(map[string]any)["query"])
}

func TestExplicitFiltersWinOverIntent(t *testing.T) {
	merged := mergeIntent(
		Filters{City: "Oakland"},
		LocationIntent{City: "san francisco", State: "CA"},
	)
	assert.Equal(t, "Oakland", merged.City)
	assert.Equal(t, "CA", merged.State)
}

func TestRRFPlanCaps(t *testing.T) {
	svc := testService(RuleExtractor{}, embedding.NewMockProvider(8))

	p, err := svc.buildPlan(context.Background(), Query{Text: "bright loft", Size: 30})
	require.NoError(t, err)

	assert.Equal(t, 30, p.body["size"])
	rrf := p.body["retriever"].(map[string]any)["rrf"].(map[string]any)
	assert.Equal(t, rrfRankConstant, rrf["rank_constant"])
	assert.Equal(t, rrfRankWindowSize, rrf["rank_window_size"])

	knn := rrf["retrievers"].([]map[string]any)[1]["knn"].(map[string]any)
	// size*5=150 and size*10=300 hit the caps.
	assert.Equal(t, 100, knn["k"])
	assert.Equal(t, 200, knn["num_candidates"])

	small, err := svc.buildPlan(context.Background(), Query{Text: "bright loft", Size: 5})
	require.NoError(t, err)
	knn = small.body["retriever"].(map[string]any)["rrf"].(map[string]any)["retrievers"].([]map[string]any)[1]["knn"].(map[string]any)
	assert.Equal(t, 25, knn["k"])
	assert.Equal(t, 50, knn["num_candidates"])
}

func TestSourceExcludesEmbedding(t *testing.T) {
	svc := testService(RuleExtractor{}, embedding.NewMockProvider(8))
	p, err := svc.buildPlan(context.Background(), Query{Text: "anything"})
	require.NoError(t, err)

	src := p.body["_source"].(map[string]any)
	assert.Equal(t, []string{"embedding"}, src["excludes"])
}

func TestLexicalOnlyWithoutEmbedder(t *testing.T) {
	svc := testService(RuleExtractor{}, nil)
	p, err := svc.buildPlan(context.Background(), Query{Text: "garden cottage"})
	require.NoError(t, err)

	assert.NotContains(t, p.body, "retriever")
	require.Contains(t, p.body, "query")
	must := p.body["query"].(map[string]any)["bool"].(map[string]any)["must"].([]map[string]any)
	assert.Equal(t, "garden cottage", must[0]["multi_match"].(map[string]any)["query"])
}

func TestLLMFailureFallsBackToRules(t *testing.T) {
	llm := cannedLLM{err: assert.AnError}
	svc := testService(NewLLMExtractor(llm), nil)

	p, err := svc.buildPlan(context.Background(), Query{Text: "cozy studio"})
	require.NoError(t, err)
	assert.False(t, p.intent.HasLocation)
	assert.Equal(t, "cozy studio", p.rewritten)
}

// newSearchService backs a service with a canned single-hit cluster.
func newSearchService(t *testing.T, embedder embedding.Provider) *SearchService {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"version":{"number":"8.13.0"}}`)
	})
	mux.HandleFunc("/properties/_search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"took":7,"hits":{"total":{"value":1},
			"hits":[{"_id":"p1","_score":1.5,"_source":{"listing_id":"p1"}}]}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := search.NewClient(config.SearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewService(client, embedder, RuleExtractor{})
}

func TestSearchReportsQueryTimings(t *testing.T) {
	svc := newSearchService(t, embedding.NewMockProvider(8))

	res, err := svc.Search(context.Background(), Query{Text: "bright loft"})
	require.NoError(t, err)

	require.Len(t, res.Hits, 1)
	assert.Equal(t, int64(1), res.Total)
	assert.Equal(t, 7*time.Millisecond, res.Took)
	// Wall time covers the embedding and the HTTP round trip.
	assert.Greater(t, res.TotalTime, time.Duration(0))
	assert.GreaterOrEqual(t, res.TotalTime, res.EmbedTime)
}

func TestSearchWithoutEmbedderReportsZeroEmbedTime(t *testing.T) {
	svc := newSearchService(t, nil)

	res, err := svc.Search(context.Background(), Query{Text: "bright loft"})
	require.NoError(t, err)
	assert.Zero(t, res.EmbedTime)
	assert.Greater(t, res.TotalTime, time.Duration(0))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&statusError{status: 429}))
	assert.True(t, isRetryable(&statusError{status: 503}))
	assert.False(t, isRetryable(&statusError{status: 400}))
	assert.False(t, isRetryable(&statusError{status: 401}))
	assert.False(t, isRetryable(&statusError{status: 404}))
	assert.True(t, isRetryable(assert.AnError))
}

func TestCompileFiltersRangesAndType(t *testing.T) {
	clauses := compileFilters(Filters{
		MinPrice:     250000,
		MaxPrice:     900000,
		MinBedrooms:  2,
		PropertyType: "Condo",
	})
	require.Len(t, clauses, 3)

	price := clauses[0]["range"].(map[string]any)["price"].(map[string]any)
	assert.Equal(t, 250000.0, price["gte"])
	assert.Equal(t, 900000.0, price["lte"])

	bedrooms := clauses[1]["range"].(map[string]any)["bedrooms"].(map[string]any)
	assert.Equal(t, 2, bedrooms["gte"])

	assert.Equal(t, "condo", clauses[2]["term"].(map[string]any)["property_type"])
}
