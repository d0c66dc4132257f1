// Command roofline-search runs hybrid queries against the indexed Gold
// documents from the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"roofline/pkg/config"
	"roofline/pkg/embedding"
	"roofline/pkg/llm"
	"roofline/pkg/logging"
	"roofline/pkg/request"
	"roofline/pkg/retrieval"
	"roofline/pkg/sink/search"
)

var (
	configPath = flag.String("config", "configs/roofline.yaml", "Path to config file")
	queryText  = flag.String("q", "", "Query text (required)")
	size       = flag.Int("size", 0, "Hit count (0 = config default)")
	entity     = flag.String("entity", "properties", "Index to search: properties, neighborhoods, wikipedia")
	explain    = flag.Bool("explain", false, "Print the compiled request body instead of executing")

	city        = flag.String("city", "", "Filter: city")
	state       = flag.String("state", "", "Filter: state")
	hood        = flag.String("neighborhood", "", "Filter: neighborhood name")
	zip         = flag.String("zip", "", "Filter: zip code")
	minPrice    = flag.Float64("min-price", 0, "Filter: minimum price")
	maxPrice    = flag.Float64("max-price", 0, "Filter: maximum price")
	minBedrooms = flag.Int("min-bedrooms", 0, "Filter: minimum bedrooms")
	propType    = flag.String("type", "", "Filter: property type")
)

func main() {
	flag.Parse()

	if *queryText == "" {
		fmt.Fprintln(os.Stderr, "Usage: roofline-search -q \"modern condo in san francisco\" [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	client, err := search.NewClient(cfg.Search)
	if err != nil {
		return err
	}

	svc := retrieval.NewService(client, buildEmbedder(cfg), buildExtractor(cfg))

	q := retrieval.Query{
		Text:   *queryText,
		Size:   pick(*size, cfg.Retrieval.Size),
		Entity: *entity,
		Filters: retrieval.Filters{
			City:         *city,
			State:        *state,
			Neighborhood: *hood,
			ZipCode:      *zip,
			MinPrice:     *minPrice,
			MaxPrice:     *maxPrice,
			MinBedrooms:  *minBedrooms,
			PropertyType: *propType,
		},
	}

	if *explain {
		body, err := svc.Explain(ctx, q)
		if err != nil {
			return err
		}
		fmt.Println(string(body))
		return nil
	}

	result, err := svc.Search(ctx, q)
	if err != nil {
		return err
	}
	printResult(q, result)
	return nil
}

// buildEmbedder returns nil when no vector side is available, which drops
// the service into lexical-only mode.
func buildEmbedder(cfg *config.Config) embedding.Provider {
	rc := newRequestClient(cfg)
	provider, err := embedding.New(cfg.Embedding, rc)
	if err != nil {
		slog.Warn("embedding provider unavailable, lexical-only search", "error", err)
		return nil
	}
	return provider
}

// buildExtractor returns nil for the rules provider; the service installs
// its rules fallback itself.
func buildExtractor(cfg *config.Config) retrieval.Extractor {
	if cfg.Retrieval.LLMProvider == "rules" {
		return nil
	}
	provider, err := llm.New(cfg.Retrieval, newRequestClient(cfg))
	if err != nil {
		slog.Warn("LLM provider unavailable, rules-only intent", "error", err)
		return nil
	}
	return retrieval.NewLLMExtractor(provider)
}

func newRequestClient(cfg *config.Config) *request.Client {
	return request.New(request.ClientConfig{
		Retries:   cfg.Request.Retries,
		Timeout:   time.Duration(cfg.Request.Timeout),
		BaseDelay: time.Duration(cfg.Request.Backoff.BaseDelay),
		MaxDelay:  time.Duration(cfg.Request.Backoff.MaxDelay),
	})
}

func pick(flagValue, cfgValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return cfgValue
}

func printResult(q retrieval.Query, r retrieval.Result) {
	if r.Intent.HasLocation {
		fmt.Printf("Intent: city=%q state=%q neighborhood=%q zip=%q (confidence %.2f)\n",
			r.Intent.City, r.Intent.State, r.Intent.Neighborhood, r.Intent.ZipCode, r.Intent.Confidence)
	}
	if r.RewrittenQuery != q.Text {
		fmt.Printf("Rewritten query: %q\n", r.RewrittenQuery)
	}
	fmt.Printf("%d hits (showing %d, took %s)\n\n", r.Total, len(r.Hits), r.Took)

	for i, hit := range r.Hits {
		fmt.Printf("%2d. [%.4f] %s\n", i+1, hit.Score, hit.ID)
		printSource(hit.Source)
		fmt.Println()
	}
}

// printSource shows the fields that identify a hit at a glance; the full
// document stays in the search engine.
func printSource(src map[string]any) {
	if v, ok := src["title"]; ok {
		fmt.Printf("    %v\n", v)
	}
	if v, ok := src["name"]; ok {
		fmt.Printf("    %v\n", v)
	}
	if addr, ok := src["address"].(map[string]any); ok {
		fmt.Printf("    %v, %v, %v %v\n", addr["street"], addr["city"], addr["state"], addr["zip_code"])
	}
	if v, ok := src["price"]; ok {
		fmt.Printf("    $%v", v)
		if b, ok := src["bedrooms"]; ok {
			fmt.Printf(" · %vbd", b)
		}
		if s, ok := src["square_feet"]; ok {
			fmt.Printf(" · %v sqft", s)
		}
		fmt.Println()
	}
	if v, ok := src["description"].(string); ok && v != "" {
		if len(v) > 140 {
			v = v[:140] + "…"
		}
		fmt.Printf("    %s\n", v)
	}
}
