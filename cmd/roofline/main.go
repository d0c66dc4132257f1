// Command roofline runs the medallion pipeline: raw listing files in, Gold
// views, graph tables and sink exports out.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"roofline/pkg/config"
	"roofline/pkg/engine"
	"roofline/pkg/logging"
	"roofline/pkg/pipeline"
	"roofline/pkg/probe"
	"roofline/pkg/sink/graphdb"
	"roofline/pkg/sink/search"
	"roofline/pkg/version"
)

var (
	configPath = flag.String("config", "configs/roofline.yaml", "Path to config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")

	sampleSize = flag.Int("sample", -1, "Cap rows per source during ingestion (negative = configured value)")
	entities   = flag.String("entities", "", "Comma-separated subset: location,property,neighborhood,wikipedia")

	skipBronze     = flag.Bool("skip-bronze", false, "Reuse existing Bronze tables")
	skipSilver     = flag.Bool("skip-silver", false, "Reuse existing Silver tables")
	skipGold       = flag.Bool("skip-gold", false, "Reuse existing Gold views")
	skipGraph      = flag.Bool("skip-graph", false, "Skip the graph table build")
	skipEmbeddings = flag.Bool("skip-embeddings", false, "Skip embedding attachment")

	writeParquet = flag.Bool("write-parquet", false, "Export Gold views to Parquet")
	writeSearch  = flag.Bool("write-search", false, "Index Gold rows into the search engine")
	writeGraph   = flag.Bool("write-graph", false, "Push graph tables into the graph database")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file generated: %s\n", *configPath)
		return
	}

	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Pipeline failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Credentials live in the environment; .env is a convenience for dev.
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

	slog.Info("Roofline started", "version", version.Version, "config", *configPath)

	eng, err := engine.Open(engine.Options{
		DatabaseFile: cfg.DuckDB.DatabaseFile,
		MemoryLimit:  cfg.DuckDB.MemoryLimit,
		Threads:      cfg.DuckDB.Threads,
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := preflight(ctx, cfg); err != nil {
		return fmt.Errorf("preflight checks failed: %w", err)
	}

	// The flag only overrides the configured sample when set; an explicit
	// -sample 0 runs the pipeline over empty Bronze tables.
	var sampleOverride *int
	if *sampleSize >= 0 {
		sampleOverride = sampleSize
	}

	opts := pipeline.Options{
		SampleSize:     sampleOverride,
		SkipBronze:     *skipBronze,
		SkipSilver:     *skipSilver,
		SkipGold:       *skipGold,
		SkipGraph:      *skipGraph,
		SkipEmbeddings: *skipEmbeddings,
		WriteParquet:   *writeParquet,
		WriteSearch:    *writeSearch,
		WriteGraph:     *writeGraph,
		Entities:       splitEntities(*entities),
	}

	_, err = pipeline.New(eng, cfg).Run(ctx, opts)
	return err
}

// preflight verifies the external sinks before the run starts. A sink the
// user asked for that is unreachable fails here instead of after the heavy
// stages have already run.
func preflight(ctx context.Context, cfg *config.Config) error {
	var probes []probe.Probe
	if *writeSearch {
		probes = append(probes, probe.Probe{
			Name: "Search engine",
			Check: func(ctx context.Context) error {
				_, err := search.NewClient(cfg.Search)
				return err
			},
			Critical: true,
		})
	}
	if *writeGraph {
		probes = append(probes, probe.Probe{
			Name: "Graph database",
			Check: func(ctx context.Context) error {
				w, err := graphdb.NewWriter(ctx, cfg.Graph)
				if err != nil {
					return err
				}
				return w.Close(ctx)
			},
			Critical: true,
		})
	}
	if len(probes) == 0 {
		return nil
	}
	return probe.AnalyzeResults(probe.Run(ctx, probes))
}

func splitEntities(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
