package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"roofline/pkg/bronze"
	"roofline/pkg/catalog"
	"roofline/pkg/config"
	"roofline/pkg/embedding"
	"roofline/pkg/engine"
	"roofline/pkg/gold"
	"roofline/pkg/graph"
	"roofline/pkg/metadata"
	"roofline/pkg/request"
	"roofline/pkg/silver"
	"roofline/pkg/sink/graphdb"
	"roofline/pkg/sink/parquet"
	"roofline/pkg/sink/search"
)

// Options selects which stages a run executes.
type Options struct {
	SampleSize     *int // overrides data.sample_size when set; negative ingests everything
	SkipBronze     bool
	SkipSilver     bool
	SkipGold       bool
	SkipGraph      bool
	SkipEmbeddings bool
	WriteParquet   bool
	WriteSearch    bool
	WriteGraph     bool
	Entities       []string // subset of property, neighborhood, wikipedia, location
}

// Orchestrator wires the engine and configuration into a full run.
type Orchestrator struct {
	eng *engine.Engine
	cfg *config.Config
	log *slog.Logger
}

// New builds an orchestrator over an open engine.
func New(eng *engine.Engine, cfg *config.Config) *Orchestrator {
	return &Orchestrator{eng: eng, cfg: cfg, log: slog.With("component", "pipeline")}
}

// entityOrder fixes stage ordering: the location reference loads first, the
// wikipedia correlation lookup last.
var entityOrder = []catalog.Entity{
	catalog.Location, catalog.Property, catalog.Neighborhood, catalog.Wikipedia,
}

func entityFilter(names []string) (map[catalog.Entity]bool, error) {
	want := map[catalog.Entity]bool{}
	if len(names) == 0 {
		for _, e := range entityOrder {
			want[e] = true
		}
		return want, nil
	}
	for _, n := range names {
		e, err := catalog.ParseEntity(n)
		if err != nil {
			return nil, err
		}
		want[e] = true
	}
	return want, nil
}

// Run executes the selected stages in dependency order. It always returns
// the run record; the error is non-nil when the run did not fully succeed.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*metadata.PipelineMetrics, error) {
	pm := metadata.NewPipelineMetrics()
	o.log.Info("run started", "run_id", pm.RunID)

	err := o.run(ctx, opts, pm)
	if err != nil {
		pm.AddFailure("run", err)
	}
	pm.Finish()

	o.log.Info("run finished", "run_id", pm.RunID, "status", pm.Status,
		"stages", len(pm.Stages), "failures", len(pm.Failures),
		"total_rows", pm.TotalRows(), "duration", pm.FinishedAt.Sub(pm.StartedAt))
	for _, s := range pm.Stages {
		o.log.Info("stage summary", "stage", s.Stage, "entity", s.Entity,
			"in", s.InputRows, "out", s.OutputRows, "dropped", s.Dropped,
			"rps", fmt.Sprintf("%.0f", s.RecordsPerSecond()))
	}
	for _, f := range pm.Failures {
		o.log.Warn("stage failure", "failure", f)
	}

	if err != nil {
		return pm, err
	}
	if pm.Status != metadata.RunSucceeded {
		return pm, fmt.Errorf("pipeline: run %s finished with status %s", pm.RunID, pm.Status)
	}
	return pm, nil
}

func (o *Orchestrator) run(ctx context.Context, opts Options, pm *metadata.PipelineMetrics) error {
	want, err := entityFilter(opts.Entities)
	if err != nil {
		return Fatal("setup", err)
	}

	if err := o.runBronze(ctx, opts, want, pm); err != nil {
		return err
	}
	if err := o.runSilver(ctx, opts, want, pm); err != nil {
		return err
	}
	o.runEmbeddings(ctx, opts, want, pm)
	if err := o.runGold(ctx, opts, want, pm); err != nil {
		return err
	}
	if err := o.runGraph(ctx, opts, want, pm); err != nil {
		return err
	}
	return o.runSinks(ctx, opts, pm)
}

// requireTables fails fast when a skipped stage's outputs are missing.
func (o *Orchestrator) requireTables(ctx context.Context, stage string, tables []string) error {
	for _, t := range tables {
		exists, err := o.eng.TableExists(ctx, t)
		if err != nil {
			return Fatal(stage, err)
		}
		if !exists {
			return Fatal(stage, fmt.Errorf("required table %s is missing; run without the skip flag first", t))
		}
	}
	return nil
}

func (o *Orchestrator) runBronze(ctx context.Context, opts Options, want map[catalog.Entity]bool, pm *metadata.PipelineMetrics) error {
	if opts.SkipBronze {
		var tables []string
		for _, e := range entityOrder {
			if want[e] {
				tables = append(tables, catalog.MustTable(e, catalog.Bronze))
			}
		}
		return o.requireTables(ctx, "bronze", tables)
	}

	// Negative ingests everything, zero creates empty Bronze tables.
	sample := -1
	if o.cfg.Data.SampleSize != nil {
		sample = *o.cfg.Data.SampleSize
	}
	if opts.SampleSize != nil {
		sample = *opts.SampleSize
	}

	ing := bronze.NewIngester(o.eng, o.cfg.Data)
	val := bronze.NewValidator(o.eng)

	ingestors := map[catalog.Entity]func(context.Context, int) (metadata.BronzeMetadata, error){
		catalog.Location:     ing.IngestLocations,
		catalog.Property:     ing.IngestProperties,
		catalog.Neighborhood: ing.IngestNeighborhoods,
		catalog.Wikipedia:    ing.IngestWikipedia,
	}

	for _, e := range entityOrder {
		if !want[e] {
			continue
		}
		started := time.Now()
		meta, err := ingestors[e](ctx, sample)
		if err != nil {
			return Fatal("bronze "+string(e), err)
		}
		pm.AddStage(metadata.StageMetrics{
			Stage: "bronze", Entity: string(e),
			InputRows: meta.RowCount, OutputRows: meta.RowCount,
			StartedAt: started, FinishedAt: time.Now(),
		})

		result, err := val.Validate(ctx, e)
		if err != nil {
			return Fatal("validate "+string(e), err)
		}
		if !result.Passed() {
			issue := &ValidationIssue{Entity: string(e), Failed: result.TotalFailed()}
			if o.cfg.Validation.Strict {
				return Fatal("validate "+string(e), issue)
			}
			o.log.Warn("validation findings", "entity", e, "failed_rows", issue.Failed)
		}
	}
	return nil
}

func (o *Orchestrator) runSilver(ctx context.Context, opts Options, want map[catalog.Entity]bool, pm *metadata.PipelineMetrics) error {
	if opts.SkipSilver {
		var tables []string
		for _, e := range entityOrder {
			if want[e] {
				tables = append(tables, catalog.MustTable(e, catalog.Silver))
			}
		}
		return o.requireTables(ctx, "silver", tables)
	}

	tr := silver.NewTransformer(o.eng)
	transforms := map[catalog.Entity]func(context.Context) (metadata.SilverMetadata, error){
		catalog.Location:     tr.TransformLocations,
		catalog.Property:     tr.TransformProperties,
		catalog.Neighborhood: tr.TransformNeighborhoods,
		catalog.Wikipedia:    tr.TransformWikipedia,
	}

	// Downstream transforms read these Silver tables, so a filtered run
	// still needs them present.
	prereqs := map[catalog.Entity][]string{
		catalog.Neighborhood: {catalog.MustTable(catalog.Location, catalog.Silver)},
		catalog.Wikipedia:    {catalog.MustTable(catalog.Neighborhood, catalog.Silver)},
	}

	for _, e := range entityOrder {
		if !want[e] {
			continue
		}
		for _, dep := range prereqs[e] {
			if want[depEntity(dep)] {
				continue // built earlier in this same pass
			}
			if err := o.requireTables(ctx, "silver "+string(e), []string{dep}); err != nil {
				return err
			}
		}
		started := time.Now()
		meta, err := transforms[e](ctx)
		if err != nil {
			return Fatal("silver "+string(e), err)
		}
		pm.AddStage(metadata.StageMetrics{
			Stage: "silver", Entity: string(e),
			InputRows: meta.InputRows, OutputRows: meta.OutputRows,
			Dropped: meta.Dropped, StartedAt: started, FinishedAt: time.Now(),
		})
	}
	return nil
}

func depEntity(table string) catalog.Entity {
	for _, e := range entityOrder {
		if catalog.MustTable(e, catalog.Silver) == table {
			return e
		}
	}
	return ""
}

// embeddedEntities carry embedding text in Silver.
var embeddedEntities = []catalog.Entity{
	catalog.Property, catalog.Neighborhood, catalog.Wikipedia,
}

// runEmbeddings attaches vectors. Failures degrade the run (similarity
// edges and vector search lose data) but never stop it.
func (o *Orchestrator) runEmbeddings(ctx context.Context, opts Options, want map[catalog.Entity]bool, pm *metadata.PipelineMetrics) {
	if opts.SkipEmbeddings {
		return
	}

	rc := request.New(request.ClientConfig{
		Retries:   o.cfg.Request.Retries,
		Timeout:   time.Duration(o.cfg.Request.Timeout),
		BaseDelay: time.Duration(o.cfg.Request.Backoff.BaseDelay),
		MaxDelay:  time.Duration(o.cfg.Request.Backoff.MaxDelay),
	})
	provider, err := embedding.New(o.cfg.Embedding, rc)
	if err != nil {
		pm.AddFailure("embeddings", err)
		o.log.Warn("embedding provider unavailable, continuing without vectors", "error", err)
		return
	}

	attacher := embedding.NewAttacher(o.eng, provider, o.cfg.Embedding.Provider,
		time.Duration(o.cfg.Embedding.RequestDelay))
	for _, e := range embeddedEntities {
		if !want[e] {
			continue
		}
		started := time.Now()
		meta, err := attacher.Attach(ctx, e)
		if err != nil {
			pm.AddFailure("embeddings "+string(e), err)
			continue
		}
		pm.AddStage(metadata.StageMetrics{
			Stage: "embeddings", Entity: string(e),
			InputRows: meta.Requested, OutputRows: meta.Embedded,
			Dropped: meta.Failed, Errors: meta.Failed,
			StartedAt: started, FinishedAt: time.Now(),
		})
	}
}

func (o *Orchestrator) runGold(ctx context.Context, opts Options, want map[catalog.Entity]bool, pm *metadata.PipelineMetrics) error {
	if opts.SkipGold {
		var tables []string
		for _, e := range entityOrder {
			if want[e] {
				tables = append(tables, catalog.MustTable(e, catalog.Gold))
			}
		}
		return o.requireTables(ctx, "gold", tables)
	}

	g := gold.NewEnricher(o.eng)
	enrichers := map[catalog.Entity]func(context.Context) (metadata.GoldMetadata, error){
		catalog.Location:     g.EnrichLocations,
		catalog.Property:     g.EnrichProperties,
		catalog.Neighborhood: g.EnrichNeighborhoods,
		catalog.Wikipedia:    g.EnrichWikipedia,
	}

	for _, e := range entityOrder {
		if !want[e] {
			continue
		}
		m, err := enrichers[e](ctx)
		if err != nil {
			return Fatal("gold "+string(e), err)
		}
		finished := time.Now()
		pm.AddStage(metadata.StageMetrics{
			Stage: "gold", Entity: m.Entity,
			InputRows: m.RowCount, OutputRows: m.RowCount,
			StartedAt: finished.Add(-m.Duration), FinishedAt: finished,
		})
	}
	return nil
}

func (o *Orchestrator) runGraph(ctx context.Context, opts Options, want map[catalog.Entity]bool, pm *metadata.PipelineMetrics) error {
	if !opts.SkipGraph && len(want) < len(entityOrder) {
		o.log.Warn("graph build reads every gold view, skipping for filtered run")
		return nil
	}
	if opts.SkipGraph {
		if !opts.WriteGraph {
			return nil
		}
		var tables []string
		for _, l := range catalog.GraphLabels() {
			t, err := catalog.NodeTable(l)
			if err != nil {
				return Fatal("graph", err)
			}
			tables = append(tables, t)
		}
		return o.requireTables(ctx, "graph", tables)
	}

	metrics, err := graph.NewBuilder(o.eng).BuildAll(ctx)
	for _, m := range metrics {
		pm.AddStage(m)
	}
	if err != nil {
		return Fatal("graph", err)
	}
	return nil
}

// runSinks writes the selected outputs. The sinks are independent: one
// failing does not stop the others.
func (o *Orchestrator) runSinks(ctx context.Context, opts Options, pm *metadata.PipelineMetrics) error {
	if opts.WriteParquet {
		started := time.Now()
		results, err := parquet.NewWriter(o.eng, o.cfg.Output.ParquetDir).Export(ctx)
		if err != nil {
			pm.AddFailure("sink parquet", err)
		}
		for _, r := range results {
			pm.AddStage(metadata.StageMetrics{
				Stage: "parquet", Entity: r.Table,
				InputRows: r.Rows, OutputRows: r.Rows,
				StartedAt: started, FinishedAt: time.Now(),
			})
		}
	}

	if opts.WriteSearch {
		o.runSearchSink(ctx, pm)
	}

	if opts.WriteGraph {
		o.runGraphSink(ctx, pm)
	}
	return nil
}

func (o *Orchestrator) runSearchSink(ctx context.Context, pm *metadata.PipelineMetrics) {
	client, err := search.NewClient(o.cfg.Search)
	if err != nil {
		pm.AddFailure("sink search", err)
		return
	}
	if err := client.EnsureIndices(ctx); err != nil {
		pm.AddFailure("sink search", err)
		return
	}

	indexers := []func(context.Context, *engine.Engine) (search.IndexResult, error){
		client.IndexProperties, client.IndexNeighborhoods, client.IndexWikipedia,
	}
	for _, index := range indexers {
		started := time.Now()
		r, err := index(ctx, o.eng)
		if err != nil {
			pm.AddFailure("sink search "+r.Entity, err)
			continue
		}
		pm.AddStage(metadata.StageMetrics{
			Stage: "search", Entity: r.Entity,
			InputRows: r.Indexed + r.Skipped + r.Failed, OutputRows: r.Indexed,
			Dropped: r.Skipped, Errors: r.Failed,
			StartedAt: started, FinishedAt: time.Now(),
		})
	}
}

func (o *Orchestrator) runGraphSink(ctx context.Context, pm *metadata.PipelineMetrics) {
	writer, err := graphdb.NewWriter(ctx, o.cfg.Graph)
	if err != nil {
		pm.AddFailure("sink graphdb", err)
		return
	}
	defer writer.Close(ctx)

	if err := writer.EnsureSchema(ctx); err != nil {
		pm.AddFailure("sink graphdb", err)
		return
	}

	started := time.Now()
	nodes, err := writer.WriteNodes(ctx, o.eng)
	if err != nil {
		pm.AddFailure("sink graphdb nodes", err)
	}
	for _, r := range nodes {
		pm.AddStage(metadata.StageMetrics{
			Stage: "graphdb", Entity: r.Target,
			InputRows: r.Written, OutputRows: r.Written,
			StartedAt: started, FinishedAt: time.Now(),
		})
	}
	if err != nil {
		return
	}

	started = time.Now()
	rels, err := writer.WriteRelationships(ctx, o.eng)
	if err != nil {
		pm.AddFailure("sink graphdb relationships", err)
	}
	for _, r := range rels {
		pm.AddStage(metadata.StageMetrics{
			Stage: "graphdb", Entity: r.Target,
			InputRows: r.Written, OutputRows: r.Written,
			StartedAt: started, FinishedAt: time.Now(),
		})
	}
}
