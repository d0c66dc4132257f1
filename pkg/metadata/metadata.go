// Package metadata defines the record types each pipeline stage emits.
// All constructors validate their inputs; the returned values are treated
// as immutable once built.
package metadata

import (
	"fmt"
	"time"
)

// BronzeMetadata describes one raw ingestion run for a single entity.
type BronzeMetadata struct {
	Entity      string
	Table       string
	SourcePaths []string
	RowCount    int64
	SampleSize  int
	IngestedAt  time.Time
	Duration    time.Duration
}

// NewBronzeMetadata validates and builds a BronzeMetadata record.
// A negative sampleSize means the full source was ingested and is
// normalized to -1; zero means an explicitly empty ingest.
func NewBronzeMetadata(entity, table string, sources []string, rows int64, sampleSize int, started, finished time.Time) (BronzeMetadata, error) {
	if err := requireNames(entity, table); err != nil {
		return BronzeMetadata{}, err
	}
	if rows < 0 {
		return BronzeMetadata{}, fmt.Errorf("metadata: negative row count %d for %s", rows, table)
	}
	if sampleSize < 0 {
		sampleSize = -1
	}
	dur, err := spanOf(started, finished)
	if err != nil {
		return BronzeMetadata{}, err
	}
	cp := make([]string, len(sources))
	copy(cp, sources)
	return BronzeMetadata{
		Entity:      entity,
		Table:       table,
		SourcePaths: cp,
		RowCount:    rows,
		SampleSize:  sampleSize,
		IngestedAt:  finished,
		Duration:    dur,
	}, nil
}

// SilverMetadata describes one standardization run for a single entity.
type SilverMetadata struct {
	Entity            string
	Table             string
	InputRows         int64
	OutputRows        int64
	Dropped           int64
	EmbeddingTextRows int64
	Duration          time.Duration
}

// NewSilverMetadata validates and builds a SilverMetadata record. Dropped is
// derived from the input/output delta and must not be negative.
func NewSilverMetadata(entity, table string, in, out, embedTextRows int64, started, finished time.Time) (SilverMetadata, error) {
	if err := requireNames(entity, table); err != nil {
		return SilverMetadata{}, err
	}
	if in < 0 || out < 0 || embedTextRows < 0 {
		return SilverMetadata{}, fmt.Errorf("metadata: negative count for %s (in=%d out=%d text=%d)", table, in, out, embedTextRows)
	}
	if out > in {
		return SilverMetadata{}, fmt.Errorf("metadata: %s produced %d rows from %d inputs", table, out, in)
	}
	if embedTextRows > out {
		return SilverMetadata{}, fmt.Errorf("metadata: %s has %d embedding texts for %d rows", table, embedTextRows, out)
	}
	dur, err := spanOf(started, finished)
	if err != nil {
		return SilverMetadata{}, err
	}
	return SilverMetadata{
		Entity:            entity,
		Table:             table,
		InputRows:         in,
		OutputRows:        out,
		Dropped:           in - out,
		EmbeddingTextRows: embedTextRows,
		Duration:          dur,
	}, nil
}

// GoldMetadata describes one enrichment view build.
type GoldMetadata struct {
	Entity   string
	View     string
	RowCount int64
	Duration time.Duration
}

// NewGoldMetadata validates and builds a GoldMetadata record.
func NewGoldMetadata(entity, view string, rows int64, started, finished time.Time) (GoldMetadata, error) {
	if err := requireNames(entity, view); err != nil {
		return GoldMetadata{}, err
	}
	if rows < 0 {
		return GoldMetadata{}, fmt.Errorf("metadata: negative row count %d for %s", rows, view)
	}
	dur, err := spanOf(started, finished)
	if err != nil {
		return GoldMetadata{}, err
	}
	return GoldMetadata{Entity: entity, View: view, RowCount: rows, Duration: dur}, nil
}

// EmbeddingMetadata describes one embedding attachment run.
type EmbeddingMetadata struct {
	Entity    string
	Provider  string
	Model     string
	Dimension int
	Requested int64
	Embedded  int64
	Failed    int64
	Batches   int
	Duration  time.Duration
}

// NewEmbeddingMetadata validates and builds an EmbeddingMetadata record.
func NewEmbeddingMetadata(entity, provider, model string, dim int, requested, embedded, failed int64, batches int, started, finished time.Time) (EmbeddingMetadata, error) {
	if entity == "" || provider == "" {
		return EmbeddingMetadata{}, fmt.Errorf("metadata: embedding record needs entity and provider")
	}
	if dim <= 0 {
		return EmbeddingMetadata{}, fmt.Errorf("metadata: invalid embedding dimension %d", dim)
	}
	if requested < 0 || embedded < 0 || failed < 0 || batches < 0 {
		return EmbeddingMetadata{}, fmt.Errorf("metadata: negative embedding count for %s", entity)
	}
	if embedded+failed > requested {
		return EmbeddingMetadata{}, fmt.Errorf("metadata: embedded %d + failed %d exceeds requested %d", embedded, failed, requested)
	}
	dur, err := spanOf(started, finished)
	if err != nil {
		return EmbeddingMetadata{}, err
	}
	return EmbeddingMetadata{
		Entity:    entity,
		Provider:  provider,
		Model:     model,
		Dimension: dim,
		Requested: requested,
		Embedded:  embedded,
		Failed:    failed,
		Batches:   batches,
		Duration:  dur,
	}, nil
}

// CheckResult is the outcome of a single validation check.
type CheckResult struct {
	Name    string
	Failed  int64
	Samples []string
}

// ValidationResult aggregates the checks run against one table.
type ValidationResult struct {
	Entity    string
	Table     string
	TotalRows int64
	Checks    []CheckResult
}

// Passed reports whether every check came back clean.
func (r ValidationResult) Passed() bool {
	for _, c := range r.Checks {
		if c.Failed > 0 {
			return false
		}
	}
	return true
}

// TotalFailed sums the failure counts across all checks.
func (r ValidationResult) TotalFailed() int64 {
	var n int64
	for _, c := range r.Checks {
		n += c.Failed
	}
	return n
}

func requireNames(entity, table string) error {
	if entity == "" {
		return fmt.Errorf("metadata: empty entity name")
	}
	if table == "" {
		return fmt.Errorf("metadata: empty table name for entity %q", entity)
	}
	return nil
}

func spanOf(started, finished time.Time) (time.Duration, error) {
	if finished.Before(started) {
		return 0, fmt.Errorf("metadata: finished %s before started %s", finished.Format(time.RFC3339), started.Format(time.RFC3339))
	}
	return finished.Sub(started), nil
}
