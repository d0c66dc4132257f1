package metadata

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StageMetrics captures the throughput of one orchestrated stage.
type StageMetrics struct {
	Stage      string
	Entity     string
	InputRows  int64
	OutputRows int64
	Dropped    int64
	Errors     int64
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the wall-clock time the stage took.
func (m StageMetrics) Duration() time.Duration {
	return m.FinishedAt.Sub(m.StartedAt)
}

// RecordsPerSecond returns output throughput, zero for instantaneous stages.
func (m StageMetrics) RecordsPerSecond() float64 {
	secs := m.Duration().Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(m.OutputRows) / secs
}

// SuccessRate returns the fraction of input rows that survived the stage.
// Stages with no input (view builds, writers fed elsewhere) report 1.0.
func (m StageMetrics) SuccessRate() float64 {
	if m.InputRows == 0 {
		return 1.0
	}
	return float64(m.OutputRows) / float64(m.InputRows)
}

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// PipelineMetrics accumulates stage results over one run. It is built up by
// the orchestrator and sealed with Finish.
type PipelineMetrics struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     RunStatus
	Stages     []StageMetrics
	Failures   []string
}

// NewPipelineMetrics starts a run record with a fresh run ID.
func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
}

// AddStage appends a completed stage record.
func (p *PipelineMetrics) AddStage(m StageMetrics) {
	p.Stages = append(p.Stages, m)
}

// AddFailure records a stage failure without aborting the run record.
func (p *PipelineMetrics) AddFailure(stage string, err error) {
	p.Failures = append(p.Failures, fmt.Sprintf("%s: %v", stage, err))
}

// Finish seals the run. Status is failed when nothing completed, partial when
// some stages failed, succeeded otherwise.
func (p *PipelineMetrics) Finish() {
	p.FinishedAt = time.Now()
	switch {
	case len(p.Failures) == 0:
		p.Status = RunSucceeded
	case len(p.Stages) == 0:
		p.Status = RunFailed
	default:
		p.Status = RunPartial
	}
}

// TotalRows sums output rows across all stages.
func (p *PipelineMetrics) TotalRows() int64 {
	var n int64
	for _, s := range p.Stages {
		n += s.OutputRows
	}
	return n
}
