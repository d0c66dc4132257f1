// Package probe runs preflight connectivity checks before a pipeline run.
// Failing a critical probe is cheaper than failing an hour into ingestion.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// checkTimeout bounds each individual probe.
const checkTimeout = 10 * time.Second

// CheckFunc performs one health check. Nil means the check passed.
type CheckFunc func(ctx context.Context) error

// Probe is a single preflight check.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool // a critical failure aborts the run
}

// Result holds the outcome of one probe.
type Result struct {
	Probe    Probe
	Error    error
	Duration time.Duration
}

// Run executes the probes in order, each under its own timeout.
func Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, len(probes))
	for i, p := range probes {
		start := time.Now()

		probeCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := p.Check(probeCtx)
		cancel()

		results[i] = Result{Probe: p, Error: err, Duration: time.Since(start)}
	}
	return results
}

// AnalyzeResults logs every outcome and returns the joined errors of the
// critical failures. Non-critical failures only warn; the related sink
// degrades later instead of blocking the run.
func AnalyzeResults(results []Result) error {
	var critical []error

	slog.Info("Preflight checks")
	for _, r := range results {
		status := "PASS"
		if r.Error != nil {
			status = "FAIL"
		}
		msg := fmt.Sprintf("[%s] %-20s (%v)", status, r.Probe.Name, r.Duration.Round(time.Millisecond))

		switch {
		case r.Error == nil:
			slog.Info(msg)
		case r.Probe.Critical:
			slog.Error(msg, "error", r.Error)
			critical = append(critical, fmt.Errorf("%s: %w", r.Probe.Name, r.Error))
		default:
			slog.Warn(msg, "error", r.Error)
		}
	}

	if len(critical) > 0 {
		return errors.Join(critical...)
	}
	return nil
}
