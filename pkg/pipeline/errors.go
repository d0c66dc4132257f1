// Package pipeline orchestrates the Bronze, Silver, Gold, graph and sink
// stages as one run with per-stage metrics.
package pipeline

import (
	"errors"
	"fmt"
)

// FatalError aborts the run immediately: a misconfiguration or a missing
// prerequisite that no retry can fix.
type FatalError struct {
	Stage string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal in %s: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps an error as fatal for a stage.
func Fatal(stage string, err error) error {
	return &FatalError{Stage: stage, Err: err}
}

// IsFatal reports whether err carries a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// TransientError marks a stage failure worth one more attempt.
type TransientError struct {
	Stage string
	Err   error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient in %s: %v", e.Stage, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps an error as retryable for a stage.
func Transient(stage string, err error) error {
	return &TransientError{Stage: stage, Err: err}
}

// IsTransient reports whether err carries a TransientError in its chain.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ValidationIssue records raw-data findings that do not stop the run unless
// validation.strict is set.
type ValidationIssue struct {
	Entity string
	Failed int64
}

func (e *ValidationIssue) Error() string {
	return fmt.Sprintf("validation found %d bad rows in %s", e.Failed, e.Entity)
}
