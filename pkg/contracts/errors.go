package contracts

import (
	"errors"
	"fmt"
)

// Sentinel errors for the execution core.
var (
	// ErrExecutionInProgress is returned when a second execute call
	// arrives while one is in flight. No adapter is touched.
	ErrExecutionInProgress = errors.New("execution already in progress")

	// ErrMissingDraft is returned when execute is called without a draft.
	ErrMissingDraft = errors.New("no draft to execute")
)

// ValidationError blocks execution before any adapter is touched. It is
// always recoverable: the caller receives a failed result carrying Reason.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ConcurrencyError wraps ErrExecutionInProgress for callers that need the
// typed form.
type ConcurrencyError struct{}

func (e *ConcurrencyError) Error() string { return ErrExecutionInProgress.Error() }
func (e *ConcurrencyError) Unwrap() error { return ErrExecutionInProgress }

// AdapterError is a failure reported by an external adapter (calendar,
// reminders, mail composer, persistence). Fatal adapter errors (permission
// revoked mid-flight) still only fail the side effect that hit them;
// independent effects in the same batch continue.
type AdapterError struct {
	Kind      SideEffectKind
	Op        string
	Retryable bool
	Err       error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s failed for %s: %v", e.Op, e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// InvariantViolation marks a programming defect: a caller reached the
// engine in a state upstream gates should have blocked. Production builds
// fail closed and log it; strict (test/CI) builds panic on it instead.
type InvariantViolation struct {
	Invariant string
	Detail    string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violated (%s): %s", e.Invariant, e.Detail)
}
