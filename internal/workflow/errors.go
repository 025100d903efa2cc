// Package workflow binds the node runners, router, and
// executor into the roadmap generation graph, and implements the
// error taxonomy that decides retry vs. surface vs. partial success.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/learnpath/roadmapgen/internal/domain"
)

// ErrorKind is the closed five-value failure taxonomy. Every error a
// node runner returns is classified into exactly one of these before the
// executor decides what to do with it.
type ErrorKind string

const (
	KindTransient         ErrorKind = "transient"
	KindParseFailure      ErrorKind = "parse_failure"
	KindValidationFailure ErrorKind = "validation_failure"
	KindCancelled         ErrorKind = "cancelled"
	KindFatal             ErrorKind = "fatal"
)

// TransientError wraps a retryable failure: network timeouts, pool
// exhaustion, 5xx from a dependency.
type TransientError struct{ Cause error }

func (e *TransientError) Error() string { return "transient: " + e.Cause.Error() }
func (e *TransientError) Unwrap() error { return e.Cause }

// ParseFailureError wraps an LLM response the parser pipeline could not
// recover a document from (agent.ErrParseFailure, typically).
type ParseFailureError struct{ Cause error }

func (e *ParseFailureError) Error() string { return "parse failure: " + e.Cause.Error() }
func (e *ParseFailureError) Unwrap() error { return e.Cause }

// ValidationFailureError wraps a structurally invalid document an agent
// returned that parsed fine but fails domain validation.
type ValidationFailureError struct{ Cause error }

func (e *ValidationFailureError) Error() string { return "validation failure: " + e.Cause.Error() }
func (e *ValidationFailureError) Unwrap() error { return e.Cause }

// CancelledError wraps a caller- or sweeper-initiated cancellation.
type CancelledError struct{ Cause error }

func (e *CancelledError) Error() string { return "cancelled: " + e.Cause.Error() }
func (e *CancelledError) Unwrap() error { return e.Cause }

// FatalError wraps a programmer error or other unrecoverable failure.
type FatalError struct{ Cause error }

func (e *FatalError) Error() string { return "fatal: " + e.Cause.Error() }
func (e *FatalError) Unwrap() error { return e.Cause }

// Classify dispatches err to its ErrorKind via errors.As over the five
// typed wrappers. An error that isn't wrapped in one of these is treated
// as Fatal — node runners are expected to wrap every error they return
// with the matching sentinel type rather than leave classification to
// guesswork.
func Classify(err error) ErrorKind {
	var transient *TransientError
	if errors.As(err, &transient) {
		return KindTransient
	}
	var parseFailure *ParseFailureError
	if errors.As(err, &parseFailure) {
		return KindParseFailure
	}
	var validationFailure *ValidationFailureError
	if errors.As(err, &validationFailure) {
		return KindValidationFailure
	}
	var cancelled *CancelledError
	if errors.As(err, &cancelled) {
		return KindCancelled
	}
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return KindFatal
	}
	return KindFatal
}

// RetryPolicy for ErrorKind: how many attempts the executor makes before
// giving up and surfacing the failure: a fixed table keyed on the five
// error kinds (Transient 3 attempts, ParseFailure 1 re-prompt, the rest
// no retry), since the kind alone decides the policy here, not a
// per-node predicate.
func RetryPolicy(kind ErrorKind) (maxAttempts int) {
	switch kind {
	case KindTransient:
		return 3
	case KindParseFailure:
		return 2 // the original attempt plus one re-prompt
	default:
		return 1
	}
}

// backoffBase, backoffCap set the Transient retry schedule: 500ms base,
// x2 exponential, 8s cap.
const (
	backoffBase = 500 * time.Millisecond
	backoffCap  = 8 * time.Second
)

// Backoff computes the delay before retry attempt `attempt` (0-indexed:
// attempt 0 is the delay before the first retry): doubling with a cap,
// plus up to one base interval of jitter so concurrent retries spread out.
func Backoff(attempt int, rng *rand.Rand) time.Duration {
	delay := backoffBase
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= backoffCap {
			delay = backoffCap
			break
		}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	jitter := time.Duration(rng.Int63n(int64(backoffBase)))
	total := delay + jitter
	if total > backoffCap {
		total = backoffCap
	}
	return total
}

// HandleNodeExecution wraps a single node invocation:
// it calls run, classifies any error, and retries according to
// RetryPolicy, sleeping Backoff between Transient and ParseFailure
// attempts. On final failure it returns the last state the caller passed
// in (run never mutated its own input) alongside a wrapped error naming
// the node and attempt count.
func HandleNodeExecution(ctx context.Context, nodeName string, state domain.RoadmapState, run func() (domain.RoadmapState, error)) (domain.RoadmapState, error) {
	var lastErr error
	attempt := 0
	for {
		newState, err := run()
		if err == nil {
			return newState, nil
		}

		kind := Classify(err)
		attempt++
		lastErr = err

		if attempt >= RetryPolicy(kind) {
			return state, fmt.Errorf("workflow: node %s failed after %d attempt(s): %w", nodeName, attempt, lastErr)
		}
		if kind != KindTransient && kind != KindParseFailure {
			return state, fmt.Errorf("workflow: node %s failed: %w", nodeName, lastErr)
		}

		select {
		case <-ctx.Done():
			return state, fmt.Errorf("workflow: node %s cancelled during retry: %w", nodeName, ctx.Err())
		case <-time.After(Backoff(attempt-1, nil)):
		}
	}
}
