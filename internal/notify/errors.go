// Package notify delivers batches of notification jobs with per-job isolation,
// bounded concurrency, classified retries and exponential backoff.
package notify

import (
	"context"
	"errors"

	"github.com/steveyegge/vitality/internal/types"
)

// ErrDispatchCancelled is the last error of jobs that never started because the batch was cancelled
var ErrDispatchCancelled = errors.New("dispatch cancelled before job started")

type permanentError struct{ err error }

func (e *permanentError) Error() string { return "permanent delivery failure: " + e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

type transientError struct{ err error }

func (e *transientError) Error() string { return "transient delivery failure: " + e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable (invalid recipient, rejected payload)
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Transient marks err as retryable (network, timeout, rate limit)
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsPermanent reports whether err must not be retried.
//
// An explicit Transient marker wins, then an explicit Permanent marker. Validation
// and not-found errors are permanent. Everything else, including deadlines,
// net.Error values and unrecognized errors, is transient.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var t *transientError
	if errors.As(err, &t) {
		return false
	}
	var p *permanentError
	if errors.As(err, &p) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, types.ErrValidation) || errors.Is(err, types.ErrNotFound)
}
