package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/curvesy/argus/internal/schema"
)

// ErrTransient marks a backend failure that is safe to retry
// (network error, backend unavailable, overload).
var ErrTransient = errors.New("transient backend failure")

// ErrUnknownKind is returned by Submit for a kind with no configured backend.
var ErrUnknownKind = errors.New("unknown analysis kind")

// IsTransient reports whether err is eligible for a retry. Timeouts are
// handled separately: they consume an attempt but remain retryable.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// isTimeout reports whether err was caused by the per-attempt deadline.
func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// TerminalError is the only error class surfaced to callers: the retry
// budget for a task is exhausted. Retry and timeout detail stays internal.
type TerminalError struct {
	Kind     schema.Kind
	Attempts int
	Last     error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("%s analysis failed after %d attempts: %v", e.Kind, e.Attempts, e.Last)
}

func (e *TerminalError) Unwrap() error { return e.Last }
