package parley

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is matched by every error an awaited submission resolves
	// with when it was cancelled instead of answered. The underlying cause
	// (context.Canceled, context.DeadlineExceeded, ErrDisposed, ...) is wrapped
	// alongside it.
	ErrCancelled = errors.New("parley: request cancelled")
	// ErrDisposed is the cancellation cause for requests outstanding when a
	// broker is disposed, and is returned by operations on a disposed broker.
	ErrDisposed = errors.New("parley: broker disposed")
	// ErrNilStrategy is returned by Register for a strategy without a function.
	ErrNilStrategy = errors.New("parley: strategy has no function")
	// ErrStrategyPanic wraps a panic recovered from a strategy invocation.
	ErrStrategyPanic = errors.New("parley: strategy panicked")
	// ErrRejected is used when a promise is rejected with a nil error.
	ErrRejected = errors.New("parley: request rejected")
)

func cancellation(cause error) error {
	switch {
	case cause == nil:
		return ErrCancelled
	case errors.Is(cause, ErrCancelled):
		return cause
	default:
		return fmt.Errorf("%w: %w", ErrCancelled, cause)
	}
}
