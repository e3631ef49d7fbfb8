package parley

import (
	"context"
	"fmt"
)

// StrategyKind tells how a strategy is invoked.
type StrategyKind int

const (
	// KindSync strategies run on the goroutine that drains the queue, one
	// request after the other.
	KindSync StrategyKind = iota
	// KindAsync strategies run on a goroutine of their own per request.
	KindAsync
	// KindCancellable strategies run like KindAsync and receive the request's
	// context.
	KindCancellable
)

func (k StrategyKind) String() string {
	switch k {
	case KindSync:
		return "sync"
	case KindAsync:
		return "async"
	case KindCancellable:
		return "cancellable"
	default:
		return fmt.Sprintf("strategy(%d)", int(k))
	}
}

// Strategy is the answering side of a broker. Values are immutable; the zero
// value has no function and cannot be registered.
type Strategy[Req, Res any] struct {
	kind StrategyKind
	fn   func(context.Context, Req) (Res, error)
}

// Sync answers on the draining goroutine. A backlog flushed by Register is
// answered in submission order.
func Sync[Req, Res any](fn func(Req) (Res, error)) Strategy[Req, Res] {
	if fn == nil {
		return Strategy[Req, Res]{kind: KindSync}
	}
	return Strategy[Req, Res]{
		kind: KindSync,
		fn:   func(_ context.Context, req Req) (Res, error) { return fn(req) },
	}
}

// Pure is Sync for a function that cannot fail.
func Pure[Req, Res any](fn func(Req) Res) Strategy[Req, Res] {
	if fn == nil {
		return Strategy[Req, Res]{kind: KindSync}
	}
	return Sync(func(req Req) (Res, error) { return fn(req), nil })
}

// Async answers every request on its own goroutine. The broker does not wait
// for one invocation to finish before dispatching the next, so invocations
// overlap and responses may complete out of submission order.
func Async[Req, Res any](fn func(Req) (Res, error)) Strategy[Req, Res] {
	if fn == nil {
		return Strategy[Req, Res]{kind: KindAsync}
	}
	return Strategy[Req, Res]{
		kind: KindAsync,
		fn:   func(_ context.Context, req Req) (Res, error) { return fn(req) },
	}
}

// Cancellable is Async with access to the request context. The context is
// done when the submitter's context is, when the host shuts down, or when the
// broker is disposed.
func Cancellable[Req, Res any](fn func(context.Context, Req) (Res, error)) Strategy[Req, Res] {
	return Strategy[Req, Res]{kind: KindCancellable, fn: fn}
}

func (s Strategy[Req, Res]) Kind() StrategyKind {
	return s.kind
}

// IsZero reports whether the strategy has no function to invoke.
func (s Strategy[Req, Res]) IsZero() bool {
	return s.fn == nil
}

// Concurrent reports whether invocations run on their own goroutine.
func (s Strategy[Req, Res]) Concurrent() bool {
	return s.kind != KindSync
}

func (s Strategy[Req, Res]) invoke(ctx context.Context, req Req) (res Res, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrStrategyPanic, r)
		}
	}()
	return s.fn(ctx, req)
}
