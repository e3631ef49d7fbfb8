package parley

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/casualjim/parley/pkg/stdx"
)

// Future is the read side of a submission that can be awaited.
type Future[T any] interface {
	// Get blocks until the future is resolved.
	Get() (T, error)
	// Await blocks until the future is resolved or ctx is done. A done ctx
	// stops the wait only; it does not cancel the underlying request.
	Await(ctx context.Context) (T, error)
	// Done is closed once the future is resolved.
	Done() <-chan struct{}
	State() State
}

// State of a Promise.
type State int32

const (
	Pending State = iota
	Fulfilled
	Rejected
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Promise is a single-assignment result slot. The first of Fulfill, Reject or
// Cancel wins and reports true; every later call is a no-op that reports false.
type Promise[T any] struct {
	done  chan struct{}
	once  sync.Once
	state atomic.Int32
	value T
	err   error
}

func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

func (p *Promise[T]) resolve(state State, value T, err error) bool {
	won := false
	p.once.Do(func() {
		p.value = value
		p.err = err
		p.state.Store(int32(state))
		close(p.done)
		won = true
	})
	return won
}

func (p *Promise[T]) Fulfill(value T) bool {
	return p.resolve(Fulfilled, value, nil)
}

func (p *Promise[T]) Reject(err error) bool {
	if err == nil {
		err = ErrRejected
	}
	return p.resolve(Rejected, stdx.Zero[T](), err)
}

// Cancel resolves the promise with an error matching ErrCancelled that also
// wraps cause.
func (p *Promise[T]) Cancel(cause error) bool {
	return p.resolve(Cancelled, stdx.Zero[T](), cancellation(cause))
}

func (p *Promise[T]) Get() (T, error) {
	<-p.done
	return p.value, p.err
}

func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		return stdx.Zero[T](), cancellation(context.Cause(ctx))
	}
}

func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

func (p *Promise[T]) State() State {
	return State(p.state.Load())
}

// Resolved returns a future that is already fulfilled with value.
func Resolved[T any](value T) Future[T] {
	p := NewPromise[T]()
	p.Fulfill(value)
	return p
}

// Failed returns a future that is already rejected with err.
func Failed[T any](err error) Future[T] {
	p := NewPromise[T]()
	p.Reject(err)
	return p
}

// Aborted returns a future that is already cancelled with cause.
func Aborted[T any](cause error) Future[T] {
	p := NewPromise[T]()
	p.Cancel(cause)
	return p
}
