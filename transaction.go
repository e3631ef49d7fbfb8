package parley

import (
	"context"

	"github.com/fogfish/opts"
)

// Signal is the empty payload of a Transaction's requests and responses.
type Signal = struct{}

// Transaction is a broker whose requests and responses carry no payload: a
// request asks "do it" and the response says "done".
type Transaction struct {
	broker *Broker[Signal, Signal]
}

func NewTransaction(options ...opts.Option[Options]) (*Transaction, error) {
	b, err := New[Signal, Signal](options...)
	if err != nil {
		return nil, err
	}
	return &Transaction{broker: b}, nil
}

// MustNewTransaction is NewTransaction that panics on invalid options.
func MustNewTransaction(options ...opts.Option[Options]) *Transaction {
	t, err := NewTransaction(options...)
	if err != nil {
		panic(err)
	}
	return t
}

// SyncAction answers a Transaction on the draining goroutine.
func SyncAction(fn func() error) Strategy[Signal, Signal] {
	if fn == nil {
		return Sync[Signal, Signal](nil)
	}
	return Sync(func(Signal) (Signal, error) { return Signal{}, fn() })
}

// AsyncAction answers every Transaction request on its own goroutine.
func AsyncAction(fn func() error) Strategy[Signal, Signal] {
	if fn == nil {
		return Async[Signal, Signal](nil)
	}
	return Async(func(Signal) (Signal, error) { return Signal{}, fn() })
}

// CancellableAction is AsyncAction with access to the request context.
func CancellableAction(fn func(context.Context) error) Strategy[Signal, Signal] {
	if fn == nil {
		return Cancellable[Signal, Signal](nil)
	}
	return Cancellable(func(ctx context.Context, _ Signal) (Signal, error) { return Signal{}, fn(ctx) })
}

func (t *Transaction) Name() string                    { return t.broker.Name() }
func (t *Transaction) State() BrokerState              { return t.broker.State() }
func (t *Transaction) Pending() int                    { return t.broker.Pending() }
func (t *Transaction) Unregister()                     { t.broker.Unregister() }
func (t *Transaction) Dispose()                        { t.broker.Dispose() }
func (t *Transaction) Broker() *Broker[Signal, Signal] { return t.broker }

// Submit queues a request and calls callback once it has been answered.
func (t *Transaction) Submit(callback func()) {
	var cb func(Signal)
	if callback != nil {
		cb = func(Signal) { callback() }
	}
	t.broker.Request(cb)
}

// SubmitAsync queues a request and returns a future that resolves once it has
// been answered, or as cancelled.
func (t *Transaction) SubmitAsync(ctx context.Context) Future[Signal] {
	return t.broker.RequestAsync(ctx)
}

func (t *Transaction) Register(s Strategy[Signal, Signal]) error {
	return t.broker.Register(s)
}

func (t *Transaction) SubscribeRequest(fn func(context.Context)) (Subscription, error) {
	return t.broker.SubscribeRequest(func(ctx context.Context, _ Signal) { fn(ctx) })
}

func (t *Transaction) SubscribeResponse(fn func(context.Context)) (Subscription, error) {
	return t.broker.SubscribeResponse(func(ctx context.Context, _ Signal) { fn(ctx) })
}

func (t *Transaction) Initialize(ctx context.Context) error {
	return t.broker.Initialize(ctx)
}

func (t *Transaction) Shutdown(ctx context.Context) error {
	return t.broker.Shutdown(ctx)
}
