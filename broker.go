package parley

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/casualjim/parley/internal/fanout"
	"github.com/casualjim/parley/internal/pending"
	"github.com/casualjim/parley/metrics"
	"github.com/casualjim/parley/pkg/slogx"
	"github.com/casualjim/parley/pkg/uuidx"
	"github.com/fogfish/opts"
)

// BrokerState is the binding state of a broker.
type BrokerState int

const (
	Unbound BrokerState = iota
	Bound
	Disposed
)

func (s BrokerState) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Bound:
		return "bound"
	case Disposed:
		return "disposed"
	default:
		return fmt.Sprintf("broker_state(%d)", int(s))
	}
}

// Subscription is returned by SubscribeRequest and SubscribeResponse.
type Subscription = fanout.Subscription

// Broker matches requests of type Req with the single registered Strategy that
// answers them with a Res.
//
// Requests submitted while no strategy is registered wait in an unbounded
// queue until Register is called or the broker is disposed. Keeping that
// backlog in check is the caller's responsibility.
type Broker[Req, Res any] struct {
	name    string
	log     *slog.Logger
	metrics *metrics.Metrics

	mu              sync.Mutex
	strategy        Strategy[Req, Res]
	trigger         Subscription
	defaultRequest  Req
	defaultStrategy Strategy[Req, Res]
	warned          bool

	queue     *pending.Queue[*entry[Req, Res]]
	requests  fanout.Fanout[Req]
	responses fanout.Fanout[Res]
	signals   fanout.Fanout[struct{}]

	lastRequest  atomic.Pointer[Req]
	lastResponse atomic.Pointer[Res]

	lifetime    context.Context
	end         context.CancelCauseFunc
	disposed    atomic.Bool
	disposeOnce sync.Once
	inflight    sync.WaitGroup
}

// New creates an unbound broker.
func New[Req, Res any](options ...opts.Option[Options]) (*Broker[Req, Res], error) {
	o := Options{
		shutdown: context.Background(),
	}
	if err := opts.Apply(&o, options); err != nil {
		return nil, err
	}
	if o.name == "" {
		o.name = "broker-" + uuidx.Short()
	}
	if o.logger == nil {
		o.logger = slog.Default().With(slogx.LoggerName("parley"))
	}

	b := &Broker[Req, Res]{
		name:    o.name,
		log:     o.logger.With(slogx.Broker(o.name)),
		metrics: o.metrics,
		queue:   pending.New[*entry[Req, Res]](),
	}

	if o.defaultRequest != nil {
		req, ok := o.defaultRequest.(Req)
		if !ok {
			return nil, fmt.Errorf("parley: default request is %T, broker expects %T", o.defaultRequest, b.defaultRequest)
		}
		b.defaultRequest = req
	}
	if o.defaultStrategy != nil {
		s, ok := o.defaultStrategy.(Strategy[Req, Res])
		if !ok {
			return nil, fmt.Errorf("parley: default strategy is %T, broker expects %T", o.defaultStrategy, b.defaultStrategy)
		}
		b.defaultStrategy = s
	}

	backend, err := fanout.NewBackend(o.kind, append([]opts.Option[fanout.Backend]{fanout.WithLogger(b.log)}, o.backend...)...)
	if err != nil {
		return nil, err
	}
	if b.requests, err = fanout.Open[Req](backend, o.name+".requests"); err != nil {
		return nil, err
	}
	if b.responses, err = fanout.Open[Res](backend, o.name+".responses"); err != nil {
		return nil, err
	}
	b.signals, _ = fanout.Open[struct{}](fanout.Backend{Logger: b.log}, o.name+".signals")

	b.lifetime, b.end = context.WithCancelCause(o.shutdown)
	return b, nil
}

// MustNew is New that panics on invalid options.
func MustNew[Req, Res any](options ...opts.Option[Options]) *Broker[Req, Res] {
	b, err := New[Req, Res](options...)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Broker[Req, Res]) Name() string {
	return b.name
}

func (b *Broker[Req, Res]) State() BrokerState {
	if b.disposed.Load() {
		return Disposed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.trigger != nil {
		return Bound
	}
	return Unbound
}

// Pending reports the number of requests waiting for a strategy.
func (b *Broker[Req, Res]) Pending() int {
	return b.queue.Len()
}

// LastRequest returns the most recently raised request.
func (b *Broker[Req, Res]) LastRequest() (Req, bool) {
	if p := b.lastRequest.Load(); p != nil {
		return *p, true
	}
	var zero Req
	return zero, false
}

// LastResponse returns the most recently raised response.
func (b *Broker[Req, Res]) LastResponse() (Res, bool) {
	if p := b.lastResponse.Load(); p != nil {
		return *p, true
	}
	var zero Res
	return zero, false
}

func (b *Broker[Req, Res]) DefaultRequest() Req {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.defaultRequest
}

// SetDefaultRequest changes the payload used by later Request and
// RequestAsync calls; requests already queued keep the payload they had.
func (b *Broker[Req, Res]) SetDefaultRequest(req Req) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.defaultRequest = req
}

// Submit queues req and calls callback with the response. The callback is
// never called when the strategy fails or the broker is disposed first.
func (b *Broker[Req, Res]) Submit(req Req, callback func(Res)) {
	b.submit(b.callbackEntry(req, true, callback))
}

// Request is Submit with the default request.
func (b *Broker[Req, Res]) Request(callback func(Res)) {
	b.submit(b.callbackEntry(b.DefaultRequest(), false, callback))
}

// SubmitAsync queues req and returns a future for the response. The future
// resolves as cancelled when ctx is done, when the host shutdown signal fires,
// or when the broker is disposed before the response is available.
func (b *Broker[Req, Res]) SubmitAsync(ctx context.Context, req Req) Future[Res] {
	e := b.awaitEntry(ctx, req, true)
	b.submit(e)
	return e.promise
}

// RequestAsync is SubmitAsync with the default request.
func (b *Broker[Req, Res]) RequestAsync(ctx context.Context) Future[Res] {
	e := b.awaitEntry(ctx, b.DefaultRequest(), false)
	b.submit(e)
	return e.promise
}

func (b *Broker[Req, Res]) callbackEntry(req Req, hasValue bool, callback func(Res)) *entry[Req, Res] {
	if callback == nil {
		callback = func(Res) {}
	}
	return &entry[Req, Res]{
		broker:   b,
		id:       uuidx.Short(),
		request:  req,
		hasValue: hasValue,
		callback: callback,
	}
}

func (b *Broker[Req, Res]) awaitEntry(ctx context.Context, req Req, hasValue bool) *entry[Req, Res] {
	if ctx == nil {
		ctx = context.Background()
	}
	e := &entry[Req, Res]{
		broker:   b,
		id:       uuidx.Short(),
		request:  req,
		hasValue: hasValue,
		promise:  NewPromise[Res](),
	}

	rctx, cancel := context.WithCancelCause(ctx)
	stopLifetime := context.AfterFunc(b.lifetime, func() {
		cancel(context.Cause(b.lifetime))
	})
	stopCancel := context.AfterFunc(rctx, func() {
		b.cancel(e, context.Cause(rctx))
	})
	e.ctx = rctx
	e.release = func() {
		stopCancel()
		stopLifetime()
		cancel(context.Canceled)
	}
	return e
}

func (b *Broker[Req, Res]) submit(e *entry[Req, Res]) {
	if b.disposed.Load() {
		b.abandonUnqueued(e, ErrDisposed)
		return
	}

	e.queued = time.Now()
	b.metrics.Submitted(b.name, e.mode())
	var ok bool
	if e.hasValue {
		ok = b.queue.EnqueueValue(e)
	} else {
		ok = b.queue.Enqueue(e)
	}
	if !ok {
		b.metrics.Dequeued(b.name)
		b.abandonUnqueued(e, ErrDisposed)
		return
	}

	req := e.request
	b.lastRequest.Store(&req)
	if err := b.requests.Publish(b.lifetime, req); err != nil {
		b.log.Error("failed to raise request", slogx.Error(err), slogx.Correlation(e.id))
	}

	b.mu.Lock()
	bound := b.trigger != nil
	warn := !bound && !b.warned
	if warn {
		b.warned = true
	}
	b.mu.Unlock()

	if warn {
		b.log.Warn("request queued with no strategy registered", slogx.Correlation(e.id), slog.Int("pending", b.queue.Len()))
	}
	_ = b.signals.Publish(context.Background(), struct{}{})
}

// Register binds s, replacing any strategy registered before, and answers
// every request already waiting in the queue.
func (b *Broker[Req, Res]) Register(s Strategy[Req, Res]) error {
	if s.IsZero() {
		return ErrNilStrategy
	}

	b.mu.Lock()
	if b.disposed.Load() {
		b.mu.Unlock()
		return ErrDisposed
	}
	if b.trigger != nil {
		b.trigger.Unsubscribe()
		b.trigger = nil
	}
	// the trigger lives until Unregister, not until the shutdown signal
	sub, err := b.signals.Subscribe(context.Background(), func(context.Context, struct{}) {
		b.drainAll()
	})
	if err != nil {
		b.mu.Unlock()
		return fmt.Errorf("parley: bind drain trigger: %w", err)
	}
	b.strategy = s
	b.trigger = sub
	b.warned = false
	b.mu.Unlock()

	b.metrics.Binding(b.name, metrics.EventRegister)
	b.log.Debug("strategy registered", slogx.Strategy(s.Kind()), slog.Int("pending", b.queue.Len()))
	b.drainAll()
	return nil
}

// Unregister unbinds the current strategy. Queued requests stay queued and are
// answered by the next Register.
func (b *Broker[Req, Res]) Unregister() {
	b.mu.Lock()
	if b.trigger == nil {
		b.mu.Unlock()
		return
	}
	b.trigger.Unsubscribe()
	b.trigger = nil
	b.strategy = Strategy[Req, Res]{}
	b.mu.Unlock()

	b.metrics.Binding(b.name, metrics.EventUnregister)
	b.log.Debug("strategy unregistered", slog.Int("pending", b.queue.Len()))
}

// SubscribeRequest observes every submitted request. Delivery depends on the
// fan-out backend the broker was created with.
func (b *Broker[Req, Res]) SubscribeRequest(fn func(context.Context, Req)) (Subscription, error) {
	if b.disposed.Load() {
		return nil, ErrDisposed
	}
	return b.requests.Subscribe(b.lifetime, fn)
}

// SubscribeResponse observes every response handed to a submitter.
func (b *Broker[Req, Res]) SubscribeResponse(fn func(context.Context, Res)) (Subscription, error) {
	if b.disposed.Load() {
		return nil, ErrDisposed
	}
	return b.responses.Subscribe(b.lifetime, fn)
}

// drainAll processes queued requests for as long as a strategy is bound. The
// strategy is read under the same lock as the dequeue so a concurrent Register
// never answers a request with a stale strategy it could not have seen.
func (b *Broker[Req, Res]) drainAll() {
	for {
		b.mu.Lock()
		if b.trigger == nil || b.disposed.Load() {
			b.mu.Unlock()
			return
		}
		s := b.strategy
		e, ok, err := b.queue.Dequeue()
		async := ok && s.Concurrent()
		if async {
			b.inflight.Add(1)
		}
		b.mu.Unlock()

		if err != nil {
			panic(fmt.Errorf("parley: broker %s: %w", b.name, err))
		}
		if !ok {
			return
		}
		b.metrics.Dequeued(b.name)

		if !async {
			b.process(s, e)
			continue
		}
		go func() {
			defer b.inflight.Done()
			b.process(s, e)
		}()
	}
}

func (b *Broker[Req, Res]) process(s Strategy[Req, Res], e *entry[Req, Res]) {
	defer e.done()

	ctx := e.context()
	if e.promise != nil && ctx.Err() != nil {
		b.cancel(e, context.Cause(ctx))
		return
	}

	start := time.Now()
	res, err := s.invoke(ctx, e.request)
	b.metrics.ObserveStrategy(b.name, s.Kind().String(), time.Since(start))

	switch {
	case ctx.Err() != nil:
		b.cancel(e, context.Cause(ctx))
		return
	case err != nil:
		b.fail(e, err)
		return
	}

	if e.promise != nil {
		if !e.promise.Fulfill(res) {
			return
		}
	} else if !b.call(e, res) {
		return
	}
	b.metrics.Completed(b.name, metrics.OutcomeFulfilled)

	b.lastResponse.Store(&res)
	if perr := b.responses.Publish(b.lifetime, res); perr != nil {
		b.log.Error("failed to raise response", slogx.Error(perr), slogx.Correlation(e.id))
	}
}

// call runs a callback continuation; a panicking continuation is logged and
// does not stop the drain.
func (b *Broker[Req, Res]) call(e *entry[Req, Res], res Res) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("callback panicked", slogx.Correlation(e.id), slog.Any("panic", r))
			b.metrics.Completed(b.name, metrics.OutcomeRejected)
			ok = false
		}
	}()
	e.callback(res)
	return true
}

func (b *Broker[Req, Res]) fail(e *entry[Req, Res], err error) {
	if e.promise != nil {
		if e.promise.Reject(err) {
			b.metrics.Completed(b.name, metrics.OutcomeRejected)
		}
		return
	}
	b.metrics.Completed(b.name, metrics.OutcomeRejected)
	b.log.Error("strategy failed, callback skipped", slogx.Error(err), slogx.Correlation(e.id))
}

func (b *Broker[Req, Res]) cancel(e *entry[Req, Res], cause error) {
	if e.promise != nil {
		if e.promise.Cancel(cause) {
			b.metrics.Completed(b.name, metrics.OutcomeCancelled)
		}
		return
	}
	b.metrics.Completed(b.name, metrics.OutcomeDropped)
	b.log.Debug("callback request dropped", slogx.Error(cause), slogx.Correlation(e.id))
}

func (b *Broker[Req, Res]) abandon(e *entry[Req, Res], cause error) {
	b.metrics.Dequeued(b.name)
	b.abandonUnqueued(e, cause)
}

func (b *Broker[Req, Res]) abandonUnqueued(e *entry[Req, Res], cause error) {
	b.cancel(e, cause)
	e.done()
}

// Dispose unregisters the strategy, cancels every queued awaited request,
// drops queued callback requests and removes all observers. It is idempotent
// and safe to call from any goroutine.
func (b *Broker[Req, Res]) Dispose() {
	b.disposeOnce.Do(func() {
		b.mu.Lock()
		b.disposed.Store(true)
		b.mu.Unlock()

		b.Unregister()
		b.end(ErrDisposed)
		n := b.queue.Dispose(ErrDisposed)
		b.requests.Close()
		b.responses.Close()
		b.signals.Close()
		b.log.Debug("broker disposed", slog.Int("abandoned", n))
	})
}

// Initialize registers the default strategy when one was configured and no
// strategy is bound yet.
func (b *Broker[Req, Res]) Initialize(context.Context) error {
	b.mu.Lock()
	s := b.defaultStrategy
	bound := b.trigger != nil
	b.mu.Unlock()

	if bound {
		return nil
	}
	if s.IsZero() {
		b.log.Debug("no default strategy to register")
		return nil
	}
	return b.Register(s)
}

// Shutdown disposes the broker and waits for in-flight strategy invocations
// to return, or for ctx to be done.
func (b *Broker[Req, Res]) Shutdown(ctx context.Context) error {
	b.Dispose()
	return b.Wait(ctx)
}

// Wait blocks until no strategy invocation is in flight or ctx is done.
func (b *Broker[Req, Res]) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
