package main

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/casualjim/parley"
	"github.com/casualjim/parley/lifecycle"
	"github.com/fogfish/opts"
)

type outcome struct {
	Name   string
	Detail string
	Err    error
}

type scenario struct {
	name string
	run  func(ctx context.Context, host *lifecycle.Host, options []opts.Option[parley.Options]) (string, error)
}

var scenarios = []scenario{
	{"queued callbacks drain on register", queuedCallbacks},
	{"strategy swap", strategySwap},
	{"await across unregister", awaitAcrossUnregister},
	{"async responses overlap", asyncOverlap},
	{"dispose cancels pending", disposeCancels},
}

// runScenarios runs every scenario on its own broker attached to host.
func runScenarios(ctx context.Context, host *lifecycle.Host, options []opts.Option[parley.Options]) []outcome {
	out := make([]outcome, 0, len(scenarios))
	for _, s := range scenarios {
		detail, err := s.run(ctx, host, options)
		out = append(out, outcome{Name: s.name, Detail: detail, Err: err})
	}
	return out
}

func attach[Req, Res any](ctx context.Context, host *lifecycle.Host, name string, options []opts.Option[parley.Options]) (*parley.Broker[Req, Res], error) {
	options = append(slices.Clone(options), parley.WithName(name), parley.WithShutdownSignal(host.Context()))
	b, err := parley.New[Req, Res](options...)
	if err != nil {
		return nil, err
	}
	if err := host.Attach(ctx, name, b); err != nil {
		return nil, err
	}
	return b, nil
}

func queuedCallbacks(ctx context.Context, host *lifecycle.Host, options []opts.Option[parley.Options]) (string, error) {
	b, err := attach[int, int](ctx, host, "queued", options)
	if err != nil {
		return "", err
	}

	var got []int
	for i := 1; i <= 3; i++ {
		b.Submit(i, func(n int) { got = append(got, n) })
	}
	pending := b.Pending()

	if err := b.Register(parley.Pure(func(n int) int { return n })); err != nil {
		return "", err
	}
	if !slices.Equal(got, []int{1, 2, 3}) {
		return "", fmt.Errorf("callbacks fired as %v", got)
	}
	return fmt.Sprintf("%d queued, answered %v", pending, got), nil
}

func strategySwap(ctx context.Context, host *lifecycle.Host, options []opts.Option[parley.Options]) (string, error) {
	b, err := attach[int, string](ctx, host, "swap", options)
	if err != nil {
		return "", err
	}

	if err := b.Register(parley.Pure(func(n int) string { return "x" + strconv.Itoa(n) })); err != nil {
		return "", err
	}
	first, err := b.SubmitAsync(ctx, 5).Get()
	if err != nil {
		return "", err
	}

	if err := b.Register(parley.Pure(func(n int) string { return "y" + strconv.Itoa(n) })); err != nil {
		return "", err
	}
	second, err := b.SubmitAsync(ctx, 7).Get()
	if err != nil {
		return "", err
	}
	if first != "x5" || second != "y7" {
		return "", fmt.Errorf("got %q and %q", first, second)
	}
	return fmt.Sprintf("5 -> %s, 7 -> %s", first, second), nil
}

func awaitAcrossUnregister(ctx context.Context, host *lifecycle.Host, options []opts.Option[parley.Options]) (string, error) {
	b, err := attach[string, string](ctx, host, "rebind", options)
	if err != nil {
		return "", err
	}

	if err := b.Register(parley.Pure(func(s string) string { return s })); err != nil {
		return "", err
	}
	b.Unregister()

	f := b.SubmitAsync(ctx, "hello")
	state := f.State()

	if err := b.Register(parley.Sync(func(s string) (string, error) { return s + ", world", nil })); err != nil {
		return "", err
	}
	v, err := f.Get()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s while unbound, then %q", state, v), nil
}

func asyncOverlap(ctx context.Context, host *lifecycle.Host, options []opts.Option[parley.Options]) (string, error) {
	b, err := attach[time.Duration, time.Duration](ctx, host, "overlap", options)
	if err != nil {
		return "", err
	}
	if err := b.Register(parley.Cancellable(func(ctx context.Context, d time.Duration) (time.Duration, error) {
		select {
		case <-time.After(d):
			return d, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})); err != nil {
		return "", err
	}

	var (
		mu    sync.Mutex
		order []time.Duration
		wg    sync.WaitGroup
	)
	for _, d := range []time.Duration{100 * time.Millisecond, 10 * time.Millisecond} {
		f := b.SubmitAsync(ctx, d)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := f.Get(); err == nil {
				mu.Lock()
				order = append(order, v)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(order) != 2 || order[0] >= order[1] {
		return "", fmt.Errorf("completion order %v", order)
	}
	return fmt.Sprintf("completed in order %v", order), nil
}

func disposeCancels(ctx context.Context, host *lifecycle.Host, options []opts.Option[parley.Options]) (string, error) {
	tx, err := parley.NewTransaction(append(slices.Clone(options), parley.WithName("transaction"))...)
	if err != nil {
		return "", err
	}
	if err := host.Attach(ctx, "transaction", tx); err != nil {
		return "", err
	}

	called := false
	tx.Submit(func() { called = true })
	f := tx.SubmitAsync(ctx)
	tx.Dispose()

	_, err = f.Get()
	if err == nil || called {
		return "", fmt.Errorf("pending work survived dispose (err=%v, callback=%t)", err, called)
	}
	return fmt.Sprintf("future %s: %v", f.State(), err), nil
}
