// Package fanout delivers broker observations (a request was raised, a response
// was raised) to any number of observers. It is the subscription registry every
// broker is built on.
//
// Design decisions:
//   - One interface, several backends: a broker picks its backend when it is
//     constructed and never inspects which one it got
//   - Direct delivers synchronously on the publishing goroutine, in the spirit of
//     a plain observer list
//   - Stream gives every subscriber its own buffered channel and goroutine, in
//     the spirit of a reactive stream; slow subscribers are dropped
//   - NATS mirrors observations as JSON envelopes on a subject so processes other
//     than the broker's own can watch it
//   - Subscriptions are explicit values with an ID and are tied to a context
//
// Backends:
//   - Fanout[T]: publish/subscribe for one event kind
//     └── Subscription: handle returned by Subscribe
//   - Backend: construction-time selection of the implementation
//
// Example usage:
//
//	backend := fanout.MustBackend(fanout.Stream, fanout.WithBufferSize(128))
//	requests, err := fanout.Open[Order](backend, "orders.requests")
//	if err != nil {
//	    return err
//	}
//	sub, err := requests.Subscribe(ctx, func(ctx context.Context, o Order) {
//	    slog.Info("order requested", slog.String("id", o.ID))
//	})
//	if err != nil {
//	    return err
//	}
//	defer sub.Unsubscribe()
//
// Ordering between observers of one publication is unspecified for every
// backend. A single Stream or NATS subscriber sees publications in publish order.
package fanout
