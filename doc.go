/*
Package parley provides typed request/response brokers that decouple the code
asking for something from the code able to answer it.

A Broker[Req, Res] holds at most one Strategy at a time. Requests submitted
while no strategy is registered are queued and answered, in submission order,
as soon as one is. The strategy can be swapped or removed at any point; queued
requests simply wait for the next one.

# Basic Usage

	b := parley.MustNew[int, string](parley.WithName("formatter"))

	b.Submit(5, func(s string) { fmt.Println(s) }) // queued

	_ = b.Register(parley.Pure(func(n int) string {
		return strconv.Itoa(n * 2)
	})) // prints "10"

	res, err := b.SubmitAsync(ctx, 7).Get()

A Transaction is a Broker whose requests and responses carry no payload.

# Strategies

Three kinds of strategy exist:

  - Sync and Pure run on the goroutine that drains the queue.
  - Async runs every request on its own goroutine. Invocations overlap, so
    responses may complete out of submission order.
  - Cancellable is Async with the request context passed in.

Panics in a strategy are recovered and reported as ErrStrategyPanic.

# Cancellation

SubmitAsync returns a Future that resolves as cancelled, with an error matching
ErrCancelled, when the submitter's context is done, when the host shutdown
signal fires (see WithShutdownSignal and the lifecycle package), or when the
broker is disposed. Callback submissions cannot observe cancellation: when the
strategy fails or the broker goes away first their callback is never called.
Use SubmitAsync where the difference matters.

# Observation

SubscribeRequest and SubscribeResponse observe traffic through a fan-out
backend: Direct (synchronous), Stream (buffered per observer) or NATS (mirrored
on subjects for other processes to watch). Observation never carries requests
across processes.

# Lifecycle

Broker and Transaction implement lifecycle.Component. Initialize registers the
strategy given with WithDefaultStrategy; Shutdown disposes the broker and
waits for in-flight invocations.
*/
package parley
