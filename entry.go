package parley

import (
	"context"
	"time"

	"github.com/casualjim/parley/metrics"
)

// entry is one pending request. Exactly one of callback and promise is set.
type entry[Req, Res any] struct {
	broker   *Broker[Req, Res]
	id       string
	request  Req
	hasValue bool
	callback func(Res)
	promise  *Promise[Res]
	ctx      context.Context
	release  func()
	queued   time.Time
}

func (e *entry[Req, Res]) mode() string {
	if e.promise != nil {
		return metrics.ModeAwait
	}
	return metrics.ModeCallback
}

// Abandon is called by the pending queue on disposal.
func (e *entry[Req, Res]) Abandon(cause error) {
	e.broker.abandon(e, cause)
}

// context is the context a strategy invocation for this entry runs under.
// Callback entries have no cancellation channel of their own.
func (e *entry[Req, Res]) context() context.Context {
	if e.ctx != nil {
		return e.ctx
	}
	return e.broker.lifetime
}

func (e *entry[Req, Res]) done() {
	if e.release != nil {
		e.release()
	}
}
