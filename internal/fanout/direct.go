package fanout

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/parley/pkg/uuidx"
)

type direct[T any] struct {
	subscriptions *haxmap.Map[string, *directSubscription[T]]
	closed        atomic.Bool
	log           *slog.Logger
}

func newDirect[T any](log *slog.Logger) *direct[T] {
	return &direct[T]{
		subscriptions: haxmap.New[string, *directSubscription[T]](),
		log:           log,
	}
}

func (d *direct[T]) Publish(ctx context.Context, value T) error {
	if d.closed.Load() {
		return nil
	}
	d.subscriptions.ForEach(func(_ string, sub *directSubscription[T]) bool {
		if sub == nil {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-sub.ctx.Done():
			sub.Unsubscribe()
			return true
		default:
		}
		deliver(sub.ctx, d.log, sub.id, sub.handler, value)
		return true
	})
	return nil
}

func (d *direct[T]) Subscribe(ctx context.Context, handler Handler[T]) (Subscription, error) {
	if handler == nil {
		return nil, ErrHandlerRequired
	}
	if d.closed.Load() {
		return nil, ErrClosed
	}
	id := uuidx.NewString()
	sub := &directSubscription[T]{
		id:      id,
		ctx:     ctx,
		handler: handler,
		onClose: func() { d.subscriptions.Del(id) },
	}
	d.subscriptions.Set(id, sub)
	return sub, nil
}

func (d *direct[T]) Len() int {
	return int(d.subscriptions.Len())
}

func (d *direct[T]) Close() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	d.subscriptions.ForEach(func(_ string, sub *directSubscription[T]) bool {
		sub.Unsubscribe()
		return true
	})
}

type directSubscription[T any] struct {
	id        string
	ctx       context.Context
	handler   Handler[T]
	closeOnce sync.Once
	onClose   func()
}

func (s *directSubscription[T]) ID() string {
	return s.id
}

func (s *directSubscription[T]) Unsubscribe() {
	s.closeOnce.Do(s.onClose)
}
