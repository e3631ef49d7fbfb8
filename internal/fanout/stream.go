package fanout

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/parley/pkg/uuidx"
)

type stream[T any] struct {
	subscriptions         *haxmap.Map[string, *streamSubscription[T]]
	bufferSize            int
	slowSubscriberTimeout time.Duration
	closed                atomic.Bool
	log                   *slog.Logger
}

func newStream[T any](bufferSize int, slowSubscriberTimeout time.Duration, log *slog.Logger) *stream[T] {
	return &stream[T]{
		subscriptions:         haxmap.New[string, *streamSubscription[T]](),
		bufferSize:            bufferSize,
		slowSubscriberTimeout: slowSubscriberTimeout,
		log:                   log,
	}
}

func (s *stream[T]) Publish(ctx context.Context, value T) error {
	if s.closed.Load() {
		return nil
	}
	s.subscriptions.ForEach(func(_ string, sub *streamSubscription[T]) bool {
		if sub == nil {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-sub.ctx.Done():
			sub.Unsubscribe()
			return true
		case <-sub.done:
			return true
		default:
		}

		select {
		case <-ctx.Done():
			return false
		case <-sub.ctx.Done():
			sub.Unsubscribe()
		case <-sub.done:
		case sub.channel <- value:
		case <-time.After(s.slowSubscriberTimeout):
			s.log.WarnContext(ctx, "dropping slow subscriber", slog.String("subscription", sub.id))
			sub.Unsubscribe()
		}
		return true
	})
	return nil
}

func (s *stream[T]) Subscribe(ctx context.Context, handler Handler[T]) (Subscription, error) {
	if handler == nil {
		return nil, ErrHandlerRequired
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}
	id := uuidx.NewString()
	sub := &streamSubscription[T]{
		id:      id,
		ctx:     ctx,
		channel: make(chan T, s.bufferSize),
		done:    make(chan struct{}),
		handler: handler,
		onClose: func() { s.subscriptions.Del(id) },
		log:     s.log,
	}
	s.subscriptions.Set(id, sub)
	go sub.forwardToHandler()
	return sub, nil
}

func (s *stream[T]) Len() int {
	return int(s.subscriptions.Len())
}

func (s *stream[T]) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.subscriptions.ForEach(func(_ string, sub *streamSubscription[T]) bool {
		sub.Unsubscribe()
		return true
	})
}

// streamSubscription never closes its data channel; done tells the forwarder
// and concurrent publishers that the subscription is gone.
type streamSubscription[T any] struct {
	id        string
	ctx       context.Context
	channel   chan T
	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
	handler   Handler[T]
	log       *slog.Logger
}

func (s *streamSubscription[T]) ID() string {
	return s.id
}

func (s *streamSubscription[T]) Unsubscribe() {
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
		close(s.done)
	})
}

func (s *streamSubscription[T]) forwardToHandler() {
	for {
		select {
		case value := <-s.channel:
			deliver(s.ctx, s.log, s.id, s.handler, value)
		case <-s.done:
			return
		case <-s.ctx.Done():
			s.Unsubscribe()
			return
		}
	}
}
