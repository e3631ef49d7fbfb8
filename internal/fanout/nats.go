package fanout

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/parley/pkg/slogx"
	"github.com/casualjim/parley/pkg/uuidx"
	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

type natsFanout[T any] struct {
	client        *nats.Conn
	subject       string
	subscriptions *haxmap.Map[string, *natsSubscription]
	closed        atomic.Bool
	log           *slog.Logger
}

func newNATS[T any](client *nats.Conn, subject string, log *slog.Logger) *natsFanout[T] {
	return &natsFanout[T]{
		client:        client,
		subject:       subject,
		subscriptions: haxmap.New[string, *natsSubscription](),
		log:           log.With(slog.String("subject", subject)),
	}
}

func (f *natsFanout[T]) Publish(ctx context.Context, value T) error {
	if f.closed.Load() {
		return nil
	}
	data, err := json.Marshal(NewEnvelope(f.subject, value))
	if err != nil {
		return err
	}
	return f.client.Publish(f.subject, data)
}

func (f *natsFanout[T]) Subscribe(ctx context.Context, handler Handler[T]) (Subscription, error) {
	if handler == nil {
		return nil, ErrHandlerRequired
	}
	if f.closed.Load() {
		return nil, ErrClosed
	}

	id := uuidx.NewString()
	nsub, err := f.client.Subscribe(f.subject, func(msg *nats.Msg) {
		var envelope Envelope[T]
		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			f.log.Error("failed to unmarshal observation", slogx.Error(err))
			return
		}
		deliver(ctx, f.log, id, handler, envelope.Payload)
	})
	if err != nil {
		return nil, err
	}

	sub := &natsSubscription{
		id:      id,
		sub:     nsub,
		onClose: func() { f.subscriptions.Del(id) },
		log:     f.log,
	}
	f.subscriptions.Set(id, sub)
	stop := context.AfterFunc(ctx, sub.Unsubscribe)
	sub.mu.Lock()
	sub.stop = stop
	sub.mu.Unlock()
	return sub, nil
}

func (f *natsFanout[T]) Len() int {
	return int(f.subscriptions.Len())
}

func (f *natsFanout[T]) Close() {
	if !f.closed.CompareAndSwap(false, true) {
		return
	}
	f.subscriptions.ForEach(func(_ string, sub *natsSubscription) bool {
		sub.Unsubscribe()
		return true
	})
}

type natsSubscription struct {
	id        string
	sub       *nats.Subscription
	closeOnce sync.Once
	onClose   func()
	mu        sync.Mutex
	stop      func() bool
	log       *slog.Logger
}

func (n *natsSubscription) ID() string {
	return n.id
}

func (n *natsSubscription) Unsubscribe() {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		if n.stop != nil {
			n.stop()
		}
		n.mu.Unlock()
		n.onClose()
		if err := n.sub.Unsubscribe(); err != nil {
			n.log.Error("failed to unsubscribe", slogx.Error(err), slog.String("subscription", n.id))
		}
	})
}
