package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/casualjim/parley/pkg/slogx"
	"github.com/fogfish/opts"
	"github.com/nats-io/nats.go"
)

var (
	// ErrHandlerRequired is returned by Subscribe when the handler is nil.
	ErrHandlerRequired = errors.New("fanout: handler is required")
	// ErrClosed is returned by Subscribe once the fan-out has been closed.
	ErrClosed = errors.New("fanout: closed")
)

// Handler receives one published value.
type Handler[T any] func(context.Context, T)

type Fanout[T any] interface {
	// Publish hands the value to every live subscriber. Publishing on a closed
	// fan-out is a no-op.
	Publish(context.Context, T) error
	Subscribe(context.Context, Handler[T]) (Subscription, error)
	// Len reports the number of live subscriptions.
	Len() int
	// Close drops every subscription. It is idempotent.
	Close()
}

type Subscription interface {
	ID() string
	Unsubscribe()
}

// Kind selects a fan-out implementation.
type Kind int

const (
	Direct Kind = iota
	Stream
	NATS
)

func (k Kind) String() string {
	switch k {
	case Direct:
		return "direct"
	case Stream:
		return "stream"
	case NATS:
		return "nats"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a configuration string onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "direct":
		return Direct, nil
	case "stream":
		return Stream, nil
	case "nats":
		return NATS, nil
	default:
		return Direct, fmt.Errorf("fanout: unknown kind %q", s)
	}
}

const (
	defaultBufferSize            = 50
	defaultSlowSubscriberTimeout = 100 * time.Millisecond
)

// Backend describes which implementation Open builds and how it is tuned.
type Backend struct {
	Kind                  Kind
	BufferSize            int
	SlowSubscriberTimeout time.Duration
	Conn                  *nats.Conn
	SubjectPrefix         string
	Logger                *slog.Logger
}

var (
	// WithBufferSize sets the per-subscriber channel size of Stream.
	WithBufferSize = opts.ForName[Backend, int]("BufferSize")
	// WithSlowSubscriberTimeout sets how long Stream waits on a full subscriber before dropping it.
	WithSlowSubscriberTimeout = opts.ForName[Backend, time.Duration]("SlowSubscriberTimeout")
	// WithSubjectPrefix sets the subject prefix NATS publishes under.
	WithSubjectPrefix = opts.ForName[Backend, string]("SubjectPrefix")
	// WithLogger sets the logger used to report dropped subscribers and codec failures.
	WithLogger = opts.ForName[Backend, *slog.Logger]("Logger")
)

// WithConn sets the NATS connection used by the NATS backend.
func WithConn(conn *nats.Conn) opts.Option[Backend] {
	return opts.Type[Backend](func(b *Backend) error {
		if conn == nil {
			return errors.New("fanout: nats connection is nil")
		}
		b.Conn = conn
		return nil
	})
}

// NewBackend builds a validated Backend of the given kind.
func NewBackend(kind Kind, options ...opts.Option[Backend]) (Backend, error) {
	b := Backend{
		Kind:                  kind,
		BufferSize:            defaultBufferSize,
		SlowSubscriberTimeout: defaultSlowSubscriberTimeout,
		SubjectPrefix:         "parley",
	}
	if err := opts.Apply(&b, options); err != nil {
		return Backend{}, err
	}
	if b.Kind == NATS && b.Conn == nil {
		return Backend{}, errors.New("fanout: nats backend requires a connection")
	}
	if b.BufferSize <= 0 {
		b.BufferSize = defaultBufferSize
	}
	if b.SlowSubscriberTimeout <= 0 {
		b.SlowSubscriberTimeout = defaultSlowSubscriberTimeout
	}
	return b, nil
}

// MustBackend is NewBackend that panics on invalid configuration.
func MustBackend(kind Kind, options ...opts.Option[Backend]) Backend {
	b, err := NewBackend(kind, options...)
	if err != nil {
		panic(err)
	}
	return b
}

func (b Backend) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default().With(slogx.LoggerName("fanout"))
}

// Open builds a fan-out for values of type T on the given topic. The zero
// Backend opens a Direct fan-out.
func Open[T any](b Backend, topic string) (Fanout[T], error) {
	switch b.Kind {
	case Direct:
		return newDirect[T](b.logger()), nil
	case Stream:
		if b.BufferSize <= 0 {
			b.BufferSize = defaultBufferSize
		}
		if b.SlowSubscriberTimeout <= 0 {
			b.SlowSubscriberTimeout = defaultSlowSubscriberTimeout
		}
		return newStream[T](b.BufferSize, b.SlowSubscriberTimeout, b.logger()), nil
	case NATS:
		if b.Conn == nil {
			return nil, errors.New("fanout: nats backend requires a connection")
		}
		return newNATS[T](b.Conn, subject(b.SubjectPrefix, topic), b.logger()), nil
	default:
		return nil, fmt.Errorf("fanout: unsupported kind %s", b.Kind)
	}
}

func subject(prefix, topic string) string {
	if prefix == "" {
		return topic
	}
	return prefix + "." + topic
}

// deliver calls the handler and turns a panicking observer into a log record.
func deliver[T any](ctx context.Context, log *slog.Logger, id string, handler Handler[T], value T) {
	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "observer panicked", slog.String("subscription", id), slog.Any("panic", r))
		}
	}()
	handler(ctx, value)
}
