package parley

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/casualjim/parley/internal/fanout"
	"github.com/casualjim/parley/metrics"
	"github.com/fogfish/opts"
	"github.com/nats-io/nats.go"
)

// FanoutKind selects how request and response observations reach observers.
type FanoutKind = fanout.Kind

const (
	// DirectFanout calls observers synchronously on the goroutine that raised
	// the observation.
	DirectFanout = fanout.Direct
	// StreamFanout gives each observer its own buffered channel and goroutine.
	StreamFanout = fanout.Stream
	// NATSFanout publishes observations to NATS subjects.
	NATSFanout = fanout.NATS
)

// ParseFanoutKind maps "direct", "stream" or "nats" onto a FanoutKind.
func ParseFanoutKind(s string) (FanoutKind, error) {
	return fanout.ParseKind(s)
}

// Options configures a Broker or Transaction.
type Options struct {
	name            string
	logger          *slog.Logger
	metrics         *metrics.Metrics
	shutdown        context.Context
	kind            fanout.Kind
	backend         []opts.Option[fanout.Backend]
	defaultRequest  any
	defaultStrategy any
}

var (
	// WithName names the broker in logs, metrics and NATS subjects.
	WithName = opts.ForName[Options, string]("name")
	// WithLogger sets the logger; the default is slog.Default().
	WithLogger = opts.ForName[Options, *slog.Logger]("logger")
	// WithMetrics reports submissions, outcomes and strategy latency.
	WithMetrics = opts.ForName[Options, *metrics.Metrics]("metrics")
	// WithFanout selects the observation backend. NATSFanout also needs WithNATS.
	WithFanout = opts.ForName[Options, FanoutKind]("kind")
)

// WithShutdownSignal links the broker to a host-wide shutdown signal. When ctx
// is done every outstanding awaited submission resolves as cancelled.
func WithShutdownSignal(ctx context.Context) opts.Option[Options] {
	return opts.Type[Options](func(o *Options) error {
		if ctx == nil {
			return fmt.Errorf("parley: shutdown signal is nil")
		}
		o.shutdown = ctx
		return nil
	})
}

// WithStreamBuffer tunes StreamFanout: the per-observer buffer and how long a
// full observer is waited on before it is dropped.
func WithStreamBuffer(size int, slowObserverTimeout time.Duration) opts.Option[Options] {
	return opts.Type[Options](func(o *Options) error {
		o.backend = append(o.backend,
			fanout.WithBufferSize(size),
			fanout.WithSlowSubscriberTimeout(slowObserverTimeout),
		)
		return nil
	})
}

// WithNATS mirrors observations on NATS under subjectPrefix and selects
// NATSFanout. Requests themselves stay in process.
func WithNATS(conn *nats.Conn, subjectPrefix string) opts.Option[Options] {
	return opts.Type[Options](func(o *Options) error {
		o.kind = fanout.NATS
		o.backend = append(o.backend, fanout.WithConn(conn))
		if subjectPrefix != "" {
			o.backend = append(o.backend, fanout.WithSubjectPrefix(subjectPrefix))
		}
		return nil
	})
}

// WithDefaultRequest sets the payload used by Request and RequestAsync.
func WithDefaultRequest[Req any](value Req) opts.Option[Options] {
	return opts.Type[Options](func(o *Options) error {
		o.defaultRequest = value
		return nil
	})
}

// WithDefaultStrategy sets the strategy registered by Initialize.
func WithDefaultStrategy[Req, Res any](s Strategy[Req, Res]) opts.Option[Options] {
	return opts.Type[Options](func(o *Options) error {
		if s.IsZero() {
			return ErrNilStrategy
		}
		o.defaultStrategy = s
		return nil
	})
}
