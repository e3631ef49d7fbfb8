// Package metrics provides Prometheus instrumentation for brokers.
//
// A single *Metrics value can be shared by many brokers; every series is
// labelled with the broker name. All methods are safe on a nil receiver so a
// broker without metrics does not need a separate code path.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StrategyBuckets covers answering latencies from sub-millisecond synchronous
// lookups up to slow remote calls.
var StrategyBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}

// Submission modes.
const (
	ModeCallback = "callback"
	ModeAwait    = "await"
)

// Outcomes of one pending request.
const (
	OutcomeFulfilled = "fulfilled"
	OutcomeRejected  = "rejected"
	OutcomeCancelled = "cancelled"
	OutcomeDropped   = "dropped"
)

// Binding events.
const (
	EventRegister   = "register"
	EventUnregister = "unregister"
)

type Metrics struct {
	submitted *prometheus.CounterVec
	outcomes  *prometheus.CounterVec
	pending   *prometheus.GaugeVec
	latency   *prometheus.HistogramVec
	bindings  *prometheus.CounterVec
}

// New creates the broker collectors under the given namespace and registers
// them with reg. A nil reg leaves the collectors unregistered.
func New(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		submitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_submitted_total",
				Help:      "Requests submitted to a broker",
			},
			[]string{"broker", "mode"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_completed_total",
				Help:      "Requests completed by outcome",
			},
			[]string{"broker", "outcome"},
		),
		pending: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_pending",
				Help:      "Requests waiting for a strategy",
			},
			[]string{"broker"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "strategy_duration_seconds",
				Help:      "Strategy invocation duration",
				Buckets:   StrategyBuckets,
			},
			[]string{"broker", "strategy"},
		),
		bindings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "strategy_bindings_total",
				Help:      "Strategy register and unregister events",
			},
			[]string{"broker", "event"},
		),
	}

	if reg == nil {
		return m, nil
	}
	var err error
	for _, c := range []prometheus.Collector{m.submitted, m.outcomes, m.pending, m.latency, m.bindings} {
		err = errors.Join(err, reg.Register(c))
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// MustNew is New that panics when registration fails.
func MustNew(reg prometheus.Registerer, namespace string) *Metrics {
	m, err := New(reg, namespace)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Metrics) Submitted(broker, mode string) {
	if m == nil {
		return
	}
	m.submitted.WithLabelValues(broker, mode).Inc()
	m.pending.WithLabelValues(broker).Inc()
}

// Dequeued marks one request as no longer waiting in the queue.
func (m *Metrics) Dequeued(broker string) {
	if m == nil {
		return
	}
	m.pending.WithLabelValues(broker).Dec()
}

func (m *Metrics) Completed(broker, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(broker, outcome).Inc()
}

func (m *Metrics) ObserveStrategy(broker, strategy string, d time.Duration) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(broker, strategy).Observe(d.Seconds())
}

func (m *Metrics) Binding(broker, event string) {
	if m == nil {
		return
	}
	m.bindings.WithLabelValues(broker, event).Inc()
}
