// Package metrics exports observation session metrics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/observe"
)

const (
	namespace = "morph"
	subsystem = "observe"
)

// Session outcomes for the sessions_closed_total outcome label.
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeAborted   = "aborted"
)

// Collector is an observe.Hook that records session events.
type Collector struct {
	SessionsOpened prometheus.Counter
	SessionsClosed *prometheus.CounterVec
	OpenSessions   prometheus.Gauge
	Leaves         *prometheus.CounterVec
	DiffDuration   prometheus.Histogram

	registry *prometheus.Registry
}

var _ observe.Hook = (*Collector)(nil)

// NewCollector registers the session metrics with reg. A nil reg gets a
// fresh registry, which Handler then serves.
func NewCollector(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Collector{
		SessionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_opened_total",
			Help:      "Observation sessions opened",
		}),
		// Labels: outcome (changed, unchanged, aborted)
		SessionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_closed_total",
			Help:      "Observation sessions closed by outcome",
		}, []string{"outcome"}),
		OpenSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "open_sessions",
			Help:      "Observation sessions currently open",
		}),
		// Labels: kind (replace, append)
		Leaves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "change_leaves_total",
			Help:      "Replace and Append leaves produced by sessions",
		}, []string{"kind"}),
		DiffDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "diff_duration_seconds",
			Help:      "Time spent diffing a session in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
		}),
		registry: reg,
	}
}

// OnEvent implements observe.Hook.
func (c *Collector) OnEvent(event observe.Event) {
	switch event.Type {
	case observe.EventSessionOpened:
		c.SessionsOpened.Inc()
		c.OpenSessions.Inc()

	case observe.EventSessionClosed:
		c.OpenSessions.Dec()
		c.DiffDuration.Observe(event.Duration.Seconds())
		if event.Change == nil {
			c.SessionsClosed.WithLabelValues(OutcomeUnchanged).Inc()
			return
		}
		c.SessionsClosed.WithLabelValues(OutcomeChanged).Inc()
		for _, leaf := range event.Change.Leaves() {
			c.Leaves.WithLabelValues(leaf.Kind.String()).Inc()
		}

	case observe.EventSessionAborted:
		c.OpenSessions.Dec()
		c.SessionsClosed.WithLabelValues(OutcomeAborted).Inc()
	}
}

// Handler serves the collector's registry in the Prometheus exposition
// format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// kinds lists the leaf kinds so both series exist before the first
// change.
var kinds = []change.Kind{change.Replace, change.Append}

// Init creates zero-valued series for every label value.
func (c *Collector) Init() *Collector {
	for _, k := range kinds {
		c.Leaves.WithLabelValues(k.String())
	}
	for _, o := range []string{OutcomeChanged, OutcomeUnchanged, OutcomeAborted} {
		c.SessionsClosed.WithLabelValues(o)
	}
	return c
}
