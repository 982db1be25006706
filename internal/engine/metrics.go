package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/formdeps/internal/ir"
)

// Metrics are the engine's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	Passes        prometheus.Counter
	Mutations     *prometheus.CounterVec
	Diagnostics   *prometheus.CounterVec
	Levels        prometheus.Histogram
	PassDuration  prometheus.Histogram
	QueueDepth    prometheus.Gauge
	DroppedEvents prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// Panics if registration fails, like prometheus.MustRegister.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Passes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formdeps_passes_total",
			Help: "Total number of top-level evaluation passes",
		}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formdeps_mutations_total",
			Help: "Mutations proposed to the registry, by kind",
		}, []string{"kind"}),
		Diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formdeps_diagnostics_total",
			Help: "Diagnostics reported by evaluation passes, by code",
		}, []string{"code"}),
		Levels: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "formdeps_propagation_levels",
			Help:    "Propagation levels reached per pass",
			Buckets: prometheus.LinearBuckets(0, 1, 10),
		}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "formdeps_pass_duration_seconds",
			Help:    "Wall time of one pass including registry writes",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "formdeps_queue_depth",
			Help: "Triggers waiting for the evaluation loop",
		}),
		DroppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formdeps_event_reentries_dropped_total",
			Help: "Event re-entries dropped by the hop limit",
		}),
	}
	reg.MustRegister(m.Passes, m.Mutations, m.Diagnostics, m.Levels, m.PassDuration, m.QueueDepth, m.DroppedEvents)
	return m
}

func (m *Metrics) observePass(res ir.Result, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Passes.Inc()
	for _, mut := range res.Mutations {
		m.Mutations.WithLabelValues(string(mut.Kind)).Inc()
	}
	for _, d := range res.Diagnostics {
		m.Diagnostics.WithLabelValues(string(d.Code)).Inc()
	}
	m.Levels.Observe(float64(res.Levels))
	m.PassDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) droppedEvent() {
	if m == nil {
		return
	}
	m.DroppedEvents.Inc()
}
