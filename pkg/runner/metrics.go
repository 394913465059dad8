package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/l7mp/dverify/pkg/mtl"
)

const metricsNamespace = "dverify"

// Metrics holds the per-monitor Prometheus collectors. Every metric carries a "monitor" label.
type Metrics struct {
	steps      *prometheus.CounterVec
	violations *prometheus.CounterVec
	stepTime   *prometheus.HistogramVec
	highWater  *prometheus.GaugeVec
	capacity   *prometheus.GaugeVec
	traceTime  *prometheus.GaugeVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "monitor",
			Name:      "steps_total",
			Help:      "Total monitor steps evaluated",
		}, []string{"monitor"}),
		violations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "monitor",
			Name:      "violations_total",
			Help:      "Total steps where the formula did not hold",
		}, []string{"monitor"}),
		stepTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "monitor",
			Name:      "step_duration_seconds",
			Help:      "Wall clock time of a monitor step",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 10),
		}, []string{"monitor"}),
		highWater: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "arena",
			Name:      "high_water_transitions",
			Help:      "Largest number of transitions written to an arena buffer in one step",
		}, []string{"monitor"}),
		capacity: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "arena",
			Name:      "capacity_transitions",
			Help:      "Current capacity of an arena buffer",
		}, []string{"monitor"}),
		traceTime: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "monitor",
			Name:      "trace_time",
			Help:      "Trace timestamp of the last evaluated step",
		}, []string{"monitor"}),
	}
}

func (m *Metrics) observe(name string, v Verdict, seconds float64, arena mtl.ArenaStats) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(name).Inc()
	if !v.Satisfied {
		m.violations.WithLabelValues(name).Inc()
	}
	m.stepTime.WithLabelValues(name).Observe(seconds)
	m.highWater.WithLabelValues(name).Set(float64(arena.HighWater))
	m.capacity.WithLabelValues(name).Set(float64(arena.Cap))
	m.traceTime.WithLabelValues(name).Set(float64(v.Time))
}
