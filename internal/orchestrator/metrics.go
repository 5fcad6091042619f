package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics publishes cycle outcomes. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	cycles   *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics builds and registers the cycle metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rto_cycles_total",
			Help: "Optimization cycles by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rto_cycle_duration_seconds",
			Help:    "Wall-clock duration of optimization cycles.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
	reg.MustRegister(m.cycles, m.duration)
	return m
}

func (m *Metrics) observeCycle(elapsed time.Duration, ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.cycles.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}
