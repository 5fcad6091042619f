package artifacts

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterMetrics exposes the cache counters on reg. Values are read
// from the cache at scrape time.
func RegisterMetrics(reg prometheus.Registerer, c *Cache) {
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "rto_artifact_cache_hits_total",
			Help: "Artifact cache hits since process start.",
		}, func() float64 { return float64(c.hits.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "rto_artifact_cache_misses_total",
			Help: "Artifact cache misses since process start.",
		}, func() float64 { return float64(c.misses.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "rto_artifact_cache_evictions_total",
			Help: "Artifact cache evictions since process start.",
		}, func() float64 { return float64(c.evictions.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "rto_artifact_cache_resident_bytes",
			Help: "Raw bytes held by resident cache entries.",
		}, func() float64 { return float64(c.Stats().BytesResident) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "rto_artifact_cache_entries",
			Help: "Number of resident cache entries.",
		}, func() float64 { return float64(c.Stats().EntryCount) }),
	)
}
