package cache

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts cache outcomes. The prometheus collectors feed the
// /metrics endpoint; the atomic counters feed the status endpoint, which
// reports per-process numbers rather than server-wide Redis keyspace
// stats.
type Metrics struct {
	hits   atomic.Uint64
	misses atomic.Uint64

	promHits   prometheus.Counter
	promMisses prometheus.Counter
	promErrors *prometheus.CounterVec
}

// NewMetrics creates cache metrics and registers them on reg. A nil reg
// leaves the prometheus side unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		promHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "calndr_cache_hits_total",
			Help: "Cache lookups served from the cache.",
		}),
		promMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "calndr_cache_misses_total",
			Help: "Cache lookups that fell through to the database.",
		}),
		promErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calndr_cache_errors_total",
			Help: "Cache backend failures by operation.",
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.promHits, m.promMisses, m.promErrors)
	}
	return m
}

// Hit records a cache hit.
func (m *Metrics) Hit() {
	if m == nil {
		return
	}
	m.hits.Add(1)
	m.promHits.Inc()
}

// Miss records a cache miss, including misses caused by backend failure.
func (m *Metrics) Miss() {
	if m == nil {
		return
	}
	m.misses.Add(1)
	m.promMisses.Inc()
}

// Error records a backend failure for the named operation.
func (m *Metrics) Error(op string) {
	if m == nil {
		return
	}
	m.promErrors.WithLabelValues(op).Inc()
}

// Counts returns the process-local hit/miss totals.
func (m *Metrics) Counts() (hits, misses uint64) {
	if m == nil {
		return 0, 0
	}
	return m.hits.Load(), m.misses.Load()
}

// hitRate computes a percentage from hit/miss totals.
func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}
