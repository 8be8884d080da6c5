package repository

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks repository activity.
//
// Metrics:
//   - guardrail_repository_cache_hits_total: rule set cache hits
//   - guardrail_repository_cache_misses_total: rule set cache misses
//   - guardrail_repository_reloads_total: pack source reloads by status
type Metrics struct {
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	reloadsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers repository metrics with the provided
// registry.
func NewMetrics(namespace string, registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "cache_hits_total",
			Help:      "Total number of rule set cache hits",
		}),

		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "cache_misses_total",
			Help:      "Total number of rule set cache misses",
		}),

		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "repository",
				Name:      "reloads_total",
				Help:      "Total number of rule pack reloads",
			},
			[]string{"source", "status"},
		),
	}

	registry.MustRegister(
		m.cacheHits,
		m.cacheMisses,
		m.reloadsTotal,
	)

	return m
}

// RecordCacheHit counts a cache hit. Safe to call on a nil receiver.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// RecordCacheMiss counts a cache miss. Safe to call on a nil receiver.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// RecordReload counts a pack source reload. Safe to call on a nil
// receiver.
func (m *Metrics) RecordReload(source, status string) {
	if m == nil {
		return
	}
	m.reloadsTotal.WithLabelValues(source, status).Inc()
}
