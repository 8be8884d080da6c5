package audit

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks audit recording activity.
//
// Metrics:
//   - guardrail_audit_records_total: records by outcome (written, error, dropped)
type Metrics struct {
	recordsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers audit metrics with the provided
// registry.
func NewMetrics(namespace string, registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "records_total",
				Help:      "Total number of audit records by outcome",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(m.recordsTotal)

	return m
}

// RecordWrite counts one record outcome. Safe to call on a nil receiver.
func (m *Metrics) RecordWrite(status string) {
	if m == nil {
		return
	}
	m.recordsTotal.WithLabelValues(status).Inc()
}
