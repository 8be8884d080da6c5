package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks evaluation activity.
//
// Metrics:
//   - guardrail_engine_evaluations_total: evaluations by rule type, area and outcome
//   - guardrail_engine_evaluation_duration_seconds: evaluation latency
//   - guardrail_engine_errors_total: engine errors by kind
type Metrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	errorsTotal        *prometheus.CounterVec
}

// NewMetrics creates and registers engine metrics with the provided
// registry.
func NewMetrics(namespace string, registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "evaluations_total",
				Help:      "Total number of rule set evaluations",
			},
			[]string{"rule_type", "area", "outcome"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of rule set evaluation in seconds",
				// Evaluations are in-memory and should be fast (< 10ms)
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
			[]string{"rule_type", "area"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "errors_total",
				Help:      "Total number of evaluations aborted by an engine error",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.evaluationsTotal,
		m.evaluationDuration,
		m.errorsTotal,
	)

	return m
}

// RecordEvaluation records one completed (or aborted) evaluation. Safe to
// call on a nil receiver, which disables instrumentation.
func (m *Metrics) RecordEvaluation(ruleType, area, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.evaluationsTotal.WithLabelValues(ruleType, area, outcome).Inc()
	m.evaluationDuration.WithLabelValues(ruleType, area).Observe(duration.Seconds())
}

// RecordEngineError records an evaluation aborted by a configuration
// defect. Safe to call on a nil receiver.
func (m *Metrics) RecordEngineError(kind string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(kind).Inc()
}
