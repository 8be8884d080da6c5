package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"originware/guardrail/pkg/rule"
)

func TestMetricsRecordEvaluation(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics("guardrail", registry)

	m.RecordEvaluation("STATUS", "DOC_PREP", outcomePassed, 50*time.Microsecond)
	m.RecordEvaluation("STATUS", "DOC_PREP", outcomePassed, 75*time.Microsecond)
	m.RecordEvaluation("STATUS", "DOC_PREP", outcomeFailed, 20*time.Microsecond)
	m.RecordEngineError(ErrKindUnknownOperator)

	passed := testutil.ToFloat64(m.evaluationsTotal.WithLabelValues("STATUS", "DOC_PREP", outcomePassed))
	if passed != 2 {
		t.Errorf("evaluations_total{outcome=passed} = %v, want 2", passed)
	}
	failed := testutil.ToFloat64(m.evaluationsTotal.WithLabelValues("STATUS", "DOC_PREP", outcomeFailed))
	if failed != 1 {
		t.Errorf("evaluations_total{outcome=failed} = %v, want 1", failed)
	}
	errs := testutil.ToFloat64(m.errorsTotal.WithLabelValues(ErrKindUnknownOperator))
	if errs != 1 {
		t.Errorf("errors_total{kind=unknown_operator} = %v, want 1", errs)
	}
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics
	m.RecordEvaluation("STATUS", "DOC_PREP", outcomePassed, time.Millisecond)
	m.RecordEngineError(ErrKindInternal)
}

func TestEngineRecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics("guardrail", registry)
	eng, err := New(&Config{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: m,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	set, err := rule.NewSet(rule.TypeStatus, "DOC_PREP", []rule.Definition{{
		Sequence: 1,
		Target:   "app.lender",
		Operator: string(rule.OpExists),
		OnFail:   string(rule.FailRestrict),
		OnPass:   string(rule.PassContinue),
	}})
	if err != nil {
		t.Fatalf("NewSet() error = %v", err)
	}

	if _, err := eng.Evaluate(context.Background(), set, Datasets{"app": {"lender": "Acme"}}); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if _, err := eng.Evaluate(context.Background(), set, Datasets{}); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	passed := testutil.ToFloat64(m.evaluationsTotal.WithLabelValues("STATUS", "DOC_PREP", outcomePassed))
	failed := testutil.ToFloat64(m.evaluationsTotal.WithLabelValues("STATUS", "DOC_PREP", outcomeFailed))
	if passed != 1 || failed != 1 {
		t.Errorf("evaluations_total passed = %v failed = %v, want 1 and 1", passed, failed)
	}

	broken := &rule.RuleSet{Type: rule.TypeStatus, Area: "DOC_PREP", Rules: []*rule.Rule{{
		Sequence: 1,
		Target:   "app.lender",
		Operator: rule.Operator("launders"),
		OnFail:   rule.FailRestrict,
		OnPass:   rule.PassContinue,
	}}}
	if _, err := eng.Evaluate(context.Background(), broken, Datasets{}); err == nil {
		t.Fatal("Evaluate() with unregistered operator returned nil error")
	}

	aborted := testutil.ToFloat64(m.evaluationsTotal.WithLabelValues("STATUS", "DOC_PREP", outcomeError))
	if aborted != 1 {
		t.Errorf("evaluations_total{outcome=error} = %v, want 1", aborted)
	}
	errCount := testutil.ToFloat64(m.errorsTotal.WithLabelValues(ErrKindUnknownOperator))
	if errCount != 1 {
		t.Errorf("errors_total{kind=unknown_operator} = %v, want 1", errCount)
	}
}
