package retention

import (
	"context"
	"strings"
	"testing"
	"time"

	"originware/guardrail/pkg/audit"
)

func newTestScheduler(t *testing.T, schedule string) *Scheduler {
	t.Helper()
	config := &Config{RetentionDays: 90, Schedule: schedule}
	pruner := NewPruner(audit.NewMemoryStore(), config, discardLogger())
	return pruner.scheduler
}

func TestScheduler_Start(t *testing.T) {
	s := newTestScheduler(t, "0 3 * * *")

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	if !s.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
}

func TestScheduler_EmptyScheduleIsNoOp(t *testing.T) {
	s := newTestScheduler(t, "")

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.IsRunning() {
		t.Error("IsRunning() = true with no schedule configured")
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := newTestScheduler(t, "not a cron expression")

	err := s.Start(context.Background())
	if err == nil {
		t.Fatal("Start accepted a malformed cron expression")
	}
	if !strings.Contains(err.Error(), "invalid cron schedule") {
		t.Errorf("error = %v, want invalid cron schedule", err)
	}
	if s.IsRunning() {
		t.Error("IsRunning() = true after failed Start")
	}
}

func TestScheduler_NextRun(t *testing.T) {
	s := newTestScheduler(t, "0 3 * * *")

	if next := s.NextRun(); next != nil {
		t.Errorf("NextRun() = %v before Start, want nil", next)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	next := s.NextRun()
	if next == nil {
		t.Fatal("NextRun() = nil after Start")
	}
	if !next.After(time.Now()) {
		t.Errorf("NextRun() = %v, want a future time", next)
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	s := newTestScheduler(t, "0 3 * * *")

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	cancel()

	deadline := time.After(2 * time.Second)
	for s.IsRunning() {
		select {
		case <-deadline:
			t.Fatal("scheduler still running after context cancel")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestScheduler_MultipleStartStop(t *testing.T) {
	s := newTestScheduler(t, "0 3 * * *")

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
	if s.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}

	// A second Stop must be harmless.
	s.Stop()
}
