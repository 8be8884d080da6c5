package server

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"originware/guardrail/pkg/engine"
	"originware/guardrail/pkg/repository"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	eng, err := engine.New(&engine.Config{Logger: discardLogger()})
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	srv, err := New(testServerConfig(), Options{
		Evaluator:  eng,
		Repository: repository.NewMemory(),
		Logger:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func TestNewRequiresEvaluator(t *testing.T) {
	_, err := New(testServerConfig(), Options{Repository: repository.NewMemory()})
	if err == nil {
		t.Fatal("New() should reject a missing evaluator")
	}
}

func TestNewRequiresRepository(t *testing.T) {
	eng, err := engine.New(nil)
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	_, err = New(testServerConfig(), Options{Evaluator: eng})
	if err == nil {
		t.Fatal("New() should reject a missing repository")
	}
}

func TestServerStartAndShutdown(t *testing.T) {
	srv := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	// Give the listener a moment to bind before cancelling.
	deadline := time.Now().Add(2 * time.Second)
	for !srv.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("server did not report running")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Start() after cancel = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}

	if srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
}

func TestServerExplicitShutdown(t *testing.T) {
	srv := newTestServer(t)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(context.Background())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !srv.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("server did not report running")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Start() after Shutdown = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after Shutdown")
	}
}

func TestServerRejectsDoubleStart(t *testing.T) {
	srv := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = srv.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !srv.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("server did not report running")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := srv.Start(ctx); err == nil {
		t.Error("second Start() should fail while the server is running")
	}
}

func TestHandlerServesWithoutStart(t *testing.T) {
	srv := newTestServer(t)

	// Handler() exposes the routed mux for tests and embedding without
	// binding a listener.
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics("guardrail", registry)
	eng, err := engine.New(nil)
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	srv, err := New(testServerConfig(), Options{
		Evaluator:  eng,
		Repository: repository.NewMemory(),
		Logger:     discardLogger(),
		Metrics:    metrics,
		Registry:   registry,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Generate one observation, then scrape.
	if rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want %d", rec.Code, http.StatusOK)
	}
	if body := rec.Body.String(); !strings.Contains(body, "guardrail_http_requests_total") {
		t.Errorf("scrape output missing guardrail_http_requests_total:\n%s", body)
	}
}
