//go:build integration

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"originware/guardrail/pkg/audit"
	"originware/guardrail/pkg/config"
	"originware/guardrail/pkg/engine"
	"originware/guardrail/pkg/repository"
	"originware/guardrail/pkg/server"
)

const testPack = `name: doc-prep-gates
version: "1.0.0"
rule_sets:
  - type: STATUS
    area: DOC_PREP
    rules:
      - sequence: 1
        target: loan.amount
        operator: num_<=
        criteria: 500000
        on_fail: RESTRICT
        on_pass: CONTINUE
        fail_message: loan amount exceeds conforming limit
  - type: ACTION
    area: FUNDING
    rules:
      - sequence: 1
        target: wire.approved
        operator: is_true
        on_fail: RESTRICT
        on_pass: CONTINUE
        fail_message: wire transfer not approved
`

type serviceHarness struct {
	handler    http.Handler
	packDir    string
	fileStore  *repository.FileStore
	auditStore audit.Store
	recorder   *audit.Recorder
}

// newServiceHarness wires the full evaluation path the way the serve
// command does: file-backed rule source, engine, async audit recorder,
// HTTP server. The handler is exercised directly; no socket is bound.
func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()

	packDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(packDir, "gates.yaml"), []byte(testPack), 0644); err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fileStore, err := repository.NewFileStore(packDir, logger, nil)
	if err != nil {
		t.Fatalf("failed to load rule packs: %v", err)
	}

	eng, err := engine.New(&engine.Config{Logger: logger})
	if err != nil {
		t.Fatal(err)
	}

	auditStore := audit.NewMemoryStore()
	recorder := audit.NewRecorder(auditStore, audit.DefaultRecorderConfig(), logger, nil)
	t.Cleanup(func() { recorder.Close() })

	registry := prometheus.NewRegistry()
	srv, err := server.New(config.ServerConfig{
		ListenAddress:  "127.0.0.1:0",
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		RequestTimeout: 5 * time.Second,
	}, server.Options{
		Evaluator:  eng,
		Repository: fileStore,
		Recorder:   recorder,
		Logger:     logger,
		Metrics:    server.NewMetrics("guardrail", registry),
		Registry:   registry,
	})
	if err != nil {
		t.Fatal(err)
	}

	return &serviceHarness{
		handler:    srv.Handler(),
		packDir:    packDir,
		fileStore:  fileStore,
		auditStore: auditStore,
		recorder:   recorder,
	}
}

func (h *serviceHarness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return body
}

func TestServiceEvaluationFlow(t *testing.T) {
	h := newServiceHarness(t)

	// Conforming loan passes
	rec := h.do(t, http.MethodPost, "/v1/evaluations", map[string]any{
		"rule_type":  "STATUS",
		"area":       "DOC_PREP",
		"request_id": "it-pass-1",
		"datasets": map[string]any{
			"loan": map[string]any{"amount": 245000},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	if body["conclusion_by"] != engine.ConcludedByRuleSet {
		t.Errorf("conclusion_by = %v, want %s", body["conclusion_by"], engine.ConcludedByRuleSet)
	}

	// Jumbo loan is restricted
	rec = h.do(t, http.MethodPost, "/v1/evaluations", map[string]any{
		"rule_type":  "STATUS",
		"area":       "DOC_PREP",
		"request_id": "it-restrict-1",
		"datasets": map[string]any{
			"loan": map[string]any{"amount": 912500},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	body = decodeJSON(t, rec)
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
	if body["conclusion_notice"] != "loan amount exceeds conforming limit" {
		t.Errorf("conclusion_notice = %v, want the rule's fail message", body["conclusion_notice"])
	}

	// Both evaluations leave audit evidence
	if err := h.recorder.Close(); err != nil {
		t.Fatal(err)
	}
	records, err := h.auditStore.Query(context.Background(), &audit.Query{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("audit records = %d, want 2", len(records))
	}
	byRequest := make(map[string]*audit.Record, len(records))
	for _, r := range records {
		byRequest[r.RequestID] = r
	}
	if rec, ok := byRequest["it-pass-1"]; !ok || !rec.Success {
		t.Error("expected a successful audit record for it-pass-1")
	}
	if rec, ok := byRequest["it-restrict-1"]; !ok || rec.Success {
		t.Error("expected a restricted audit record for it-restrict-1")
	}
}

func TestServiceAdHocEvaluation(t *testing.T) {
	h := newServiceHarness(t)

	rec := h.do(t, http.MethodPost, "/v1/evaluations", map[string]any{
		"datasets": map[string]any{
			"applicant": map[string]any{"creditScore": 712},
		},
		"rules": []map[string]any{
			{
				"sequence": 1,
				"target":   "applicant.creditScore",
				"operator": "num_>=",
				"criteria": 680,
				"on_fail":  "RESTRICT",
				"on_pass":  "CONTINUE",
			},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	if body := decodeJSON(t, rec); body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
}

func TestServicePackReload(t *testing.T) {
	h := newServiceHarness(t)

	evaluate := func() bool {
		rec := h.do(t, http.MethodPost, "/v1/evaluations", map[string]any{
			"rule_type": "STATUS",
			"area":      "DOC_PREP",
			"datasets": map[string]any{
				"loan": map[string]any{"amount": 600000},
			},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
		}
		return decodeJSON(t, rec)["success"] == true
	}

	if evaluate() {
		t.Fatal("600000 should be restricted under the 500000 limit")
	}

	// Raise the limit on disk and reload
	raised := strings.Replace(testPack, "criteria: 500000", "criteria: 750000", 1)
	if err := os.WriteFile(filepath.Join(h.packDir, "gates.yaml"), []byte(raised), 0644); err != nil {
		t.Fatal(err)
	}
	if err := h.fileStore.Reload(); err != nil {
		t.Fatal(err)
	}

	if !evaluate() {
		t.Error("600000 should pass under the raised 750000 limit")
	}
}

func TestServiceRuleAdministration(t *testing.T) {
	h := newServiceHarness(t)

	// Listing works against the file source
	rec := h.do(t, http.MethodGet, "/v1/rules?type=STATUS&area=DOC_PREP", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	if body := decodeJSON(t, rec); body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}

	// Areas are discoverable per type
	rec = h.do(t, http.MethodGet, "/v1/areas?type=ACTION", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "FUNDING") {
		t.Errorf("expected FUNDING in areas, got %s", rec.Body.String())
	}

	// File packs are read-only through the API
	rec = h.do(t, http.MethodPost, "/v1/rules", map[string]any{
		"type":     "STATUS",
		"area":     "DOC_PREP",
		"sequence": 2,
		"target":   "loan.purpose",
		"operator": "exists",
		"on_fail":  "RESTRICT",
		"on_pass":  "CONTINUE",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for a read-only source\n%s", rec.Code, rec.Body.String())
	}
}

func TestServiceProbesAndMetrics(t *testing.T) {
	h := newServiceHarness(t)

	if rec := h.do(t, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d, want 200", rec.Code)
	}
	if rec := h.do(t, http.MethodGet, "/readyz", nil); rec.Code != http.StatusOK {
		t.Errorf("readyz = %d, want 200", rec.Code)
	}

	// The scrape endpoint reports the requests made above
	rec := h.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "guardrail_http_requests_total") {
		t.Error("expected guardrail_http_requests_total in scrape output")
	}
}
