package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"originware/guardrail/pkg/audit"
	"originware/guardrail/pkg/engine"
	"originware/guardrail/pkg/repository"
	"originware/guardrail/pkg/rule"
)

// maxRequestBytes bounds evaluation and rule bodies. Ad-hoc rule lists
// and dataset snapshots fit comfortably under this; anything larger is a
// client defect.
const maxRequestBytes = 1 << 20

// readyTimeout bounds the repository probe behind /readyz.
const readyTimeout = 2 * time.Second

type handlerSet struct {
	evaluator  engine.Evaluator
	repository repository.Repository
	recorder   *audit.Recorder
	logger     *slog.Logger
}

// evaluationRequest is the POST /v1/evaluations body. The rule set comes
// either from the repository (rule_type + area) or from the request
// itself (rules), never both.
type evaluationRequest struct {
	RuleType  string            `json:"rule_type,omitempty"`
	Area      string            `json:"area,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Datasets  engine.Datasets   `json:"datasets"`
	Rules     []rule.Definition `json:"rules,omitempty"`
}

// evaluationResponse flattens the report next to the request metadata.
type evaluationResponse struct {
	RequestID      string `json:"request_id"`
	EvaluationTime string `json:"evaluation_time"`
	*engine.EvaluationReport
}

func (h *handlerSet) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluationRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Datasets == nil {
		respondError(w, http.StatusBadRequest, "datasets are required", nil)
		return
	}

	set, ok := h.selectRuleSet(w, r, &req)
	if !ok {
		return
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = middleware.GetReqID(r.Context())
	}

	start := time.Now()
	report, err := h.evaluator.Evaluate(r.Context(), set, req.Datasets)
	duration := time.Since(start)

	h.record(audit.NewRecord(requestID, set.Type, set.Area, report, err, duration))

	if err != nil {
		var engErr *engine.EngineError
		if errors.As(err, &engErr) {
			respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":   "evaluation aborted",
				"kind":    engErr.Kind,
				"details": engErr.Error(),
			})
			return
		}
		h.logger.Error("evaluation failed", "request_id", requestID, "error", err)
		respondError(w, http.StatusInternalServerError, "evaluation failed", nil)
		return
	}

	respondJSON(w, http.StatusOK, &evaluationResponse{
		RequestID:        requestID,
		EvaluationTime:   duration.String(),
		EvaluationReport: report,
	})
}

// selectRuleSet resolves the request's rule set, writing the error
// response itself when the request cannot be served.
func (h *handlerSet) selectRuleSet(w http.ResponseWriter, r *http.Request, req *evaluationRequest) (*rule.RuleSet, bool) {
	if len(req.Rules) > 0 {
		if req.RuleType != "" || req.Area != "" {
			respondError(w, http.StatusBadRequest, "rules and rule_type/area are mutually exclusive", nil)
			return nil, false
		}
		set, err := rule.NewAdHocSet(req.Rules)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid rules", err)
			return nil, false
		}
		return set, true
	}

	if req.RuleType == "" || req.Area == "" {
		respondError(w, http.StatusBadRequest, "rule_type and area are required when rules are not supplied", nil)
		return nil, false
	}
	ruleType, err := parseRuleType(req.RuleType)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return nil, false
	}

	set, err := h.repository.GetRuleSet(r.Context(), ruleType, req.Area)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "rule set not found", err)
			return nil, false
		}
		h.logger.Error("failed to load rule set",
			"rule_type", req.RuleType, "area", req.Area, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load rule set", nil)
		return nil, false
	}
	return set, true
}

func (h *handlerSet) handleListRules(w http.ResponseWriter, r *http.Request) {
	rawType := r.URL.Query().Get("type")
	area := r.URL.Query().Get("area")
	if rawType == "" || area == "" {
		respondError(w, http.StatusBadRequest, "type and area query parameters are required", nil)
		return
	}
	ruleType, err := parseRuleType(rawType)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	set, err := h.repository.GetRuleSet(r.Context(), ruleType, area)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "rule set not found", err)
			return
		}
		h.logger.Error("failed to load rule set",
			"rule_type", rawType, "area", area, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load rule set", nil)
		return
	}

	views := make([]ruleView, 0, set.Len())
	for _, rl := range set.Ordered() {
		views = append(views, newRuleView(rl))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"rule_type": set.Type,
		"area":      set.Area,
		"count":     len(views),
		"rules":     views,
	})
}

func (h *handlerSet) handleSaveRule(w http.ResponseWriter, r *http.Request) {
	var def rule.Definition
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&def); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := h.repository.SaveRule(r.Context(), def); err != nil {
		var ve *rule.ValidationError
		var el *rule.ErrorList
		switch {
		case errors.As(err, &ve), errors.As(err, &el):
			respondError(w, http.StatusBadRequest, "invalid rule", err)
		case errors.Is(err, repository.ErrReadOnly):
			respondError(w, http.StatusForbidden, "rule source is read-only", nil)
		default:
			h.logger.Error("failed to save rule", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to save rule", nil)
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"status":    "saved",
		"rule_type": def.Type,
		"area":      def.Area,
		"sequence":  def.Sequence,
	})
}

func (h *handlerSet) handleListAreas(w http.ResponseWriter, r *http.Request) {
	ruleType, err := parseRuleType(r.URL.Query().Get("type"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	areas, err := h.repository.ListAreas(r.Context(), ruleType)
	if err != nil {
		h.logger.Error("failed to list areas", "rule_type", ruleType, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list areas", nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"rule_type": ruleType,
		"areas":     areas,
		"count":     len(areas),
	})
}

func (h *handlerSet) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady probes the repository so a broken storage backend takes the
// instance out of rotation instead of failing evaluations.
func (h *handlerSet) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if _, err := h.repository.ListAreas(ctx, rule.TypeStatus); err != nil {
		h.logger.Warn("readiness probe failed", "error", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// record forwards to the audit recorder when one is configured.
func (h *handlerSet) record(rec *audit.Record) {
	if h.recorder == nil {
		return
	}
	h.recorder.Record(rec)
}

func parseRuleType(raw string) (rule.RuleType, error) {
	if raw == "" {
		return "", errors.New("rule type is required")
	}
	t := rule.RuleType(raw)
	if !t.Valid() {
		return "", fmt.Errorf("unknown rule type %q (must be one of: ACTION, ASSIGNMENT, STATUS, TEST)", raw)
	}
	return t, nil
}

// ruleView is the wire shape of a stored rule on the admin read side.
type ruleView struct {
	ID          int64           `json:"id,omitempty"`
	Sequence    int             `json:"sequence"`
	Target      string          `json:"target"`
	Operator    rule.Operator   `json:"operator"`
	Criteria    any             `json:"criteria,omitempty"`
	SubRules    []subRuleView   `json:"sub_rules,omitempty"`
	OnFail      rule.FailAction `json:"on_fail"`
	OnPass      rule.PassAction `json:"on_pass"`
	PassMessage string          `json:"pass_message,omitempty"`
	FailMessage string          `json:"fail_message,omitempty"`
	WarnMessage string          `json:"warn_message,omitempty"`
	UpdatedBy   string          `json:"updated_by,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

type subRuleView struct {
	OperatorName rule.Operator   `json:"operator_name"`
	Criteria     any             `json:"criteria,omitempty"`
	Depends      []string        `json:"depends"`
	OnFail       rule.FailAction `json:"on_fail"`
	FailMessage  string          `json:"fail_message,omitempty"`
}

func newRuleView(r *rule.Rule) ruleView {
	v := ruleView{
		ID:          r.ID,
		Sequence:    r.Sequence,
		Target:      r.Target,
		Operator:    r.Operator,
		Criteria:    r.Criteria.Raw,
		OnFail:      r.OnFail,
		OnPass:      r.OnPass,
		PassMessage: r.PassMessage,
		FailMessage: r.FailMessage,
		WarnMessage: r.WarnMessage,
		UpdatedBy:   r.UpdatedBy,
		UpdatedAt:   r.UpdatedAt,
		CreatedAt:   r.CreatedAt,
	}
	for _, sub := range r.SubRules {
		v.SubRules = append(v.SubRules, subRuleView{
			OperatorName: sub.OperatorName,
			Criteria:     sub.Criteria.Raw,
			Depends:      sub.Depends,
			OnFail:       sub.OnFail,
			FailMessage:  sub.FailMessage,
		})
	}
	return v
}
