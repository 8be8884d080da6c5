package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"originware/guardrail/pkg/rule"
)

// Evaluation outcomes, as recorded in metrics.
const (
	outcomePassed = "passed"
	outcomeFailed = "failed"
	outcomeError  = "error"
)

// Evaluator is the evaluation entry point the transport layer depends on.
type Evaluator interface {
	Evaluate(ctx context.Context, set *rule.RuleSet, datasets Datasets) (*EvaluationReport, error)
}

// Config configures an Engine.
type Config struct {
	// Logger receives per-rule debug traces and engine error reports.
	// Defaults to slog.Default() scoped to the engine component.
	Logger *slog.Logger

	// Metrics receives evaluation counters and latency observations.
	// Optional; nil disables instrumentation.
	Metrics *Metrics
}

// Engine evaluates ordered rule sets against caller-supplied datasets.
//
// The engine holds no per-call state: rule sets and datasets are passed
// explicitly into Evaluate, never retained, so a single Engine value is
// safe for concurrent use across independent requests without locking.
type Engine struct {
	operators map[rule.Operator]predicate
	logger    *slog.Logger
	metrics   *Metrics
}

// New constructs an Engine and verifies the operator dispatch table covers
// the operator vocabulary exactly, both directions. Vocabulary drift is a
// build defect caught here, at startup, never mid-evaluation.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "engine")
	}

	ops := operatorTable()
	for _, name := range rule.Operators() {
		if _, ok := ops[name]; !ok {
			return nil, fmt.Errorf("operator table is missing %q", name)
		}
	}
	if got, want := len(ops), len(rule.Operators()); got != want {
		return nil, fmt.Errorf("operator table has %d entries, vocabulary has %d", got, want)
	}

	return &Engine{operators: ops, logger: logger, metrics: cfg.Metrics}, nil
}

// Evaluate runs every rule of the set, in ascending sequence order, against
// the supplied datasets and returns the full evaluation trail with its
// conclusion.
//
// Every rule is evaluated and recorded even after a failure; the conclusion
// is determined afterwards by a separate walk over the assembled records,
// so the report always carries the complete trail. Neither the rule set nor
// the datasets are mutated.
//
// A rule-configuration defect (unregistered operator, malformed depends)
// aborts the call with an *EngineError and no report. The context is
// accepted so call sites compose with transport deadlines; evaluation
// itself is bounded, in-memory work and runs to completion.
func (e *Engine) Evaluate(ctx context.Context, set *rule.RuleSet, datasets Datasets) (*EvaluationReport, error) {
	if set == nil {
		return nil, internalError("nil rule set")
	}
	start := time.Now()

	ordered := set.Ordered()
	if len(ordered) == 0 {
		e.logger.Warn("evaluating empty rule set",
			"rule_type", set.Type, "area", set.Area)
	}

	records := make([]EvaluationRecord, 0, len(ordered))
	for _, r := range ordered {
		rec, err := e.evaluateRule(r, datasets)
		if err != nil {
			e.abort(set, err, start)
			return nil, err
		}
		records = append(records, rec)
	}

	c := conclude(records)
	if !c.concluded() {
		// The walk above always concludes; reaching this branch means the
		// conclusion state machine itself is broken. Surface it loudly.
		err := internalError("rule walk ended without a conclusion")
		e.abort(set, err, start)
		return nil, err
	}

	report := &EvaluationReport{
		Success:          c.success,
		Evaluations:      records,
		ConclusionBy:     c.by,
		ConclusionNotice: c.notice,
	}

	outcome := outcomeFailed
	if c.success {
		outcome = outcomePassed
	}
	e.metrics.RecordEvaluation(string(set.Type), set.Area, outcome, time.Since(start))
	e.logger.Debug("evaluation concluded",
		"rule_type", set.Type,
		"area", set.Area,
		"rules", len(records),
		"success", report.Success,
		"concluded_by", report.ConclusionBy)
	return report, nil
}

// evaluateRule resolves the rule's target, applies its operator and, when
// the base condition holds, evaluates each sub-rule in order. All sub-rules
// are evaluated even after one fails; the trail always covers the full set.
func (e *Engine) evaluateRule(r *rule.Rule, datasets Datasets) (EvaluationRecord, error) {
	fn, ok := e.operators[r.Operator]
	if !ok {
		return EvaluationRecord{}, unknownOperatorError(r, r.Operator)
	}

	value := datasets.Resolve(r.Target)
	passed := apply(fn, value, effectiveCriteria(r.Criteria, datasets))

	e.logger.Debug("rule evaluated",
		"rule_id", r.ID,
		"sequence", r.Sequence,
		"target", r.Target,
		"operator", r.Operator,
		"passed", passed)

	rec := EvaluationRecord{
		Sequence:    r.Sequence,
		Target:      r.Target,
		Value:       value,
		Operator:    r.Operator,
		Criteria:    r.Criteria.Raw,
		Passed:      passed,
		OnFail:      r.OnFail,
		OnPass:      r.OnPass,
		PassMessage: r.PassMessage,
		FailMessage: r.FailMessage,
		WarnMessage: r.WarnMessage,
	}

	if !passed || len(r.SubRules) == 0 {
		return rec, nil
	}
	rec.SubRules = make([]SubRuleResult, 0, len(r.SubRules))
	for _, sub := range r.SubRules {
		res, err := e.evaluateSubRule(r, sub, datasets)
		if err != nil {
			return EvaluationRecord{}, err
		}
		rec.SubRules = append(rec.SubRules, res)
	}
	return rec, nil
}

// evaluateSubRule checks the depends structure, resolves the depends
// values, and applies the sub-rule's operator. A single resolved path
// yields a scalar operand; several yield the ordered path-keyed collection.
func (e *Engine) evaluateSubRule(parent *rule.Rule, sub *rule.SubRule, datasets Datasets) (SubRuleResult, error) {
	if len(sub.Depends) == 0 {
		return SubRuleResult{}, dependsError(parent, "", "sub-rule depends list is empty")
	}
	for _, p := range sub.Depends {
		if !validPath(p) {
			return SubRuleResult{}, dependsError(parent, p,
				"depends path must have at least two dot-separated segments")
		}
	}
	fn, ok := e.operators[sub.OperatorName]
	if !ok {
		return SubRuleResult{}, unknownOperatorError(parent, sub.OperatorName)
	}

	values := datasets.ResolveAll(sub.Depends)
	var operand any
	if len(values) == 1 {
		operand = values[0].Value
	} else {
		operand = values
	}
	passed := apply(fn, operand, effectiveCriteria(sub.Criteria, datasets))

	e.logger.Debug("sub-rule evaluated",
		"rule_id", parent.ID,
		"sequence", parent.Sequence,
		"operator", sub.OperatorName,
		"depends", sub.Depends,
		"passed", passed)

	return SubRuleResult{
		OperatorName: sub.OperatorName,
		Criteria:     sub.Criteria.Raw,
		Depends:      values,
		Passed:       passed,
		OnFail:       sub.OnFail,
		FailMessage:  sub.FailMessage,
	}, nil
}

// effectiveCriteria materializes a path-shaped date tolerance by resolving
// the path against the call's datasets. When the path resolves to anything
// other than a [min, max] pair the criteria is returned untouched and the
// operator fails the comparison, the same as any other missing data.
func effectiveCriteria(c *rule.Criteria, datasets Datasets) *rule.Criteria {
	if c == nil || c.Kind != rule.CriteriaPath {
		return c
	}
	resolved := datasets.Resolve(c.Path)
	if resolved == nil {
		return c
	}
	parsed, err := rule.ParseCriteria(rule.OpDateTolerance, resolved)
	if err != nil || parsed.Kind != rule.CriteriaTolerance {
		return c
	}
	return parsed
}

// abort records an evaluation that ended in an engine error.
func (e *Engine) abort(set *rule.RuleSet, err error, start time.Time) {
	e.logger.Error("evaluation aborted",
		"error", err,
		"rule_type", set.Type,
		"area", set.Area)
	kind := ErrKindInternal
	if ee, ok := err.(*EngineError); ok && ee.Kind != "" {
		kind = ee.Kind
	}
	e.metrics.RecordEngineError(kind)
	e.metrics.RecordEvaluation(string(set.Type), set.Area, outcomeError, time.Since(start))
}
