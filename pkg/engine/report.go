package engine

import "originware/guardrail/pkg/rule"

// ConcludedByRuleSet is the sentinel conclusion citation used when every
// rule and sub-rule passed and no single rule concluded the evaluation.
const ConcludedByRuleSet = "RULE_SET"

// NoticeAllRulesPassed is the conclusion notice carried by an all-pass
// report.
const NoticeAllRulesPassed = "No Restriction Imposed All Rules Passed"

// SubRuleResult is the recorded outcome of one nested condition.
type SubRuleResult struct {
	// OperatorName is the sub-rule's operator, echoed.
	OperatorName rule.Operator `json:"operator_name"`
	// Criteria echoes the criteria exactly as configured, including the
	// dotted-path form of a date tolerance.
	Criteria any `json:"criteria"`
	// Depends carries the resolved depends values keyed by path, in the
	// order the paths were listed.
	Depends DependsValues `json:"depends"`
	// Passed is the operator's verdict.
	Passed bool `json:"passed"`
	// OnFail is the sub-rule's advisory severity, echoed.
	OnFail rule.FailAction `json:"on_fail"`
	// FailMessage is the sub-rule's failure text, echoed.
	FailMessage string `json:"fail"`
}

// EvaluationRecord is the per-rule entry in the evaluation trail. Every
// rule in the set produces one record whether it passed or not; the
// conclusion pass afterwards decides which record, if any, concluded the
// evaluation.
type EvaluationRecord struct {
	Sequence int           `json:"sequence"`
	Target   string        `json:"target"`
	Value    any           `json:"value"`
	Operator rule.Operator `json:"operator"`
	Criteria any           `json:"criteria"`
	Passed   bool          `json:"passed"`
	// SubRules holds nested results; present only when the base rule
	// passed and had sub-rules to evaluate.
	SubRules []SubRuleResult `json:"sub_rule,omitempty"`

	OnFail rule.FailAction `json:"on_fail"`
	OnPass rule.PassAction `json:"on_pass"`

	PassMessage string `json:"pass"`
	FailMessage string `json:"fail"`
	WarnMessage string `json:"warn"`
}

// EvaluationReport is the structured verdict for one evaluation call.
type EvaluationReport struct {
	// Success is true only when every rule and sub-rule passed.
	Success bool `json:"success"`
	// Evaluations is the full per-rule trail in evaluation order.
	Evaluations []EvaluationRecord `json:"evaluations"`
	// ConclusionBy cites the concluding rule's sequence in decimal, or
	// ConcludedByRuleSet when nothing failed.
	ConclusionBy string `json:"conclusion_by"`
	// ConclusionNotice is the message attached to the concluding outcome:
	// the failing rule's (or sub-rule's) fail message, or
	// NoticeAllRulesPassed.
	ConclusionNotice string `json:"conclusion_notice"`
}
