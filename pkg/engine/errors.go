package engine

import (
	"fmt"
	"strings"

	"originware/guardrail/pkg/rule"
)

// Engine error kinds, used for classification in logs and metrics.
const (
	ErrKindUnknownOperator  = "unknown_operator"
	ErrKindMalformedDepends = "malformed_depends"
	ErrKindInternal         = "internal"
)

// EngineError reports a rule-configuration defect discovered during
// evaluation: an operator name the dispatch table does not know, a
// structurally malformed depends list, or a broken engine invariant. It
// aborts the whole call; no partial report accompanies it. A business
// failure (an operator evaluating false) is never an EngineError.
type EngineError struct {
	// Kind classifies the defect (ErrKindUnknownOperator, ...).
	Kind string
	// RuleID and Sequence cite the offending rule; zero for set-level
	// defects.
	RuleID   int64
	Sequence int
	// Target is the rule's target path, when one is involved.
	Target string
	// Operator is the offending operator name, when one is involved.
	Operator rule.Operator
	// Path is the offending depends path, when one is involved.
	Path string
	// Reason describes the defect.
	Reason string
}

// Error implements the error interface with enough detail to find the
// broken rule in storage.
func (e *EngineError) Error() string {
	var sb strings.Builder
	sb.WriteString("engine error: ")
	sb.WriteString(e.Reason)

	var detail []string
	if e.RuleID != 0 {
		detail = append(detail, fmt.Sprintf("rule %d", e.RuleID))
	}
	if e.Sequence != 0 {
		detail = append(detail, fmt.Sprintf("sequence %d", e.Sequence))
	}
	if e.Target != "" {
		detail = append(detail, fmt.Sprintf("target %q", e.Target))
	}
	if e.Operator != "" {
		detail = append(detail, fmt.Sprintf("operator %q", e.Operator))
	}
	if e.Path != "" {
		detail = append(detail, fmt.Sprintf("path %q", e.Path))
	}
	if len(detail) > 0 {
		sb.WriteString(" (")
		sb.WriteString(strings.Join(detail, ", "))
		sb.WriteString(")")
	}
	return sb.String()
}

func unknownOperatorError(r *rule.Rule, op rule.Operator) *EngineError {
	return &EngineError{
		Kind:     ErrKindUnknownOperator,
		RuleID:   r.ID,
		Sequence: r.Sequence,
		Target:   r.Target,
		Operator: op,
		Reason:   "operator is not registered",
	}
}

func dependsError(r *rule.Rule, path, reason string) *EngineError {
	return &EngineError{
		Kind:     ErrKindMalformedDepends,
		RuleID:   r.ID,
		Sequence: r.Sequence,
		Target:   r.Target,
		Path:     path,
		Reason:   reason,
	}
}

func internalError(reason string) *EngineError {
	return &EngineError{Kind: ErrKindInternal, Reason: reason}
}
