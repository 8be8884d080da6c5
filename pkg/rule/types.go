package rule

// RuleType categorizes a rule set by the kind of decision it governs.
type RuleType string

const (
	// TypeAction gates workflow actions (e.g. funding, document release).
	TypeAction RuleType = "ACTION"
	// TypeAssignment gates assignment of an application to a queue or owner.
	TypeAssignment RuleType = "ASSIGNMENT"
	// TypeStatus gates status transitions of an application.
	TypeStatus RuleType = "STATUS"
	// TypeTest marks ad-hoc rules evaluated outside any stored rule set.
	TypeTest RuleType = "TEST"
)

// Valid reports whether t is a member of the rule type enumeration.
func (t RuleType) Valid() bool {
	switch t {
	case TypeAction, TypeAssignment, TypeStatus, TypeTest:
		return true
	}
	return false
}

// FailAction is the advisory severity a caller should apply when a rule
// (or sub-rule) fails. The engine records it verbatim and never enforces it.
type FailAction string

const (
	// FailRestrict advises the caller to block the governed action.
	FailRestrict FailAction = "RESTRICT"
	// FailWarn advises the caller to surface a warning and proceed.
	FailWarn FailAction = "WARN"
	// FailLog advises the caller to record the failure and proceed.
	FailLog FailAction = "LOG"
)

// Valid reports whether a is a member of the on-fail enumeration.
func (a FailAction) Valid() bool {
	switch a {
	case FailRestrict, FailWarn, FailLog:
		return true
	}
	return false
}

// PassAction is the advisory directive a caller should apply when a rule
// passes. Like FailAction it is carried through, never enforced.
type PassAction string

const (
	// PassContinue advises the caller to proceed silently.
	PassContinue PassAction = "CONTINUE"
	// PassWarn advises the caller to surface the rule's warn message.
	PassWarn PassAction = "WARN"
	// PassLog advises the caller to record the pass.
	PassLog PassAction = "LOG"
)

// Valid reports whether a is a member of the on-pass enumeration.
func (a PassAction) Valid() bool {
	switch a {
	case PassContinue, PassWarn, PassLog:
		return true
	}
	return false
}

// Operator names a predicate from the fixed operator vocabulary.
// The engine maps each name to its implementation at startup; the model only
// checks membership.
type Operator string

const (
	OpExists        Operator = "exists"
	OpIsTrue        Operator = "is_true"
	OpIsFalse       Operator = "is_false"
	OpRegex         Operator = "regex"
	OpNumGT         Operator = "num_>"
	OpNumGTE        Operator = "num_>="
	OpNumLT         Operator = "num_<"
	OpNumLTE        Operator = "num_<="
	OpNumEQ         Operator = "num_="
	OpNumNEQ        Operator = "num_!="
	OpStrEQ         Operator = "str_="
	OpStrNEQ        Operator = "str_!="
	OpInSet         Operator = "in_set"
	OpNotInSet      Operator = "not_in_set"
	OpBetween       Operator = "between"
	OpDateTolerance Operator = "date_tolerance"
)

// Operators returns the full operator vocabulary in a stable order.
// The engine uses it to verify its dispatch table is exhaustive at startup.
func Operators() []Operator {
	return []Operator{
		OpExists, OpIsTrue, OpIsFalse, OpRegex,
		OpNumGT, OpNumGTE, OpNumLT, OpNumLTE, OpNumEQ, OpNumNEQ,
		OpStrEQ, OpStrNEQ, OpInSet, OpNotInSet,
		OpBetween, OpDateTolerance,
	}
}

// Valid reports whether o is a member of the operator vocabulary.
func (o Operator) Valid() bool {
	for _, known := range Operators() {
		if o == known {
			return true
		}
	}
	return false
}
