package rule

import (
	"fmt"
	"strings"
)

// ValidationError reports a single defect in a rule definition, discovered
// at construction time before any evaluation can run.
type ValidationError struct {
	// RuleID is the stored rule identifier, 0 for ad-hoc rules.
	RuleID int64
	// Sequence is the rule's sequence number, if one was supplied.
	Sequence int
	// Field names the offending definition field ("operator", "criteria", ...).
	Field string
	// Reason describes the defect.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("invalid rule")
	if e.RuleID != 0 {
		fmt.Fprintf(&sb, " %d", e.RuleID)
	}
	if e.Sequence != 0 {
		fmt.Fprintf(&sb, " (sequence %d)", e.Sequence)
	}
	fmt.Fprintf(&sb, ": %s: %s", e.Field, e.Reason)
	return sb.String()
}

// ErrorList accumulates validation errors across a whole rule set so a
// caller sees every defect at once instead of fixing them one by one.
type ErrorList struct {
	Errors []*ValidationError
}

// Add appends an error to the list.
func (el *ErrorList) Add(err *ValidationError) {
	el.Errors = append(el.Errors, err)
}

// HasErrors returns true if the list contains any errors.
func (el *ErrorList) HasErrors() bool {
	return len(el.Errors) > 0
}

// Count returns the number of errors in the list.
func (el *ErrorList) Count() int {
	return len(el.Errors)
}

// Error implements the error interface, formatting every accumulated error.
func (el *ErrorList) Error() string {
	if !el.HasErrors() {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "rule set rejected, %d invalid definition(s):\n", el.Count())
	for _, err := range el.Errors {
		sb.WriteString("  - ")
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}
	return sb.String()
}

// ToError returns nil when the list is empty, otherwise the list itself.
func (el *ErrorList) ToError() error {
	if !el.HasErrors() {
		return nil
	}
	return el
}
