// Package rule defines the guardrail rule model: immutable Rule and SubRule
// values, the fixed operator vocabulary, and the criteria shapes operators
// compare against.
//
// # Overview
//
// Rules arrive from storage or from API callers as loosely typed definitions
// (JSON rows, YAML pack entries, request bodies). This package is the single
// place where those raw definitions become validated, immutable values:
//
//	def := rule.Definition{...}
//	r, err := rule.New(def)
//
// Construction fails with a *ValidationError when an enumerated field (type,
// operator, on_fail, on_pass) is absent or not a member of its enumeration,
// when target is empty, or when sequence < 1. A whole rule set is built with
// NewSet, which accumulates every definition's errors into an *ErrorList and
// rejects the set wholesale when any definition is invalid; a partially
// loaded rule set is never produced.
//
// # Criteria
//
// Each operator expects a particular criteria shape: a number for the
// numeric comparisons, a pattern for regex, a list for set membership, a
// {from, to} range for between, a [min, max] day pair (or a dotted dataset
// path standing in for one) for date_tolerance, and nothing at all for
// exists/is_true/is_false. The shape is decided once, at construction, from
// the operator name and carried as a tagged Criteria value so evaluation
// never inspects raw JSON again. Criteria that arrive as string-encoded JSON
// (the legacy storage format) are decoded here, exactly once.
//
// # Immutability
//
// Rule, SubRule and Criteria are treated as read-only after construction.
// Nothing in this module writes to them, which is what makes a loaded rule
// set safe to evaluate concurrently.
package rule
