package repository

import (
	"context"
	"errors"
	"fmt"

	"originware/guardrail/pkg/rule"
)

// ErrNotFound is returned when no rule set exists for a (type, area) key.
var ErrNotFound = errors.New("rule set not found")

// ErrReadOnly is returned by SaveRule on sources that cannot accept
// writes (file packs, git checkouts).
var ErrReadOnly = errors.New("rule source is read-only")

// Key identifies a rule set.
type Key struct {
	Type rule.RuleType
	Area string
}

func (k Key) String() string {
	return string(k.Type) + "/" + k.Area
}

// Repository is the rule storage contract the evaluation service depends
// on. GetRuleSet is the hot path; SaveRule and ListAreas back the
// administration surface.
type Repository interface {
	// GetRuleSet returns the validated rule set for (ruleType, area), or
	// an error wrapping ErrNotFound when none exists.
	GetRuleSet(ctx context.Context, ruleType rule.RuleType, area string) (*rule.RuleSet, error)

	// SaveRule validates and persists one rule definition. Read-only
	// sources return an error wrapping ErrReadOnly.
	SaveRule(ctx context.Context, def rule.Definition) error

	// ListAreas returns the distinct areas that have rules of the given
	// type, sorted ascending.
	ListAreas(ctx context.Context, ruleType rule.RuleType) ([]string, error)
}

// notFound builds the standard not-found error for a key.
func notFound(ruleType rule.RuleType, area string) error {
	return fmt.Errorf("%s/%s: %w", ruleType, area, ErrNotFound)
}
