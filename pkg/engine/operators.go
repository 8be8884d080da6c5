package engine

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"originware/guardrail/pkg/rule"
)

// predicate applies one operator to a resolved operand and the rule's
// decoded criteria. Predicates are pure and never called with a nil
// operand; apply screens that out first so every operator treats missing
// data as a plain failure.
type predicate func(operand any, crit *rule.Criteria) bool

// operatorTable builds the dispatch map for the full operator vocabulary.
// New verifies at startup that the table covers rule.Operators exactly, so
// an unregistered name can only mean a stored rule referencing an operator
// this build does not know.
func operatorTable() map[rule.Operator]predicate {
	return map[rule.Operator]predicate{
		rule.OpExists:  func(any, *rule.Criteria) bool { return true },
		rule.OpIsTrue:  opIsBool(true),
		rule.OpIsFalse: opIsBool(false),
		rule.OpRegex:   opRegex,

		rule.OpNumGT:  opNumeric(func(v, c float64) bool { return v > c }),
		rule.OpNumGTE: opNumeric(func(v, c float64) bool { return v >= c }),
		rule.OpNumLT:  opNumeric(func(v, c float64) bool { return v < c }),
		rule.OpNumLTE: opNumeric(func(v, c float64) bool { return v <= c }),
		rule.OpNumEQ:  opNumeric(func(v, c float64) bool { return v == c }),
		rule.OpNumNEQ: opNumeric(func(v, c float64) bool { return v != c }),

		rule.OpStrEQ:  opString(func(v, c string) bool { return v == c }),
		rule.OpStrNEQ: opString(func(v, c string) bool { return v != c }),

		rule.OpInSet:    opInSet,
		rule.OpNotInSet: opNotInSet,

		rule.OpBetween:       opBetween,
		rule.OpDateTolerance: opDateTolerance,
	}
}

// apply runs a predicate with the uniform nil rule: a missing operand fails
// every operator, including the negated forms. Missing data never passes a
// guardrail.
func apply(fn predicate, operand any, crit *rule.Criteria) bool {
	if operand == nil {
		return false
	}
	return fn(operand, crit)
}

func opIsBool(want bool) predicate {
	return func(operand any, _ *rule.Criteria) bool {
		b, ok := operand.(bool)
		return ok && b == want
	}
}

func opRegex(operand any, crit *rule.Criteria) bool {
	if crit == nil || crit.Kind != rule.CriteriaPattern || crit.Pattern == nil {
		return false
	}
	s, ok := coerceText(operand)
	if !ok {
		return false
	}
	return crit.Pattern.MatchString(s)
}

func opNumeric(cmp func(v, c float64) bool) predicate {
	return func(operand any, crit *rule.Criteria) bool {
		if crit == nil || crit.Kind != rule.CriteriaNumber {
			return false
		}
		v, ok := coerceNumber(operand)
		if !ok {
			return false
		}
		return cmp(v, crit.Number)
	}
}

func opString(cmp func(v, c string) bool) predicate {
	return func(operand any, crit *rule.Criteria) bool {
		if crit == nil || crit.Kind != rule.CriteriaText {
			return false
		}
		v, ok := coerceText(operand)
		if !ok {
			return false
		}
		return cmp(v, crit.Text)
	}
}

func opInSet(operand any, crit *rule.Criteria) bool {
	if crit == nil || crit.Kind != rule.CriteriaList {
		return false
	}
	return memberOf(operand, crit.List)
}

func opNotInSet(operand any, crit *rule.Criteria) bool {
	if crit == nil || crit.Kind != rule.CriteriaList {
		return false
	}
	return !memberOf(operand, crit.List)
}

// opBetween is inclusive on both ends: from <= value <= to.
func opBetween(operand any, crit *rule.Criteria) bool {
	if crit == nil || crit.Kind != rule.CriteriaRange {
		return false
	}
	v, ok := coerceNumber(operand)
	if !ok {
		return false
	}
	return v >= crit.From && v <= crit.To
}

// opDateTolerance takes two resolved dates and passes when the absolute
// difference in whole days lies within [min, max], both ends inclusive.
// Fractional days are truncated, so 30 days and 6 hours apart still counts
// as 30 days.
func opDateTolerance(operand any, crit *rule.Criteria) bool {
	if crit == nil || crit.Kind != rule.CriteriaTolerance {
		return false
	}
	vals := operandValues(operand)
	if len(vals) != 2 {
		return false
	}
	a, okA := coerceDate(vals[0])
	b, okB := coerceDate(vals[1])
	if !okA || !okB {
		return false
	}
	days := math.Floor(math.Abs(a.Sub(b).Hours() / 24))
	return days >= crit.Min && days <= crit.Max
}

// operandValues flattens the collection shapes an operand can arrive in
// when it came from a depends list.
func operandValues(operand any) []any {
	switch v := operand.(type) {
	case DependsValues:
		return v.Values()
	case []any:
		return v
	}
	return nil
}

// memberOf tests list membership with the loose equality the rule data
// needs: values compare numerically when both sides are numbers, otherwise
// by their text form.
func memberOf(operand any, list []any) bool {
	for _, item := range list {
		if looseEqual(operand, item) {
			return true
		}
	}
	return false
}

func looseEqual(a, b any) bool {
	if na, ok := coerceNumber(a); ok {
		if nb, ok := coerceNumber(b); ok {
			return na == nb
		}
	}
	sa, okA := coerceText(a)
	sb, okB := coerceText(b)
	return okA && okB && sa == sb
}

// coerceNumber converts the numeric shapes JSON decoding and loan data
// produce, including numeric strings. Booleans are not numbers.
func coerceNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// coerceText renders a scalar operand as text. Composite values have no
// text form, so string comparison against them simply fails.
func coerceText(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case bool:
		return strconv.FormatBool(s), true
	case json.Number:
		return s.String(), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32), true
	case int:
		return strconv.Itoa(s), true
	case int32:
		return strconv.FormatInt(int64(s), 10), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case uint64:
		return strconv.FormatUint(s, 10), true
	}
	return "", false
}

// dateLayouts are the ISO-8601 shapes dates arrive in: full timestamps,
// date-only, and the space-separated form some upstream exports use.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
}

func coerceDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, true
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, d); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
