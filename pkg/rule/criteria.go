package rule

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CriteriaKind identifies which variant of the criteria union a rule carries.
// The kind is a function of the operator name, decided at construction.
type CriteriaKind string

const (
	// CriteriaNone is carried by operators that take no criteria
	// (exists, is_true, is_false).
	CriteriaNone CriteriaKind = "none"
	// CriteriaNumber is a single numeric bound (the num_* family).
	CriteriaNumber CriteriaKind = "number"
	// CriteriaText is a single string (str_= and str_!=).
	CriteriaText CriteriaKind = "text"
	// CriteriaPattern is a compiled regular expression (regex).
	CriteriaPattern CriteriaKind = "pattern"
	// CriteriaList is a membership list (in_set, not_in_set).
	CriteriaList CriteriaKind = "list"
	// CriteriaRange is an inclusive {from, to} range (between).
	CriteriaRange CriteriaKind = "range"
	// CriteriaTolerance is a [min, max] day pair (date_tolerance).
	CriteriaTolerance CriteriaKind = "tolerance"
	// CriteriaPath is a dotted dataset path that resolves to a [min, max]
	// pair at evaluation time (date_tolerance only).
	CriteriaPath CriteriaKind = "path"
)

// Criteria is the comparison value a rule's operator is evaluated against,
// decoded once at construction into the variant the operator expects.
// Only the fields belonging to Kind are meaningful; Raw always preserves the
// value as supplied so reports can echo it verbatim.
type Criteria struct {
	Kind CriteriaKind

	Number   float64
	Text     string
	Pattern  *regexp.Regexp
	List     []any
	From, To float64
	Min, Max float64
	Path     string

	Raw any
}

// ParseCriteria decodes a raw criteria value into the variant op expects.
// String-encoded JSON (the legacy storage format for lists, ranges and
// tolerance pairs) is decoded here; evaluation never re-parses criteria.
func ParseCriteria(op Operator, raw any) (*Criteria, error) {
	switch op {
	case OpExists, OpIsTrue, OpIsFalse:
		// Criteria is meaningless for these operators; preserve whatever
		// was supplied so the report echoes it, but never interpret it.
		return &Criteria{Kind: CriteriaNone, Raw: raw}, nil

	case OpRegex:
		s, ok := raw.(string)
		if !ok || s == "" {
			return nil, criteriaErr(op, "requires a non-empty pattern string")
		}
		pat, err := regexp.Compile(s)
		if err != nil {
			return nil, criteriaErr(op, fmt.Sprintf("invalid pattern %q: %v", s, err))
		}
		return &Criteria{Kind: CriteriaPattern, Pattern: pat, Text: s, Raw: raw}, nil

	case OpNumGT, OpNumGTE, OpNumLT, OpNumLTE, OpNumEQ, OpNumNEQ:
		n, ok := criteriaNumber(raw)
		if !ok {
			return nil, criteriaErr(op, fmt.Sprintf("requires a numeric value, got %T", raw))
		}
		return &Criteria{Kind: CriteriaNumber, Number: n, Raw: raw}, nil

	case OpStrEQ, OpStrNEQ:
		s, ok := criteriaText(raw)
		if !ok {
			return nil, criteriaErr(op, fmt.Sprintf("requires a scalar value, got %T", raw))
		}
		return &Criteria{Kind: CriteriaText, Text: s, Raw: raw}, nil

	case OpInSet, OpNotInSet:
		list, ok := criteriaList(raw)
		if !ok {
			return nil, criteriaErr(op, fmt.Sprintf("requires a list, got %T", raw))
		}
		return &Criteria{Kind: CriteriaList, List: list, Raw: raw}, nil

	case OpBetween:
		from, to, ok := criteriaRange(raw)
		if !ok {
			return nil, criteriaErr(op, `requires an object with numeric "from" and "to"`)
		}
		return &Criteria{Kind: CriteriaRange, From: from, To: to, Raw: raw}, nil

	case OpDateTolerance:
		return parseTolerance(raw)
	}
	return nil, criteriaErr(op, "unknown operator")
}

// parseTolerance handles the two shapes date_tolerance accepts: a literal
// [min, max] pair, or a dotted dataset path that will resolve to one.
func parseTolerance(raw any) (*Criteria, error) {
	switch v := raw.(type) {
	case string:
		if decoded, ok := decodeJSONString(v); ok {
			c, err := parseTolerance(decoded)
			if err != nil {
				return nil, err
			}
			c.Raw = raw
			return c, nil
		}
		// Not JSON: treat the string as a dataset path. A path must name at
		// least a dataset and a field.
		if !wellFormedPath(v) {
			return nil, criteriaErr(OpDateTolerance,
				fmt.Sprintf("criteria path %q must have at least two dot-separated segments", v))
		}
		return &Criteria{Kind: CriteriaPath, Path: v, Raw: raw}, nil
	case []any:
		if len(v) != 2 {
			return nil, criteriaErr(OpDateTolerance,
				fmt.Sprintf("requires a [min, max] pair, got %d element(s)", len(v)))
		}
		min, okMin := criteriaNumber(v[0])
		max, okMax := criteriaNumber(v[1])
		if !okMin || !okMax {
			return nil, criteriaErr(OpDateTolerance, "requires numeric [min, max] bounds")
		}
		return &Criteria{Kind: CriteriaTolerance, Min: min, Max: max, Raw: raw}, nil
	}
	return nil, criteriaErr(OpDateTolerance,
		fmt.Sprintf("requires a [min, max] pair or a dataset path, got %T", raw))
}

func criteriaErr(op Operator, reason string) *ValidationError {
	return &ValidationError{Field: "criteria", Reason: fmt.Sprintf("operator %s %s", op, reason)}
}

// criteriaNumber coerces the numeric shapes JSON and YAML decoding produce.
func criteriaNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
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

// criteriaText coerces a scalar criteria to its text form. Composite values
// are rejected so a list never silently becomes "[a b]".
func criteriaText(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case bool:
		return strconv.FormatBool(s), true
	case json.Number:
		return s.String(), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	}
	return "", false
}

func criteriaList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case string:
		decoded, ok := decodeJSONString(list)
		if !ok {
			return nil, false
		}
		inner, ok := decoded.([]any)
		return inner, ok
	}
	return nil, false
}

func criteriaRange(v any) (from, to float64, ok bool) {
	var m map[string]any
	switch r := v.(type) {
	case map[string]any:
		m = r
	case string:
		decoded, decOK := decodeJSONString(r)
		if !decOK {
			return 0, 0, false
		}
		m, ok = decoded.(map[string]any)
		if !ok {
			return 0, 0, false
		}
	default:
		return 0, 0, false
	}
	from, okFrom := criteriaNumber(m["from"])
	to, okTo := criteriaNumber(m["to"])
	if !okFrom || !okTo {
		return 0, 0, false
	}
	return from, to, true
}

// decodeJSONString attempts to decode a string-encoded JSON value. It
// reports false for strings that are not JSON at all, which lets
// date_tolerance fall back to interpreting the string as a dataset path.
func decodeJSONString(s string) (any, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, false
	}
	switch trimmed[0] {
	case '[', '{', '"':
		var out any
		if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
			return nil, false
		}
		return out, true
	}
	return nil, false
}

// wellFormedPath reports whether p has at least two non-empty dot-separated
// segments (dataset name plus at least one field).
func wellFormedPath(p string) bool {
	segs := strings.Split(p, ".")
	if len(segs) < 2 {
		return false
	}
	for _, s := range segs {
		if s == "" {
			return false
		}
	}
	return true
}
