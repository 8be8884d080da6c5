package rule

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// AdHocArea labels rule sets assembled from a caller-supplied rule list
// rather than loaded from the repository.
const AdHocArea = "AD_HOC"

// Definition is the raw, wire-shaped form of a rule before validation: a
// storage row, a YAML pack entry, or an ad-hoc rule in a request body.
// Criteria and SubRules are loosely typed because the legacy storage format
// string-encodes them as nested JSON.
type Definition struct {
	ID       int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
	Area     string `json:"area,omitempty" yaml:"area,omitempty"`
	Sequence int    `json:"sequence" yaml:"sequence"`
	Target   string `json:"target" yaml:"target"`
	Operator string `json:"operator" yaml:"operator"`

	// Criteria is the operator's comparison value: a scalar, list, object,
	// or a string-encoded JSON form of one of those.
	Criteria any `json:"criteria,omitempty" yaml:"criteria,omitempty"`

	// SubRules is a list of SubRuleDefinition, a generic decoded list, or a
	// string-encoded JSON array.
	SubRules any `json:"sub_rules,omitempty" yaml:"sub_rules,omitempty"`

	OnFail      string `json:"on_fail" yaml:"on_fail"`
	OnPass      string `json:"on_pass" yaml:"on_pass"`
	PassMessage string `json:"pass_message,omitempty" yaml:"pass_message,omitempty"`
	FailMessage string `json:"fail_message,omitempty" yaml:"fail_message,omitempty"`
	WarnMessage string `json:"warn_message,omitempty" yaml:"warn_message,omitempty"`

	UpdatedBy string    `json:"updated_by,omitempty" yaml:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at,omitempty"`
}

// SubRuleDefinition is the raw form of a nested condition.
type SubRuleDefinition struct {
	OperatorName string   `json:"operator_name" yaml:"operator_name"`
	Criteria     any      `json:"criteria,omitempty" yaml:"criteria,omitempty"`
	Depends      []string `json:"depends" yaml:"depends"`
	OnFail       string   `json:"on_fail" yaml:"on_fail"`
	FailMessage  string   `json:"fail_message,omitempty" yaml:"fail_message,omitempty"`
}

// Rule is one governing condition, immutable after construction.
type Rule struct {
	// ID is the stored identifier; 0 for ad-hoc rules.
	ID int64
	// Type is the rule set type this rule belongs to.
	Type RuleType
	// Area is the workflow scope the rule applies to (e.g. "DOC_PREP").
	Area string
	// Sequence defines evaluation order and is the citation key in reports.
	Sequence int
	// Target is the dotted dataset path the operator is applied to.
	Target string
	// Operator names the predicate from the fixed vocabulary.
	Operator Operator
	// Criteria is the decoded comparison value; Kind is CriteriaNone for
	// operators that take none. Never nil.
	Criteria *Criteria
	// SubRules are nested conditions evaluated only when the base passes.
	SubRules []*SubRule

	// OnFail and OnPass are advisory directives carried into the report.
	OnFail FailAction
	OnPass PassAction

	PassMessage string
	FailMessage string
	WarnMessage string

	// UpdatedBy, UpdatedAt and CreatedAt are audit metadata, carried
	// through but never consulted during evaluation.
	UpdatedBy string
	UpdatedAt time.Time
	CreatedAt time.Time
}

// SubRule is a nested condition evaluated only when its parent rule passes.
// Pass and warn text are inherited from the parent; only the fail side is
// sub-rule specific.
type SubRule struct {
	OperatorName Operator
	Criteria     *Criteria
	// Depends lists the dotted paths whose resolved values the operator
	// consumes. Structure is checked at evaluation time: an empty list or a
	// path with fewer than two segments aborts the call.
	Depends     []string
	OnFail      FailAction
	FailMessage string
}

// New validates a raw definition and constructs an immutable Rule.
// It returns a *ValidationError describing the first defect found.
func New(def Definition) (*Rule, error) {
	fail := func(field, reason string) (*Rule, error) {
		return nil, &ValidationError{RuleID: def.ID, Sequence: def.Sequence, Field: field, Reason: reason}
	}

	t := RuleType(def.Type)
	if !t.Valid() {
		return fail("type", fmt.Sprintf("%q is not a rule type", def.Type))
	}
	if def.Area == "" {
		return fail("area", "must not be empty")
	}
	if def.Sequence < 1 {
		return fail("sequence", fmt.Sprintf("must be >= 1, got %d", def.Sequence))
	}
	if def.Target == "" {
		return fail("target", "must not be empty")
	}
	op := Operator(def.Operator)
	if !op.Valid() {
		return fail("operator", fmt.Sprintf("%q is not in the operator vocabulary", def.Operator))
	}
	onFail := FailAction(def.OnFail)
	if !onFail.Valid() {
		return fail("on_fail", fmt.Sprintf("%q is not one of RESTRICT, WARN, LOG", def.OnFail))
	}
	onPass := PassAction(def.OnPass)
	if !onPass.Valid() {
		return fail("on_pass", fmt.Sprintf("%q is not one of CONTINUE, WARN, LOG", def.OnPass))
	}

	crit, err := ParseCriteria(op, def.Criteria)
	if err != nil {
		return nil, decorate(err, def)
	}

	subDefs, err := normalizeSubRules(def.SubRules)
	if err != nil {
		return nil, decorate(err, def)
	}
	subRules := make([]*SubRule, 0, len(subDefs))
	for i, sd := range subDefs {
		sub, err := newSubRule(i, sd)
		if err != nil {
			return nil, decorate(err, def)
		}
		subRules = append(subRules, sub)
	}
	if len(subRules) == 0 {
		subRules = nil
	}

	return &Rule{
		ID:          def.ID,
		Type:        t,
		Area:        def.Area,
		Sequence:    def.Sequence,
		Target:      def.Target,
		Operator:    op,
		Criteria:    crit,
		SubRules:    subRules,
		OnFail:      onFail,
		OnPass:      onPass,
		PassMessage: def.PassMessage,
		FailMessage: def.FailMessage,
		WarnMessage: def.WarnMessage,
		UpdatedBy:   def.UpdatedBy,
		UpdatedAt:   def.UpdatedAt,
		CreatedAt:   def.CreatedAt,
	}, nil
}

func newSubRule(index int, sd SubRuleDefinition) (*SubRule, error) {
	op := Operator(sd.OperatorName)
	if !op.Valid() {
		return nil, &ValidationError{
			Field:  fmt.Sprintf("sub_rules[%d].operator_name", index),
			Reason: fmt.Sprintf("%q is not in the operator vocabulary", sd.OperatorName),
		}
	}
	onFail := FailAction(sd.OnFail)
	if !onFail.Valid() {
		return nil, &ValidationError{
			Field:  fmt.Sprintf("sub_rules[%d].on_fail", index),
			Reason: fmt.Sprintf("%q is not one of RESTRICT, WARN, LOG", sd.OnFail),
		}
	}
	crit, err := ParseCriteria(op, sd.Criteria)
	if err != nil {
		if ve, ok := err.(*ValidationError); ok {
			ve.Field = fmt.Sprintf("sub_rules[%d].%s", index, ve.Field)
		}
		return nil, err
	}
	return &SubRule{
		OperatorName: op,
		Criteria:     crit,
		Depends:      sd.Depends,
		OnFail:       onFail,
		FailMessage:  sd.FailMessage,
	}, nil
}

// decorate stamps the owning rule's id and sequence onto a nested
// validation error so set-level reports cite the offending rule.
func decorate(err error, def Definition) error {
	if ve, ok := err.(*ValidationError); ok {
		ve.RuleID = def.ID
		ve.Sequence = def.Sequence
		return ve
	}
	return err
}

// normalizeSubRules accepts the shapes sub-rules arrive in: absent, a typed
// list, a generically decoded list, or the legacy string-encoded JSON array.
// Decoding happens exactly once, here.
func normalizeSubRules(raw any) ([]SubRuleDefinition, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []SubRuleDefinition:
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		var defs []SubRuleDefinition
		if err := json.Unmarshal([]byte(v), &defs); err != nil {
			return nil, &ValidationError{Field: "sub_rules", Reason: fmt.Sprintf("string form is not a JSON array: %v", err)}
		}
		return defs, nil
	case []any:
		// Generic decoder output (YAML packs, request bodies): round-trip
		// through JSON to pick up the field tags.
		buf, err := json.Marshal(v)
		if err != nil {
			return nil, &ValidationError{Field: "sub_rules", Reason: fmt.Sprintf("not representable: %v", err)}
		}
		var defs []SubRuleDefinition
		if err := json.Unmarshal(buf, &defs); err != nil {
			return nil, &ValidationError{Field: "sub_rules", Reason: fmt.Sprintf("malformed entry: %v", err)}
		}
		return defs, nil
	}
	return nil, &ValidationError{Field: "sub_rules", Reason: fmt.Sprintf("unsupported shape %T", raw)}
}

// RuleSet is an ordered collection of rules identified by (type, area).
// It is read-only for the duration of an evaluation.
type RuleSet struct {
	Type  RuleType
	Area  string
	Rules []*Rule
}

// NewSet validates every definition and assembles a rule set. Definitions
// may omit type and area, inheriting the set's; a definition that names a
// different type or area is rejected. Errors across all definitions are
// accumulated so the whole set is rejected at once, never partially loaded.
func NewSet(t RuleType, area string, defs []Definition) (*RuleSet, error) {
	if !t.Valid() {
		return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("%q is not a rule type", string(t))}
	}
	if area == "" {
		return nil, &ValidationError{Field: "area", Reason: "must not be empty"}
	}

	var errs ErrorList
	rules := make([]*Rule, 0, len(defs))
	for _, def := range defs {
		if def.Type == "" {
			def.Type = string(t)
		} else if def.Type != string(t) {
			errs.Add(&ValidationError{RuleID: def.ID, Sequence: def.Sequence, Field: "type",
				Reason: fmt.Sprintf("%q does not match set type %q", def.Type, t)})
			continue
		}
		if def.Area == "" {
			def.Area = area
		} else if def.Area != area {
			errs.Add(&ValidationError{RuleID: def.ID, Sequence: def.Sequence, Field: "area",
				Reason: fmt.Sprintf("%q does not match set area %q", def.Area, area)})
			continue
		}
		r, err := New(def)
		if err != nil {
			if ve, ok := err.(*ValidationError); ok {
				errs.Add(ve)
			} else {
				errs.Add(&ValidationError{RuleID: def.ID, Sequence: def.Sequence, Field: "rule", Reason: err.Error()})
			}
			continue
		}
		rules = append(rules, r)
	}
	if err := errs.ToError(); err != nil {
		return nil, err
	}
	return &RuleSet{Type: t, Area: area, Rules: rules}, nil
}

// NewAdHocSet assembles a rule set from a caller-supplied rule list,
// bypassing the repository. Definitions default to the TEST type and the
// AD_HOC area when they leave those fields empty.
func NewAdHocSet(defs []Definition) (*RuleSet, error) {
	normalized := make([]Definition, len(defs))
	for i, def := range defs {
		if def.Type == "" {
			def.Type = string(TypeTest)
		}
		if def.Area == "" {
			def.Area = AdHocArea
		}
		normalized[i] = def
	}

	var errs ErrorList
	rules := make([]*Rule, 0, len(normalized))
	for _, def := range normalized {
		r, err := New(def)
		if err != nil {
			if ve, ok := err.(*ValidationError); ok {
				errs.Add(ve)
			} else {
				errs.Add(&ValidationError{RuleID: def.ID, Sequence: def.Sequence, Field: "rule", Reason: err.Error()})
			}
			continue
		}
		rules = append(rules, r)
	}
	if err := errs.ToError(); err != nil {
		return nil, err
	}

	set := &RuleSet{Type: TypeTest, Area: AdHocArea, Rules: rules}
	if len(rules) > 0 {
		set.Type = rules[0].Type
		set.Area = rules[0].Area
	}
	return set, nil
}

// Len returns the number of rules in the set.
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rules)
}

// Ordered returns the rules sorted by ascending sequence. The sort is
// stable, so rules sharing a sequence keep their insertion order. The
// returned slice is a copy; the set itself is never reordered.
func (s *RuleSet) Ordered() []*Rule {
	if s == nil {
		return nil
	}
	out := make([]*Rule, len(s.Rules))
	copy(out, s.Rules)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Sequence < out[j].Sequence
	})
	return out
}

// DuplicateSequences returns every sequence number shared by two or more
// rules, in ascending order. Duplicates are legal for the model but a
// configuration smell the repository logs when loading a set.
func (s *RuleSet) DuplicateSequences() []int {
	counts := make(map[int]int, len(s.Rules))
	for _, r := range s.Rules {
		counts[r.Sequence]++
	}
	var dups []int
	for seq, n := range counts {
		if n > 1 {
			dups = append(dups, seq)
		}
	}
	sort.Ints(dups)
	return dups
}
