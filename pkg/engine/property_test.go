package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"originware/guardrail/pkg/rule"
)

// propCriteria returns a parseable criteria value for any operator, for
// property runs that only care that application is total.
func propCriteria(op rule.Operator) any {
	switch op {
	case rule.OpRegex:
		return "^a.*z$"
	case rule.OpStrEQ, rule.OpStrNEQ:
		return "x"
	case rule.OpInSet, rule.OpNotInSet:
		return []any{"a", 1, true}
	case rule.OpBetween:
		return map[string]any{"from": 0, "to": 10}
	case rule.OpDateTolerance:
		return []any{0, 10}
	case rule.OpNumGT, rule.OpNumGTE, rule.OpNumLT, rule.OpNumLTE, rule.OpNumEQ, rule.OpNumNEQ:
		return 5
	default:
		return nil
	}
}

func TestConclusionProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("conclusion cites the first failed rule in walk order", prop.ForAll(
		func(passes []bool) bool {
			records := make([]EvaluationRecord, len(passes))
			for i, p := range passes {
				records[i] = EvaluationRecord{
					Sequence:    i + 1,
					Passed:      p,
					FailMessage: fmt.Sprintf("rule %d failed", i+1),
				}
			}
			c := conclude(records)
			for i, p := range passes {
				if !p {
					return !c.success && c.by == strconv.Itoa(i+1)
				}
			}
			return c.success && c.by == ConcludedByRuleSet
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestEvaluationProperties(t *testing.T) {
	eng, err := New(&Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("trail is complete and success means every rule passed", prop.ForAll(
		func(present []bool) bool {
			defs := make([]rule.Definition, len(present))
			data := Dataset{}
			allPass := true
			for i, p := range present {
				field := fmt.Sprintf("field_%d", i)
				defs[i] = rule.Definition{
					Sequence:    i + 1,
					Target:      "app." + field,
					Operator:    string(rule.OpExists),
					OnFail:      string(rule.FailRestrict),
					OnPass:      string(rule.PassContinue),
					FailMessage: "absent",
				}
				if p {
					data[field] = "x"
				} else {
					allPass = false
				}
			}
			set, err := rule.NewSet(rule.TypeTest, "PROPERTY_RUN", defs)
			if err != nil {
				return false
			}
			report, err := eng.Evaluate(context.Background(), set, Datasets{"app": data})
			if err != nil {
				return false
			}
			return len(report.Evaluations) == len(present) && report.Success == allPass
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("operators are total over scalar operands", prop.ForAll(
		func(kind int, num float64, text string, flag bool) bool {
			var operand any
			switch kind {
			case 0:
				operand = nil
			case 1:
				operand = num
			case 2:
				operand = text
			default:
				operand = flag
			}
			for _, op := range rule.Operators() {
				crit, err := rule.ParseCriteria(op, propCriteria(op))
				if err != nil {
					return false
				}
				apply(operatorTable()[op], operand, crit)
			}
			return true
		},
		gen.IntRange(0, 3),
		gen.Float64(),
		gen.AlphaString(),
		gen.Bool(),
	))

	properties.Property("between accepts exactly the closed interval", prop.ForAll(
		func(lo, span, probe int) bool {
			hi := lo + span
			crit, err := rule.ParseCriteria(rule.OpBetween, map[string]any{"from": lo, "to": hi})
			if err != nil {
				return false
			}
			got := apply(operatorTable()[rule.OpBetween], float64(probe), crit)
			want := probe >= lo && probe <= hi
			return got == want
		},
		gen.IntRange(-1000, 1000),
		gen.IntRange(0, 500),
		gen.IntRange(-1500, 2000),
	))

	properties.TestingRun(t)
}

func TestResolutionProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("resolution finds exactly the stored leaf and nothing past it", prop.ForAll(
		func(depth int, extra int, hit bool) bool {
			cur := any("leaf")
			for i := depth; i >= 1; i-- {
				cur = map[string]any{fmt.Sprintf("n%d", i): cur}
			}
			ds := Datasets{"root": cur.(map[string]any)}

			segs := []string{"root"}
			for i := 1; i <= depth; i++ {
				segs = append(segs, fmt.Sprintf("n%d", i))
			}
			if hit {
				return ds.Resolve(strings.Join(segs, ".")) == "leaf"
			}
			for i := 0; i <= extra; i++ {
				segs = append(segs, "x")
			}
			return ds.Resolve(strings.Join(segs, ".")) == nil
		},
		gen.IntRange(1, 8),
		gen.IntRange(0, 5),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
