package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"originware/guardrail/pkg/cli"
	"originware/guardrail/pkg/engine"
	"originware/guardrail/pkg/rule"
	"originware/guardrail/pkg/rule/parser"
)

var evaluateFlags struct {
	packFile     string
	ruleType     string
	area         string
	datasetsFile string
	format       string
	output       string
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate datasets against a rule pack",
	Long: `Evaluate a dataset bundle against one rule set from a pack file.

The datasets file is a JSON object mapping dataset names to their
fields, the same shape the HTTP API accepts:

  {
    "loan": {"amount": 245000, "purpose": "PURCHASE"},
    "applicant": {"creditScore": 712}
  }

When the pack holds a single rule set, --type and --area are optional.

Exit codes:
  0  every rule passed
  1  a rule imposed a restriction
  2  the evaluation aborted on a rule configuration defect

Examples:
  # Evaluate against the only set in a pack
  guardrail evaluate --pack rules.yaml --datasets loan.json

  # Pick a set out of a multi-set pack
  guardrail evaluate --pack rules.yaml --type STATUS --area DOC_PREP --datasets loan.json

  # Machine-readable report for pipelines
  guardrail evaluate --pack rules.yaml --datasets loan.json --format json`,
	RunE:         runEvaluate,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVarP(&evaluateFlags.packFile, "pack", "p", "", "rule pack file")
	evaluateCmd.Flags().StringVarP(&evaluateFlags.ruleType, "type", "t", "", "rule type (ACTION, ASSIGNMENT, STATUS, TEST)")
	evaluateCmd.Flags().StringVarP(&evaluateFlags.area, "area", "a", "", "business area")
	evaluateCmd.Flags().StringVarP(&evaluateFlags.datasetsFile, "datasets", "d", "", "datasets JSON file")
	evaluateCmd.Flags().StringVar(&evaluateFlags.format, "format", "text", "output format: text, json")
	evaluateCmd.Flags().StringVarP(&evaluateFlags.output, "output", "o", "", "output file (default: stdout)")

	if err := evaluateCmd.MarkFlagRequired("pack"); err != nil {
		panic(fmt.Sprintf("failed to mark pack flag as required: %v", err))
	}
	if err := evaluateCmd.MarkFlagRequired("datasets"); err != nil {
		panic(fmt.Sprintf("failed to mark datasets flag as required: %v", err))
	}
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	pack, err := parser.New().Parse(evaluateFlags.packFile)
	if err != nil {
		return cli.NewExitError(2, fmt.Errorf("failed to load rule pack: %w", err))
	}

	set, err := selectPackSet(pack, evaluateFlags.ruleType, evaluateFlags.area)
	if err != nil {
		return cli.NewExitError(2, err)
	}

	datasets, err := loadDatasets(evaluateFlags.datasetsFile)
	if err != nil {
		return cli.NewExitError(2, err)
	}

	// Suppress engine traces; the report is the output.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	eng, err := engine.New(&engine.Config{Logger: logger})
	if err != nil {
		return cli.NewExitError(2, err)
	}

	report, err := eng.Evaluate(context.Background(), set, datasets)
	if err != nil {
		return cli.NewExitError(2, fmt.Errorf("evaluation aborted: %w", err))
	}

	out := os.Stdout
	if evaluateFlags.output != "" {
		f, err := os.Create(evaluateFlags.output)
		if err != nil {
			return cli.NewExitError(2, fmt.Errorf("failed to create output file: %w", err))
		}
		defer f.Close()
		out = f
	}

	switch evaluateFlags.format {
	case "json":
		if err := cli.NewFormatter(cli.FormatJSON).FormatTo(out, report); err != nil {
			return cli.NewExitError(2, err)
		}
	default:
		renderReportText(out, set, report)
	}

	if !report.Success {
		return cli.NewExitError(1, errors.New("restriction imposed"))
	}
	return nil
}

// selectPackSet picks one rule set out of a pack. An explicit type and
// area always win; a single-set pack needs neither.
func selectPackSet(pack *parser.Pack, ruleType, area string) (*rule.RuleSet, error) {
	if ruleType == "" && area == "" {
		if len(pack.Sets) == 1 {
			return pack.Sets[0], nil
		}
		return nil, fmt.Errorf("pack %s holds %d rule sets; pick one with --type and --area (%s)",
			pack.Name, len(pack.Sets), packSetNames(pack))
	}
	if ruleType == "" || area == "" {
		return nil, errors.New("--type and --area must be supplied together")
	}

	t := rule.RuleType(ruleType)
	if !t.Valid() {
		return nil, fmt.Errorf("unknown rule type %q (must be one of: ACTION, ASSIGNMENT, STATUS, TEST)", ruleType)
	}
	for _, set := range pack.Sets {
		if set.Type == t && set.Area == area {
			return set, nil
		}
	}
	return nil, fmt.Errorf("pack %s has no rule set %s/%s (%s)", pack.Name, ruleType, area, packSetNames(pack))
}

func packSetNames(pack *parser.Pack) string {
	names := make([]string, 0, len(pack.Sets))
	for _, set := range pack.Sets {
		names = append(names, fmt.Sprintf("%s/%s", set.Type, set.Area))
	}
	return "available: " + strings.Join(names, ", ")
}

// loadDatasets reads a datasets JSON file into the engine's input shape.
func loadDatasets(path string) (engine.Datasets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read datasets file: %w", err)
	}
	var datasets engine.Datasets
	if err := json.Unmarshal(data, &datasets); err != nil {
		return nil, fmt.Errorf("failed to parse datasets file %s: %w", path, err)
	}
	if len(datasets) == 0 {
		return nil, fmt.Errorf("datasets file %s holds no datasets", path)
	}
	return datasets, nil
}

func renderReportText(w io.Writer, set *rule.RuleSet, report *engine.EvaluationReport) {
	fmt.Fprintf(w, "Evaluating %s/%s (%d rules)...\n", set.Type, set.Area, set.Len())
	fmt.Fprintln(w)

	for _, rec := range report.Evaluations {
		mark := "✓"
		if !rec.Passed {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %d %s %s", mark, rec.Sequence, rec.Target, rec.Operator)
		if rec.Criteria != nil {
			fmt.Fprintf(w, " %v", rec.Criteria)
		}
		if !rec.Passed {
			fmt.Fprintf(w, " (%s)", rec.OnFail)
		}
		fmt.Fprintln(w)

		for _, sub := range rec.SubRules {
			subMark := "✓"
			if !sub.Passed {
				subMark = "✗"
			}
			fmt.Fprintf(w, "  %s sub-rule %s", subMark, sub.OperatorName)
			if !sub.Passed {
				fmt.Fprintf(w, " (%s)", sub.OnFail)
			}
			fmt.Fprintln(w)
		}
	}

	fmt.Fprintln(w)
	if report.Success {
		fmt.Fprintln(w, "Result: PASS")
	} else {
		fmt.Fprintln(w, "Result: RESTRICTED")
	}
	fmt.Fprintf(w, "Concluded by: %s\n", report.ConclusionBy)
	fmt.Fprintf(w, "Notice: %s\n", report.ConclusionNotice)
}
