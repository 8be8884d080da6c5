package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"originware/guardrail/pkg/cli"
	"originware/guardrail/pkg/rule"
	"originware/guardrail/pkg/rule/parser"
)

var lintFlags struct {
	file   string
	dir    string
	strict bool
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate rule pack files",
	Long: `Validate rule pack files for syntax and rule defects.

The lint command parses pack files and performs comprehensive validation:
  - YAML syntax validation
  - Pack structure validation (rule_sets, type/area pairing)
  - Rule validation (operators, criteria shapes, actions, sequences)
  - Sub-rule validation (operator vocabulary, fail actions)

Duplicate sequence numbers within a set are reported as warnings:
evaluation order between them is file order, which is fragile under
edits.

Examples:
  # Lint single file
  guardrail lint --file rules.yaml

  # Lint directory
  guardrail lint --dir packs/

  # Strict mode (warnings as errors)
  guardrail lint --file rules.yaml --strict

  # JSON output for CI/CD
  guardrail lint --file rules.yaml --format json`,
	RunE: lintPacks,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.file, "file", "f", "", "pack file to validate")
	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "directory of pack files")
	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "treat warnings as errors")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

func lintPacks(cmd *cobra.Command, args []string) error {
	if lintFlags.file == "" && lintFlags.dir == "" {
		return fmt.Errorf("either --file or --dir must be specified")
	}

	var files []string

	if lintFlags.file != "" {
		files = append(files, lintFlags.file)
	}

	if lintFlags.dir != "" {
		for _, pattern := range []string{"*.yaml", "*.yml", "*.json"} {
			matches, err := filepath.Glob(filepath.Join(lintFlags.dir, pattern))
			if err != nil {
				return fmt.Errorf("failed to list pack files: %w", err)
			}
			files = append(files, matches...)
		}
	}

	if len(files) == 0 {
		return fmt.Errorf("no pack files found")
	}

	results := make([]ValidationResult, 0, len(files))

	for _, file := range files {
		results = append(results, validatePackFile(file))
	}

	if lintFlags.format == "json" {
		return outputJSON(results)
	}
	return outputText(results, lintFlags.strict)
}

// ValidationResult represents the validation result for a single pack file.
type ValidationResult struct {
	File     string            `json:"file"`
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []ValidationError `json:"warnings,omitempty"`
}

// ValidationError represents a single validation error or warning.
type ValidationError struct {
	RuleID   int64  `json:"rule_id,omitempty"`
	Sequence int    `json:"sequence,omitempty"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

func validatePackFile(path string) ValidationResult {
	result := ValidationResult{
		File:  path,
		Valid: true,
	}

	pack, err := parser.New().Parse(path)
	if err != nil {
		result.Valid = false

		var packErr *parser.PackError
		var errList *rule.ErrorList
		var single *rule.ValidationError
		switch {
		case errors.As(err, &errList):
			for _, ve := range errList.Errors {
				result.Errors = append(result.Errors, ValidationError{
					RuleID:   ve.RuleID,
					Sequence: ve.Sequence,
					Field:    ve.Field,
					Message:  ve.Reason,
					Severity: "error",
				})
			}
		case errors.As(err, &single):
			result.Errors = append(result.Errors, ValidationError{
				RuleID:   single.RuleID,
				Sequence: single.Sequence,
				Field:    single.Field,
				Message:  single.Reason,
				Severity: "error",
			})
		case errors.As(err, &packErr):
			result.Errors = append(result.Errors, ValidationError{
				Message:  packErr.Error(),
				Severity: "error",
			})
		default:
			result.Errors = append(result.Errors, ValidationError{
				Message:  err.Error(),
				Severity: "error",
			})
		}
		return result
	}

	// Duplicate sequences evaluate in file order, which silently
	// reshuffles under edits.
	for _, set := range pack.Sets {
		for _, seq := range set.DuplicateSequences() {
			result.Warnings = append(result.Warnings, ValidationError{
				Sequence: seq,
				Message: fmt.Sprintf("rule set %s/%s uses sequence %d more than once",
					set.Type, set.Area, seq),
				Severity: "warning",
			})
		}
	}

	return result
}

func outputText(results []ValidationResult, strict bool) error {
	totalErrors := 0
	totalWarnings := 0

	for _, result := range results {
		fmt.Printf("Validating %s...\n", result.File)

		if len(result.Errors) == 0 && len(result.Warnings) == 0 {
			fmt.Println("✓ Syntax valid")
			fmt.Println("✓ All rules valid")
		}

		for _, err := range result.Errors {
			fmt.Printf("✗ Error: %s", err.Message)
			if err.Sequence > 0 {
				fmt.Printf(" (sequence %d)", err.Sequence)
			}
			if err.Field != "" {
				fmt.Printf(" [%s]", err.Field)
			}
			fmt.Println()
			totalErrors++
		}

		for _, warn := range result.Warnings {
			fmt.Printf("⚠  Warning: %s\n", warn.Message)
			totalWarnings++
		}

		fmt.Println()
	}

	fmt.Println("Summary:")
	fmt.Printf("  %d error(s), %d warning(s)\n", totalErrors, totalWarnings)

	if strict && totalWarnings > 0 {
		fmt.Println("  Strict mode enabled: treating warnings as errors")
		return cli.NewCommandError("lint", fmt.Errorf("validation failed"))
	}

	if totalErrors > 0 {
		return cli.NewCommandError("lint", fmt.Errorf("validation failed"))
	}

	return nil
}

func outputJSON(results []ValidationResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}
