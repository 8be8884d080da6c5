package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"originware/guardrail/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "guardrail",
	Short: "Guardrail - rule evaluation service for loan origination",
	Long: `Guardrail evaluates configurable rule sets against loan-file datasets
and answers with a restrict/continue verdict plus a full evaluation trail.

It runs as an HTTP service or as a one-shot CLI, providing:
  - Ordered rule sets per rule type and business area
  - Sixteen comparison operators over dotted dataset paths
  - Conditional sub-rule chains with independent fail actions
  - Rule sources: memory, SQL database, pack files, git
  - An audit trail of every evaluation with export and retention`,
	Version: Version,
}

// Execute runs the root command. Verdict-carrying errors exit with
// their own code; everything else exits 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.CompletionOptions.DisableDefaultCmd = false
}
