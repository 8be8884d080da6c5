package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"originware/guardrail/pkg/audit"
	"originware/guardrail/pkg/cli"
	"originware/guardrail/pkg/config"
)

var auditFlags struct {
	backend     string
	timeRange   string
	requestID   string
	ruleType    string
	area        string
	success     string
	limit       int
	offset      int
	oldestFirst bool
	format      string
	output      string
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the evaluation audit trail",
	Long: `Query and export audit records for compliance review.

The audit command reads the audit store the serve command writes to,
answering who was restricted, by which rule, and when.

Subcommands:
  query   - Query audit records with filters
  report  - Summarize evaluation outcomes over a time range

Examples:
  # Query a business day
  guardrail audit query --time-range "2026-08-01T00:00:00Z/2026-08-02T00:00:00Z"

  # Restrictions only, for one area
  guardrail audit query --area DOC_PREP --success false

  # Export to CSV for a compliance handoff
  guardrail audit query --format csv --output restrictions.csv`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query audit records",
	Long: `Query audit records with various filters.

Time Range Format:
  RFC3339 interval format: "start/end"
  Example: "2026-08-01T00:00:00Z/2026-08-02T00:00:00Z"

Examples:
  # Query a specific time range
  guardrail audit query --time-range "2026-08-01T00:00:00Z/2026-08-02T00:00:00Z"

  # Trace one request
  guardrail audit query --request-id "req-8f3a"

  # Failed STATUS evaluations
  guardrail audit query --type STATUS --success false

  # Export to JSON
  guardrail audit query --format json --output audit.json`,
	RunE: queryAudit,
}

var auditReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize evaluation outcomes",
	Long:  `Summarize evaluation outcomes with per-type and per-area statistics.`,
	RunE:  reportAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd, auditReportCmd)

	// Flags for query command
	auditQueryCmd.Flags().StringVar(&auditFlags.backend, "backend", "", "backend: sqlite, memory (uses config if not specified)")
	auditQueryCmd.Flags().StringVar(&auditFlags.timeRange, "time-range", "", "time range (RFC3339 interval: start/end)")
	auditQueryCmd.Flags().StringVar(&auditFlags.requestID, "request-id", "", "filter by request ID")
	auditQueryCmd.Flags().StringVar(&auditFlags.ruleType, "type", "", "filter by rule type")
	auditQueryCmd.Flags().StringVar(&auditFlags.area, "area", "", "filter by business area")
	auditQueryCmd.Flags().StringVar(&auditFlags.success, "success", "", "filter by outcome: true, false")
	auditQueryCmd.Flags().IntVar(&auditFlags.limit, "limit", 100, "max results")
	auditQueryCmd.Flags().IntVar(&auditFlags.offset, "offset", 0, "pagination offset")
	auditQueryCmd.Flags().BoolVar(&auditFlags.oldestFirst, "oldest-first", false, "order ascending by evaluation time")
	auditQueryCmd.Flags().StringVar(&auditFlags.format, "format", "text", "output format: text, json, csv")
	auditQueryCmd.Flags().StringVarP(&auditFlags.output, "output", "o", "", "output file (default: stdout)")

	// Flags for report command
	auditReportCmd.Flags().StringVar(&auditFlags.backend, "backend", "", "backend: sqlite, memory")
	auditReportCmd.Flags().StringVar(&auditFlags.timeRange, "time-range", "", "time range (RFC3339 interval)")
	auditReportCmd.Flags().StringVarP(&auditFlags.output, "output", "o", "", "output file")
}

// openAuditStore resolves the backend from flag or config and opens it.
func openAuditStore() (audit.Store, *config.Config, error) {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	backendType := auditFlags.backend
	if backendType == "" {
		backendType = cfg.Audit.Backend
	}

	// Audit queries are read paths; keep store logging quiet.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	switch backendType {
	case "sqlite":
		store, err := audit.NewSQLiteStore(&audit.SQLiteConfig{
			Path:        cfg.Audit.SQLite.Path,
			BusyTimeout: cfg.Audit.SQLite.BusyTimeout,
		}, logger)
		if err != nil {
			return nil, nil, cli.NewCommandError("audit", fmt.Errorf("failed to open audit database: %w", err))
		}
		return store, cfg, nil
	case "memory":
		return audit.NewMemoryStore(), cfg, nil
	default:
		return nil, nil, fmt.Errorf("unsupported backend: %s (supported: sqlite, memory)", backendType)
	}
}

// buildAuditQuery translates the query flags into a store query.
func buildAuditQuery() (*audit.Query, error) {
	query := &audit.Query{
		RequestID:   auditFlags.requestID,
		RuleType:    auditFlags.ruleType,
		Area:        auditFlags.area,
		Limit:       auditFlags.limit,
		Offset:      auditFlags.offset,
		OldestFirst: auditFlags.oldestFirst,
	}

	if auditFlags.timeRange != "" {
		parts := strings.Split(auditFlags.timeRange, "/")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid time range format (expected: start/end)")
		}

		startTime, err := time.Parse(time.RFC3339, parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid start time: %w", err)
		}
		query.StartTime = &startTime

		endTime, err := time.Parse(time.RFC3339, parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid end time: %w", err)
		}
		query.EndTime = &endTime
	}

	if auditFlags.success != "" {
		ok, err := strconv.ParseBool(auditFlags.success)
		if err != nil {
			return nil, fmt.Errorf("invalid --success value %q (expected: true, false)", auditFlags.success)
		}
		query.Success = &ok
	}

	return query, nil
}

func queryAudit(cmd *cobra.Command, args []string) error {
	store, cfg, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	query, err := buildAuditQuery()
	if err != nil {
		return err
	}

	ctx := context.Background()
	records, err := store.Query(ctx, query)
	if err != nil {
		return cli.NewCommandError("audit", fmt.Errorf("query failed: %w", err))
	}

	output := os.Stdout
	if auditFlags.output != "" {
		output, err = os.Create(auditFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	}

	switch auditFlags.format {
	case "json":
		return audit.NewJSONExporter(cfg.Audit.Export.JSONPretty).Export(ctx, records, output)
	case "csv":
		return audit.NewCSVExporter(cfg.Audit.Export.CSVIncludeHeader).Export(ctx, records, output)
	default:
		return outputAuditText(output, records, query)
	}
}

func outputAuditText(output *os.File, records []*audit.Record, query *audit.Query) error {
	fmt.Fprintln(output, "Querying audit records...")
	fmt.Fprintln(output)

	if query.StartTime != nil && query.EndTime != nil {
		fmt.Fprintf(output, "Time range: %s to %s\n",
			query.StartTime.Format(time.RFC3339),
			query.EndTime.Format(time.RFC3339))
	}
	fmt.Fprintf(output, "Total records: %d\n", len(records))
	fmt.Fprintln(output)

	if len(records) == 0 {
		fmt.Fprintln(output, "No records found.")
		return nil
	}

	for i, record := range records {
		if i > 0 {
			fmt.Fprintln(output)
		}

		fmt.Fprintf(output, "Record ID: %s\n", record.ID)
		fmt.Fprintf(output, "Evaluated: %s\n", record.EvaluatedAt.Format(time.RFC3339))
		if record.RequestID != "" {
			fmt.Fprintf(output, "Request: %s\n", record.RequestID)
		}
		fmt.Fprintf(output, "Rule Set: %s/%s (%d rules)\n", record.RuleType, record.Area, record.RuleCount)
		if record.ErrorKind != "" {
			fmt.Fprintf(output, "Aborted: %s\n", record.ErrorKind)
			fmt.Fprintf(output, "Error: %s\n", record.EngineError)
		} else {
			outcome := "PASS"
			if !record.Success {
				outcome = "RESTRICTED"
			}
			fmt.Fprintf(output, "Result: %s\n", outcome)
			fmt.Fprintf(output, "Concluded By: %s\n", record.ConclusionBy)
			if record.ConclusionNotice != "" {
				fmt.Fprintf(output, "Notice: %s\n", record.ConclusionNotice)
			}
		}
		fmt.Fprintf(output, "Duration: %s\n", record.Duration)

		// Show limited output for large result sets
		if i >= 9 && len(records) > 10 {
			remaining := len(records) - 10
			fmt.Fprintln(output)
			fmt.Fprintf(output, "... and %d more records\n", remaining)
			fmt.Fprintf(output, "Use --limit and --offset for pagination.\n")
			break
		}
	}

	return nil
}

func reportAudit(cmd *cobra.Command, args []string) error {
	store, _, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	query := &audit.Query{}
	if auditFlags.timeRange != "" {
		parts := strings.Split(auditFlags.timeRange, "/")
		if len(parts) != 2 {
			return fmt.Errorf("invalid time range format (expected: start/end)")
		}

		startTime, err := time.Parse(time.RFC3339, parts[0])
		if err != nil {
			return fmt.Errorf("invalid start time: %w", err)
		}
		query.StartTime = &startTime

		endTime, err := time.Parse(time.RFC3339, parts[1])
		if err != nil {
			return fmt.Errorf("invalid end time: %w", err)
		}
		query.EndTime = &endTime
	}

	ctx := context.Background()
	records, err := store.Query(ctx, query)
	if err != nil {
		return cli.NewCommandError("audit", fmt.Errorf("query failed: %w", err))
	}

	output := os.Stdout
	if auditFlags.output != "" {
		output, err = os.Create(auditFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	}

	return renderAuditReport(output, records, query)
}

func renderAuditReport(output *os.File, records []*audit.Record, query *audit.Query) error {
	fmt.Fprintln(output, "Evaluation Audit Report")
	fmt.Fprintln(output, "=======================")

	if query.StartTime != nil && query.EndTime != nil {
		fmt.Fprintf(output, "Time Range: %s to %s\n",
			query.StartTime.Format("2006-01-02"),
			query.EndTime.Format("2006-01-02"))
	}
	fmt.Fprintf(output, "Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintln(output)

	passed := 0
	restricted := 0
	aborted := 0
	var totalDuration time.Duration
	typeCounts := make(map[string]int)
	areaCounts := make(map[string]int)
	abortKinds := make(map[string]int)
	noticeCounts := make(map[string]int)

	for _, record := range records {
		totalDuration += record.Duration
		typeCounts[record.RuleType]++
		areaCounts[record.Area]++
		switch {
		case record.ErrorKind != "":
			aborted++
			abortKinds[record.ErrorKind]++
		case record.Success:
			passed++
		default:
			restricted++
			noticeCounts[record.ConclusionNotice]++
		}
	}

	fmt.Fprintln(output, "Summary:")
	fmt.Fprintln(output, "--------")
	fmt.Fprintf(output, "Total Evaluations: %d\n", len(records))
	fmt.Fprintf(output, "Passed: %d\n", passed)
	fmt.Fprintf(output, "Restricted: %d\n", restricted)
	fmt.Fprintf(output, "Aborted: %d\n", aborted)
	if len(records) > 0 {
		fmt.Fprintf(output, "Average Duration: %s\n", totalDuration/time.Duration(len(records)))
	}
	fmt.Fprintln(output)

	if len(records) == 0 {
		return nil
	}

	fmt.Fprintln(output, "By Rule Type:")
	for ruleType, count := range typeCounts {
		pct := float64(count) / float64(len(records)) * 100
		fmt.Fprintf(output, "  %s: %d evaluations (%.0f%%)\n", ruleType, count, pct)
	}
	fmt.Fprintln(output)

	fmt.Fprintln(output, "By Area:")
	for area, count := range areaCounts {
		pct := float64(count) / float64(len(records)) * 100
		fmt.Fprintf(output, "  %s: %d evaluations (%.0f%%)\n", area, count, pct)
	}

	if len(noticeCounts) > 0 {
		fmt.Fprintln(output)
		fmt.Fprintln(output, "Restriction Notices:")
		for notice, count := range noticeCounts {
			fmt.Fprintf(output, "  %q: %d\n", notice, count)
		}
	}

	if len(abortKinds) > 0 {
		fmt.Fprintln(output)
		fmt.Fprintln(output, "Abort Kinds:")
		for kind, count := range abortKinds {
			fmt.Fprintf(output, "  %s: %d\n", kind, count)
		}
	}

	return nil
}
