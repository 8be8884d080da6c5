package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ExportError wraps a failure while exporting records.
type ExportError struct {
	Format  string
	Records int
	Cause   error
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [format=%s, records=%d]: %v", e.Format, e.Records, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ExportError) Unwrap() error {
	return e.Cause
}

// CSVExporter renders audit records as CSV, one row per record.
type CSVExporter struct {
	// IncludeHeader writes a column-name header row first.
	IncludeHeader bool
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Export implements Exporter.
func (e *CSVExporter) Export(ctx context.Context, records []*Record, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(csvHeader()); err != nil {
			return &ExportError{Format: "csv", Records: len(records), Cause: err}
		}
	}

	for _, record := range records {
		if err := writer.Write(recordToRow(record)); err != nil {
			return &ExportError{Format: "csv", Records: len(records), Cause: err}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return &ExportError{Format: "csv", Records: len(records), Cause: err}
	}
	return nil
}

func csvHeader() []string {
	return []string{
		"id", "request_id", "rule_type", "area", "rule_count",
		"success", "conclusion_by", "conclusion_notice",
		"error_kind", "engine_error",
		"duration_ms", "evaluated_at",
	}
}

func recordToRow(record *Record) []string {
	return []string{
		record.ID,
		record.RequestID,
		record.RuleType,
		record.Area,
		fmt.Sprintf("%d", record.RuleCount),
		fmt.Sprintf("%t", record.Success),
		record.ConclusionBy,
		record.ConclusionNotice,
		record.ErrorKind,
		record.EngineError,
		fmt.Sprintf("%d", record.Duration.Milliseconds()),
		record.EvaluatedAt.Format(time.RFC3339),
	}
}

// JSONExporter renders audit records as a JSON array.
type JSONExporter struct {
	// Pretty indents the output for readability.
	Pretty bool
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export implements Exporter. Records always export as an array so
// consumers parse one shape regardless of count.
func (e *JSONExporter) Export(ctx context.Context, records []*Record, w io.Writer) error {
	if records == nil {
		records = []*Record{}
	}

	var data []byte
	var err error
	if e.Pretty {
		data, err = json.MarshalIndent(records, "", "  ")
	} else {
		data, err = json.Marshal(records)
	}
	if err != nil {
		return &ExportError{Format: "json", Records: len(records), Cause: err}
	}

	if _, err := w.Write(data); err != nil {
		return &ExportError{Format: "json", Records: len(records), Cause: err}
	}
	return nil
}
