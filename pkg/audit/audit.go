package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"originware/guardrail/pkg/engine"
	"originware/guardrail/pkg/rule"
)

// Record is the stored outcome of one evaluation call. It carries the
// conclusion and enough request context to trace a decision, not the full
// trail; the caller received that in the report.
type Record struct {
	// ID is a UUID v4 assigned at creation.
	ID string `json:"id"`
	// RequestID ties the record to the originating API request or CLI run.
	RequestID string `json:"request_id"`

	RuleType string `json:"rule_type"`
	Area     string `json:"area"`
	// RuleCount is the number of rules walked.
	RuleCount int `json:"rule_count"`

	Success          bool   `json:"success"`
	ConclusionBy     string `json:"conclusion_by"`
	ConclusionNotice string `json:"conclusion_notice"`

	// ErrorKind and EngineError are set when the evaluation aborted
	// instead of concluding.
	ErrorKind   string `json:"error_kind,omitempty"`
	EngineError string `json:"engine_error,omitempty"`

	Duration    time.Duration `json:"duration"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
}

// NewRecord builds a record from an evaluation outcome. Exactly one of
// report and evalErr is expected to be meaningful: a report for concluded
// evaluations, an error for aborted ones.
func NewRecord(requestID string, ruleType rule.RuleType, area string, report *engine.EvaluationReport, evalErr error, duration time.Duration) *Record {
	record := &Record{
		ID:          uuid.New().String(),
		RequestID:   requestID,
		RuleType:    string(ruleType),
		Area:        area,
		Duration:    duration,
		EvaluatedAt: time.Now().UTC(),
	}

	if report != nil {
		record.RuleCount = len(report.Evaluations)
		record.Success = report.Success
		record.ConclusionBy = report.ConclusionBy
		record.ConclusionNotice = report.ConclusionNotice
		return record
	}

	var engErr *engine.EngineError
	if errors.As(evalErr, &engErr) {
		record.ErrorKind = engErr.Kind
		record.EngineError = engErr.Error()
	} else if evalErr != nil {
		record.ErrorKind = engine.ErrKindInternal
		record.EngineError = evalErr.Error()
	}
	return record
}

// Query filters stored records. Zero-valued fields do not filter.
type Query struct {
	// StartTime and EndTime bound EvaluatedAt, both inclusive.
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	RequestID string `json:"request_id,omitempty"`
	RuleType  string `json:"rule_type,omitempty"`
	Area      string `json:"area,omitempty"`
	Success   *bool  `json:"success,omitempty"`

	// Limit caps the result set; 0 applies the store's default.
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// OldestFirst orders ascending by evaluation time. Default is newest
	// first.
	OldestFirst bool `json:"oldest_first,omitempty"`
}

// Store is the persistence interface for audit records. Implementations
// must be safe for concurrent use.
type Store interface {
	// Store persists one record.
	Store(ctx context.Context, record *Record) error

	// Query returns records matching the filters.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of records matching the filters.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes matching records and returns how many went away.
	// Retention pruning is its only caller.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases the store's resources.
	Close() error
}

// Exporter renders records to a writer in some format.
type Exporter interface {
	Export(ctx context.Context, records []*Record, w io.Writer) error
}

// StorageError wraps a failure in a storage backend.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}
