package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id                TEXT PRIMARY KEY,
	request_id        TEXT NOT NULL,
	rule_type         TEXT NOT NULL,
	area              TEXT NOT NULL,
	rule_count        INTEGER NOT NULL,
	success           INTEGER NOT NULL,
	conclusion_by     TEXT NOT NULL DEFAULT '',
	conclusion_notice TEXT NOT NULL DEFAULT '',
	error_kind        TEXT NOT NULL DEFAULT '',
	engine_error      TEXT NOT NULL DEFAULT '',
	duration_ms       INTEGER NOT NULL,
	evaluated_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_evaluated_at ON audit_records (evaluated_at);
CREATE INDEX IF NOT EXISTS idx_audit_type_area ON audit_records (rule_type, area);
`

const insertRecord = `
INSERT INTO audit_records (
	id, request_id, rule_type, area, rule_count, success,
	conclusion_by, conclusion_notice, error_kind, engine_error,
	duration_ms, evaluated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLiteConfig configures the SQLite audit store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/audit.db",
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStore persists audit records in a SQLite database. The database
// runs in WAL mode so the single writer never blocks readers.
type SQLiteStore struct {
	db         *sql.DB
	config     *SQLiteConfig
	insertStmt *sql.Stmt
	logger     *slog.Logger
}

// NewSQLiteStore opens (or creates) the audit database at config.Path.
func NewSQLiteStore(config *SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, fmt.Errorf("audit database path cannot be empty")
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default().With("component", "audit")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		config.Path, config.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, NewStorageError("sqlite", "create_schema", err)
	}

	insertStmt, err := db.Prepare(insertRecord)
	if err != nil {
		db.Close()
		return nil, NewStorageError("sqlite", "prepare", err)
	}

	logger.Info("audit store opened", "path", config.Path)

	return &SQLiteStore{
		db:         db,
		config:     config,
		insertStmt: insertStmt,
		logger:     logger,
	}, nil
}

// Store implements Store.
func (s *SQLiteStore) Store(ctx context.Context, record *Record) error {
	_, err := s.insertStmt.ExecContext(ctx,
		record.ID, record.RequestID, record.RuleType, record.Area,
		record.RuleCount, record.Success,
		record.ConclusionBy, record.ConclusionNotice,
		record.ErrorKind, record.EngineError,
		record.Duration.Milliseconds(), record.EvaluatedAt.UnixNano())
	if err != nil {
		return NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query implements Store.
func (s *SQLiteStore) Query(ctx context.Context, query *Query) ([]*Record, error) {
	if query == nil {
		query = &Query{}
	}

	where, args := buildWhere(query)

	order := "DESC"
	if query.OldestFirst {
		order = "ASC"
	}
	limit := 100
	if query.Limit > 0 {
		limit = query.Limit
	}

	q := "SELECT id, request_id, rule_type, area, rule_count, success, " +
		"conclusion_by, conclusion_notice, error_kind, engine_error, " +
		"duration_ms, evaluated_at FROM audit_records" + where +
		fmt.Sprintf(" ORDER BY evaluated_at %s LIMIT %d", order, limit)
	if query.Offset > 0 {
		q += fmt.Sprintf(" OFFSET %d", query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		var r Record
		var durationMS, evaluatedAt int64
		if err := rows.Scan(&r.ID, &r.RequestID, &r.RuleType, &r.Area,
			&r.RuleCount, &r.Success,
			&r.ConclusionBy, &r.ConclusionNotice,
			&r.ErrorKind, &r.EngineError,
			&durationMS, &evaluatedAt); err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.EvaluatedAt = time.Unix(0, evaluatedAt).UTC()
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}
	return records, nil
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context, query *Query) (int64, error) {
	if query == nil {
		query = &Query{}
	}

	where, args := buildWhere(query)

	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_records"+where, args...).Scan(&count)
	if err != nil {
		return 0, NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, query *Query) (int64, error) {
	if query == nil {
		query = &Query{}
	}

	where, args := buildWhere(query)

	res, err := s.db.ExecContext(ctx, "DELETE FROM audit_records"+where, args...)
	if err != nil {
		return 0, NewStorageError("sqlite", "delete", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, NewStorageError("sqlite", "delete", err)
	}
	return deleted, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if s.insertStmt != nil {
		_ = s.insertStmt.Close()
	}
	return s.db.Close()
}

// buildWhere renders the query filters into a WHERE clause and its
// arguments. An empty query yields an empty clause.
func buildWhere(query *Query) (string, []any) {
	var conds []string
	var args []any

	if query.StartTime != nil {
		conds = append(conds, "evaluated_at >= ?")
		args = append(args, query.StartTime.UnixNano())
	}
	if query.EndTime != nil {
		conds = append(conds, "evaluated_at <= ?")
		args = append(args, query.EndTime.UnixNano())
	}
	if query.RequestID != "" {
		conds = append(conds, "request_id = ?")
		args = append(args, query.RequestID)
	}
	if query.RuleType != "" {
		conds = append(conds, "rule_type = ?")
		args = append(args, query.RuleType)
	}
	if query.Area != "" {
		conds = append(conds, "area = ?")
		args = append(args, query.Area)
	}
	if query.Success != nil {
		conds = append(conds, "success = ?")
		args = append(args, *query.Success)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
