package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"originware/guardrail/pkg/rule"
)

// sqliteSchema initializes the rules table on SQLite, which self-manages
// its schema on open. PostgreSQL deployments run the migrations under
// migrations/postgres instead.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS rules (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	rule_type    TEXT NOT NULL,
	area         TEXT NOT NULL,
	sequence     INTEGER NOT NULL,
	target       TEXT NOT NULL,
	operator     TEXT NOT NULL,
	criteria     TEXT,
	sub_rules    TEXT,
	on_fail      TEXT NOT NULL,
	on_pass      TEXT NOT NULL,
	pass_message TEXT,
	fail_message TEXT,
	warn_message TEXT,
	updated_by   TEXT,
	updated_at   TEXT NOT NULL,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rules_type_area ON rules (rule_type, area, sequence);
`

// SQLStore is the database-backed Repository. Rows carry the legacy
// storage format: criteria and sub_rules are TEXT columns holding either
// a bare scalar or string-encoded JSON, decoded once by the rule model's
// constructors on load.
type SQLStore struct {
	db      *sqlx.DB
	queries *Queries
	logger  *slog.Logger
}

// NewSQLStore wraps an open database handle. On SQLite the rules schema
// is created when missing.
func NewSQLStore(db *sqlx.DB, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default().With("component", "repository")
	}

	queries, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}

	if db.DriverName() == "sqlite3" {
		if _, err := db.Exec(sqliteSchema); err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
		}
	}

	return &SQLStore{db: db, queries: queries, logger: logger}, nil
}

// ruleRow is the wire shape of one stored rule.
type ruleRow struct {
	ID          int64          `db:"id"`
	RuleType    string         `db:"rule_type"`
	Area        string         `db:"area"`
	Sequence    int            `db:"sequence"`
	Target      string         `db:"target"`
	Operator    string         `db:"operator"`
	Criteria    sql.NullString `db:"criteria"`
	SubRules    sql.NullString `db:"sub_rules"`
	OnFail      string         `db:"on_fail"`
	OnPass      string         `db:"on_pass"`
	PassMessage sql.NullString `db:"pass_message"`
	FailMessage sql.NullString `db:"fail_message"`
	WarnMessage sql.NullString `db:"warn_message"`
	UpdatedBy   sql.NullString `db:"updated_by"`
	UpdatedAt   sql.NullString `db:"updated_at"`
	CreatedAt   sql.NullString `db:"created_at"`
}

func (r ruleRow) toDefinition() rule.Definition {
	def := rule.Definition{
		ID:          r.ID,
		Type:        r.RuleType,
		Area:        r.Area,
		Sequence:    r.Sequence,
		Target:      r.Target,
		Operator:    r.Operator,
		OnFail:      r.OnFail,
		OnPass:      r.OnPass,
		PassMessage: r.PassMessage.String,
		FailMessage: r.FailMessage.String,
		WarnMessage: r.WarnMessage.String,
		UpdatedBy:   r.UpdatedBy.String,
		UpdatedAt:   parseStoredTime(r.UpdatedAt.String),
		CreatedAt:   parseStoredTime(r.CreatedAt.String),
	}
	if r.Criteria.Valid {
		def.Criteria = r.Criteria.String
	}
	if r.SubRules.Valid {
		def.SubRules = r.SubRules.String
	}
	return def
}

// GetRuleSet implements Repository. The whole set is validated on load;
// one bad row rejects the area.
func (s *SQLStore) GetRuleSet(ctx context.Context, ruleType rule.RuleType, area string) (*rule.RuleSet, error) {
	var rows []ruleRow
	if err := s.queries.Select(ctx, "get-rule-set", &rows, string(ruleType), area); err != nil {
		return nil, fmt.Errorf("failed to load rule set %s/%s: %w", ruleType, area, err)
	}
	if len(rows) == 0 {
		return nil, notFound(ruleType, area)
	}

	defs := make([]rule.Definition, len(rows))
	for i, row := range rows {
		defs[i] = row.toDefinition()
	}

	set, err := rule.NewSet(ruleType, area, defs)
	if err != nil {
		return nil, err
	}

	if dups := set.DuplicateSequences(); len(dups) > 0 {
		s.logger.Warn("rule set has duplicate sequence numbers",
			"rule_type", ruleType,
			"area", area,
			"sequences", dups)
	}
	return set, nil
}

// SaveRule implements Repository. The definition is validated before the
// row is written, so the table only ever holds loadable rules. A zero ID
// inserts, a non-zero ID updates.
func (s *SQLStore) SaveRule(ctx context.Context, def rule.Definition) error {
	r, err := rule.New(def)
	if err != nil {
		return err
	}

	criteria, err := encodeCriteria(def.Criteria)
	if err != nil {
		return fmt.Errorf("failed to encode criteria: %w", err)
	}
	subRules, err := encodeSubRules(def.SubRules)
	if err != nil {
		return fmt.Errorf("failed to encode sub_rules: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	updatedAt := now
	if !def.UpdatedAt.IsZero() {
		updatedAt = def.UpdatedAt.UTC().Format(time.RFC3339)
	}

	if def.ID != 0 {
		res, err := s.queries.Exec(ctx, "update-rule",
			string(r.Type), r.Area, r.Sequence, r.Target, string(r.Operator),
			criteria, subRules, string(r.OnFail), string(r.OnPass),
			nullable(r.PassMessage), nullable(r.FailMessage), nullable(r.WarnMessage),
			nullable(r.UpdatedBy), updatedAt, def.ID)
		if err != nil {
			return fmt.Errorf("failed to update rule %d: %w", def.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read update result: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("rule %d: %w", def.ID, ErrNotFound)
		}
		return nil
	}

	createdAt := now
	if !def.CreatedAt.IsZero() {
		createdAt = def.CreatedAt.UTC().Format(time.RFC3339)
	}
	_, err = s.queries.Exec(ctx, "insert-rule",
		string(r.Type), r.Area, r.Sequence, r.Target, string(r.Operator),
		criteria, subRules, string(r.OnFail), string(r.OnPass),
		nullable(r.PassMessage), nullable(r.FailMessage), nullable(r.WarnMessage),
		nullable(r.UpdatedBy), updatedAt, createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

// ListAreas implements Repository.
func (s *SQLStore) ListAreas(ctx context.Context, ruleType rule.RuleType) ([]string, error) {
	var areas []string
	if err := s.queries.Select(ctx, "list-areas", &areas, string(ruleType)); err != nil {
		return nil, fmt.Errorf("failed to list areas for %s: %w", ruleType, err)
	}
	return areas, nil
}

// Close closes the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// encodeCriteria renders a criteria value into its TEXT column form:
// scalars stay bare, composites become JSON.
func encodeCriteria(v any) (sql.NullString, error) {
	switch c := v.(type) {
	case nil:
		return sql.NullString{}, nil
	case string:
		return sql.NullString{String: c, Valid: true}, nil
	case json.Number:
		return sql.NullString{String: c.String(), Valid: true}, nil
	case bool:
		return sql.NullString{String: strconv.FormatBool(c), Valid: true}, nil
	case float64:
		return sql.NullString{String: strconv.FormatFloat(c, 'f', -1, 64), Valid: true}, nil
	case float32:
		return sql.NullString{String: strconv.FormatFloat(float64(c), 'f', -1, 32), Valid: true}, nil
	case int:
		return sql.NullString{String: strconv.Itoa(c), Valid: true}, nil
	case int64:
		return sql.NullString{String: strconv.FormatInt(c, 10), Valid: true}, nil
	default:
		buf, err := json.Marshal(v)
		if err != nil {
			return sql.NullString{}, err
		}
		return sql.NullString{String: string(buf), Valid: true}, nil
	}
}

// encodeSubRules renders the sub-rule list into its TEXT column form, a
// JSON array. A string is stored as-is, assumed already encoded.
func encodeSubRules(v any) (sql.NullString, error) {
	switch s := v.(type) {
	case nil:
		return sql.NullString{}, nil
	case string:
		if s == "" {
			return sql.NullString{}, nil
		}
		return sql.NullString{String: s, Valid: true}, nil
	default:
		buf, err := json.Marshal(v)
		if err != nil {
			return sql.NullString{}, err
		}
		return sql.NullString{String: string(buf), Valid: true}, nil
	}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func parseStoredTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
