package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Redactor redacts applicant PII from log output. Evaluation datasets
// carry borrower SSNs, email addresses, and account numbers; none of
// them belong in a log line.
type Redactor struct {
	patterns []redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternSSN         = "ssn"
	PatternEmail       = "email"
	PatternPhone       = "phone"
	PatternAccount     = "account_number"
	PatternBearerToken = "bearer_token"
	PatternPassword    = "password"
)

// NewRedactor creates a Redactor with the built-in patterns.
func NewRedactor() *Redactor {
	compile := func(name, regex, replacement string) redactPattern {
		return redactPattern{
			name:        name,
			regex:       regexp.MustCompile(regex),
			replacement: replacement,
		}
	}

	return &Redactor{
		patterns: []redactPattern{
			// Social Security Numbers
			compile(PatternSSN,
				`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`,
				"***-**-****"),

			// Email addresses
			compile(PatternEmail,
				`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`,
				"***@***"),

			// Phone numbers
			compile(PatternPhone,
				`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`,
				"***-***-****"),

			// Account numbers referenced by label
			compile(PatternAccount,
				`(?i)\b(account|acct|routing)[-_ ]?(?:number|no|num)?[:=#]?\s*\d{4,17}\b`,
				"$1 ***"),

			// Bearer tokens
			compile(PatternBearerToken,
				`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`,
				"Bearer ***"),

			// Password fields inlined into messages
			compile(PatternPassword,
				`(?i)(password|passwd|pwd)[:=]\s*\S+`,
				"$1: ***"),
		},
	}
}

// RedactString redacts PII from a string value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// IsSensitiveKey reports whether a log key names a value that must be
// masked wholesale, independent of its content.
func (r *Redactor) IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{
		"ssn", "social_security",
		"password", "passwd", "pwd",
		"secret", "token", "authorization",
		"account_number", "routing_number",
		"tax_id", "date_of_birth", "dob",
	} {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}

// RedactingHandler is a slog.Handler middleware that redacts PII from
// messages and attribute values before they reach the wrapped handler.
type RedactingHandler struct {
	inner    slog.Handler
	redactor *Redactor
}

// NewRedactingHandler wraps inner with PII redaction.
func NewRedactingHandler(inner slog.Handler, redactor *Redactor) *RedactingHandler {
	return &RedactingHandler{inner: inner, redactor: redactor}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *RedactingHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, h.redactor.RedactString(record.Message), record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(h.redactAttr(attr))
		return true
	})
	return h.inner.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		redacted[i] = h.redactAttr(attr)
	}
	return &RedactingHandler{inner: h.inner.WithAttrs(redacted), redactor: h.redactor}
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{inner: h.inner.WithGroup(name), redactor: h.redactor}
}

func (h *RedactingHandler) redactAttr(attr slog.Attr) slog.Attr {
	value := attr.Value.Resolve()

	if value.Kind() == slog.KindGroup {
		group := value.Group()
		redacted := make([]slog.Attr, len(group))
		for i, member := range group {
			redacted[i] = h.redactAttr(member)
		}
		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(redacted...)}
	}

	if h.redactor.IsSensitiveKey(attr.Key) {
		return slog.String(attr.Key, "***")
	}

	if value.Kind() == slog.KindString {
		return slog.String(attr.Key, h.redactor.RedactString(value.String()))
	}

	return slog.Attr{Key: attr.Key, Value: value}
}
