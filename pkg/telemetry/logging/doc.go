// Package logging builds the structured loggers used across Guardrail.
//
// New produces a standard *slog.Logger configured for level, format,
// and source annotation. When PII redaction is enabled the handler
// chain masks applicant data before it reaches the writer: SSNs, email
// addresses, phone and account numbers in messages or attribute
// values, plus any attribute whose key names a sensitive field.
//
// Basic usage:
//
//	logger, err := logging.New(logging.Config{
//	    Level:     "info",
//	    Format:    "json",
//	    RedactPII: true,
//	})
//	if err != nil {
//	    return err
//	}
//	logger.Info("evaluation concluded",
//	    "area", "DOC_PREP",
//	    "applicant_email", "dana@example.com") // logged as ***@***
package logging
