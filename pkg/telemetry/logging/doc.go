// Package logging provides structured logging with PII redaction.
//
// The package wraps log/slog:
//   - JSON and text output with configurable level
//   - Redaction of recipient phone numbers, emails, and credentials
//   - Context identifiers (request, advisor, content, delivery) added to
//     records logged with the *Context methods
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", RedactPII: true})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger.Slog())
//
//	ctx = logging.WithContentID(ctx, item.ID)
//	slog.InfoContext(ctx, "content validated", "risk_score", 12)
package logging
