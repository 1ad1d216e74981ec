package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks personal data and credentials in log values.
type Redactor struct {
	patterns []*redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Pattern names.
const (
	PatternPhone       = "phone"
	PatternEmail       = "email"
	PatternBearerToken = "bearer_token"
	PatternAPIKey      = "api_key"
)

// NewRedactor creates a Redactor with the built-in patterns.
func NewRedactor() *Redactor {
	r := &Redactor{}
	r.add(PatternBearerToken, `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***")
	r.add(PatternAPIKey, `(sk-[a-zA-Z0-9]+|api[-_]?key[-_:=]\s*[a-zA-Z0-9]+)`, "***")
	r.add(PatternEmail, `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "***@***")
	// E.164 and bare 10-digit Indian mobile numbers.
	r.add(PatternPhone, `\+\d{8,15}\b|\b[6-9]\d{9}\b`, "+**********")
	return r
}

func (r *Redactor) add(name, expr, replacement string) {
	r.patterns = append(r.patterns, &redactPattern{
		name:        name,
		regex:       regexp.MustCompile(expr),
		replacement: replacement,
	})
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

// RedactPhone keeps the last two digits of a phone number.
func RedactPhone(phone string) string {
	if len(phone) <= 2 {
		return "**"
	}
	return strings.Repeat("*", len(phone)-2) + phone[len(phone)-2:]
}

// isSensitiveKey reports whether the attribute key always holds sensitive data.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sensitive := range []string{
		"password", "secret", "token", "api_key", "apikey", "authorization",
	} {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// isRecipientKey reports whether the attribute key holds a phone number.
func isRecipientKey(key string) bool {
	lowerKey := strings.ToLower(key)
	return lowerKey == "recipient" || lowerKey == "phone" || lowerKey == "msisdn"
}

func (r *Redactor) redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		redacted := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			redacted[i] = r.redactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	}

	switch {
	case isSensitiveKey(a.Key):
		return slog.String(a.Key, "***")
	case isRecipientKey(a.Key):
		return slog.String(a.Key, RedactPhone(a.Value.String()))
	case a.Value.Kind() == slog.KindString:
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	}
	return a
}

// RedactingHandler is a slog.Handler that redacts attributes before
// delegating to the wrapped handler.
type RedactingHandler struct {
	next     slog.Handler
	redactor *Redactor
}

// NewRedactingHandler wraps next with redaction.
func NewRedactingHandler(next slog.Handler, redactor *Redactor) *RedactingHandler {
	return &RedactingHandler{next: next, redactor: redactor}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, h.redactor.RedactString(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactor.redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redactor.redactAttr(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(redacted), redactor: h.redactor}
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name), redactor: h.redactor}
}
