// Package telemetry groups the observability packages used by jarvish.
//
// # Components
//
//   - logging: slog construction with PII redaction and context attributes
//   - metrics: Prometheus collectors for validation, audit and delivery
//   - tracing: OpenTelemetry spans around pipeline stages and deliveries
//   - health: liveness and readiness checks for the API server
//
// # Usage
//
//	l, err := logging.New(logging.Config{Level: "info", Format: "json", RedactPII: true})
//	logger := l.Slog()
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(ctx)
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("audit_storage", true, trail.Ping)
//
// # PII Protection
//
// Recipient phone numbers never reach the logs in clear text:
//
//   - Phone numbers: +919876543210 → +**********
//   - Emails: advisor@example.com → ***@***
//   - Bearer tokens and API keys are masked
//
// Attributes named recipient, phone or msisdn keep only their last two
// digits.
package telemetry
