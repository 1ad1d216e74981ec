// Package server exposes the compliance and delivery service over HTTP.
//
// # Routes
//
//	POST /v1/content/validate      validate content, returning the verdict
//	POST /v1/content/autofix       validate, auto-fix and revalidate content
//	POST /v1/deliveries            validate and enqueue content for recipients
//	GET  /v1/deliveries/stats      queue, quota and circuit breaker snapshot
//	GET  /v1/deliveries/{id}       one delivery job
//	POST /v1/deliveries/pause      stop dispatching
//	POST /v1/deliveries/resume     resume dispatching
//	GET  /v1/audit                 search the audit trail
//	GET  /v1/audit/entries/{id}    one audit entry
//	GET  /v1/audit/export          compliance export (json or csv)
//
// Health probes, the metrics endpoint and /version are mounted when
// configured with WithHealth, WithMetrics and WithVersion.
//
// # Errors
//
// Errors are returned as {"error": {"code": ..., "message": ...}}. Rejected
// content answers 422 with the risk score and violations; an exhausted daily
// quota answers 429; an open circuit answers 503.
//
// # Middleware
//
// Requests pass through panic recovery, request ID propagation
// (X-Request-ID) and structured access logging. When enabled, /v1 routes are
// limited per advisor (X-Advisor-ID) with a token bucket.
package server
