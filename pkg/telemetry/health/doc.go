// Package health provides liveness and readiness endpoints.
//
// Components register checks with a criticality flag:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("audit_store", true, auditStore.Ping)
//	checker.RegisterCheck("semantic_analyzer", false, analyzer.Ping)
//
//	mux.HandleFunc("/health", checker.LivenessHandler())
//	mux.HandleFunc("/ready", checker.ReadinessHandler())
//
// Readiness is "unavailable" (HTTP 503) when any critical check fails and
// "degraded" (HTTP 200) when only non-critical checks fail.
package health
