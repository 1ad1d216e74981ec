// Package metrics defines the Prometheus metrics exported by Jarvish.
//
// All metrics live on Registry. Components record directly against the
// exported collectors:
//
//	metrics.ValidationsTotal.WithLabelValues("green", "false").Inc()
//	metrics.DeliveryAttempts.WithLabelValues("network_error").Inc()
//
// Handler serves Registry for scraping.
package metrics
