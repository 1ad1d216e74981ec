package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every Jarvish metric plus the Go runtime and process collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Compliance pipeline metrics.
var (
	// ValidationsTotal counts verdicts by colour code and whether the rules-only fallback was used.
	ValidationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jarvish_compliance_validations_total",
			Help: "Total number of content validations by verdict colour",
		},
		[]string{"color", "fallback"},
	)

	// StageDuration observes the latency of each pipeline stage.
	StageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jarvish_compliance_stage_duration_seconds",
			Help:    "Duration of compliance pipeline stages",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 2.5},
		},
		[]string{"stage"},
	)

	// SemanticCache counts analyzer cache hits and misses.
	SemanticCache = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jarvish_semantic_cache_total",
			Help: "Semantic analysis cache lookups by result",
		},
		[]string{"result"},
	)

	// SemanticErrors counts analyzer failures by reason.
	SemanticErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jarvish_semantic_errors_total",
			Help: "Semantic analysis failures by reason",
		},
		[]string{"reason"},
	)

	// RulebookReloads counts rulebook reloads by result.
	RulebookReloads = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jarvish_rulebook_reloads_total",
			Help: "Rulebook reloads by source and result",
		},
		[]string{"source", "result"},
	)
)

// Audit trail metrics.
var (
	// AuditEntries counts recorded audit entries by action and high-risk flag.
	AuditEntries = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jarvish_audit_entries_total",
			Help: "Audit entries recorded by action",
		},
		[]string{"action", "flagged"},
	)

	// AuditPurged counts entries removed after their retention date.
	AuditPurged = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "jarvish_audit_purged_total",
			Help: "Audit entries purged after retention expiry",
		},
	)

	// AuditWriteErrors counts failed audit writes.
	AuditWriteErrors = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "jarvish_audit_write_errors_total",
			Help: "Audit entries that failed to persist",
		},
	)
)

// Delivery queue metrics.
var (
	// DeliveryJobs counts jobs reaching a terminal state.
	DeliveryJobs = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jarvish_delivery_jobs_total",
			Help: "Delivery jobs by terminal outcome",
		},
		[]string{"outcome"},
	)

	// DeliveryAttempts counts dispatch attempts by error kind ("none" on success).
	DeliveryAttempts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jarvish_delivery_attempts_total",
			Help: "Gateway dispatch attempts by error kind",
		},
		[]string{"kind"},
	)

	// QueueDepth reports jobs per state.
	QueueDepth = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jarvish_delivery_queue_depth",
			Help: "Delivery jobs by state",
		},
		[]string{"state"},
	)

	// CircuitOpen is 1 while the gateway circuit breaker is open.
	CircuitOpen = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "jarvish_delivery_circuit_open",
			Help: "Whether the gateway circuit breaker is open",
		},
	)

	// QuotaUsed reports the messages counted against today's quota.
	QuotaUsed = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "jarvish_delivery_quota_used",
			Help: "Messages counted against the current daily quota",
		},
	)

	// QuotaRejections counts admissions rejected for quota.
	QuotaRejections = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "jarvish_delivery_quota_rejections_total",
			Help: "Enqueue requests rejected because the daily quota was exhausted",
		},
	)

	// DispatchDuration observes gateway call latency.
	DispatchDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jarvish_delivery_dispatch_duration_seconds",
			Help:    "Latency of gateway send calls",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// API metrics.
var (
	// HTTPRequests counts API requests by route and status code.
	HTTPRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jarvish_http_requests_total",
			Help: "API requests by route and status",
		},
		[]string{"route", "code"},
	)
)
