package config

import "time"

// Config is the root configuration structure for Jarvish.
// It contains all configuration sections for the HTTP server, the compliance
// pipeline, the audit trail, the delivery queue, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and ingress rate limiting.
	Server ServerConfig `yaml:"server"`

	// Rules contains configuration for the rule engine's rulebook source.
	Rules RulesConfig `yaml:"rules"`

	// Semantic contains configuration for the external semantic analysis service.
	Semantic SemanticConfig `yaml:"semantic"`

	// Pipeline contains configuration for aggregating stage scores into a verdict.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Audit contains configuration for the audit trail including storage,
	// retention, and high-risk review.
	Audit AuditConfig `yaml:"audit"`

	// Delivery contains configuration for the delivery queue, its worker pool,
	// rate limiter, circuit breaker, daily quota, and messaging gateway.
	Delivery DeliveryConfig `yaml:"delivery"`

	// Telemetry contains configuration for logging, metrics, tracing, and health.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown of the server and the queue.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// RateLimit limits API requests per advisor.
	RateLimit IngressRateLimitConfig `yaml:"rate_limit"`
}

// IngressRateLimitConfig limits inbound API requests per advisor.
type IngressRateLimitConfig struct {
	// Enabled controls whether per-advisor request limiting is applied.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// RequestsPerSecond is the sustained request rate per advisor.
	// Default: 10
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the maximum burst size per advisor.
	// Default: 20
	Burst int `yaml:"burst"`
}

// RulesConfig configures where the rule engine's rulebook comes from.
type RulesConfig struct {
	// Source selects the rulebook source.
	// Options: "builtin", "file", "git"
	// Default: "builtin"
	Source string `yaml:"source"`

	// FilePath is the rulebook YAML file when Source is "file".
	// Default: "./rulebook.yaml"
	FilePath string `yaml:"file_path"`

	// Watch enables reloading the rulebook when the file changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// DebounceInterval collapses bursts of file events into one reload.
	// Default: 200ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// Strict treats missing educational markers as violations and doubles soft weights.
	// Default: false
	Strict bool `yaml:"strict"`

	// Git configures the rulebook repository when Source is "git".
	Git GitRulesConfig `yaml:"git"`
}

// GitRulesConfig configures a Git-hosted rulebook maintained by the compliance team.
type GitRulesConfig struct {
	// Repository URL (HTTPS).
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path of the rulebook file within the repository.
	// Default: "rulebook.yaml"
	Path string `yaml:"path"`

	// Token for HTTPS authentication. Empty means public repository.
	Token string `yaml:"token"`

	// LocalPath is where the repository is cloned.
	// Default: "data/rulebook"
	LocalPath string `yaml:"local_path"`

	// PollInterval between pulls. Zero disables polling.
	// Default: 5m
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout for Git operations.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`
}

// SemanticConfig configures the external semantic analysis service.
type SemanticConfig struct {
	// Enabled controls whether the semantic stage calls the external service.
	// When false every validation uses the rules-only fallback verdict.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the analysis URL.
	Endpoint string `yaml:"endpoint"`

	// APIKey authenticates against the service.
	APIKey string `yaml:"api_key"`

	// Model is passed through to the service.
	// Default: "compliance-analyzer"
	Model string `yaml:"model"`

	// Timeout is the per-call HTTP timeout.
	// Default: 1s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of retries on 5xx responses.
	// Default: 1
	MaxRetries int `yaml:"max_retries"`

	// CacheTTL is how long analysis results are cached by content hash.
	// Default: 24h
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// CacheCleanupInterval is how often expired cache entries are evicted.
	// Default: 1h
	CacheCleanupInterval time.Duration `yaml:"cache_cleanup_interval"`
}

// PipelineConfig configures verdict aggregation.
type PipelineConfig struct {
	// SemanticTimeout is the hard timeout for the semantic stage.
	// Default: 1s
	SemanticTimeout time.Duration `yaml:"semantic_timeout"`

	// ComplianceThreshold is the highest risk score still considered compliant.
	// Default: 70
	ComplianceThreshold int `yaml:"compliance_threshold"`

	// RuleWeight is the weight of the rule-engine score in the blended score.
	// Default: 0.6
	RuleWeight float64 `yaml:"rule_weight"`

	// SemanticWeight is the weight of the semantic score in the blended score.
	// Default: 0.4
	SemanticWeight float64 `yaml:"semantic_weight"`

	// FallbackPenalty is added to the rule score when the semantic stage is unavailable.
	// Default: 5
	FallbackPenalty int `yaml:"fallback_penalty"`
}

// AuditConfig contains configuration for the audit trail.
type AuditConfig struct {
	// Backend specifies the storage backend.
	// Options: "memory", "sqlite"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Recorder contains async recorder configuration.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention contains the regulatory retention policy.
	Retention RetentionConfig `yaml:"retention"`

	// Review contains expedited review configuration for high-risk entries.
	Review ReviewConfig `yaml:"review"`

	// Query contains query limits.
	Query QueryConfig `yaml:"query"`

	// Export contains export configuration.
	Export ExportConfig `yaml:"export"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the file path for the SQLite database.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open database connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle database connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecorderConfig contains async recorder configuration.
type RecorderConfig struct {
	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout is the timeout for enqueuing or writing an entry.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RetentionConfig contains the regulatory retention policy.
type RetentionConfig struct {
	// Years is how long entries are retained before they may be purged.
	// Default: 5
	Years int `yaml:"years"`

	// PruneSchedule is a cron expression for purging expired entries.
	// Default: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string `yaml:"prune_schedule"`
}

// ReviewConfig configures expedited review of high-risk entries.
type ReviewConfig struct {
	// Enabled turns on periodic export of flagged entries.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression for exporting flagged entries.
	// Default: "*/15 * * * *"
	Schedule string `yaml:"schedule"`

	// OutputDir receives the exported review batches.
	// Default: "data/review"
	OutputDir string `yaml:"output_dir"`
}

// QueryConfig contains query configuration.
type QueryConfig struct {
	// DefaultLimit is the default number of entries returned.
	// Default: 100
	DefaultLimit int `yaml:"default_limit"`

	// MaxLimit is the maximum number of entries returned by one query.
	// Default: 10000
	MaxLimit int `yaml:"max_limit"`
}

// ExportConfig contains export configuration.
type ExportConfig struct {
	// JSONPretty enables pretty-printing for JSON exports.
	// Default: false
	JSONPretty bool `yaml:"json_pretty"`

	// MaxExportSize is the maximum number of entries per export.
	// Default: 1000000
	MaxExportSize int `yaml:"max_export_size"`
}

// DeliveryConfig contains configuration for the delivery queue.
type DeliveryConfig struct {
	// Concurrency is the number of dispatch workers.
	// Default: 10
	Concurrency int `yaml:"concurrency"`

	// MaxAttempts is the maximum number of gateway attempts per job.
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// InitialBackoff is the delay before the first retry.
	// Default: 1s
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the retry delay.
	// Default: 60s
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// BackoffMultiplier grows the retry delay per attempt.
	// Default: 2.0
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`

	// BackoffJitter randomizes retry delays by this fraction (0 disables).
	// Default: 0.1
	BackoffJitter float64 `yaml:"backoff_jitter"`

	// RateLimitedBackoffMultiplier stretches retries after the gateway signals rate limiting.
	// Default: 3.0
	RateLimitedBackoffMultiplier float64 `yaml:"rate_limited_backoff_multiplier"`

	// RatePerSecond caps gateway dispatch calls in any rolling second.
	// Dispatches are paced evenly across the second.
	// Default: 80
	RatePerSecond float64 `yaml:"rate_per_second"`

	// DailyLimit is the number of messages allowed per calendar day.
	// Default: 1000
	DailyLimit int64 `yaml:"daily_limit"`

	// Timezone is the gateway's reference timezone for quota days.
	// Default: "Asia/Kolkata"
	Timezone string `yaml:"timezone"`

	// QuotaRolloverSchedule is a cron expression for the daily quota rollover job.
	// Default: "1 0 * * *"
	QuotaRolloverSchedule string `yaml:"quota_rollover_schedule"`

	// IdempotencyTTL is how long idempotency keys are remembered after a job ends.
	// Default: 24h
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`

	// Breaker contains circuit breaker configuration.
	Breaker BreakerConfig `yaml:"breaker"`

	// Quota contains durable quota store configuration.
	Quota QuotaStoreConfig `yaml:"quota"`

	// Jobs contains durable job store configuration.
	Jobs JobStoreConfig `yaml:"jobs"`

	// Gateway contains messaging gateway configuration.
	Gateway GatewayConfig `yaml:"gateway"`

	// Templates lists approved templates per use case for the static template provider.
	Templates []TemplateConfig `yaml:"templates"`
}

// BreakerConfig contains circuit breaker configuration.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the circuit.
	// Default: 5
	Threshold int `yaml:"threshold"`

	// HalfOpenTimeout is how long the circuit stays open before a trial.
	// Default: 60s
	HalfOpenTimeout time.Duration `yaml:"half_open_timeout"`

	// SuccessThreshold is the number of consecutive trial successes that close the circuit.
	// Default: 3
	SuccessThreshold int `yaml:"success_threshold"`
}

// QuotaStoreConfig configures the durable daily quota counter.
type QuotaStoreConfig struct {
	// Backend selects the store.
	// Options: "memory", "sqlite", "redis"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file for the sqlite backend.
	// Default: "data/delivery.db"
	SQLitePath string `yaml:"sqlite_path"`

	// Redis contains Redis connection settings.
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	// Default: "localhost:6379"
	Addr string `yaml:"addr"`

	// Password for AUTH. Empty disables AUTH.
	Password string `yaml:"password"`

	// DB is the database number.
	DB int `yaml:"db"`

	// KeyPrefix namespaces quota keys.
	// Default: "jarvish:quota"
	KeyPrefix string `yaml:"key_prefix"`
}

// JobStoreConfig configures durable storage for pending jobs.
type JobStoreConfig struct {
	// Backend selects the store.
	// Options: "memory", "sqlite"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file for the sqlite backend.
	// Default: "data/delivery.db"
	SQLitePath string `yaml:"sqlite_path"`
}

// GatewayConfig contains messaging gateway configuration.
type GatewayConfig struct {
	// BaseURL is the gateway API base URL.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates against the gateway.
	APIKey string `yaml:"api_key"`

	// SenderID is the sending identity the quota and rate limits apply to.
	SenderID string `yaml:"sender_id"`

	// Timeout is the per-request timeout.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// DefaultRegion is used to parse recipients without a country code.
	// Default: "IN"
	DefaultRegion string `yaml:"default_region"`
}

// TemplateConfig declares an approved gateway template.
type TemplateConfig struct {
	// UseCase groups templates that can carry the same content.
	UseCase string `yaml:"use_case"`

	// Name is the gateway template name.
	Name string `yaml:"name"`

	// Language is the template language code.
	Language string `yaml:"language"`

	// HealthScore ranks templates within a use case (0-100).
	HealthScore int `yaml:"health_score"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics endpoint configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII masks phone numbers and API keys in log attributes.
	// Default: false
	RedactPII bool `yaml:"redact_pii"`
}

// MetricsConfig contains metrics endpoint configuration.
type MetricsConfig struct {
	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "jarvish"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the collector connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout is the export timeout.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout is the timeout for individual component checks.
	// Default: 2s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
