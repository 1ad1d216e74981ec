package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress     = "127.0.0.1:8080"
	DefaultReadTimeout       = 30 * time.Second
	DefaultWriteTimeout      = 30 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultMaxHeaderBytes    = 1048576 // 1MB
	DefaultIngressRatePerSec = 10.0
	DefaultIngressBurst      = 20

	// Rules defaults
	DefaultRulesSource           = "builtin"
	DefaultRulesFilePath         = "./rulebook.yaml"
	DefaultRulesDebounceInterval = 200 * time.Millisecond
	DefaultRulesGitBranch        = "main"
	DefaultRulesGitPath          = "rulebook.yaml"
	DefaultRulesGitLocalPath     = "data/rulebook"
	DefaultRulesGitPollInterval  = 5 * time.Minute
	DefaultRulesGitTimeout       = 30 * time.Second

	// Semantic defaults
	DefaultSemanticModel        = "compliance-analyzer"
	DefaultSemanticTimeout      = time.Second
	DefaultSemanticMaxRetries   = 1
	DefaultSemanticCacheTTL     = 24 * time.Hour
	DefaultSemanticCacheCleanup = time.Hour

	// Pipeline defaults
	DefaultPipelineSemanticTimeout     = time.Second
	DefaultPipelineComplianceThreshold = 70
	DefaultPipelineRuleWeight          = 0.6
	DefaultPipelineSemanticWeight      = 0.4
	DefaultPipelineFallbackPenalty     = 5

	// Audit defaults
	DefaultAuditBackend              = "sqlite"
	DefaultAuditSQLitePath           = "data/audit.db"
	DefaultAuditSQLiteMaxOpenConns   = 10
	DefaultAuditSQLiteMaxIdleConns   = 5
	DefaultAuditSQLiteBusyTimeout    = 5 * time.Second
	DefaultAuditRecorderAsyncBuffer  = 1000
	DefaultAuditRecorderWriteTimeout = 5 * time.Second
	DefaultAuditRetentionYears       = 5
	DefaultAuditPruneSchedule        = "0 3 * * *"
	DefaultAuditReviewSchedule       = "*/15 * * * *"
	DefaultAuditReviewOutputDir      = "data/review"
	DefaultAuditQueryDefaultLimit    = 100
	DefaultAuditQueryMaxLimit        = 10000
	DefaultAuditExportMaxSize        = 1000000

	// Delivery defaults
	DefaultDeliveryConcurrency        = 10
	DefaultDeliveryMaxAttempts        = 3
	DefaultDeliveryInitialBackoff     = time.Second
	DefaultDeliveryMaxBackoff         = 60 * time.Second
	DefaultDeliveryBackoffMultiplier  = 2.0
	DefaultDeliveryBackoffJitter      = 0.1
	DefaultDeliveryRateLimitedBackoff = 3.0
	DefaultDeliveryRatePerSecond      = 80.0
	DefaultDeliveryDailyLimit         = int64(1000)
	DefaultDeliveryTimezone           = "Asia/Kolkata"
	DefaultDeliveryQuotaRollover      = "1 0 * * *"
	DefaultDeliveryIdempotencyTTL     = 24 * time.Hour
	DefaultBreakerThreshold           = 5
	DefaultBreakerHalfOpenTimeout     = 60 * time.Second
	DefaultBreakerSuccessThreshold    = 3
	DefaultQuotaBackend               = "sqlite"
	DefaultDeliverySQLitePath         = "data/delivery.db"
	DefaultRedisAddr                  = "localhost:6379"
	DefaultRedisKeyPrefix             = "jarvish:quota"
	DefaultJobStoreBackend            = "sqlite"
	DefaultGatewayTimeout             = 10 * time.Second
	DefaultGatewayRegion              = "IN"

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultPrometheusPath      = "/metrics"
	DefaultTracingSampler      = "ratio"
	DefaultTracingSampleRatio  = 0.1
	DefaultTracingEndpoint     = "localhost:4317"
	DefaultTracingServiceName  = "jarvish"
	DefaultTracingTimeout      = 10 * time.Second
	DefaultHealthLivenessPath  = "/health"
	DefaultHealthReadinessPath = "/ready"
	DefaultHealthCheckTimeout  = 2 * time.Second
)

// Default returns a configuration with every default applied. It is used when
// no configuration file is given.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.RateLimit.RequestsPerSecond == 0 {
		cfg.Server.RateLimit.RequestsPerSecond = DefaultIngressRatePerSec
	}
	if cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = DefaultIngressBurst
	}

	applyRulesDefaults(&cfg.Rules)
	applySemanticDefaults(&cfg.Semantic)

	// Pipeline defaults
	if cfg.Pipeline.SemanticTimeout == 0 {
		cfg.Pipeline.SemanticTimeout = DefaultPipelineSemanticTimeout
	}
	if cfg.Pipeline.ComplianceThreshold == 0 {
		cfg.Pipeline.ComplianceThreshold = DefaultPipelineComplianceThreshold
	}
	if cfg.Pipeline.RuleWeight == 0 && cfg.Pipeline.SemanticWeight == 0 {
		cfg.Pipeline.RuleWeight = DefaultPipelineRuleWeight
		cfg.Pipeline.SemanticWeight = DefaultPipelineSemanticWeight
	}
	if cfg.Pipeline.FallbackPenalty == 0 {
		cfg.Pipeline.FallbackPenalty = DefaultPipelineFallbackPenalty
	}

	applyAuditDefaults(&cfg.Audit)
	applyDeliveryDefaults(&cfg.Delivery)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyRulesDefaults(cfg *RulesConfig) {
	if cfg.Source == "" {
		cfg.Source = DefaultRulesSource
	}
	if cfg.FilePath == "" {
		cfg.FilePath = DefaultRulesFilePath
	}
	if cfg.DebounceInterval == 0 {
		cfg.DebounceInterval = DefaultRulesDebounceInterval
	}
	if cfg.Git.Branch == "" {
		cfg.Git.Branch = DefaultRulesGitBranch
	}
	if cfg.Git.Path == "" {
		cfg.Git.Path = DefaultRulesGitPath
	}
	if cfg.Git.LocalPath == "" {
		cfg.Git.LocalPath = DefaultRulesGitLocalPath
	}
	if cfg.Git.PollInterval == 0 {
		cfg.Git.PollInterval = DefaultRulesGitPollInterval
	}
	if cfg.Git.Timeout == 0 {
		cfg.Git.Timeout = DefaultRulesGitTimeout
	}
}

func applySemanticDefaults(cfg *SemanticConfig) {
	if cfg.Model == "" {
		cfg.Model = DefaultSemanticModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultSemanticTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultSemanticMaxRetries
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultSemanticCacheTTL
	}
	if cfg.CacheCleanupInterval == 0 {
		cfg.CacheCleanupInterval = DefaultSemanticCacheCleanup
	}
}

func applyAuditDefaults(cfg *AuditConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultAuditBackend
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultAuditSQLitePath
	}
	if cfg.SQLite.MaxOpenConns == 0 {
		cfg.SQLite.MaxOpenConns = DefaultAuditSQLiteMaxOpenConns
	}
	if cfg.SQLite.MaxIdleConns == 0 {
		cfg.SQLite.MaxIdleConns = DefaultAuditSQLiteMaxIdleConns
	}
	if cfg.SQLite.BusyTimeout == 0 {
		cfg.SQLite.BusyTimeout = DefaultAuditSQLiteBusyTimeout
	}
	if cfg.Recorder.AsyncBuffer == 0 {
		cfg.Recorder.AsyncBuffer = DefaultAuditRecorderAsyncBuffer
	}
	if cfg.Recorder.WriteTimeout == 0 {
		cfg.Recorder.WriteTimeout = DefaultAuditRecorderWriteTimeout
	}
	if cfg.Retention.Years == 0 {
		cfg.Retention.Years = DefaultAuditRetentionYears
	}
	if cfg.Retention.PruneSchedule == "" {
		cfg.Retention.PruneSchedule = DefaultAuditPruneSchedule
	}
	if cfg.Review.Schedule == "" {
		cfg.Review.Schedule = DefaultAuditReviewSchedule
	}
	if cfg.Review.OutputDir == "" {
		cfg.Review.OutputDir = DefaultAuditReviewOutputDir
	}
	if cfg.Query.DefaultLimit == 0 {
		cfg.Query.DefaultLimit = DefaultAuditQueryDefaultLimit
	}
	if cfg.Query.MaxLimit == 0 {
		cfg.Query.MaxLimit = DefaultAuditQueryMaxLimit
	}
	if cfg.Export.MaxExportSize == 0 {
		cfg.Export.MaxExportSize = DefaultAuditExportMaxSize
	}
}

func applyDeliveryDefaults(cfg *DeliveryConfig) {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultDeliveryConcurrency
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultDeliveryMaxAttempts
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = DefaultDeliveryInitialBackoff
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = DefaultDeliveryMaxBackoff
	}
	if cfg.BackoffMultiplier == 0 {
		cfg.BackoffMultiplier = DefaultDeliveryBackoffMultiplier
	}
	if cfg.BackoffJitter == 0 {
		cfg.BackoffJitter = DefaultDeliveryBackoffJitter
	}
	if cfg.RateLimitedBackoffMultiplier == 0 {
		cfg.RateLimitedBackoffMultiplier = DefaultDeliveryRateLimitedBackoff
	}
	if cfg.RatePerSecond == 0 {
		cfg.RatePerSecond = DefaultDeliveryRatePerSecond
	}
	if cfg.DailyLimit == 0 {
		cfg.DailyLimit = DefaultDeliveryDailyLimit
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultDeliveryTimezone
	}
	if cfg.QuotaRolloverSchedule == "" {
		cfg.QuotaRolloverSchedule = DefaultDeliveryQuotaRollover
	}
	if cfg.IdempotencyTTL == 0 {
		cfg.IdempotencyTTL = DefaultDeliveryIdempotencyTTL
	}

	// Breaker defaults
	if cfg.Breaker.Threshold == 0 {
		cfg.Breaker.Threshold = DefaultBreakerThreshold
	}
	if cfg.Breaker.HalfOpenTimeout == 0 {
		cfg.Breaker.HalfOpenTimeout = DefaultBreakerHalfOpenTimeout
	}
	if cfg.Breaker.SuccessThreshold == 0 {
		cfg.Breaker.SuccessThreshold = DefaultBreakerSuccessThreshold
	}

	// Store defaults
	if cfg.Quota.Backend == "" {
		cfg.Quota.Backend = DefaultQuotaBackend
	}
	if cfg.Quota.SQLitePath == "" {
		cfg.Quota.SQLitePath = DefaultDeliverySQLitePath
	}
	if cfg.Quota.Redis.Addr == "" {
		cfg.Quota.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Quota.Redis.KeyPrefix == "" {
		cfg.Quota.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Jobs.Backend == "" {
		cfg.Jobs.Backend = DefaultJobStoreBackend
	}
	if cfg.Jobs.SQLitePath == "" {
		cfg.Jobs.SQLitePath = DefaultDeliverySQLitePath
	}

	// Gateway defaults
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = DefaultGatewayTimeout
	}
	if cfg.Gateway.DefaultRegion == "" {
		cfg.Gateway.DefaultRegion = DefaultGatewayRegion
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Tracing.Timeout == 0 {
		cfg.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Health.LivenessPath == "" {
		cfg.Health.LivenessPath = DefaultHealthLivenessPath
	}
	if cfg.Health.ReadinessPath == "" {
		cfg.Health.ReadinessPath = DefaultHealthReadinessPath
	}
	if cfg.Health.CheckTimeout == 0 {
		cfg.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
