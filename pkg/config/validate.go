package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateRules(&cfg.Rules)...)
	errs = append(errs, validateSemantic(&cfg.Semantic)...)
	errs = append(errs, validatePipeline(&cfg.Pipeline)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateDelivery(&cfg.Delivery)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	errs = append(errs, nonNegative("server.read_timeout", cfg.ReadTimeout)...)
	errs = append(errs, nonNegative("server.write_timeout", cfg.WriteTimeout)...)
	errs = append(errs, nonNegative("server.idle_timeout", cfg.IdleTimeout)...)
	errs = append(errs, nonNegative("server.shutdown_timeout", cfg.ShutdownTimeout)...)

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, FieldError{
				Field:   "server.rate_limit.requests_per_second",
				Message: "must be positive when rate limiting is enabled",
			})
		}
		if cfg.RateLimit.Burst <= 0 {
			errs = append(errs, FieldError{
				Field:   "server.rate_limit.burst",
				Message: "must be positive when rate limiting is enabled",
			})
		}
	}

	return errs
}

func validateRules(cfg *RulesConfig) []FieldError {
	var errs []FieldError

	switch cfg.Source {
	case "builtin":
	case "file":
		if cfg.FilePath == "" {
			errs = append(errs, FieldError{
				Field:   "rules.file_path",
				Message: "file path is required when source is \"file\"",
			})
		}
	case "git":
		if cfg.Git.Repository == "" {
			errs = append(errs, FieldError{
				Field:   "rules.git.repository",
				Message: "repository is required when source is \"git\"",
			})
		} else if _, err := url.Parse(cfg.Git.Repository); err != nil {
			errs = append(errs, FieldError{
				Field:   "rules.git.repository",
				Message: fmt.Sprintf("invalid repository URL: %v", err),
			})
		}
		errs = append(errs, nonNegative("rules.git.poll_interval", cfg.Git.PollInterval)...)
	default:
		errs = append(errs, FieldError{
			Field:   "rules.source",
			Message: fmt.Sprintf("unknown source %q (expected builtin, file, or git)", cfg.Source),
		})
	}

	return errs
}

func validateSemantic(cfg *SemanticConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled {
		if cfg.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "semantic.endpoint",
				Message: "endpoint is required when semantic analysis is enabled",
			})
		} else if u, err := url.Parse(cfg.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "semantic.endpoint",
				Message: "endpoint must be an absolute URL",
			})
		}
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "semantic.timeout",
			Message: "timeout must be positive",
		})
	}
	if cfg.MaxRetries < 0 {
		errs = append(errs, FieldError{
			Field:   "semantic.max_retries",
			Message: "max retries must be non-negative",
		})
	}

	return errs
}

func validatePipeline(cfg *PipelineConfig) []FieldError {
	var errs []FieldError

	if cfg.SemanticTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "pipeline.semantic_timeout",
			Message: "semantic timeout must be positive",
		})
	}
	if cfg.ComplianceThreshold < 0 || cfg.ComplianceThreshold > 100 {
		errs = append(errs, FieldError{
			Field:   "pipeline.compliance_threshold",
			Message: "compliance threshold must be between 0 and 100",
		})
	}
	if cfg.RuleWeight < 0 || cfg.SemanticWeight < 0 {
		errs = append(errs, FieldError{
			Field:   "pipeline.rule_weight",
			Message: "weights must be non-negative",
		})
	}
	if sum := cfg.RuleWeight + cfg.SemanticWeight; sum < 0.999 || sum > 1.001 {
		errs = append(errs, FieldError{
			Field:   "pipeline.semantic_weight",
			Message: fmt.Sprintf("rule_weight and semantic_weight must sum to 1.0, got %.3f", sum),
		})
	}
	if cfg.FallbackPenalty < 0 || cfg.FallbackPenalty > 100 {
		errs = append(errs, FieldError{
			Field:   "pipeline.fallback_penalty",
			Message: "fallback penalty must be between 0 and 100",
		})
	}

	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "audit.sqlite.path",
				Message: "path is required for the sqlite backend",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("unknown backend %q (expected memory or sqlite)", cfg.Backend),
		})
	}

	if cfg.Retention.Years < 1 {
		errs = append(errs, FieldError{
			Field:   "audit.retention.years",
			Message: "retention must be at least one year",
		})
	}
	if cfg.Retention.PruneSchedule == "" {
		errs = append(errs, FieldError{
			Field:   "audit.retention.prune_schedule",
			Message: "prune schedule is required",
		})
	}
	if cfg.Review.Enabled && cfg.Review.OutputDir == "" {
		errs = append(errs, FieldError{
			Field:   "audit.review.output_dir",
			Message: "output directory is required when review export is enabled",
		})
	}
	if cfg.Recorder.AsyncBuffer < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.recorder.async_buffer",
			Message: "async buffer must be non-negative",
		})
	}
	if cfg.Query.DefaultLimit > cfg.Query.MaxLimit {
		errs = append(errs, FieldError{
			Field:   "audit.query.default_limit",
			Message: "default limit must not exceed max limit",
		})
	}

	return errs
}

func validateDelivery(cfg *DeliveryConfig) []FieldError {
	var errs []FieldError

	if cfg.Concurrency < 1 {
		errs = append(errs, FieldError{
			Field:   "delivery.concurrency",
			Message: "concurrency must be at least 1",
		})
	}
	if cfg.MaxAttempts < 1 {
		errs = append(errs, FieldError{
			Field:   "delivery.max_attempts",
			Message: "max attempts must be at least 1",
		})
	}
	if cfg.InitialBackoff <= 0 || cfg.MaxBackoff < cfg.InitialBackoff {
		errs = append(errs, FieldError{
			Field:   "delivery.max_backoff",
			Message: "backoff must be positive and max_backoff must not be below initial_backoff",
		})
	}
	if cfg.BackoffMultiplier < 1 {
		errs = append(errs, FieldError{
			Field:   "delivery.backoff_multiplier",
			Message: "backoff multiplier must be at least 1",
		})
	}
	if cfg.BackoffJitter < 0 || cfg.BackoffJitter >= 1 {
		errs = append(errs, FieldError{
			Field:   "delivery.backoff_jitter",
			Message: "backoff jitter must be in [0, 1)",
		})
	}
	if cfg.RatePerSecond <= 0 {
		errs = append(errs, FieldError{
			Field:   "delivery.rate_per_second",
			Message: "rate per second must be positive",
		})
	}
	if cfg.DailyLimit < 1 {
		errs = append(errs, FieldError{
			Field:   "delivery.daily_limit",
			Message: "daily limit must be at least 1",
		})
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		errs = append(errs, FieldError{
			Field:   "delivery.timezone",
			Message: fmt.Sprintf("unknown timezone %q", cfg.Timezone),
		})
	}

	if cfg.Breaker.Threshold < 1 {
		errs = append(errs, FieldError{
			Field:   "delivery.breaker.threshold",
			Message: "threshold must be at least 1",
		})
	}
	if cfg.Breaker.HalfOpenTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "delivery.breaker.half_open_timeout",
			Message: "half-open timeout must be positive",
		})
	}
	if cfg.Breaker.SuccessThreshold < 1 {
		errs = append(errs, FieldError{
			Field:   "delivery.breaker.success_threshold",
			Message: "success threshold must be at least 1",
		})
	}

	switch cfg.Quota.Backend {
	case "memory", "sqlite":
	case "redis":
		if cfg.Quota.Redis.Addr == "" {
			errs = append(errs, FieldError{
				Field:   "delivery.quota.redis.addr",
				Message: "address is required for the redis backend",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "delivery.quota.backend",
			Message: fmt.Sprintf("unknown backend %q (expected memory, sqlite, or redis)", cfg.Quota.Backend),
		})
	}

	switch cfg.Jobs.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, FieldError{
			Field:   "delivery.jobs.backend",
			Message: fmt.Sprintf("unknown backend %q (expected memory or sqlite)", cfg.Jobs.Backend),
		})
	}

	if cfg.Gateway.BaseURL != "" {
		if u, err := url.Parse(cfg.Gateway.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "delivery.gateway.base_url",
				Message: "base URL must be an absolute URL",
			})
		}
	}

	for i, tmpl := range cfg.Templates {
		if tmpl.Name == "" || tmpl.UseCase == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("delivery.templates[%d]", i),
				Message: "name and use_case are required",
			})
		}
		if tmpl.HealthScore < 0 || tmpl.HealthScore > 100 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("delivery.templates[%d].health_score", i),
				Message: "health score must be between 0 and 100",
			})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown log level %q", cfg.Logging.Level),
		})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown log format %q", cfg.Logging.Format),
		})
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("unknown sampler %q", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: "sample ratio must be between 0.0 and 1.0",
			})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "endpoint is required when tracing is enabled",
			})
		}
	}

	return errs
}

func nonNegative(field string, d time.Duration) []FieldError {
	if d < 0 {
		return []FieldError{{Field: field, Message: "duration must be non-negative"}}
	}
	return nil
}
