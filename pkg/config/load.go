package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// Environment variables are not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention JARVISH_SECTION_FIELD (e.g., JARVISH_SERVER_LISTEN_ADDRESS) and
// always take precedence over file-based configuration.
//
// An empty path skips the file and starts from defaults.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("JARVISH_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("JARVISH_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("JARVISH_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("JARVISH_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envBool("JARVISH_SERVER_RATE_LIMIT_ENABLED", &cfg.Server.RateLimit.Enabled)

	// Rules overrides
	envString("JARVISH_RULES_SOURCE", &cfg.Rules.Source)
	envString("JARVISH_RULES_FILE_PATH", &cfg.Rules.FilePath)
	envBool("JARVISH_RULES_WATCH", &cfg.Rules.Watch)
	envBool("JARVISH_RULES_STRICT", &cfg.Rules.Strict)
	envString("JARVISH_RULES_GIT_REPOSITORY", &cfg.Rules.Git.Repository)
	envString("JARVISH_RULES_GIT_BRANCH", &cfg.Rules.Git.Branch)
	envString("JARVISH_RULES_GIT_TOKEN", &cfg.Rules.Git.Token)

	// Semantic overrides
	envBool("JARVISH_SEMANTIC_ENABLED", &cfg.Semantic.Enabled)
	envString("JARVISH_SEMANTIC_ENDPOINT", &cfg.Semantic.Endpoint)
	envString("JARVISH_SEMANTIC_API_KEY", &cfg.Semantic.APIKey)
	envDuration("JARVISH_SEMANTIC_TIMEOUT", &cfg.Semantic.Timeout)

	// Audit overrides
	envString("JARVISH_AUDIT_BACKEND", &cfg.Audit.Backend)
	envString("JARVISH_AUDIT_SQLITE_PATH", &cfg.Audit.SQLite.Path)
	envInt("JARVISH_AUDIT_RETENTION_YEARS", &cfg.Audit.Retention.Years)
	envBool("JARVISH_AUDIT_REVIEW_ENABLED", &cfg.Audit.Review.Enabled)

	// Delivery overrides
	envInt("JARVISH_DELIVERY_CONCURRENCY", &cfg.Delivery.Concurrency)
	envInt("JARVISH_DELIVERY_MAX_ATTEMPTS", &cfg.Delivery.MaxAttempts)
	envFloat("JARVISH_DELIVERY_RATE_PER_SECOND", &cfg.Delivery.RatePerSecond)
	if val := os.Getenv("JARVISH_DELIVERY_DAILY_LIMIT"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Delivery.DailyLimit = i
		}
	}
	envString("JARVISH_DELIVERY_TIMEZONE", &cfg.Delivery.Timezone)
	envString("JARVISH_DELIVERY_QUOTA_BACKEND", &cfg.Delivery.Quota.Backend)
	envString("JARVISH_DELIVERY_QUOTA_REDIS_ADDR", &cfg.Delivery.Quota.Redis.Addr)
	envString("JARVISH_DELIVERY_QUOTA_REDIS_PASSWORD", &cfg.Delivery.Quota.Redis.Password)
	envString("JARVISH_DELIVERY_JOBS_BACKEND", &cfg.Delivery.Jobs.Backend)
	envString("JARVISH_DELIVERY_GATEWAY_BASE_URL", &cfg.Delivery.Gateway.BaseURL)
	envString("JARVISH_DELIVERY_GATEWAY_API_KEY", &cfg.Delivery.Gateway.APIKey)
	envString("JARVISH_DELIVERY_GATEWAY_SENDER_ID", &cfg.Delivery.Gateway.SenderID)

	// Telemetry overrides
	envString("JARVISH_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("JARVISH_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("JARVISH_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("JARVISH_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envFloat("JARVISH_TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envFloat(key string, dst *float64) {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
