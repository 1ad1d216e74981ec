package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

// TestDefault tests that a defaulted configuration is valid and carries the
// documented delivery limits.
func TestDefault(t *testing.T) {
	cfg := Default()

	if err := Validate(cfg); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Delivery.Breaker.Threshold != 5 {
		t.Errorf("expected breaker threshold 5, got %d", cfg.Delivery.Breaker.Threshold)
	}
	if cfg.Delivery.Breaker.HalfOpenTimeout != 60*time.Second {
		t.Errorf("expected half-open timeout 60s, got %v", cfg.Delivery.Breaker.HalfOpenTimeout)
	}
	if cfg.Delivery.Breaker.SuccessThreshold != 3 {
		t.Errorf("expected success threshold 3, got %d", cfg.Delivery.Breaker.SuccessThreshold)
	}
	if cfg.Delivery.MaxAttempts != 3 {
		t.Errorf("expected max attempts 3, got %d", cfg.Delivery.MaxAttempts)
	}
	if cfg.Pipeline.ComplianceThreshold != 70 {
		t.Errorf("expected compliance threshold 70, got %d", cfg.Pipeline.ComplianceThreshold)
	}
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9090"
  read_timeout: "60s"

delivery:
  concurrency: 50
  daily_limit: 250
  rate_per_second: 20
  quota:
    backend: "memory"
  templates:
    - use_case: "market_update"
      name: "market_update_v2"
      language: "en"
      health_score: 92

audit:
  backend: "memory"
  retention:
    years: 7

telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("expected listen address %q, got %q", "0.0.0.0:9090", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != 60*time.Second {
		t.Errorf("expected read timeout 60s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Delivery.Concurrency != 50 {
		t.Errorf("expected concurrency 50, got %d", cfg.Delivery.Concurrency)
	}
	if cfg.Delivery.DailyLimit != 250 {
		t.Errorf("expected daily limit 250, got %d", cfg.Delivery.DailyLimit)
	}
	if len(cfg.Delivery.Templates) != 1 || cfg.Delivery.Templates[0].HealthScore != 92 {
		t.Errorf("expected one template with health 92, got %+v", cfg.Delivery.Templates)
	}
	if cfg.Audit.Retention.Years != 7 {
		t.Errorf("expected retention 7 years, got %d", cfg.Audit.Retention.Years)
	}

	// Unset fields get defaults
	if cfg.Delivery.Jobs.Backend != DefaultJobStoreBackend {
		t.Errorf("expected job store backend %q, got %q", DefaultJobStoreBackend, cfg.Delivery.Jobs.Backend)
	}
	if cfg.Audit.Retention.PruneSchedule != DefaultAuditPruneSchedule {
		t.Errorf("expected prune schedule %q, got %q", DefaultAuditPruneSchedule, cfg.Audit.Retention.PruneSchedule)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
delivery:
  daily_limit: 100
`)

	t.Setenv("JARVISH_DELIVERY_DAILY_LIMIT", "500")
	t.Setenv("JARVISH_SERVER_LISTEN_ADDRESS", "0.0.0.0:7000")
	t.Setenv("JARVISH_DELIVERY_QUOTA_BACKEND", "redis")
	t.Setenv("JARVISH_TELEMETRY_LOGGING_LEVEL", "warn")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Delivery.DailyLimit != 500 {
		t.Errorf("expected env daily limit 500, got %d", cfg.Delivery.DailyLimit)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:7000" {
		t.Errorf("expected env listen address, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Delivery.Quota.Backend != "redis" {
		t.Errorf("expected quota backend redis, got %q", cfg.Delivery.Quota.Backend)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %q", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadConfigWithEnvOverrides_NoFile(t *testing.T) {
	t.Setenv("JARVISH_DELIVERY_CONCURRENCY", "4")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Delivery.Concurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.Delivery.Concurrency)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		field   string
		wantErr bool
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown quota backend",
			mutate:  func(c *Config) { c.Delivery.Quota.Backend = "etcd" },
			field:   "delivery.quota.backend",
			wantErr: true,
		},
		{
			name:    "semantic enabled without endpoint",
			mutate:  func(c *Config) { c.Semantic.Enabled = true },
			field:   "semantic.endpoint",
			wantErr: true,
		},
		{
			name:    "weights do not sum to one",
			mutate:  func(c *Config) { c.Pipeline.RuleWeight = 0.9 },
			field:   "pipeline.semantic_weight",
			wantErr: true,
		},
		{
			name:    "unknown timezone",
			mutate:  func(c *Config) { c.Delivery.Timezone = "Mars/Olympus" },
			field:   "delivery.timezone",
			wantErr: true,
		},
		{
			name:    "git source without repository",
			mutate:  func(c *Config) { c.Rules.Source = "git" },
			field:   "rules.git.repository",
			wantErr: true,
		},
		{
			name:    "zero retention",
			mutate:  func(c *Config) { c.Audit.Retention.Years = -1 },
			field:   "audit.retention.years",
			wantErr: true,
		},
		{
			name: "template health out of range",
			mutate: func(c *Config) {
				c.Delivery.Templates = []TemplateConfig{{UseCase: "u", Name: "n", HealthScore: 150}}
			},
			field:   "delivery.templates[0].health_score",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on field %q, got %v", tt.field, err)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{Errors: []FieldError{
		{Field: "a", Message: "bad"},
		{Field: "b", Message: "worse"},
	}}
	msg := err.Error()
	if !strings.Contains(msg, "2 errors") || !strings.Contains(msg, "a: bad") {
		t.Errorf("unexpected message: %q", msg)
	}
}
