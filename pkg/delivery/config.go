package delivery

import (
	"fmt"
	"time"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/config"
)

// Config contains queue configuration.
type Config struct {
	// Concurrency is the number of dispatch workers.
	Concurrency int

	// MaxAttempts caps gateway attempts per job.
	MaxAttempts int

	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	// BackoffJitter randomizes retry delays by this fraction. Zero makes
	// the schedule deterministic.
	BackoffJitter float64

	// RateLimitedMultiplier stretches the standard delay after a
	// KindGatewayRateLimited failure.
	RateLimitedMultiplier float64

	// RatePerSecond caps gateway calls per second. Zero disables pacing.
	RatePerSecond float64

	// DailyLimit caps messages per calendar day in Location.
	DailyLimit int64
	Location   *time.Location

	// SenderID scopes quota keys.
	SenderID string

	// SendTimeout bounds a single gateway call.
	SendTimeout time.Duration

	// IdempotencyTTL is how long terminal jobs are kept for deduplication.
	IdempotencyTTL time.Duration

	// RolloverSchedule is a cron expression for the daily rollover job.
	// Empty disables it.
	RolloverSchedule string

	Breaker BreakerConfig
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	loc, err := time.LoadLocation(config.DefaultDeliveryTimezone)
	if err != nil {
		loc = time.UTC
	}
	return Config{
		Concurrency:           config.DefaultDeliveryConcurrency,
		MaxAttempts:           config.DefaultDeliveryMaxAttempts,
		InitialBackoff:        config.DefaultDeliveryInitialBackoff,
		MaxBackoff:            config.DefaultDeliveryMaxBackoff,
		BackoffMultiplier:     config.DefaultDeliveryBackoffMultiplier,
		BackoffJitter:         config.DefaultDeliveryBackoffJitter,
		RateLimitedMultiplier: config.DefaultDeliveryRateLimitedBackoff,
		RatePerSecond:         config.DefaultDeliveryRatePerSecond,
		DailyLimit:            config.DefaultDeliveryDailyLimit,
		Location:              loc,
		SendTimeout:           config.DefaultGatewayTimeout,
		IdempotencyTTL:        config.DefaultDeliveryIdempotencyTTL,
		RolloverSchedule:      config.DefaultDeliveryQuotaRollover,
		Breaker:               DefaultBreakerConfig(),
	}
}

// ConfigFrom converts the file configuration. It fails if the timezone is
// unknown.
func ConfigFrom(cfg config.DeliveryConfig) (Config, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("invalid delivery timezone %q: %w", cfg.Timezone, err)
	}
	return Config{
		Concurrency:           cfg.Concurrency,
		MaxAttempts:           cfg.MaxAttempts,
		InitialBackoff:        cfg.InitialBackoff,
		MaxBackoff:            cfg.MaxBackoff,
		BackoffMultiplier:     cfg.BackoffMultiplier,
		BackoffJitter:         cfg.BackoffJitter,
		RateLimitedMultiplier: cfg.RateLimitedBackoffMultiplier,
		RatePerSecond:         cfg.RatePerSecond,
		DailyLimit:            cfg.DailyLimit,
		Location:              loc,
		SenderID:              cfg.Gateway.SenderID,
		SendTimeout:           cfg.Gateway.Timeout,
		IdempotencyTTL:        cfg.IdempotencyTTL,
		RolloverSchedule:      cfg.QuotaRolloverSchedule,
		Breaker: BreakerConfig{
			Threshold:        cfg.Breaker.Threshold,
			HalfOpenTimeout:  cfg.Breaker.HalfOpenTimeout,
			SuccessThreshold: cfg.Breaker.SuccessThreshold,
		},
	}, nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = max(d.MaxBackoff, c.InitialBackoff)
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = d.BackoffMultiplier
	}
	if c.BackoffJitter < 0 || c.BackoffJitter >= 1 {
		c.BackoffJitter = 0
	}
	if c.RateLimitedMultiplier < 1 {
		c.RateLimitedMultiplier = 1
	}
	if c.RatePerSecond < 0 {
		c.RatePerSecond = 0
	}
	if c.DailyLimit <= 0 {
		c.DailyLimit = d.DailyLimit
	}
	if c.Location == nil {
		c.Location = d.Location
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	if c.IdempotencyTTL <= 0 {
		c.IdempotencyTTL = d.IdempotencyTTL
	}
	return c
}
