package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit/storage"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit/trail"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/cli"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance/rules"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/config"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/delivery"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/delivery/store"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/telemetry/logging"
)

// loadConfig reads the configuration file named by --config. A missing
// default file falls back to built-in defaults.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == defaultConfigFile {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the process logger. Commands other than run log to
// stderr so their output stays machine-readable.
func newLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	l, err := logging.New(logging.Config{
		Level:     cfg.Level,
		Format:    cfg.Format,
		AddSource: cfg.AddSource,
		RedactPII: cfg.RedactPII,
		Writer:    w,
	})
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	return l.Slog(), nil
}

// buildEngine loads the rulebook from the configured source. For git the
// first sync must succeed; the returned source keeps it current.
func buildEngine(ctx context.Context, cfg config.RulesConfig, logger *slog.Logger) (*rules.Engine, *rules.GitSource, error) {
	switch cfg.Source {
	case "file":
		rb, err := rules.LoadRulebook(cfg.FilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load rulebook: %w", err)
		}
		engine, err := rules.NewEngine(rb)
		return engine, nil, err

	case "git":
		engine, err := rules.NewEngine(nil)
		if err != nil {
			return nil, nil, err
		}
		src, err := rules.NewGitSource(cfg.Git, engine, logger)
		if err != nil {
			return nil, nil, cli.NewConfigError("rules.git", err.Error())
		}
		if _, err := src.Sync(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed initial rulebook sync: %w", err)
		}
		return engine, src, nil

	default:
		engine, err := rules.NewEngine(nil)
		return engine, nil, err
	}
}

// buildTrail opens the configured audit storage.
func buildTrail(cfg config.AuditConfig, logger *slog.Logger, opts ...trail.Option) (*trail.Trail, error) {
	var s audit.Storage
	switch cfg.Backend {
	case "memory":
		s = storage.NewMemoryStorage()
	default:
		sq, err := storage.NewSQLiteStorage(storage.SQLiteConfigFrom(cfg.SQLite))
		if err != nil {
			return nil, err
		}
		s = sq
	}
	return trail.New(s, trail.ConfigFrom(cfg), logger, opts...), nil
}

// deliveryStores holds the queue's persistent collaborators.
type deliveryStores struct {
	quota   delivery.QuotaStore
	jobs    delivery.JobStore
	closers []io.Closer
}

// ping checks the quota backend; the memory store is always reachable.
func (s *deliveryStores) ping(ctx context.Context) error {
	if p, ok := s.quota.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *deliveryStores) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func buildDeliveryStores(cfg config.DeliveryConfig) (*deliveryStores, error) {
	s := &deliveryStores{}

	switch cfg.Quota.Backend {
	case "memory":
		s.quota = delivery.NewMemoryQuotaStore()
	case "redis":
		rq := store.NewRedisQuotaStoreFromConfig(cfg.Quota.Redis)
		s.quota = rq
		s.closers = append(s.closers, rq)
	default:
		sq, err := store.NewSQLiteQuotaStore(cfg.Quota.SQLitePath, 0)
		if err != nil {
			return nil, err
		}
		s.quota = sq
		s.closers = append(s.closers, sq)
	}

	switch cfg.Jobs.Backend {
	case "memory":
		s.jobs = delivery.NewMemoryJobStore()
	default:
		sj, err := store.NewSQLiteJobStore(cfg.Jobs.SQLitePath, 0)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.jobs = sj
		s.closers = append(s.closers, sj)
	}
	return s, nil
}
