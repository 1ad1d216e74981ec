package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit/retention"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit/review"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit/trail"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/cli"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance/pipeline"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance/rules"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance/semantic"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/config"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/delivery"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/server"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/service"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/telemetry/health"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Jarvish API server",
	Long: `Start the Jarvish API server with the specified configuration.

The server validates submitted content, records every verdict in the audit
trail and delivers compliant content through the delivery queue.

Examples:
  # Start with default config
  jarvish run

  # Start with custom config
  jarvish run --config /etc/jarvish/config.yaml

  # Override listen address
  jarvish run --listen 0.0.0.0:8080

  # Validate config without starting server
  jarvish run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	logger, err := newLogger(cfg.Telemetry.Logging, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Fprintln(stdout(cmd), "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(commandContext(cmd))
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// serve wires every component from cfg and blocks until ctx is cancelled or
// a component fails.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) (err error) {
	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if terr := tracer.Shutdown(sctx); terr != nil {
			logger.Warn("tracer shutdown failed", "error", terr)
		}
	}()

	engine, gitSource, err := buildEngine(ctx, cfg.Rules, logger)
	if err != nil {
		return err
	}
	logger.Info("rulebook loaded", "source", cfg.Rules.Source, "version", engine.Rulebook().Version)

	analyzer, err := semantic.New(cfg.Semantic, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize semantic analyzer: %w", err)
	}

	flaggers := []trail.Option{trail.WithFlagger(review.NewLogFlagger(logger))}
	var reviewQueue *review.Queue
	if cfg.Audit.Review.Enabled {
		reviewQueue = review.NewQueue(cfg.Audit.Review.OutputDir, cfg.Audit.Review.Schedule, logger)
		flaggers = append(flaggers, trail.WithFlagger(reviewQueue))
	}

	tr, err := buildTrail(cfg.Audit, logger, flaggers...)
	if err != nil {
		return fmt.Errorf("failed to open audit trail: %w", err)
	}

	p := pipeline.New(engine, analyzer, pipeline.ConfigFrom(cfg.Pipeline, cfg.Rules), logger,
		pipeline.WithRecorder(tr),
		pipeline.WithTracer(tracer),
	)

	stores, err := buildDeliveryStores(cfg.Delivery)
	if err != nil {
		tr.Close()
		return fmt.Errorf("failed to open delivery stores: %w", err)
	}
	defer stores.Close()

	qcfg, err := delivery.ConfigFrom(cfg.Delivery)
	if err != nil {
		tr.Close()
		return cli.NewConfigError("delivery", err.Error())
	}
	queue, err := delivery.New(qcfg, delivery.Deps{
		Gateway: delivery.NewHTTPGateway(cfg.Delivery.Gateway, nil, logger),
		Quota:   stores.quota,
		Jobs:    stores.jobs,
		Logger:  logger,
		Tracer:  tracer,
	})
	if err != nil {
		tr.Close()
		return err
	}

	svc, err := service.New(service.Deps{
		Pipeline:  p,
		Trail:     tr,
		Queue:     queue,
		Templates: delivery.NewStaticTemplateProvider(cfg.Delivery.Templates),
		Logger:    logger,
	})
	if err != nil {
		tr.Close()
		return err
	}
	if err := svc.Start(ctx); err != nil {
		tr.Close()
		return fmt.Errorf("failed to start delivery queue: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if serr := svc.Shutdown(sctx); serr != nil {
			logger.Error("service shutdown failed", "error", serr)
			err = errors.Join(err, serr)
		}
	}()

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	checker.RegisterCheck("audit_storage", true, tr.Ping)
	checker.RegisterCheck("delivery_quota", true, stores.ping)
	checker.RegisterCheck("delivery_circuit", false, func(context.Context) error {
		if queue.Breaker().IsOpen() {
			return errors.New("gateway circuit is open")
		}
		return nil
	})
	if hc, ok := analyzer.(interface{ HealthCheck(context.Context) error }); ok {
		checker.RegisterCheck("semantic", false, hc.HealthCheck)
	}

	scheduler := retention.NewScheduler(retention.NewPruner(tr, logger), cfg.Audit.Retention.PruneSchedule, logger)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	if reviewQueue != nil {
		if err := reviewQueue.Start(ctx); err != nil {
			return err
		}
		defer reviewQueue.Stop()
	}

	srv := server.New(cfg.Server, svc,
		server.WithHealth(checker, cfg.Telemetry.Health.LivenessPath, cfg.Telemetry.Health.ReadinessPath),
		server.WithMetrics(cfg.Telemetry.Metrics.Path),
		server.WithVersion(Version, GitCommit, BuildDate),
		server.WithLogger(logger),
	)

	var watcher *rules.Watcher
	if cfg.Rules.Source == "file" && cfg.Rules.Watch {
		watcher, err = rules.NewWatcher(engine, cfg.Rules.FilePath, cfg.Rules.DebounceInterval, logger)
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	if watcher != nil {
		g.Go(func() error { return watcher.Watch(gctx) })
	}
	if gitSource != nil {
		g.Go(func() error { return gitSource.Run(gctx) })
	}

	logger.Info("jarvish started",
		"version", Version,
		"address", cfg.Server.ListenAddress,
		"audit_backend", cfg.Audit.Backend,
		"quota_backend", cfg.Delivery.Quota.Backend,
	)

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutting down")
	return nil
}
