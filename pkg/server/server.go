package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/config"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/service"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/telemetry/health"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/telemetry/metrics"
)

// Option configures a Server.
type Option func(*Server)

// WithHealth mounts liveness and readiness probes backed by checker.
func WithHealth(checker *health.Checker, livenessPath, readinessPath string) Option {
	return func(s *Server) {
		s.checker = checker
		s.livenessPath = livenessPath
		s.readinessPath = readinessPath
	}
}

// WithMetrics mounts the Prometheus endpoint at path.
func WithMetrics(path string) Option {
	return func(s *Server) { s.metricsPath = path }
}

// WithVersion mounts /version with build information.
func WithVersion(version, commit, buildTime string) Option {
	return func(s *Server) {
		s.version = &versionInfo{version: version, commit: commit, buildTime: buildTime}
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

type versionInfo struct {
	version, commit, buildTime string
}

// Server is the HTTP API server.
type Server struct {
	config     config.ServerConfig
	svc        *service.Service
	logger     *slog.Logger
	httpServer *http.Server

	checker       *health.Checker
	livenessPath  string
	readinessPath string
	metricsPath   string
	version       *versionInfo

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         net.Addr
}

// New creates a server for svc.
func New(cfg config.ServerConfig, svc *service.Service, opts ...Option) *Server {
	s := &Server{
		config: cfg,
		svc:    svc,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")
	return s
}

// Start listens and serves until ctx is cancelled or the listener fails.
// Cancellation triggers a graceful shutdown bounded by ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}
	s.addr = ln.Addr()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// Shutdown gracefully stops the server. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())
		shutdownCtx := ctx
		if s.config.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
			defer cancel()
		}

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		s.logger.Info("API server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the listener address once started.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	h := newHandlers(s.svc, s.logger)

	api := http.NewServeMux()
	api.HandleFunc("POST /v1/content/validate", h.validateContent)
	api.HandleFunc("POST /v1/content/autofix", h.autofixContent)
	api.HandleFunc("POST /v1/deliveries", h.submitDelivery)
	api.HandleFunc("GET /v1/deliveries/stats", h.deliveryStats)
	api.HandleFunc("GET /v1/deliveries/{id}", h.deliveryJob)
	api.HandleFunc("POST /v1/deliveries/pause", h.pauseDeliveries)
	api.HandleFunc("POST /v1/deliveries/resume", h.resumeDeliveries)
	api.HandleFunc("GET /v1/audit", h.queryAudit)
	api.HandleFunc("GET /v1/audit/export", h.exportAudit)
	api.HandleFunc("GET /v1/audit/entries/{id}", h.auditEntry)

	var apiHandler http.Handler = api
	if rl := s.config.RateLimit; rl.Enabled {
		apiHandler = newAdvisorLimiter(rate.Limit(rl.RequestsPerSecond), rl.Burst).middleware(apiHandler)
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/", apiHandler)
	if s.checker != nil {
		mux.Handle("GET "+s.livenessPath, s.checker.LivenessHandler())
		mux.Handle("GET "+s.readinessPath, s.checker.ReadinessHandler())
	}
	if s.metricsPath != "" {
		mux.Handle("GET "+s.metricsPath, metrics.Handler())
	}
	if s.version != nil {
		mux.Handle("GET /version", health.VersionHandler(s.version.version, s.version.commit, s.version.buildTime))
	}

	// Recovery is outermost.
	var handler http.Handler = mux
	handler = loggingMiddleware(s.logger)(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(s.logger)(handler)
	return handler
}
