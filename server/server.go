// Package server provides the HTTP server for featurebatch.
//
// The server owns no pipeline state of its own: it exposes the runner that
// executes batches in the background and, optionally, triggers it from a cron
// schedule.
//
// # Endpoints
//
//   - GET /health - Liveness check, returns "ok"
//   - GET /api/status - Server properties, run status and next scheduled run
//   - GET /api/run - Current and last run only
//   - GET /config - Active configuration as YAML, credentials redacted
//   - POST /run - Starts a batch run (202, or 409 while one is running)
//   - GET /history - Completed runs, most recent first
//   - GET /history/{id} - One run with its failures and captured logs
//   - POST /history/reload - Re-reads a disk-backed history
//   - GET /metrics - Prometheus metrics, when a handler is configured
//
// # Example
//
//	srv, err := server.New(r, logger,
//	    server.WithListenAddr(":8080"),
//	    server.WithCron("0 2 * * *"),
//	)
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx)
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nomis52/featurebatch/config"
	"github.com/nomis52/featurebatch/server/cron"
	"github.com/nomis52/featurebatch/server/handlers"
	"github.com/nomis52/featurebatch/server/runner"
	"github.com/nomis52/featurebatch/server/types"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
	defaultListenAddr      = ":8080"

	// TriggerCron is recorded on runs started by the schedule.
	TriggerCron = "cron"
)

// Server is the HTTP front end of a runner.
type Server struct {
	addr        string
	logger      *slog.Logger
	runner      *runner.Runner
	cronTrigger *cron.Trigger
	metrics     http.Handler
	history     handlers.ReloadableStore
	config      *config.Config
	certs       *CertLoader
	props       types.ServerProperties
	httpServer  *http.Server
}

// Option configures a Server.
type Option func(*Server) error

// WithCron runs batches on a schedule. spec holds one or more 5-field cron
// expressions separated by ";".
func WithCron(spec string) Option {
	return func(s *Server) error {
		trigger, err := cron.NewTrigger(spec, cron.RunnableFunc(s.runScheduled), s.logger)
		if err != nil {
			return fmt.Errorf("creating cron trigger: %w", err)
		}
		s.cronTrigger = trigger
		return nil
	}
}

// WithListenAddr configures the address the server listens on.
// Default is ":8080".
func WithListenAddr(addr string) Option {
	return func(s *Server) error {
		s.addr = addr
		return nil
	}
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) error {
		s.metrics = h
		return nil
	}
}

// WithReloadableHistory enables POST /history/reload for the given store.
func WithReloadableHistory(store handlers.ReloadableStore) Option {
	return func(s *Server) error {
		s.history = store
		return nil
	}
}

// WithConfig exposes cfg on GET /config.
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) error {
		s.config = cfg
		return nil
	}
}

// WithTLS serves HTTPS using the given certificate and key. Replaced files are
// picked up without a restart.
func WithTLS(certFile, keyFile string) Option {
	return func(s *Server) error {
		certs, err := NewCertLoader(certFile, keyFile, s.logger)
		if err != nil {
			return err
		}
		s.certs = certs
		return nil
	}
}

// New creates a Server for the given runner.
func New(r *runner.Runner, logger *slog.Logger, opts ...Option) (*Server, error) {
	if r == nil {
		return nil, errors.New("runner is required")
	}
	s := &Server{
		addr:   defaultListenAddr,
		logger: logger.With("component", "server"),
		runner: r,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.props = types.NewServerProperties(s.certs != nil)
	return s, nil
}

// Config returns the configuration passed to WithConfig, if any.
func (s *Server) Config() *config.Config {
	return s.config
}

// NextRun returns the next scheduled run time, or nil if no cron is configured.
func (s *Server) NextRun() *time.Time {
	if s.cronTrigger == nil {
		return nil
	}
	next := s.cronTrigger.NextRun()
	return &next
}

// Status returns the current run status by delegating to the runner.
func (s *Server) Status() runner.RunStatus {
	return s.runner.Status()
}

// Properties describes this server instance.
func (s *Server) Properties() types.ServerProperties {
	return s.props
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It performs a graceful shutdown when the context is done.
// If a cron trigger is configured, it will be started automatically.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}
	if s.certs != nil {
		s.httpServer.TLSConfig = &tls.Config{
			MinVersion:     tls.VersionTLS12,
			GetCertificate: s.certs.GetCertificate,
		}
	}

	if s.cronTrigger != nil {
		s.logger.Info("starting cron trigger",
			"schedules", s.cronTrigger.Schedules(),
			"next_run", s.cronTrigger.NextRun(),
		)
		s.cronTrigger.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.addr, "tls", s.certs != nil)
		var err error
		if s.certs != nil {
			// Certificates come from TLSConfig.GetCertificate.
			err = s.httpServer.ListenAndServeTLS("", "")
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// runScheduled starts a run from the cron trigger. A run still in progress
// from the previous tick is not an error.
func (s *Server) runScheduled(ctx context.Context) error {
	err := s.runner.Run(TriggerCron)
	if errors.Is(err, runner.ErrRunInProgress) {
		s.logger.Warn("skipping scheduled run, previous run still in progress")
		return nil
	}
	return err
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", handlers.HandleHealth)
	mux.Handle("GET /api/status", handlers.NewAPIStatusHandler(s))
	mux.Handle("GET /api/run", handlers.NewRunStatusHandler(s))
	mux.Handle("POST /run", handlers.NewRunHandler(s.runner))
	mux.Handle("GET /history", handlers.NewHistoryHandler(s.runner))
	mux.Handle("GET /history/{id}", handlers.NewRunDetailHandler(s.runner))

	if s.config != nil {
		mux.Handle("GET /config", handlers.NewConfigHandler(s.logger, s))
	}
	if s.history != nil {
		mux.Handle("POST /history/reload", handlers.NewHistoryReloadHandler(s.logger, s.history))
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
}
