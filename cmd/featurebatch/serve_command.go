package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nomis52/featurebatch/buildinfo"
	"github.com/nomis52/featurebatch/config"
	"github.com/nomis52/featurebatch/logging"
	"github.com/nomis52/featurebatch/metrics"
	"github.com/nomis52/featurebatch/server"
	"github.com/nomis52/featurebatch/server/runner"
	"github.com/nomis52/featurebatch/store"
)

func newServeCommand(loadConfig func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and scheduled batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			capture := logging.NewRunCapture(slog.LevelWarn, cfg.Server.HistorySize)
			logger, err := newLogger(&cfg, capture)
			if err != nil {
				return err
			}
			defer logger.Close()

			props := buildinfo.Get()
			logger.Info("featurebatch server started",
				"version", props.Version,
				"git_commit", props.GitCommit,
				"build_time", props.BuildTime,
			)

			out, err := store.Open(cfg.Output.Dir, store.WithLogger(logger.Logger))
			if err != nil {
				return err
			}
			defer out.Close()

			registry, err := metrics.NewScrapeRegistry(cfg.Monitoring.MetricsPrefix)
			if err != nil {
				return fmt.Errorf("creating metrics registry: %w", err)
			}
			b, err := newBatch(&cfg, out, logger.Logger, registry)
			if err != nil {
				return err
			}

			opts := []server.Option{
				server.WithListenAddr(cfg.Server.Listen),
				server.WithMetricsHandler(registry.Handler()),
				server.WithConfig(&cfg),
			}

			var history runner.StateStore = runner.NewMemoryStore(cfg.Server.HistorySize)
			if cfg.Server.HistoryDir != "" {
				disk, err := runner.NewDiskStore(cfg.Server.HistoryDir, cfg.Server.HistorySize, logger.Logger)
				if err != nil {
					return fmt.Errorf("opening run history: %w", err)
				}
				history = disk
				opts = append(opts, server.WithReloadableHistory(disk))
			}
			if cfg.Server.Cron != "" {
				opts = append(opts, server.WithCron(cfg.Server.Cron))
			}
			if cfg.Server.TLSCert != "" {
				opts = append(opts, server.WithTLS(cfg.Server.TLSCert, cfg.Server.TLSKey))
			}

			r := runner.New(b, logger.Logger,
				runner.WithStateStore(history),
				runner.WithLogCapture(capture),
			)
			defer r.Close()

			srv, err := server.New(r, logger.Logger, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
}
