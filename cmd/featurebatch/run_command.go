package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nomis52/featurebatch/buildinfo"
	"github.com/nomis52/featurebatch/config"
	"github.com/nomis52/featurebatch/metrics"
	"github.com/nomis52/featurebatch/store"
)

// errItemsFailed makes the process exit non-zero after the report is printed.
var errItemsFailed = errors.New("some items were not processed")

// flushMetrics pushes the run's metrics on a context of its own, so a run
// ended by SIGINT or SIGTERM still reports.
func flushMetrics(registry *metrics.PushRegistry) error {
	ctx, cancel := context.WithTimeout(context.Background(), metrics.DefaultTimeout)
	defer cancel()
	return registry.Flush(ctx)
}

func newRunCommand(loadConfig func() (config.Config, error)) *cobra.Command {
	var (
		workers   int
		source    string
		output    string
		dumpGraph bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every image in the source directory once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cmd.Flags().Changed("workers") {
				cfg.Scheduler.Workers = workers
			}
			if source != "" {
				cfg.Source.Dir = source
			}
			if output != "" {
				cfg.Output.Dir = output
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := newLogger(&cfg, nil)
			if err != nil {
				return err
			}
			defer logger.Close()

			props := buildinfo.Get()
			logger.Info("featurebatch started",
				"version", props.Version,
				"git_commit", props.GitCommit,
				"source", cfg.Source.Dir,
				"output", cfg.Output.Dir,
			)

			out, err := store.Open(cfg.Output.Dir, store.WithLogger(logger.Logger))
			if err != nil {
				return err
			}
			defer out.Close()

			var registry *metrics.PushRegistry
			if cfg.Monitoring.VictoriaMetricsURL != "" {
				hostname, err := os.Hostname()
				if err != nil {
					return fmt.Errorf("failed to get hostname: %w", err)
				}
				registry = metrics.NewPushRegistry(metrics.PushConfig{
					URL:      cfg.Monitoring.VictoriaMetricsURL,
					Prefix:   cfg.Monitoring.MetricsPrefix,
					Job:      cfg.Monitoring.JobName,
					Instance: hostname,
				})
			}

			// A nil *PushRegistry must not reach newBatch as a non-nil interface.
			var reg metrics.Registry
			if registry != nil {
				reg = registry
			}
			b, err := newBatch(&cfg, out, logger.Logger, reg)
			if err != nil {
				return err
			}
			if dumpGraph {
				b.dumpGraph = cmd.OutOrStdout()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := b.Run(ctx, uuid.NewString(), nil)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprint(cmd.OutOrStdout(), renderReport(report)); err != nil {
				return err
			}

			if registry != nil {
				if err := flushMetrics(registry); err != nil {
					logger.Warn("failed to push metrics", "error", err)
				}
			}

			if !report.OK() {
				return fmt.Errorf("%w: %d failed, %d skipped", errItemsFailed, report.Failed, report.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "Number of concurrent tasks, 0 for one per CPU")
	cmd.Flags().StringVar(&source, "source", "", "Override the source directory")
	cmd.Flags().StringVar(&output, "output", "", "Override the output directory")
	cmd.Flags().BoolVar(&dumpGraph, "dump-graph", false, "Write the task graph in DOT format before running")
	return cmd
}
