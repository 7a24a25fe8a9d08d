package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nomis52/featurebatch/config"
	"github.com/nomis52/featurebatch/enumerate"
	"github.com/nomis52/featurebatch/features"
	"github.com/nomis52/featurebatch/logging"
	"github.com/nomis52/featurebatch/metrics"
	"github.com/nomis52/featurebatch/pipeline"
	"github.com/nomis52/featurebatch/store"
)

// batch lists the configured source and runs the feature pipeline over it.
// The item list is taken afresh on every run so images added between
// scheduled runs are picked up.
type batch struct {
	enumerate enumerate.Options
	pipeline  *pipeline.Pipeline[features.Set]
	// dumpGraph, when set, receives each run's task graph in DOT format.
	dumpGraph io.Writer
}

func newBatch(cfg *config.Config, out *store.Store, logger *slog.Logger, reg metrics.Registry) (*batch, error) {
	opts := []pipeline.Option{
		pipeline.WithWorkers(cfg.Scheduler.Workers),
		pipeline.WithLogger(logger),
	}
	if reg != nil {
		opts = append(opts, pipeline.WithMetrics(reg))
	}

	extractor := features.NewExtractor(cfg.FeatureOptions(), features.WithLogger(logger))
	p, err := pipeline.New[features.Set](extractor, out, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}
	return &batch{enumerate: cfg.EnumerateOptions(), pipeline: p}, nil
}

// Run implements runner.Job.
func (b *batch) Run(ctx context.Context, runID string, progress func(done, total int)) (*pipeline.Report, error) {
	items, err := enumerate.List(b.enumerate)
	if err != nil {
		return nil, err
	}
	opts := []pipeline.RunOption{pipeline.RunID(runID)}
	if progress != nil {
		opts = append(opts, pipeline.OnProgress(progress))
	}
	if b.dumpGraph != nil {
		opts = append(opts, pipeline.DumpGraph(b.dumpGraph))
	}
	return b.pipeline.Run(ctx, items, opts...)
}

func newLogger(cfg *config.Config, capture *logging.RunCapture) (*logging.Logger, error) {
	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.AddSource,
		Capture:   capture,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
