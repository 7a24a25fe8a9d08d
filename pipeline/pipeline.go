package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nomis52/featurebatch/enumerate"
	"github.com/nomis52/featurebatch/metrics"
	"github.com/nomis52/featurebatch/workflow"
)

// Pipeline runs Compute then Persist for every item of a batch.
type Pipeline[A any] struct {
	extractor Extractor[A]
	persister Persister[A]
	workers   int
	logger    *slog.Logger
	metrics   *instruments
}

type options struct {
	workers  int
	logger   *slog.Logger
	registry metrics.Registry
}

// Option configures a Pipeline.
type Option func(*options)

// WithWorkers sets the worker pool size. Values below one select the executor default.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithLogger sets a custom logger for the pipeline
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records run outcomes in reg.
func WithMetrics(reg metrics.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// New creates a Pipeline from its two collaborators.
func New[A any](ex Extractor[A], p Persister[A], opts ...Option) (*Pipeline[A], error) {
	if ex == nil || p == nil {
		return nil, errors.New("pipeline requires an extractor and a persister")
	}

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	pl := &Pipeline[A]{
		extractor: ex,
		persister: p,
		workers:   o.workers,
		logger:    o.logger.With("component", "pipeline"),
	}
	if o.registry != nil {
		m, err := newInstruments(o.registry)
		if err != nil {
			return nil, fmt.Errorf("registering pipeline metrics: %w", err)
		}
		pl.metrics = m
	}
	return pl, nil
}

type runOptions struct {
	id       string
	progress func(done, total int)
	graph    io.Writer
}

// RunOption configures a single run.
type RunOption func(*runOptions)

// RunID sets the ID reported for the run instead of a generated one.
func RunID(id string) RunOption {
	return func(o *runOptions) {
		o.id = id
	}
}

// OnProgress registers fn to be called each time an item reaches its final outcome.
// fn is called from worker goroutines and must be safe for concurrent use.
func OnProgress(fn func(done, total int)) RunOption {
	return func(o *runOptions) {
		o.progress = fn
	}
}

// DumpGraph writes the run's task graph to w in DOT format before it executes.
func DumpGraph(w io.Writer) RunOption {
	return func(o *runOptions) {
		o.graph = w
	}
}

// Run processes items with a fresh context.
func (p *Pipeline[A]) Run(ctx context.Context, items []enumerate.Item, opts ...RunOption) (*Report, error) {
	return p.RunContext(ctx, items, NewContext[A](len(items)), opts...)
}

// RunContext processes items using ec for per-item state. ec must have one empty slot
// per item; a context left over from an earlier run is rejected. Per-item failures
// are reported in the Report; the returned error is set only when the graph could
// not be built or an invariant was violated.
func (p *Pipeline[A]) RunContext(ctx context.Context, items []enumerate.Item, ec *Context[A], opts ...RunOption) (*Report, error) {
	started := time.Now()
	ro := runOptions{id: uuid.NewString()}
	for _, opt := range opts {
		opt(&ro)
	}
	runID := ro.id
	logger := p.logger.With("run_id", runID)

	plan, err := Build(items, ec, p.extractor, p.persister)
	if err != nil {
		return nil, fmt.Errorf("building graph: %w", err)
	}
	if ro.graph != nil {
		if err := plan.Graph.WriteDOT(ro.graph); err != nil {
			return nil, fmt.Errorf("writing graph: %w", err)
		}
	}

	var done atomic.Int64
	exec := workflow.NewExecutor(
		workflow.WithWorkers(p.workers),
		workflow.WithLogger(logger),
		workflow.WithHook(func(ev workflow.NodeEvent) {
			if ev.Result.State == workflow.Failed {
				logger.Warn("item failed", "node", ev.Node.Name(), "item", ev.Node.Item(), "error", ev.Result.Err)
			}
			// Every item's persist node becomes terminal exactly once, whatever the outcome.
			if ro.progress != nil && ev.Node.Kind() == workflow.Persist {
				ro.progress(int(done.Add(1)), len(items))
			}
		}),
	)
	logger.Info("starting run", "items", len(items), "workers", exec.Workers())

	res, err := exec.Execute(ctx, plan.Graph)
	if err != nil {
		return nil, err
	}
	if err := firstViolation(plan, res); err != nil {
		logger.Error("run aborted by invariant violation", "error", err)
		return nil, err
	}

	report := newReport(runID, items, plan, res)
	report.Started, report.Finished = started, time.Now()
	p.metrics.record(report)

	logger.Info("run completed",
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"duration", report.Duration(),
	)
	return report, nil
}

// firstViolation returns an invariant violation raised inside a task action, such as
// a persist task that found its slot not computed.
func firstViolation(plan *Plan, res *workflow.Result) error {
	for _, node := range plan.Graph.Nodes() {
		var iv *workflow.InvariantViolation
		if errors.As(res.Node(node.ID()).Err, &iv) {
			return iv
		}
	}
	return nil
}
