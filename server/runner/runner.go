// Package runner manages batch run execution for the featurebatch server.
//
// The runner handles:
//   - Starting batch runs in the background
//   - Preventing concurrent runs
//   - Tracking current run status and progress
//   - Maintaining history of completed runs
//
// # Example
//
//	r := runner.New(job, logger, runner.WithStateStore(store))
//	defer r.Close()
//
//	if err := r.Run("api"); err != nil {
//	    if errors.Is(err, runner.ErrRunInProgress) {
//	        // Handle concurrent run attempt
//	    }
//	}
//
//	status := r.Status()
//	if status.State == runner.RunStateRunning {
//	    fmt.Printf("%d/%d items\n", status.Current.Done, status.Current.Items)
//	}
//
//	history := r.History() // Most recent first
package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nomis52/featurebatch/logging"
	"github.com/nomis52/featurebatch/pipeline"
)

const defaultMaxHistorySize = 100

// ErrRunInProgress is returned when attempting to start a run while one is already running.
var ErrRunInProgress = errors.New("batch run already in progress")

// Job executes one batch. It reports progress through the callback and returns
// the pipeline report, whose RunID must be runID.
type Job interface {
	Run(ctx context.Context, runID string, progress func(done, total int)) (*pipeline.Report, error)
}

// JobFunc adapts a function to the Job interface.
type JobFunc func(ctx context.Context, runID string, progress func(done, total int)) (*pipeline.Report, error)

// Run calls f.
func (f JobFunc) Run(ctx context.Context, runID string, progress func(done, total int)) (*pipeline.Report, error) {
	return f(ctx, runID, progress)
}

// Runner manages batch run execution.
type Runner struct {
	job     Job
	logger  *slog.Logger
	store   StateStore
	capture *logging.RunCapture

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	status RunStatus
}

// Option configures a Runner.
type Option func(*Runner)

// WithStateStore configures the runner to use the provided store for persistence.
func WithStateStore(store StateStore) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// WithLogCapture attaches the warnings captured for each run to its history record.
func WithLogCapture(capture *logging.RunCapture) Option {
	return func(r *Runner) {
		r.capture = capture
	}
}

// New creates a new Runner.
func New(job Job, logger *slog.Logger, opts ...Option) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		job:    job,
		logger: logger.With("component", "runner"),
		store:  NewMemoryStore(defaultMaxHistorySize),
		ctx:    ctx,
		cancel: cancel,
		status: RunStatus{State: RunStateIdle},
	}
	for _, opt := range opts {
		opt(r)
	}
	if last := r.store.History(); len(last) > 0 {
		r.status.Last = &last[0]
	}
	return r
}

// Run starts a batch run in the background. trigger records what asked for it.
// Returns ErrRunInProgress if a run is already in progress.
func (r *Runner) Run(trigger string) error {
	summary, ok := r.tryStart(trigger)
	if !ok {
		return ErrRunInProgress
	}

	r.logger.Info("starting batch run", "run_id", summary.ID, "trigger", trigger)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		report, err := r.job.Run(r.ctx, summary.ID, r.progress)
		r.finish(report, err)
	}()
	return nil
}

// Wait blocks until the run in progress, if any, has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close cancels the run in progress and waits for it to finish.
func (r *Runner) Close() {
	r.cancel()
	r.wg.Wait()
}

// Status returns the current run status.
func (r *Runner) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := r.status
	if status.Current != nil {
		current := *status.Current
		status.Current = &current
	}
	return status
}

// IsRunning returns true if a batch run is in progress.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status.State == RunStateRunning
}

// History returns the history of completed runs, most recent first.
func (r *Runner) History() []RunSummary {
	return r.store.History()
}

// Get returns the full record of a completed run.
func (r *Runner) Get(id string) (RunRecord, bool) {
	return r.store.Get(id)
}

// tryStart attempts to transition from idle to running.
func (r *Runner) tryStart(trigger string) (RunSummary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status.State == RunStateRunning {
		return RunSummary{}, false
	}

	now := time.Now()
	r.status.State = RunStateRunning
	r.status.Current = &RunSummary{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: &now,
	}
	return *r.status.Current, true
}

func (r *Runner) progress(done, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status.Current != nil {
		r.status.Current.Items = total
		r.status.Current.Done = max(r.status.Current.Done, done)
	}
}

// finish transitions from running to idle and records the result.
func (r *Runner) finish(report *pipeline.Report, err error) {
	r.mu.Lock()
	summary := *r.status.Current
	r.mu.Unlock()

	endTime := time.Now()
	summary.EndedAt = &endTime
	record := RunRecord{}

	if report != nil {
		summary.Items = report.Items
		summary.Done = report.Items
		summary.Succeeded = report.Succeeded
		summary.Failed = report.Failed
		summary.Skipped = report.Skipped
		record.Failures = report.Failures
	}
	if err != nil {
		summary.Error = err.Error()
		r.logger.Error("batch run failed", "run_id", summary.ID, "error", err, "duration", endTime.Sub(*summary.StartedAt))
	} else {
		r.logger.Info("batch run completed",
			"run_id", summary.ID,
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
			"skipped", summary.Skipped,
			"duration", endTime.Sub(*summary.StartedAt),
		)
	}
	if r.capture != nil {
		record.Logs = r.capture.Take(summary.ID)
	}
	record.RunSummary = summary

	if err := r.store.Save(record); err != nil {
		r.logger.Error("failed to save run to store", "error", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.State = RunStateIdle
	r.status.Current = nil
	r.status.Last = &summary
}
