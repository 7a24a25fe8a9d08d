// Package cron provides cron-based scheduling for triggering pipeline runs.
//
// A Trigger wraps a Runnable and executes it whenever one of its schedules fires.
// It is designed to be started once and run until the context is cancelled.
//
// Example usage:
//
//	trigger, err := cron.NewTrigger("0 2 * * *", runner, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	trigger.Start(ctx)  // Returns immediately, runs in background
//	<-ctx.Done()        // Wait for shutdown signal
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Runnable is implemented by anything that can be triggered by the cron scheduler.
type Runnable interface {
	Run(ctx context.Context) error
}

// RunnableFunc adapts a function to the Runnable interface.
type RunnableFunc func(ctx context.Context) error

// Run calls f.
func (f RunnableFunc) Run(ctx context.Context) error { return f(ctx) }

// Trigger executes a Runnable according to one or more cron schedules.
type Trigger struct {
	exprs     []string
	schedules []cron.Schedule
	runnable  Runnable
	logger    *slog.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// NewTrigger creates a Trigger for spec, which is parsed by ParseSchedules.
// Returns ErrInvalidCronSpec if the specification cannot be parsed.
func NewTrigger(spec string, runnable Runnable, logger *slog.Logger) (*Trigger, error) {
	exprs, err := ParseSchedules(spec)
	if err != nil {
		return nil, err
	}

	schedules := make([]cron.Schedule, len(exprs))
	for i, expr := range exprs {
		// Already validated by ParseSchedules.
		schedules[i], _ = parser.Parse(expr)
	}

	t := &Trigger{
		exprs:     exprs,
		schedules: schedules,
		runnable:  runnable,
		logger:    logger.With("component", "cron"),
		now:       time.Now,
		after:     time.After,
	}
	for _, expr := range exprs {
		t.logger.Info("schedule registered", "schedule", expr)
	}
	return t, nil
}

// Schedules returns the parsed cron expressions.
func (t *Trigger) Schedules() []string {
	return append([]string(nil), t.exprs...)
}

// Start launches a goroutine that triggers runs according to the schedules.
// Returns immediately. The goroutine exits when ctx is cancelled.
func (t *Trigger) Start(ctx context.Context) {
	go t.loop(ctx)
}

// NextRun returns the earliest scheduled run time from now.
func (t *Trigger) NextRun() time.Time {
	return t.next(t.now())
}

func (t *Trigger) next(from time.Time) time.Time {
	var earliest time.Time
	for _, s := range t.schedules {
		if n := s.Next(from); earliest.IsZero() || n.Before(earliest) {
			earliest = n
		}
	}
	return earliest
}

// loop is the main scheduling loop that runs in a goroutine.
func (t *Trigger) loop(ctx context.Context) {
	for {
		nextRun := t.NextRun()
		waitDuration := nextRun.Sub(t.now())

		t.logger.Debug("waiting for next scheduled run",
			"next_run", nextRun,
			"wait_duration", waitDuration,
		)

		select {
		case <-ctx.Done():
			t.logger.Info("cron trigger shutting down")
			return
		case <-t.after(waitDuration):
			t.executeRun(ctx)
		}
	}
}

// executeRun executes the runnable and logs the result.
func (t *Trigger) executeRun(ctx context.Context) {
	t.logger.Info("starting scheduled run")

	if err := t.runnable.Run(ctx); err != nil {
		t.logger.Warn("scheduled run could not start", "error", err)
	} else {
		t.logger.Info("scheduled run started")
	}
}
