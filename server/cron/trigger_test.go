package cron

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRunnable is a test implementation of Runnable.
type mockRunnable struct {
	runCount atomic.Int32
	runErr   error
}

func (m *mockRunnable) Run(context.Context) error {
	m.runCount.Add(1)
	return m.runErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewTrigger(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{name: "daily at 2am", spec: "0 2 * * *"},
		{name: "every minute", spec: "* * * * *"},
		{name: "two schedules", spec: "0 2 * * *;0 14 * * *"},
		{name: "empty", spec: "", wantErr: true},
		{name: "wrong format", spec: "not a cron spec", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger, err := NewTrigger(tt.spec, &mockRunnable{}, testLogger())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCronSpec)
				assert.Nil(t, trigger)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, trigger.Schedules())
		})
	}
}

func TestTrigger_NextRun(t *testing.T) {
	trigger, err := NewTrigger("0 2 * * *", &mockRunnable{}, testLogger())
	require.NoError(t, err)

	nextRun := trigger.NextRun()
	assert.True(t, nextRun.After(time.Now()), "next run should be in the future")
	assert.Equal(t, 2, nextRun.Hour())
	assert.Equal(t, 0, nextRun.Minute())
}

func TestTrigger_NextRun_EarliestSchedule(t *testing.T) {
	trigger, err := NewTrigger("0 14 * * *; 0 2 * * *", &mockRunnable{}, testLogger())
	require.NoError(t, err)

	from := time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)
	assert.Equal(t, time.Date(2026, 3, 10, 14, 0, 0, 0, time.Local), trigger.next(from))

	from = time.Date(2026, 3, 10, 15, 0, 0, 0, time.Local)
	assert.Equal(t, time.Date(2026, 3, 11, 2, 0, 0, 0, time.Local), trigger.next(from))
}

func TestTrigger_Start_RunsWhenScheduleFires(t *testing.T) {
	runnable := &mockRunnable{runErr: errors.New("run already in progress")}
	trigger, err := NewTrigger("0 2 * * *", runnable, testLogger())
	require.NoError(t, err)

	fired := make(chan time.Time)
	close(fired)
	trigger.after = func(time.Duration) <-chan time.Time { return fired }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	trigger.Start(ctx)

	assert.Eventually(t, func() bool {
		return runnable.runCount.Load() >= 2
	}, time.Second, 5*time.Millisecond, "errors from the runnable do not stop the loop")
}

func TestTrigger_Start_CancellationStopsLoop(t *testing.T) {
	runnable := &mockRunnable{}
	trigger, err := NewTrigger("* * * * *", runnable, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	trigger.Start(ctx)

	// Give goroutine time to start
	time.Sleep(10 * time.Millisecond)
	cancel()
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, int32(0), runnable.runCount.Load())
}
