package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/featurebatch/config"
	"github.com/nomis52/featurebatch/pipeline"
	"github.com/nomis52/featurebatch/server/runner"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// gatedJob blocks each run until release is closed.
type gatedJob struct {
	started chan string
	release chan struct{}
}

func newGatedJob() *gatedJob {
	return &gatedJob{started: make(chan string, 4), release: make(chan struct{})}
}

func (j *gatedJob) Run(ctx context.Context, runID string, progress func(done, total int)) (*pipeline.Report, error) {
	j.started <- runID
	select {
	case <-j.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	progress(2, 2)
	return &pipeline.Report{RunID: runID, Items: 2, Succeeded: 2}, nil
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *runner.Runner, *gatedJob) {
	t.Helper()
	job := newGatedJob()
	r := runner.New(job, discardLogger())
	t.Cleanup(r.Close)

	s, err := New(r, discardLogger(), opts...)
	require.NoError(t, err)
	return s, r, job
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestNew_RequiresRunner(t *testing.T) {
	_, err := New(nil, discardLogger())
	assert.Error(t, err)
}

func TestNew_InvalidCron(t *testing.T) {
	r := runner.New(newGatedJob(), discardLogger())
	defer r.Close()

	_, err := New(r, discardLogger(), WithCron("whenever"))
	assert.ErrorContains(t, err, "creating cron trigger")
}

func TestServer_NextRun(t *testing.T) {
	s, _, _ := newTestServer(t)
	assert.Nil(t, s.NextRun())

	s, _, _ = newTestServer(t, WithCron("0 2 * * *"))
	next := s.NextRun()
	require.NotNil(t, next)
	assert.True(t, next.After(time.Now()))
	assert.Equal(t, 2, next.Hour())
	assert.Equal(t, 0, next.Minute())
}

func TestServer_Routes(t *testing.T) {
	s, r, job := newTestServer(t)
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodPost, "/run")
	require.Equal(t, http.StatusAccepted, w.Code)
	runID := <-job.started

	w = do(t, h, http.MethodPost, "/run")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		Run struct {
			State   string `json:"state"`
			Current struct {
				ID      string `json:"id"`
				Trigger string `json:"trigger"`
			} `json:"current"`
		} `json:"run"`
		NextRun struct {
			Scheduled bool `json:"scheduled"`
		} `json:"next_run"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "running", status.Run.State)
	assert.Equal(t, runID, status.Run.Current.ID)
	assert.Equal(t, "api", status.Run.Current.Trigger)
	assert.False(t, status.NextRun.Scheduled)

	close(job.release)
	r.Wait()

	w = do(t, h, http.MethodGet, "/history")
	require.Equal(t, http.StatusOK, w.Code)
	var history []runner.RunSummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&history))
	require.Len(t, history, 1)
	assert.Equal(t, runID, history[0].ID)
	assert.Equal(t, 2, history[0].Succeeded)

	w = do(t, h, http.MethodGet, "/history/"+runID)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/api/run")
	assert.Contains(t, w.Body.String(), `"state":"idle"`)
}

func TestServer_OptionalRoutes(t *testing.T) {
	s, _, _ := newTestServer(t)
	h := s.Handler()
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/metrics").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/config").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/history/reload").Code)

	cfg := &config.Config{Source: config.SourceConfig{Dir: "/images"}, Output: config.OutputConfig{Dir: "/out"}}
	store, err := runner.NewDiskStore(t.TempDir(), 10, discardLogger())
	require.NoError(t, err)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "featurebatch_last_run_items 0\n")
	})

	s, _, _ = newTestServer(t, WithConfig(cfg), WithReloadableHistory(store), WithMetricsHandler(metrics))
	h = s.Handler()

	w := do(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "featurebatch_last_run_items")

	w = do(t, h, http.MethodGet, "/config")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/images")

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodPost, "/history/reload").Code)
}

func TestServer_RunScheduled(t *testing.T) {
	s, r, job := newTestServer(t)

	require.NoError(t, s.runScheduled(context.Background()))
	<-job.started
	assert.Equal(t, TriggerCron, r.Status().Current.Trigger)

	// Overlapping tick is dropped without error.
	assert.NoError(t, s.runScheduled(context.Background()))

	close(job.release)
	r.Wait()
}

func TestServer_Properties(t *testing.T) {
	s, _, _ := newTestServer(t)
	props := s.Properties()
	assert.Equal(t, "dev", props.Build.Version)
	assert.False(t, props.TLS)
	assert.False(t, props.StartedAt.IsZero())
}

func TestServer_RunShutsDown(t *testing.T) {
	s, _, _ := newTestServer(t, WithListenAddr("127.0.0.1:0"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
