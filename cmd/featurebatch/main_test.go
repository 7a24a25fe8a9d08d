package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/featurebatch/config"
	"github.com/nomis52/featurebatch/metrics"
	"github.com/nomis52/featurebatch/pipeline"
	"github.com/nomis52/featurebatch/store"
)

type testEnv struct {
	source     string
	output     string
	configPath string
}

func writeSquare(t *testing.T, path string) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	for y := 30; y < 70; y++ {
		for x := 30; x < 70; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func setupEnv(t *testing.T, extra ...string) *testEnv {
	t.Helper()
	base := t.TempDir()
	env := &testEnv{
		source:     filepath.Join(base, "images"),
		output:     filepath.Join(base, "features"),
		configPath: filepath.Join(base, "config.yaml"),
	}
	require.NoError(t, os.MkdirAll(env.source, 0o755))

	cfg := fmt.Sprintf(`source:
  dir: %s
output:
  dir: %s
logging:
  level: debug
  output: %s
`, env.source, env.output, filepath.Join(base, "featurebatch.log"))
	for _, line := range extra {
		cfg += line + "\n"
	}
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0o644))
	return env
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "featurebatch dev")
}

func TestValidateCommand(t *testing.T) {
	env := setupEnv(t)

	out, err := execute(t, "validate", "-c", env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration validation successful")

	_, err = execute(t, "validate")
	assert.ErrorContains(t, err, "config flag")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("source:\n  dir: /images\n"), 0o644))
	_, err = execute(t, "validate", "-c", bad)
	assert.ErrorContains(t, err, "output dir is required")
}

func TestRunCommand(t *testing.T) {
	env := setupEnv(t)
	writeSquare(t, filepath.Join(env.source, "img1.png"))
	writeSquare(t, filepath.Join(env.source, "img2.png"))
	writeSquare(t, filepath.Join(env.source, "img10.png"))

	out, err := execute(t, "run", "-c", env.configPath, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "SUCCEEDED")

	for i := range 3 {
		assert.FileExists(t, filepath.Join(env.output, fmt.Sprintf("Keypoints%d.yml", i)))
	}
}

func TestRunCommand_DumpGraph(t *testing.T) {
	env := setupEnv(t)
	writeSquare(t, filepath.Join(env.source, "img1.png"))
	writeSquare(t, filepath.Join(env.source, "img2.png"))

	out, err := execute(t, "run", "-c", env.configPath, "--dump-graph")
	require.NoError(t, err)

	graphAt := strings.Index(out, "digraph workflow {")
	require.GreaterOrEqual(t, graphAt, 0, out)
	assert.Less(t, graphAt, strings.Index(out, "SUCCEEDED"), "graph is written before the report")
	assert.Equal(t, 6, strings.Count(out, "->"))
	assert.Contains(t, out, `label="compute[1]"`)
}

func TestRunCommand_ItemFailure(t *testing.T) {
	env := setupEnv(t)
	writeSquare(t, filepath.Join(env.source, "a.png"))
	require.NoError(t, os.WriteFile(filepath.Join(env.source, "b.png"), []byte("not a png"), 0o644))

	out, err := execute(t, "run", "-c", env.configPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errItemsFailed))
	assert.Contains(t, out, "b.png")
	assert.Contains(t, out, "1 of 2 items not processed")

	assert.FileExists(t, filepath.Join(env.output, "Keypoints0.yml"))
	assert.NoFileExists(t, filepath.Join(env.output, "Keypoints1.yml"))
}

func TestRunCommand_Overrides(t *testing.T) {
	env := setupEnv(t)
	other := t.TempDir()
	writeSquare(t, filepath.Join(other, "only.png"))
	output := filepath.Join(t.TempDir(), "elsewhere")

	_, err := execute(t, "run", "-c", env.configPath, "--source", other, "--output", output)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(output, "Keypoints0.yml"))
	assert.NoDirExists(t, env.output)
}

func TestRunCommand_MissingSource(t *testing.T) {
	env := setupEnv(t)
	_, err := execute(t, "run", "-c", env.configPath, "--source", filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "enumerating")
}

func TestRunCommand_InvalidOverride(t *testing.T) {
	env := setupEnv(t)
	_, err := execute(t, "run", "-c", env.configPath, "--workers", "-3")
	assert.ErrorContains(t, err, "workers must not be negative")
}

func TestRenderReport(t *testing.T) {
	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &pipeline.Report{
		RunID:     "run-7",
		Items:     3,
		Succeeded: 1,
		Failed:    1,
		Skipped:   1,
		Failures: []pipeline.Failure{
			{Index: 1, Path: "/images/b.png", Stage: pipeline.StageCompute, Message: "decoding image: unexpected EOF"},
		},
		Started:  started,
		Finished: started.Add(1500 * time.Millisecond),
	}

	out := renderReport(r)
	assert.Contains(t, out, "run-7")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "/images/b.png")
	assert.Contains(t, out, "decoding image: unexpected EOF")
	assert.Contains(t, out, "2 of 3 items not processed")
}

func TestRenderReport_NoFailures(t *testing.T) {
	out := renderReport(&pipeline.Report{RunID: "run-8", Items: 2, Succeeded: 2})
	assert.Contains(t, out, "run-8")
	assert.NotContains(t, out, "not processed")
}

// countingWriteServer accepts remote write requests and counts them.
func countingWriteServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var writes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api/v1/write" {
			writes.Add(1)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, &writes
}

func TestRunCommand_PushesMetrics(t *testing.T) {
	srv, writes := countingWriteServer(t)
	env := setupEnv(t, "monitoring:", "  victoriametrics_url: "+srv.URL)
	writeSquare(t, filepath.Join(env.source, "img1.png"))

	_, err := execute(t, "run", "-c", env.configPath)
	require.NoError(t, err)
	assert.Equal(t, int32(1), writes.Load())
}

func TestFlushMetrics_AfterCancelledRun(t *testing.T) {
	srv, writes := countingWriteServer(t)
	env := setupEnv(t)
	writeSquare(t, filepath.Join(env.source, "img1.png"))

	cfg, err := config.LoadConfig(env.configPath)
	require.NoError(t, err)
	out, err := store.Open(cfg.Output.Dir)
	require.NoError(t, err)
	defer out.Close()

	registry := metrics.NewPushRegistry(metrics.PushConfig{URL: srv.URL, Prefix: "featurebatch", Job: "featurebatch", Instance: "test"})
	b, err := newBatch(&cfg, out, slog.New(slog.NewTextHandler(io.Discard, nil)), registry)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := b.Run(ctx, "run-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)

	require.NoError(t, flushMetrics(registry))
	assert.Equal(t, int32(1), writes.Load())
}
