package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/featurebatch/logging"
	"github.com/nomis52/featurebatch/pipeline"
)

func jsonFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestNewDiskStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "history")
	store, err := NewDiskStore(dir, 10, discardLogger())
	require.NoError(t, err)

	assert.DirExists(t, dir)
	assert.Empty(t, store.History())
}

func TestDiskStore_Save(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, 10, discardLogger())
	require.NoError(t, err)

	started := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)
	run := record("abc", started)
	require.NoError(t, store.Save(run))

	assert.Equal(t, []string{"2026-03-10T02-00-00-abc.json"}, jsonFiles(t, dir))
	require.Len(t, store.History(), 1)
}

func TestDiskStore_SaveInvalid(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), 10, discardLogger())
	require.NoError(t, err)

	assert.ErrorContains(t, store.Save(RunRecord{}), "without an ID")
	assert.ErrorContains(t, store.Save(RunRecord{RunSummary: RunSummary{ID: "x"}}), "without start time")
}

func TestDiskStore_LoadsExistingRuns(t *testing.T) {
	dir := t.TempDir()
	started := time.Now().Truncate(time.Second)
	run := record("abc", started)
	run.Failures = []pipeline.Failure{{Index: 2, Path: "/images/img3.png", Stage: pipeline.StagePersist, Message: "disk full"}}
	run.Logs = []logging.LogEntry{{Time: started, Level: "WARN", Message: "item failed"}}

	first, err := NewDiskStore(dir, 10, discardLogger())
	require.NoError(t, err)
	require.NoError(t, first.Save(run))

	second, err := NewDiskStore(dir, 10, discardLogger())
	require.NoError(t, err)

	history := second.History()
	require.Len(t, history, 1)
	assert.Equal(t, "abc", history[0].ID)
	assert.True(t, started.Equal(*history[0].StartedAt))

	got, ok := second.Get("abc")
	require.True(t, ok)
	require.Len(t, got.Failures, 1)
	assert.Equal(t, "disk full", got.Failures[0].Message)
	require.Len(t, got.Logs, 1)
	assert.Equal(t, "item failed", got.Logs[0].Message)
}

func TestDiskStore_MaxCount(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, 3, discardLogger())
	require.NoError(t, err)

	now := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(record(fmt.Sprintf("run-%d", i), now.Add(time.Duration(i)*time.Hour))))
	}

	history := store.History()
	require.Len(t, history, 3)
	assert.Equal(t, "run-4", history[0].ID)
	for i := 0; i < len(history)-1; i++ {
		assert.True(t, history[i].StartedAt.After(*history[i+1].StartedAt))
	}
	assert.Len(t, jsonFiles(t, dir), 3, "files of dropped runs are removed")

	require.NoError(t, store.Reload())
	assert.Len(t, store.History(), 3)
}

func TestDiskStore_IgnoresInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("test"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partial.json"), []byte(`{"id": ""}`), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "subdir.json"), 0755))

	store, err := NewDiskStore(dir, 10, discardLogger())
	require.NoError(t, err)
	assert.Empty(t, store.History())
}
