package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// DiskStore persists run history to disk as one JSON file per run.
type DiskStore struct {
	dir      string
	logger   *slog.Logger
	maxCount int
	runs     []RunRecord // protected by mu, most recent first
	mu       sync.Mutex
}

// NewDiskStore creates a new disk-backed store.
// The directory is created if it doesn't exist, and existing runs are loaded.
func NewDiskStore(dir string, maxCount int, logger *slog.Logger) (*DiskStore, error) {
	s := &DiskStore{
		dir:      dir,
		logger:   logger.With("component", "history"),
		maxCount: max(maxCount, 1),
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	if err := s.Reload(); err != nil {
		s.logger.Warn("failed to load existing runs", "error", err)
	}
	return s, nil
}

// History returns all runs as summaries.
func (s *DiskStore) History() []RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]RunSummary, len(s.runs))
	for i, run := range s.runs {
		result[i] = run.RunSummary
	}
	return result
}

// Get returns the record of a specific run.
func (s *DiskStore) Get(id string) (RunRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, run := range s.runs {
		if run.ID == id {
			return run, true
		}
	}
	return RunRecord{}, false
}

// Save writes the run to disk, then removes the files of runs beyond maxCount.
func (s *DiskStore) Save(run RunRecord) error {
	if run.ID == "" {
		return errors.New("cannot save run without an ID")
	}
	if run.StartedAt == nil {
		return errors.New("cannot save run without start time")
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, fileName(run))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run file: %w", err)
	}

	s.runs = append([]RunRecord{run}, s.runs...)
	sortRuns(s.runs)
	for len(s.runs) > s.maxCount {
		oldest := s.runs[len(s.runs)-1]
		if err := os.Remove(filepath.Join(s.dir, fileName(oldest))); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove old run", "id", oldest.ID, "error", err)
		}
		s.runs = s.runs[:len(s.runs)-1]
	}

	s.logger.Debug("saved run to disk", "path", path)
	return nil
}

// Reload re-loads all runs from disk.
func (s *DiskStore) Reload() error {
	runs, err := s.load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = runs
	return nil
}

// load reads every run file in the directory. Unreadable files are skipped.
func (s *DiskStore) load() ([]RunRecord, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var runs []RunRecord
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}

		path := filepath.Join(s.dir, file.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("failed to read run file", "file", path, "error", err)
			continue
		}

		var run RunRecord
		if err := json.Unmarshal(data, &run); err != nil {
			s.logger.Warn("failed to parse run file", "file", path, "error", err)
			continue
		}
		if run.ID == "" || run.StartedAt == nil {
			s.logger.Warn("ignoring incomplete run file", "file", path)
			continue
		}
		runs = append(runs, run)
	}

	sortRuns(runs)
	if len(runs) > s.maxCount {
		runs = runs[:s.maxCount]
	}

	s.logger.Info("loaded run history from disk", "count", len(runs))
	return runs, nil
}

// fileName is the start timestamp followed by the run ID, so files sort by time.
func fileName(run RunRecord) string {
	return run.StartedAt.UTC().Format("2006-01-02T15-04-05") + "-" + run.ID + ".json"
}

// sortRuns orders runs by start time, most recent first.
func sortRuns(runs []RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(*runs[j].StartedAt)
	})
}
