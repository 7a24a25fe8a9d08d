// Package store persists feature sets as one YAML file per item.
//
// A Store owns its output directory for as long as it is open: Open takes an
// exclusive file lock so two batches never write into the same directory.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/nomis52/featurebatch/features"
)

// LockFile is the name of the lock file created in the output directory.
const LockFile = ".featurebatch.lock"

// ErrLocked is returned by Open when another process holds the directory lock.
var ErrLocked = errors.New("output directory is locked by another process")

// Store writes feature sets to an output directory.
type Store struct {
	dir    string
	lock   *flock.Flock
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger for the store
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger.With("component", "store")
	}
}

// Open creates dir if needed and locks it for writing.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", dir, ErrLocked)
	}

	s := &Store{
		dir:    dir,
		lock:   lock,
		logger: slog.Default().With("component", "store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the directory lock.
func (s *Store) Close() error {
	return s.lock.Unlock()
}

// Dir returns the output directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the file that holds the features of the given item.
func (s *Store) Path(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("Keypoints%d.yml", index))
}

// Persist writes set to the item's file. The file is written under a temporary
// name and renamed, so readers never see a partial document.
func (s *Store) Persist(ctx context.Context, index int, set features.Set) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(set.Keypoints) != len(set.Descriptors) {
		return fmt.Errorf("%d keypoints but %d descriptors", len(set.Keypoints), len(set.Descriptors))
	}

	data, err := encode(index, set)
	if err != nil {
		return fmt.Errorf("encoding item %d: %w", index, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".keypoints-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.Path(index)); err != nil {
		return err
	}

	s.logger.Debug("persisted features", "item", index, "keypoints", set.Len(), "path", s.Path(index))
	return nil
}

// Load reads back the features of the given item.
func (s *Store) Load(index int) (features.Set, error) {
	data, err := os.ReadFile(s.Path(index))
	if err != nil {
		return features.Set{}, err
	}
	return decode(index, data)
}
