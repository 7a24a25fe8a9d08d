package pipeline

import (
	"fmt"

	"github.com/nomis52/featurebatch/enumerate"
)

// ExtractionError reports that the compute collaborator failed for an item.
type ExtractionError struct {
	Item enumerate.Item
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting features from %s (item %d): %v", e.Item.Path, e.Item.Index, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PersistenceError reports that the persist collaborator failed for an item.
type PersistenceError struct {
	Index int
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting item %d: %v", e.Index, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
