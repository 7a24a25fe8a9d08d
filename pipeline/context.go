package pipeline

import "fmt"

// SlotStatus tracks how far an item has progressed.
type SlotStatus int

const (
	// Empty indicates nothing has been computed yet.
	Empty SlotStatus = iota
	// Computed indicates the artifact is held in the slot, waiting to be persisted.
	Computed
	// Persisted indicates the artifact was written to durable storage.
	Persisted
	// SlotFailed indicates a stage failed; Err holds the cause.
	SlotFailed
)

// String returns a human-readable representation of the SlotStatus
func (s SlotStatus) String() string {
	switch s {
	case Empty:
		return "empty"
	case Computed:
		return "computed"
	case Persisted:
		return "persisted"
	case SlotFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (s SlotStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Slot is the per-item state shared by an item's Compute and Persist tasks.
// The artifact is dropped once persisted so memory stays bounded by the number
// of items in flight.
type Slot[A any] struct {
	Artifact A
	Status   SlotStatus
	Err      error
}

// Context owns one Slot per item index. Slot i is only ever touched by the
// Compute and Persist tasks of item i, which run in that order, so slots need no
// locking.
type Context[A any] struct {
	slots []Slot[A]
}

// NewContext allocates n empty slots indexed 0..n-1.
func NewContext[A any](n int) *Context[A] {
	return &Context[A]{slots: make([]Slot[A], n)}
}

// Len returns the number of slots.
func (c *Context[A]) Len() int { return len(c.slots) }

// Slot returns slot i. It panics when i is out of range.
func (c *Context[A]) Slot(i int) *Slot[A] {
	if i < 0 || i >= len(c.slots) {
		panic(fmt.Sprintf("pipeline: slot %d out of range [0,%d)", i, len(c.slots)))
	}
	return &c.slots[i]
}

// Slots returns a copy of every slot for reporting.
func (c *Context[A]) Slots() []Slot[A] {
	out := make([]Slot[A], len(c.slots))
	copy(out, c.slots)
	return out
}

// Statuses returns the status of every slot. Call it only after the run that
// owns the context has finished.
func (c *Context[A]) Statuses() []SlotStatus {
	out := make([]SlotStatus, len(c.slots))
	for i := range c.slots {
		out[i] = c.slots[i].Status
	}
	return out
}
