package pipeline

import (
	"context"
	"fmt"

	"github.com/nomis52/featurebatch/enumerate"
	"github.com/nomis52/featurebatch/workflow"
)

// Extractor computes the artifact for one item.
type Extractor[A any] interface {
	Extract(ctx context.Context, item enumerate.Item) (A, error)
}

// Persister writes one item's artifact to durable storage.
type Persister[A any] interface {
	Persist(ctx context.Context, index int, artifact A) error
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc[A any] func(ctx context.Context, item enumerate.Item) (A, error)

// Extract calls f.
func (f ExtractorFunc[A]) Extract(ctx context.Context, item enumerate.Item) (A, error) {
	return f(ctx, item)
}

// PersisterFunc adapts a function to the Persister interface.
type PersisterFunc[A any] func(ctx context.Context, index int, artifact A) error

// Persist calls f.
func (f PersisterFunc[A]) Persist(ctx context.Context, index int, artifact A) error {
	return f(ctx, index, artifact)
}

// Plan is a built pipeline graph together with the IDs of its nodes.
type Plan struct {
	Graph   *workflow.Graph
	Start   workflow.NodeID
	End     workflow.NodeID
	Compute []workflow.NodeID // indexed by item
	Persist []workflow.NodeID // indexed by item
}

// Build wires start -> compute[i] -> persist[i] -> end for every item. The tasks of
// item i read and write only ec.Slot(i).
func Build[A any](items []enumerate.Item, ec *Context[A], ex Extractor[A], p Persister[A]) (*Plan, error) {
	if ec.Len() != len(items) {
		return nil, fmt.Errorf("context has %d slots for %d items", ec.Len(), len(items))
	}

	b := workflow.NewBuilder()
	plan := &Plan{
		Start:   b.AddBarrier("start"),
		Compute: make([]workflow.NodeID, len(items)),
		Persist: make([]workflow.NodeID, len(items)),
	}
	plan.End = b.AddBarrier("end")

	for i, item := range items {
		if item.Index != i {
			return nil, fmt.Errorf("item %s has index %d at position %d", item.Path, item.Index, i)
		}
		slot := ec.Slot(i)
		if slot.Status != Empty || slot.Err != nil {
			return nil, fmt.Errorf("slot %d is %s, want a fresh context", i, slot.Status)
		}

		c := b.AddTask(fmt.Sprintf("compute[%d]", i), workflow.Compute, i, computeAction(item, slot, ex))
		s := b.AddTask(fmt.Sprintf("persist[%d]", i), workflow.Persist, i, persistAction(i, slot, p))

		for _, edge := range [][2]workflow.NodeID{{plan.Start, c}, {c, s}, {s, plan.End}} {
			if err := b.AddEdge(edge[0], edge[1]); err != nil {
				return nil, err
			}
		}
		plan.Compute[i] = c
		plan.Persist[i] = s
	}

	g, err := b.Build()
	if err != nil {
		return nil, err
	}
	plan.Graph = g
	return plan, nil
}

func computeAction[A any](item enumerate.Item, slot *Slot[A], ex Extractor[A]) workflow.Action {
	return func(ctx context.Context) error {
		artifact, err := ex.Extract(ctx, item)
		if err != nil {
			err = &ExtractionError{Item: item, Err: err}
			slot.Status, slot.Err = SlotFailed, err
			return err
		}
		slot.Artifact = artifact
		slot.Status, slot.Err = Computed, nil
		return nil
	}
}

func persistAction[A any](index int, slot *Slot[A], p Persister[A]) workflow.Action {
	return func(ctx context.Context) error {
		if slot.Status != Computed {
			return &workflow.InvariantViolation{
				Kind: workflow.ErrNotReady,
				Msg:  fmt.Sprintf("persist[%d] found slot %s", index, slot.Status),
			}
		}
		if err := p.Persist(ctx, index, slot.Artifact); err != nil {
			err = &PersistenceError{Index: index, Err: err}
			slot.Status, slot.Err = SlotFailed, err
			return err
		}
		var zero A
		slot.Artifact = zero
		slot.Status, slot.Err = Persisted, nil
		return nil
	}
}
