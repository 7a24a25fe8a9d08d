package workflow

import (
	"context"
	"fmt"
)

// NodeID identifies a node within a Graph. IDs are dense, starting at zero, in
// the order nodes were added to the Builder.
type NodeID int

// NoItem is the item index carried by nodes that do not operate on an item.
const NoItem = -1

// Kind describes what a node does.
type Kind int

const (
	// Barrier nodes carry no work. They resolve as soon as every predecessor is
	// terminal, whatever the outcome, giving the graph a fan-out and a fan-in point.
	Barrier Kind = iota
	// Compute nodes derive an artifact for one item.
	Compute
	// Persist nodes write one item's artifact to durable storage.
	Persist
)

// String returns the kind name used in logs and node names.
func (k Kind) String() string {
	switch k {
	case Barrier:
		return "barrier"
	case Compute:
		return "compute"
	case Persist:
		return "persist"
	default:
		return "unknown"
	}
}

// Action is the work a node performs. It runs on a worker goroutine, never under
// a lock.
type Action func(ctx context.Context) error

// Node is one unit of scheduled work. Nodes are created by a Builder and are
// read-only once the Graph is built.
type Node struct {
	id     NodeID
	name   string
	kind   Kind
	item   int
	action Action

	preds []NodeID
	succs []NodeID
}

// ID returns the node's identifier.
func (n *Node) ID() NodeID { return n.id }

// Name returns the node's display name.
func (n *Node) Name() string { return n.name }

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Item returns the item index the node operates on, or NoItem for barriers.
func (n *Node) Item() int { return n.item }

// InDegree returns the number of predecessors.
func (n *Node) InDegree() int { return len(n.preds) }

// OutDegree returns the number of successors.
func (n *Node) OutDegree() int { return len(n.succs) }

// Predecessors returns a copy of the predecessor IDs.
func (n *Node) Predecessors() []NodeID {
	return append([]NodeID(nil), n.preds...)
}

// Successors returns a copy of the successor IDs.
func (n *Node) Successors() []NodeID {
	return append([]NodeID(nil), n.succs...)
}

// String returns "name#id".
func (n *Node) String() string {
	return fmt.Sprintf("%s#%d", n.name, n.id)
}
