package workflow

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Graph is an immutable DAG of nodes. It holds no run state, so the same Graph
// can be executed any number of times.
type Graph struct {
	nodes []*Node
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node with the given ID. It panics on an unknown ID.
func (g *Graph) Node(id NodeID) *Node { return g.nodes[id] }

// Nodes returns the nodes in ID order.
func (g *Graph) Nodes() []*Node {
	return append([]*Node(nil), g.nodes...)
}

// Roots returns the nodes with no predecessors.
func (g *Graph) Roots() []NodeID {
	var roots []NodeID
	for _, n := range g.nodes {
		if len(n.preds) == 0 {
			roots = append(roots, n.id)
		}
	}
	return roots
}

// WriteDOT writes g to w in Graphviz DOT format. Nodes are named n<ID>, labelled
// with their name and shaped by kind; one edge is written per dependency.
func (g *Graph) WriteDOT(w io.Writer) error {
	var sb strings.Builder
	sb.WriteString("digraph workflow {\n")
	for _, n := range g.nodes {
		fmt.Fprintf(&sb, "  n%d [label=%q, kind=%q, shape=%s];\n", n.id, n.name, n.kind, dotShape(n.kind))
	}
	for _, n := range g.nodes {
		for _, s := range n.succs {
			fmt.Fprintf(&sb, "  n%d -> n%d;\n", n.id, s)
		}
	}
	sb.WriteString("}\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func dotShape(k Kind) string {
	switch k {
	case Barrier:
		return "diamond"
	case Persist:
		return "box"
	default:
		return "ellipse"
	}
}

// Builder assembles a Graph. It is not safe for concurrent use.
type Builder struct {
	nodes []*Node
	edges map[[2]NodeID]bool
	built bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{edges: make(map[[2]NodeID]bool)}
}

// AddBarrier adds a no-op barrier node.
func (b *Builder) AddBarrier(name string) NodeID {
	return b.add(name, Barrier, NoItem, nil)
}

// AddTask adds a node that runs action for the given item.
func (b *Builder) AddTask(name string, kind Kind, item int, action Action) NodeID {
	return b.add(name, kind, item, action)
}

func (b *Builder) add(name string, kind Kind, item int, action Action) NodeID {
	id := NodeID(len(b.nodes))
	b.nodes = append(b.nodes, &Node{
		id:     id,
		name:   name,
		kind:   kind,
		item:   item,
		action: action,
	})
	return id
}

// AddEdge records that to depends on from.
func (b *Builder) AddEdge(from, to NodeID) error {
	if b.built {
		return invalidf("graph already built")
	}
	if !b.valid(from) || !b.valid(to) {
		return invalidf("edge %d -> %d references an unknown node", from, to)
	}
	if from == to {
		return &InvariantViolation{Kind: ErrCycle, Msg: fmt.Sprintf("self edge on %s", b.nodes[from])}
	}
	key := [2]NodeID{from, to}
	if b.edges[key] {
		return invalidf("duplicate edge %s -> %s", b.nodes[from], b.nodes[to])
	}
	b.edges[key] = true
	b.nodes[from].succs = append(b.nodes[from].succs, to)
	b.nodes[to].preds = append(b.nodes[to].preds, from)
	return nil
}

// Build validates the graph and returns it. The Builder cannot be used afterwards.
func (b *Builder) Build() (*Graph, error) {
	if b.built {
		return nil, invalidf("graph already built")
	}
	for _, n := range b.nodes {
		if n.kind != Barrier && n.action == nil {
			return nil, invalidf("node %s has no action", n)
		}
	}
	if err := checkAcyclic(b.nodes); err != nil {
		return nil, err
	}
	b.built = true
	return &Graph{nodes: b.nodes}, nil
}

func (b *Builder) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(b.nodes)
}

// checkAcyclic runs Kahn's algorithm and reports the nodes left unresolved.
func checkAcyclic(nodes []*Node) error {
	inDegree := make([]int, len(nodes))
	queue := make([]NodeID, 0, len(nodes))
	for _, n := range nodes {
		inDegree[n.id] = len(n.preds)
		if inDegree[n.id] == 0 {
			queue = append(queue, n.id)
		}
	}

	processed := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		processed++
		for _, s := range nodes[current].succs {
			inDegree[s]--
			if inDegree[s] == 0 {
				queue = append(queue, s)
			}
		}
	}

	if processed == len(nodes) {
		return nil
	}

	var stuck []string
	for _, n := range nodes {
		if inDegree[n.id] > 0 {
			stuck = append(stuck, n.String())
		}
	}
	sort.Strings(stuck)
	return cycleError(stuck)
}
