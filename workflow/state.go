package workflow

// NodeState is the execution state of a node within one run.
type NodeState int32

const (
	// Pending indicates the node is waiting for predecessors to resolve.
	Pending NodeState = iota

	// Ready indicates every predecessor has resolved and the node is queued.
	Ready

	// Running indicates a worker is executing the node's action.
	Running

	// Succeeded indicates the action returned nil.
	Succeeded

	// Failed indicates the action returned an error.
	Failed

	// Skipped indicates the action was never run because a predecessor did not
	// succeed or the run was cancelled before the node was dispatched.
	Skipped
)

// String returns a human-readable representation of the NodeState
func (s NodeState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (s NodeState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// IsTerminal returns true once the node can no longer change state.
func (s NodeState) IsTerminal() bool {
	return s == Succeeded || s == Failed || s == Skipped
}

// allowed lists the legal transitions. States only move forward.
var allowed = map[NodeState][]NodeState{
	Pending: {Ready, Skipped},
	Ready:   {Running, Skipped},
	Running: {Succeeded, Failed},
}

func canTransition(from, to NodeState) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}
