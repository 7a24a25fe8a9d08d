package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidGraph indicates a malformed graph, such as an edge to an unknown node.
	ErrInvalidGraph = errors.New("invalid graph")
	// ErrCycle indicates the graph is not acyclic.
	ErrCycle = errors.New("cycle detected")
	// ErrNotReady indicates a node was dispatched while it still had unmet dependencies.
	ErrNotReady = errors.New("node dispatched with unmet dependencies")
	// ErrIllegalTransition indicates a node state moved backwards or skipped a step.
	ErrIllegalTransition = errors.New("illegal state transition")
	// ErrDependency is wrapped by the error recorded on skipped nodes.
	ErrDependency = errors.New("dependency did not succeed")
)

// InvariantViolation reports a broken scheduler or builder invariant. It is always
// fatal and indicates a bug in the code that constructed or ran the graph.
type InvariantViolation struct {
	Kind error
	Msg  string
}

func (e *InvariantViolation) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *InvariantViolation) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &InvariantViolation{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(names []string) error {
	return &InvariantViolation{Kind: ErrCycle, Msg: "unresolved nodes: " + strings.Join(names, ", ")}
}
