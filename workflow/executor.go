package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// NodeResult is the final outcome of one node in a run.
type NodeResult struct {
	State    NodeState `json:"state"`
	Err      error     `json:"-"`
	Started  time.Time `json:"started,omitzero"`
	Finished time.Time `json:"finished,omitzero"`
}

// Duration returns how long the action ran. It is zero for nodes that never ran.
func (r NodeResult) Duration() time.Duration {
	if r.Started.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Result holds the outcome of every node after Execute returns.
type Result struct {
	graph *Graph
	nodes []NodeResult
}

// Graph returns the graph that was executed.
func (r *Result) Graph() *Graph { return r.graph }

// Node returns the result of the node with the given ID.
func (r *Result) Node(id NodeID) NodeResult { return r.nodes[id] }

// Count returns how many nodes finished in the given state.
func (r *Result) Count(state NodeState) int {
	count := 0
	for _, nr := range r.nodes {
		if nr.State == state {
			count++
		}
	}
	return count
}

// NodeEvent is delivered to hooks each time a node reaches a terminal state.
type NodeEvent struct {
	Node   *Node
	Result NodeResult
}

// Executor runs graphs on a fixed-size pool of workers.
//
// Workers pull nodes from a FIFO ready queue. A node enters the queue only when its
// unmet-dependency counter, decremented atomically as each predecessor resolves,
// reaches zero. Non-barrier nodes whose predecessors did not all succeed are resolved
// as Skipped without running and the skip propagates to their successors. Barrier
// nodes run once every predecessor is terminal, whatever the outcome.
type Executor struct {
	workers int
	logger  *slog.Logger
	hooks   []func(NodeEvent)
}

// Option configures an Executor.
type Option func(*Executor)

// WithWorkers sets the pool size. Values below one select the default, which is
// the number of usable CPUs.
func WithWorkers(n int) Option {
	return func(e *Executor) {
		if n >= 1 {
			e.workers = n
		}
	}
}

// WithLogger sets a custom logger for the executor
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger.With("component", "executor")
	}
}

// WithHook registers a function called whenever a node becomes terminal. Hooks run
// on worker goroutines and must be safe for concurrent use.
func WithHook(hook func(NodeEvent)) Option {
	return func(e *Executor) {
		e.hooks = append(e.hooks, hook)
	}
}

// NewExecutor creates an executor with optional configuration.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		workers: runtime.GOMAXPROCS(0),
		logger:  slog.Default().With("component", "executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Workers returns the configured pool size.
func (e *Executor) Workers() int { return e.workers }

// Execute runs g to completion and blocks until every node is terminal.
//
// Action errors are recorded in the Result and never abort other nodes. The
// returned error is non-nil only for an InvariantViolation, which is fatal; the
// Result is still returned so callers can inspect what happened.
//
// Cancelling ctx does not interrupt running actions. Nodes dispatched after
// cancellation are resolved as Skipped with the context error.
func (e *Executor) Execute(ctx context.Context, g *Graph) (*Result, error) {
	r := newRun(e, g)
	if len(g.nodes) == 0 {
		return &Result{graph: g, nodes: r.results}, nil
	}

	e.logger.Debug("starting execution", "nodes", len(g.nodes), "workers", e.workers)

	for _, id := range g.Roots() {
		r.markReady(id)
	}

	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			r.work(ctx, workerID)
		}(w)
	}
	wg.Wait()

	result := &Result{graph: g, nodes: r.results}
	if v := r.violation.Load(); v != nil {
		e.logger.Error("execution aborted by invariant violation", "error", *v)
		return result, *v
	}

	e.logger.Debug("execution completed",
		"succeeded", result.Count(Succeeded),
		"failed", result.Count(Failed),
		"skipped", result.Count(Skipped),
	)
	return result, nil
}

// run holds the mutable state of one Execute call.
type run struct {
	exec  *Executor
	graph *Graph

	pending   []atomic.Int32 // unmet dependencies per node
	states    []atomic.Int32 // NodeState per node
	blockedBy []atomic.Int32 // first predecessor that did not succeed, or -1
	results   []NodeResult   // written once by the goroutine that resolves the node

	ready     chan NodeID
	remaining atomic.Int64
	violation atomic.Pointer[error]
}

func newRun(e *Executor, g *Graph) *run {
	n := len(g.nodes)
	r := &run{
		exec:      e,
		graph:     g,
		pending:   make([]atomic.Int32, n),
		states:    make([]atomic.Int32, n),
		blockedBy: make([]atomic.Int32, n),
		results:   make([]NodeResult, n),
		// Every node is enqueued at most once, so sends never block.
		ready: make(chan NodeID, n),
	}
	for _, node := range g.nodes {
		r.pending[node.id].Store(int32(len(node.preds)))
		r.blockedBy[node.id].Store(-1)
	}
	r.remaining.Store(int64(n))
	return r
}

func (r *run) work(ctx context.Context, workerID int) {
	for id := range r.ready {
		r.process(ctx, workerID, id)
	}
}

func (r *run) process(ctx context.Context, workerID int, id NodeID) {
	node := r.graph.nodes[id]
	logger := r.exec.logger.With("worker", workerID, "node", node.name)

	if left := r.pending[id].Load(); left != 0 {
		err := r.violate(&InvariantViolation{Kind: ErrNotReady, Msg: fmt.Sprintf("%s has %d unmet dependencies", node, left)})
		r.resolve(id, Ready, NodeResult{State: Failed, Err: err})
		return
	}

	if err := ctx.Err(); err != nil && node.kind != Barrier {
		logger.Debug("node skipped, run cancelled", "error", err)
		r.resolve(id, Ready, NodeResult{State: Skipped, Err: fmt.Errorf("cancelled: %w", err)})
		return
	}

	if err := r.transition(id, Ready, Running); err != nil {
		r.resolve(id, Ready, NodeResult{State: Failed, Err: err})
		return
	}

	res := NodeResult{Started: time.Now()}
	err := runAction(ctx, node)
	res.Finished = time.Now()

	if err != nil {
		logger.Debug("node failed", "error", err, "duration", res.Duration())
		res.State, res.Err = Failed, err
	} else {
		logger.Debug("node succeeded", "duration", res.Duration())
		res.State = Succeeded
	}
	r.resolve(id, Running, res)
}

// resolve moves id from the given state to its terminal state, records the result
// and releases successors. The remaining counter is decremented last so the ready
// queue is closed only after the final send.
func (r *run) resolve(id NodeID, from NodeState, res NodeResult) {
	if err := r.transition(id, from, res.State); err != nil {
		// Keep draining: force the state so successors are still released.
		r.states[id].Store(int32(res.State))
	}
	r.results[id] = res
	r.notify(id)
	r.release(id, res.State == Succeeded)
	r.finishOne()
}

// release decrements the counter of every successor of id. Successors reaching zero
// are enqueued, or resolved as Skipped when a required predecessor did not succeed,
// in which case the skip is pushed on to their own successors.
func (r *run) release(id NodeID, succeeded bool) {
	type edge struct {
		from      NodeID
		succeeded bool
	}
	stack := []edge{{id, succeeded}}

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, s := range r.graph.nodes[e.from].succs {
			if !e.succeeded {
				r.blockedBy[s].CompareAndSwap(-1, int32(e.from))
			}
			if r.pending[s].Add(-1) != 0 {
				continue
			}

			succ := r.graph.nodes[s]
			blocker := r.blockedBy[s].Load()
			if succ.kind == Barrier || blocker < 0 {
				r.markReady(s)
				continue
			}

			cause := r.graph.nodes[blocker]
			res := NodeResult{State: Skipped, Err: fmt.Errorf("%w: %s", ErrDependency, cause.name)}
			if err := r.transition(s, Pending, Skipped); err != nil {
				r.states[s].Store(int32(Skipped))
			}
			r.results[s] = res
			r.notify(s)
			stack = append(stack, edge{s, false})
			r.finishOne()
		}
	}
}

func (r *run) markReady(id NodeID) {
	if err := r.transition(id, Pending, Ready); err != nil {
		// The queue still gets the node so the run drains; process reports it.
		r.states[id].Store(int32(Ready))
	}
	r.ready <- id
}

func (r *run) finishOne() {
	if r.remaining.Add(-1) == 0 {
		close(r.ready)
	}
}

func (r *run) transition(id NodeID, from, to NodeState) error {
	if !canTransition(from, to) || !r.states[id].CompareAndSwap(int32(from), int32(to)) {
		current := NodeState(r.states[id].Load())
		return r.violate(&InvariantViolation{
			Kind: ErrIllegalTransition,
			Msg:  fmt.Sprintf("%s: %s -> %s (current %s)", r.graph.nodes[id], from, to, current),
		})
	}
	return nil
}

// violate records the first invariant violation and returns err.
func (r *run) violate(err error) error {
	r.violation.CompareAndSwap(nil, &err)
	return err
}

func (r *run) notify(id NodeID) {
	if len(r.exec.hooks) == 0 {
		return
	}
	ev := NodeEvent{Node: r.graph.nodes[id], Result: r.results[id]}
	for _, hook := range r.exec.hooks {
		hook(ev)
	}
}

// runAction executes the node's action and converts a panic into an error so one
// misbehaving action cannot take down its worker and stall the run.
func runAction(ctx context.Context, node *Node) (err error) {
	if node.action == nil {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s panicked: %v", node.name, p)
		}
	}()
	if err := node.action(ctx); err != nil {
		return err
	}
	return nil
}

// IsDependencyError reports whether err was recorded on a node skipped because a
// predecessor did not succeed.
func IsDependencyError(err error) bool {
	return errors.Is(err, ErrDependency)
}
