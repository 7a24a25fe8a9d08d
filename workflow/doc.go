// Package workflow provides dependency-ordered execution of task graphs on a
// bounded worker pool.
//
// # Overview
//
// A Graph is assembled with a Builder and is immutable once built. Nodes are either
// barriers, which carry no work and only synchronise fan-out and fan-in, or tasks
// that run an Action. An Executor runs a Graph to completion:
//
//	b := workflow.NewBuilder()
//	start := b.AddBarrier("start")
//	work := b.AddTask("compute[0]", workflow.Compute, 0, action)
//	end := b.AddBarrier("end")
//	_ = b.AddEdge(start, work)
//	_ = b.AddEdge(work, end)
//	g, err := b.Build()
//
//	result, err := workflow.NewExecutor(workflow.WithWorkers(4)).Execute(ctx, g)
//
// # State Progression
//
// Each node moves forward only:
//
//	Pending -> Ready -> Running -> (Succeeded|Failed)
//	Pending -> Skipped
//
// A task node whose predecessors did not all succeed is Skipped and never runs, and
// its own successors see it as not succeeded. Barriers run once all predecessors are
// terminal, so a failure in one branch never blocks the fan-in barrier.
//
// # Error Handling
//
// Action errors stay on the failing node's NodeResult; siblings keep running.
// InvariantViolation (cycles, dangling edges, a node dispatched before its
// dependencies resolved, an illegal state transition) is fatal and returned from
// Build or Execute.
//
// # Thread Safety
//
// Graphs may be shared between concurrent Execute calls. All run state lives in the
// Execute call. Only the ready queue and the per-node atomic counters are shared
// between workers; actions never run under a lock.
package workflow
