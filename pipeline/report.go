package pipeline

import (
	"time"

	"github.com/nomis52/featurebatch/enumerate"
	"github.com/nomis52/featurebatch/workflow"
)

// Stage names used in failures and metrics.
const (
	StageCompute = "compute"
	StagePersist = "persist"
)

// Outcome labels for items.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Failure describes one item that did not make it to storage.
type Failure struct {
	Index   int    `json:"index"`
	Path    string `json:"path"`
	Stage   string `json:"stage"`
	Err     error  `json:"-"`
	Message string `json:"error"`
}

// Report summarises a pipeline run.
type Report struct {
	RunID     string    `json:"run_id"`
	Items     int       `json:"items"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Failures  []Failure `json:"failures,omitempty"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
}

// Duration returns the wall-clock time of the run.
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// OK reports whether every item was persisted.
func (r *Report) OK() bool {
	return r.Succeeded == r.Items
}

// newReport derives per-item outcomes from the executor result. An item succeeded
// when its persist node succeeded, failed when either of its tasks failed, and was
// skipped otherwise.
func newReport(runID string, items []enumerate.Item, plan *Plan, res *workflow.Result) *Report {
	r := &Report{RunID: runID, Items: len(items)}
	for i, item := range items {
		compute := res.Node(plan.Compute[i])
		persist := res.Node(plan.Persist[i])

		switch {
		case persist.State == workflow.Succeeded:
			r.Succeeded++
		case compute.State == workflow.Failed:
			r.Failed++
			r.Failures = append(r.Failures, newFailure(item, StageCompute, compute.Err))
		case persist.State == workflow.Failed:
			r.Failed++
			r.Failures = append(r.Failures, newFailure(item, StagePersist, persist.Err))
		default:
			r.Skipped++
		}
	}
	return r
}

func newFailure(item enumerate.Item, stage string, err error) Failure {
	f := Failure{Index: item.Index, Path: item.Path, Stage: stage, Err: err}
	if err != nil {
		f.Message = err.Error()
	}
	return f
}
