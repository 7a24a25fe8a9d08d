package runner

import (
	"time"

	"github.com/nomis52/featurebatch/logging"
	"github.com/nomis52/featurebatch/pipeline"
)

// RunState represents the current state of the runner.
type RunState int

const (
	// RunStateIdle indicates no batch is running.
	RunStateIdle RunState = iota
	// RunStateRunning indicates a batch is in progress.
	RunStateRunning
)

// String returns the string representation of the run state.
func (s RunState) String() string {
	switch s {
	case RunStateIdle:
		return "idle"
	case RunStateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (s RunState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// RunSummary describes one batch run.
type RunSummary struct {
	// ID is the run ID, shared with the pipeline report and captured logs.
	ID string `json:"id"`
	// Trigger records what started the run, e.g. "api" or "cron".
	Trigger string `json:"trigger"`
	// StartedAt is when the run started.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// EndedAt is when the run ended. Nil while the run is in progress.
	EndedAt *time.Time `json:"ended_at,omitempty"`

	Items     int `json:"items"`
	Done      int `json:"done"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`

	// Error contains the error message if the run could not complete. Item
	// failures are not run errors.
	Error string `json:"error,omitempty"`
}

// RunRecord is a finished run with its per-item failures and captured warnings.
type RunRecord struct {
	RunSummary
	Failures []pipeline.Failure `json:"failures,omitempty"`
	Logs     []logging.LogEntry `json:"logs,omitempty"`
}

// RunStatus contains the runner state with the current and last runs.
type RunStatus struct {
	State RunState `json:"state"`
	// Current is the run in progress, if any.
	Current *RunSummary `json:"current,omitempty"`
	// Last is the most recently finished run, if any.
	Last *RunSummary `json:"last,omitempty"`
}
