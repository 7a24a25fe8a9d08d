package runner

// StateStore manages persistence of run history.
type StateStore interface {
	// History returns the stored runs, most recent first.
	History() []RunSummary
	// Get returns the full record of a run.
	Get(id string) (RunRecord, bool)
	// Save persists a finished run.
	Save(RunRecord) error
}
