// Package handlers provides HTTP handlers for the featurebatch server.
//
// Each handler is in its own file and implements http.Handler.
// Handlers use interfaces to access server dependencies, avoiding
// circular imports.
package handlers

import (
	"time"

	"github.com/nomis52/featurebatch/config"
	"github.com/nomis52/featurebatch/server/runner"
	"github.com/nomis52/featurebatch/server/types"
)

// ConfigProvider provides access to the configuration the server was started with.
type ConfigProvider interface {
	Config() *config.Config
}

// BatchRunner can start batch runs.
type BatchRunner interface {
	Run(trigger string) error
}

// RunStatusProvider provides access to run status.
type RunStatusProvider interface {
	Status() runner.RunStatus
}

// StatusProvider aggregates everything the /api/status endpoint reports.
type StatusProvider interface {
	RunStatusProvider
	NextRun() *time.Time
	Properties() types.ServerProperties
}

// HistoryProvider provides access to run history.
type HistoryProvider interface {
	History() []runner.RunSummary
	Get(id string) (runner.RunRecord, bool)
}

// ReloadableStore is a history store that can be re-read from its backing storage.
type ReloadableStore interface {
	Reload() error
}
