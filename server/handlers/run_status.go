package handlers

import (
	"net/http"
)

// RunStatusHandler reports the run in progress, if any, and the last finished run.
type RunStatusHandler struct {
	provider RunStatusProvider
}

// NewRunStatusHandler creates a new RunStatusHandler.
func NewRunStatusHandler(provider RunStatusProvider) *RunStatusHandler {
	return &RunStatusHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *RunStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.provider.Status())
}
