package handlers

import (
	"errors"
	"net/http"

	"github.com/nomis52/featurebatch/server/runner"
)

// TriggerAPI is recorded on runs started through POST /run.
const TriggerAPI = "api"

// RunHandler handles requests to trigger a batch run.
type RunHandler struct {
	runner BatchRunner
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(r BatchRunner) *RunHandler {
	return &RunHandler{
		runner: r,
	}
}

// ServeHTTP implements http.Handler. The run proceeds in the background; 202
// means it was accepted and 409 that another run is still active.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.runner.Run(TriggerAPI); err != nil {
		if errors.Is(err, runner.ErrRunInProgress) {
			writeJSON(w, http.StatusConflict, ErrorResponse{
				Error: err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
