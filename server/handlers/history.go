package handlers

import (
	"fmt"
	"net/http"
	"strconv"
)

// HistoryHandler lists completed runs, most recent first. The optional limit
// query parameter caps the number returned.
type HistoryHandler struct {
	provider HistoryProvider
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(provider HistoryProvider) *HistoryHandler {
	return &HistoryHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	history := h.provider.History()

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: fmt.Sprintf("invalid limit %q", raw),
			})
			return
		}
		if limit < len(history) {
			history = history[:limit]
		}
	}

	writeJSON(w, http.StatusOK, history)
}

// RunDetailHandler returns one completed run with its failures and captured logs.
// It expects the run ID in the {id} path wildcard.
type RunDetailHandler struct {
	provider HistoryProvider
}

// NewRunDetailHandler creates a new RunDetailHandler.
func NewRunDetailHandler(provider HistoryProvider) *RunDetailHandler {
	return &RunDetailHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *RunDetailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing run id"})
		return
	}

	record, ok := h.provider.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error: fmt.Sprintf("run %q not found", id),
		})
		return
	}

	writeJSON(w, http.StatusOK, record)
}
