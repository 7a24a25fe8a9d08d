package handlers

import (
	"log/slog"
	"net/http"
)

// HistoryReloadHandler re-reads run history from disk, picking up records
// copied in or pruned by hand while the server is running.
type HistoryReloadHandler struct {
	logger *slog.Logger
	store  ReloadableStore
}

// NewHistoryReloadHandler creates a new HistoryReloadHandler.
func NewHistoryReloadHandler(logger *slog.Logger, store ReloadableStore) *HistoryReloadHandler {
	return &HistoryReloadHandler{
		logger: logger,
		store:  store,
	}
}

// ServeHTTP implements http.Handler.
func (h *HistoryReloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("reloading run history")

	if err := h.store.Reload(); err != nil {
		h.logger.Error("failed to reload run history", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "failed to reload run history: " + err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
