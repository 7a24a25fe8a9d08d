package handlers

import (
	"log/slog"
	"net/http"

	"gopkg.in/yaml.v3"
)

// ConfigHandler serves the active configuration as YAML.
type ConfigHandler struct {
	logger   *slog.Logger
	provider ConfigProvider
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(logger *slog.Logger, provider ConfigProvider) *ConfigHandler {
	return &ConfigHandler{
		logger:   logger,
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *ConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg := h.provider.Config()
	if cfg == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no configuration loaded"})
		return
	}

	w.Header().Set("Content-Type", "text/yaml")
	w.WriteHeader(http.StatusOK)
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(cfg.Redacted()); err != nil {
		h.logger.Error("failed to encode YAML response", "error", err)
	}
}
