package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dubtest/internal/common"
)

// APIHandler serves the small JSON surface: health and version.
type APIHandler struct {
	logger arbor.ILogger
}

// NewAPIHandler creates the API handler.
func NewAPIHandler(logger arbor.ILogger) *APIHandler {
	return &APIHandler{logger: logger}
}

// HealthHandler reports service liveness.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{
		"status":  "ok",
		"version": common.GetVersion(),
	})
}

// VersionHandler reports the full build information.
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{
		"version": common.Version,
		"build":   common.Build,
		"commit":  common.GitCommit,
	})
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Debug().Err(err).Msg("Failed to encode JSON response")
	}
}
