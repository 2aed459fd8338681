package api

import (
	"net/http"

	"github.com/seenimoa/dartfin/internal/config"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
// The API key itself is never serialized; Keys reports it masked.
type ConfigResponse struct {
	Config *config.Config      `json:"config"`
	Keys   []config.KeyStatus `json:"keys"`
}

// handleGetConfig returns the running configuration.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.cfg == nil {
		writeError(w, http.StatusServiceUnavailable, "no configuration loaded")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ConfigResponse{
			Config: s.cfg,
			Keys:   config.CheckAPIKeys(s.cfg),
		},
	})
}
