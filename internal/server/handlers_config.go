package server

import (
	"net/http"

	"github.com/opencode-ai/walletperm/internal/permission"
)

// ConfigResponse is the effective configuration of the running manager.
type ConfigResponse struct {
	AdminOriginator string            `json:"adminOriginator"`
	Permissions     permission.Config `json:"permissions"`
}

// getConfig handles GET /config
func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ConfigResponse{
		AdminOriginator: s.manager.AdminOriginator(),
		Permissions:     s.manager.Config(),
	})
}

// health handles GET /health
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
