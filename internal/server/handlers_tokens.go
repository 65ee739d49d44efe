package server

import (
	"net/http"

	"github.com/opencode-ai/walletperm/internal/event"
	"github.com/opencode-ai/walletperm/pkg/types"
)

// RevokeRequest is the body of POST /tokens/revoke.
type RevokeRequest struct {
	Type     types.PermissionType `json:"type"`
	Outpoint string               `json:"outpoint"`
}

// SpendingResponse reports an originator's spend in the current month.
type SpendingResponse struct {
	Originator string `json:"originator"`
	Spent      uint64 `json:"spent"`
}

// listTokens handles GET /tokens?type=...&originator=...
func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	t := types.PermissionType(r.URL.Query().Get("type"))
	if t == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "type is required")
		return
	}

	tokens, err := s.manager.ListTokens(r.Context(), t, r.URL.Query().Get("originator"))
	if err != nil {
		writeManagerError(w, err)
		return
	}
	if tokens == nil {
		tokens = []*types.PermissionToken{}
	}
	writeJSON(w, http.StatusOK, tokens)
}

// revokeToken handles POST /tokens/revoke
func (s *Server) revokeToken(w http.ResponseWriter, r *http.Request) {
	var req RevokeRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Type == "" || req.Outpoint == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "type and outpoint are required")
		return
	}

	if err := s.manager.RevokeOutpoint(r.Context(), req.Type, req.Outpoint); err != nil {
		writeManagerError(w, err)
		return
	}

	s.bus.Publish(event.Event{
		Type: event.TokenRevoked,
		Data: event.TokenRevokedData{Type: req.Type, Outpoint: req.Outpoint},
	})
	writeSuccess(w)
}

// getSpending handles GET /spending?originator=...
func (s *Server) getSpending(w http.ResponseWriter, r *http.Request) {
	originator := r.URL.Query().Get("originator")
	if originator == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "originator is required")
		return
	}

	spent, err := s.manager.QuerySpentThisMonth(r.Context(), originator)
	if err != nil {
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SpendingResponse{Originator: originator, Spent: spent})
}
