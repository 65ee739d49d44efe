package server

import (
	"net/http"

	"github.com/opencode-ai/walletperm/internal/event"
	"github.com/opencode-ai/walletperm/internal/permission"
	"github.com/opencode-ai/walletperm/pkg/types"
)

// GrantRequest is the body of POST /permission/grant.
type GrantRequest struct {
	RequestID string `json:"requestID"`
	permission.GrantOptions
}

// DenyRequest is the body of both deny endpoints.
type DenyRequest struct {
	RequestID string `json:"requestID"`
}

// GroupedGrantRequest is the body of POST /grouped/grant. Granted must be a
// subset of what was requested.
type GroupedGrantRequest struct {
	RequestID string                   `json:"requestID"`
	Granted   types.GroupedPermissions `json:"granted"`
	Expiry    int64                    `json:"expiry,omitempty"`
}

// listPending handles GET /permission/pending
func (s *Server) listPending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.PendingRequests())
}

// grantPermission handles POST /permission/grant
func (s *Server) grantPermission(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.RequestID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "requestID is required")
		return
	}

	if err := s.manager.GrantPermission(r.Context(), req.RequestID, req.GrantOptions); err != nil {
		writeManagerError(w, err)
		return
	}

	s.bus.Publish(event.Event{
		Type: event.PermissionGranted,
		Data: event.PermissionGrantedData{RequestID: req.RequestID, Expiry: req.Expiry, Ephemeral: req.Ephemeral},
	})
	writeSuccess(w)
}

// denyPermission handles POST /permission/deny
func (s *Server) denyPermission(w http.ResponseWriter, r *http.Request) {
	s.deny(w, r, s.manager.DenyPermission)
}

// grantGrouped handles POST /grouped/grant
func (s *Server) grantGrouped(w http.ResponseWriter, r *http.Request) {
	var req GroupedGrantRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.RequestID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "requestID is required")
		return
	}

	if err := s.manager.GrantGroupedPermission(r.Context(), req.RequestID, req.Granted, req.Expiry); err != nil {
		writeManagerError(w, err)
		return
	}

	s.bus.Publish(event.Event{
		Type: event.PermissionGranted,
		Data: event.PermissionGrantedData{RequestID: req.RequestID, Expiry: req.Expiry},
	})
	writeSuccess(w)
}

// denyGrouped handles POST /grouped/deny
func (s *Server) denyGrouped(w http.ResponseWriter, r *http.Request) {
	s.deny(w, r, s.manager.DenyGroupedPermission)
}

func (s *Server) deny(w http.ResponseWriter, r *http.Request, fn func(string) error) {
	var req DenyRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.RequestID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "requestID is required")
		return
	}

	if err := fn(req.RequestID); err != nil {
		writeManagerError(w, err)
		return
	}

	s.bus.Publish(event.Event{
		Type: event.PermissionDenied,
		Data: event.PermissionDeniedData{RequestID: req.RequestID},
	})
	writeSuccess(w)
}
