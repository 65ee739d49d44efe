package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/opencode-ai/walletperm/internal/permission"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error codes
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeWalletError      = "WALLET_ERROR"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeErrorWithDetails(w, status, code, message, nil)
}

// writeErrorWithDetails writes an error response with details.
func writeErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// writeSuccess writes a success response.
func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// writeManagerError maps a permission manager error to a status and code.
// Anything that is not a *permission.Error came from the wallet.
func writeManagerError(w http.ResponseWriter, err error) {
	var perr *permission.Error
	if !errors.As(err, &perr) {
		writeError(w, http.StatusInternalServerError, ErrCodeWalletError, err.Error())
		return
	}

	switch {
	case perr.Denied:
		writeError(w, http.StatusForbidden, ErrCodePermissionDenied, perr.Error())
	case errors.Is(perr, permission.ErrInvalidParameter):
		var details map[string]any
		if perr.Parameter != "" {
			details = map[string]any{"parameter": perr.Parameter}
		}
		writeErrorWithDetails(w, http.StatusBadRequest, ErrCodeInvalidRequest, perr.Error(), details)
	case errors.Is(perr, permission.ErrInvalidOperation):
		writeError(w, http.StatusForbidden, ErrCodeInvalidOperation, perr.Error())
	case errors.Is(perr, permission.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, perr.Error())
	default:
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, perr.Error())
	}
}
