package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/opencode-ai/walletperm/internal/permission"
	"github.com/opencode-ai/walletperm/pkg/types"
)

// EnsureResponse is returned by every /ensure endpoint on success.
type EnsureResponse struct {
	Allowed bool `json:"allowed"`
}

// decodeBody decodes the JSON request body into v. An empty body leaves v
// untouched when allowEmpty is set.
func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	return err
}

// ensureHandler decodes A from the body and runs check with the request's
// context. The call long-polls until the user answers; when the client goes
// away the result is dropped.
func ensureHandler[A any](check func(*http.Request, A) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var args A
		if err := decodeBody(r, &args, false); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body: "+err.Error())
			return
		}

		ok, err := check(r, args)
		if r.Context().Err() != nil {
			return
		}
		if err != nil {
			writeManagerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, EnsureResponse{Allowed: ok})
	}
}

// ensureProtocol handles POST /ensure/protocol
func (s *Server) ensureProtocol(w http.ResponseWriter, r *http.Request) {
	ensureHandler(func(r *http.Request, args permission.ProtocolArgs) (bool, error) {
		return s.manager.EnsureProtocolPermission(r.Context(), args)
	})(w, r)
}

// ensureBasket handles POST /ensure/basket
func (s *Server) ensureBasket(w http.ResponseWriter, r *http.Request) {
	ensureHandler(func(r *http.Request, args permission.BasketArgs) (bool, error) {
		return s.manager.EnsureBasketAccess(r.Context(), args)
	})(w, r)
}

// ensureCertificate handles POST /ensure/certificate
func (s *Server) ensureCertificate(w http.ResponseWriter, r *http.Request) {
	ensureHandler(func(r *http.Request, args permission.CertificateArgs) (bool, error) {
		return s.manager.EnsureCertificateAccess(r.Context(), args)
	})(w, r)
}

// ensureSpending handles POST /ensure/spending
func (s *Server) ensureSpending(w http.ResponseWriter, r *http.Request) {
	ensureHandler(func(r *http.Request, args permission.SpendingArgs) (bool, error) {
		return s.manager.EnsureSpendingAuthorization(r.Context(), args)
	})(w, r)
}

// ensureLabel handles POST /ensure/label
func (s *Server) ensureLabel(w http.ResponseWriter, r *http.Request) {
	ensureHandler(func(r *http.Request, args permission.LabelArgs) (bool, error) {
		return s.manager.EnsureLabelAccess(r.Context(), args)
	})(w, r)
}

// ensureGrouped handles POST /ensure/grouped
func (s *Server) ensureGrouped(w http.ResponseWriter, r *http.Request) {
	ensureHandler(func(r *http.Request, req types.GroupedPermissionRequest) (bool, error) {
		return s.manager.EnsureGroupedPermissions(r.Context(), req)
	})(w, r)
}
