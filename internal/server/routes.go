package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/health", s.health)

	// Permission checks. Each call blocks until the permission is confirmed,
	// granted, or denied.
	r.Route("/ensure", func(r chi.Router) {
		r.Post("/protocol", s.ensureProtocol)
		r.Post("/basket", s.ensureBasket)
		r.Post("/certificate", s.ensureCertificate)
		r.Post("/spending", s.ensureSpending)
		r.Post("/label", s.ensureLabel)
		r.Post("/grouped", s.ensureGrouped)
	})

	// Consent API for the UI layer
	r.Route("/permission", func(r chi.Router) {
		r.Get("/pending", s.listPending)
		r.Post("/grant", s.grantPermission)
		r.Post("/deny", s.denyPermission)
	})
	r.Route("/grouped", func(r chi.Router) {
		r.Post("/grant", s.grantGrouped)
		r.Post("/deny", s.denyGrouped)
	})

	// Token management
	r.Route("/tokens", func(r chi.Router) {
		r.Get("/", s.listTokens)
		r.Post("/revoke", s.revokeToken)
	})
	r.Get("/spending", s.getSpending)

	r.Get("/config", s.getConfig)

	// Event streaming (SSE)
	r.Get("/event", s.allEvents)
}
