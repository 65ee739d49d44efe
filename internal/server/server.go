package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/walletperm/internal/event"
	"github.com/opencode-ai/walletperm/internal/logging"
	"github.com/opencode-ai/walletperm/internal/permission"
)

// Config holds server configuration.
type Config struct {
	Port         int
	Hostname     string
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:         4096,
		Hostname:     "127.0.0.1",
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // ensure calls long-poll and /event streams
	}
}

// Server is the HTTP server.
type Server struct {
	config  *Config
	router  *chi.Mux
	httpSrv *http.Server
	manager *permission.Manager
	bus     *event.Bus
	log     zerolog.Logger

	callbackIDs map[permission.CallbackKind]int
}

// New creates a new Server instance serving mgr. Every permission request
// the manager raises is published on bus.
func New(cfg *Config, mgr *permission.Manager, bus *event.Bus) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if bus == nil {
		bus = event.NewBus()
	}

	s := &Server{
		config:      cfg,
		router:      chi.NewRouter(),
		manager:     mgr,
		bus:         bus,
		log:         logging.Component("server"),
		callbackIDs: make(map[permission.CallbackKind]int),
	}

	s.bindCallbacks()
	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// bindCallbacks makes the event bus one more UI handler of the manager.
func (s *Server) bindCallbacks() {
	for _, kind := range permission.CallbackKinds {
		s.callbackIDs[kind] = s.manager.BindCallback(kind, func(_ context.Context, ev permission.RequestEvent) error {
			if ev.Grouped != nil {
				s.bus.Publish(event.Event{
					Type: event.GroupedPermissionRequested,
					Data: event.GroupedPermissionRequestedData{RequestID: ev.RequestID, Request: ev.Grouped},
				})
				return nil
			}
			s.bus.Publish(event.Event{
				Type: event.PermissionRequested,
				Data: event.PermissionRequestedData{RequestID: ev.RequestID, Kind: string(kind), Request: ev.Request},
			})
			return nil
		})
	}
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}

// requestLogger logs each request at debug level once it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("requestID", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Hostname, s.config.Port)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("listening")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server and unbinds its callbacks.
func (s *Server) Shutdown(ctx context.Context) error {
	for kind, id := range s.callbackIDs {
		s.manager.UnbindCallback(kind, id)
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
