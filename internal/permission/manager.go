package permission

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/opencode-ai/walletperm/internal/logging"
	"github.com/opencode-ai/walletperm/internal/wallet"
)

// DefaultGrantTTL is how long a granted permission lasts when the grant does
// not name an expiry.
const DefaultGrantTTL = 30 * 24 * time.Hour

// Manager decides whether an originator may use a protocol, basket,
// certificate or spending budget, asking the user through bound callbacks
// when no valid permission token exists. One Manager serves one wallet.
type Manager struct {
	wallet          wallet.Interface
	adminOriginator string
	config          Config

	clock           Clock
	cacheTTL        time.Duration
	defaultGrantTTL time.Duration

	cache     *permissionCache
	registry  *requestRegistry
	callbacks *callbackRegistry

	log zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(m *Manager) { m.config = cfg }
}

// WithClock sets the time source used for expiry and cache checks.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithCacheTTL sets how long confirmed permissions are trusted.
func WithCacheTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.cacheTTL = d
		}
	}
}

// WithDefaultGrantTTL sets the lifetime of grants made without an expiry.
func WithDefaultGrantTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.defaultGrantTTL = d
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a Manager over w. Calls made by adminOriginator are
// always allowed, and the manager uses that identity for its own wallet
// calls.
func NewManager(w wallet.Interface, adminOriginator string, opts ...Option) *Manager {
	m := &Manager{
		wallet:          w,
		adminOriginator: adminOriginator,
		config:          DefaultConfig(),
		clock:           systemClock{},
		cacheTTL:        DefaultCacheTTL,
		defaultGrantTTL: DefaultGrantTTL,
		registry:        newRequestRegistry(),
		callbacks:       newCallbackRegistry(),
		log:             logging.Component("permission"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.cache = newPermissionCache(m.clock)
	return m
}

// Config returns a copy of the manager's configuration.
func (m *Manager) Config() Config {
	return m.config
}

// AdminOriginator returns the trusted originator.
func (m *Manager) AdminOriginator() string {
	return m.adminOriginator
}

// PendingRequests lists the requests waiting for a grant or denial, oldest
// first.
func (m *Manager) PendingRequests() []PendingRequest {
	return m.registry.snapshot()
}
