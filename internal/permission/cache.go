package permission

import (
	"strings"
	"sync"
	"time"

	"github.com/opencode-ai/walletperm/pkg/types"
)

// DefaultCacheTTL is how long a confirmed permission is trusted without
// consulting the wallet again.
const DefaultCacheTTL = 5 * time.Minute

// Clock abstracts the current time so expiry and TTL logic is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type cachedPermission struct {
	expiry   int64 // token expiry, UNIX seconds; 0 never expires
	cachedAt time.Time
}

// permissionCache memoizes confirmed permissions by request key. Entries are
// only inserted and read; stale entries are ignored rather than purged.
type permissionCache struct {
	mu      sync.RWMutex
	entries map[string]cachedPermission
	clock   Clock
}

func newPermissionCache(clock Clock) *permissionCache {
	return &permissionCache{
		entries: make(map[string]cachedPermission),
		clock:   clock,
	}
}

// isCached reports whether key was confirmed less than ttl ago and the
// confirming token has not expired since.
func (c *permissionCache) isCached(key string, ttl time.Duration) bool {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return false
	}

	now := c.clock.Now()
	if now.Sub(entry.cachedAt) >= ttl {
		return false
	}
	return !types.IsExpired(entry.expiry, now.Unix())
}

// insert records key as confirmed now, overwriting any previous entry.
func (c *permissionCache) insert(key string, expiry int64) {
	now := c.clock.Now()
	c.mu.Lock()
	c.entries[key] = cachedPermission{expiry: expiry, cachedAt: now}
	c.mu.Unlock()
}

// forget drops key. Used when the token behind it is revoked.
func (c *permissionCache) forget(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// forgetPrefix drops every key starting with prefix.
func (c *permissionCache) forgetPrefix(prefix string) {
	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}
