package permission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPermissionCacheTTL(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		age     time.Duration
		expiry  int64
		wantHit bool
	}{
		{name: "fresh entry", age: 0, expiry: 0, wantHit: true},
		{name: "just inside ttl", age: DefaultCacheTTL - time.Millisecond, expiry: 0, wantHit: true},
		{name: "exactly ttl", age: DefaultCacheTTL, expiry: 0, wantHit: false},
		{name: "past ttl", age: DefaultCacheTTL + time.Millisecond, expiry: 0, wantHit: false},
		{name: "token expired since caching", age: time.Minute, expiry: start.Unix() + 30, wantHit: false},
		{name: "token still valid", age: time.Minute, expiry: start.Unix() + 3600, wantHit: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock(start)
			c := newPermissionCache(clock)
			c.insert("k", tt.expiry)
			clock.Advance(tt.age)
			assert.Equal(t, tt.wantHit, c.isCached("k", DefaultCacheTTL))
		})
	}
}

func TestPermissionCacheMiss(t *testing.T) {
	c := newPermissionCache(newFakeClock(time.Now()))
	assert.False(t, c.isCached("missing", DefaultCacheTTL))
}

func TestPermissionCacheReinsertRefreshes(t *testing.T) {
	clock := newFakeClock(time.Unix(1_700_000_000, 0))
	c := newPermissionCache(clock)

	c.insert("k", 0)
	clock.Advance(4 * time.Minute)
	c.insert("k", 0)
	clock.Advance(4 * time.Minute)
	assert.True(t, c.isCached("k", DefaultCacheTTL))
}

func TestPermissionCacheForget(t *testing.T) {
	c := newPermissionCache(newFakeClock(time.Now()))
	c.insert("k", 0)
	c.forget("k")
	assert.False(t, c.isCached("k", DefaultCacheTTL))
}

func TestPermissionCacheForgetPrefix(t *testing.T) {
	c := newPermissionCache(newFakeClock(time.Now()))
	c.insert("certificate:o:false:v:t|email", 0)
	c.insert("certificate:o:false:v:t|email,name", 0)
	c.insert("certificate:o:false:v:other|email", 0)

	c.forgetPrefix("certificate:o:false:v:t|")
	assert.False(t, c.isCached("certificate:o:false:v:t|email", DefaultCacheTTL))
	assert.False(t, c.isCached("certificate:o:false:v:t|email,name", DefaultCacheTTL))
	assert.True(t, c.isCached("certificate:o:false:v:other|email", DefaultCacheTTL))
}

func TestNeverExpiringEntry(t *testing.T) {
	// Far in the future, a zero expiry still only depends on the TTL.
	clock := newFakeClock(time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC))
	c := newPermissionCache(clock)
	c.insert("k", 0)
	assert.True(t, c.isCached("k", DefaultCacheTTL))
}
