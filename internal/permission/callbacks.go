package permission

import (
	"context"
	"fmt"
	"sync"

	"github.com/opencode-ai/walletperm/pkg/types"
)

// CallbackKind names a UI event.
type CallbackKind string

const (
	OnProtocolPermissionRequested    CallbackKind = "onProtocolPermissionRequested"
	OnBasketAccessRequested          CallbackKind = "onBasketAccessRequested"
	OnCertificateAccessRequested     CallbackKind = "onCertificateAccessRequested"
	OnSpendingAuthorizationRequested CallbackKind = "onSpendingAuthorizationRequested"
	OnGroupedPermissionRequested     CallbackKind = "onGroupedPermissionRequested"
)

// CallbackKinds lists every kind in a stable order.
var CallbackKinds = []CallbackKind{
	OnProtocolPermissionRequested,
	OnBasketAccessRequested,
	OnCertificateAccessRequested,
	OnSpendingAuthorizationRequested,
	OnGroupedPermissionRequested,
}

func kindFor(t types.PermissionType) CallbackKind {
	switch t {
	case types.PermissionProtocol:
		return OnProtocolPermissionRequested
	case types.PermissionBasket:
		return OnBasketAccessRequested
	case types.PermissionCertificate:
		return OnCertificateAccessRequested
	case types.PermissionSpending:
		return OnSpendingAuthorizationRequested
	}
	return ""
}

// RequestEvent is delivered to callbacks. Exactly one of Request and Grouped
// is set. RequestID is what the UI passes back to grant or deny.
type RequestEvent struct {
	RequestID string                          `json:"requestID"`
	Request   *types.PermissionRequest        `json:"request,omitempty"`
	Grouped   *types.GroupedPermissionRequest `json:"grouped,omitempty"`
}

// Callback handles a UI event. Returned errors and panics are logged and
// otherwise ignored.
type Callback func(ctx context.Context, ev RequestEvent) error

type callbackEntry struct {
	id int
	fn Callback
}

// callbackRegistry holds the handler lists. Dispatch iterates a snapshot
// taken under the read lock, so handlers may bind or unbind freely.
type callbackRegistry struct {
	mu     sync.RWMutex
	lists  map[CallbackKind][]callbackEntry
	nextID int
}

func newCallbackRegistry() *callbackRegistry {
	return &callbackRegistry{lists: make(map[CallbackKind][]callbackEntry)}
}

func (c *callbackRegistry) bind(kind CallbackKind, fn Callback) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.lists[kind] = append(c.lists[kind], callbackEntry{id: c.nextID, fn: fn})
	return c.nextID
}

func (c *callbackRegistry) unbind(kind CallbackKind, id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := c.lists[kind]
	for i, entry := range list {
		if entry.id == id {
			// Copy so snapshots held by in-flight dispatches stay intact.
			next := make([]callbackEntry, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			c.lists[kind] = next
			return true
		}
	}
	return false
}

func (c *callbackRegistry) snapshot(kind CallbackKind) []callbackEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lists[kind]
}

// dispatch calls every callback bound to kind, in registration order. A
// failing callback does not stop the others.
func (m *Manager) dispatch(ctx context.Context, kind CallbackKind, ev RequestEvent) {
	for _, entry := range m.callbacks.snapshot(kind) {
		if err := invokeCallback(ctx, entry.fn, ev); err != nil {
			m.log.Warn().
				Err(err).
				Str("kind", string(kind)).
				Str("requestID", ev.RequestID).
				Int("callbackID", entry.id).
				Msg("permission callback failed")
		}
	}
}

func invokeCallback(ctx context.Context, fn Callback, ev RequestEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	return fn(ctx, ev)
}

// BindCallback registers fn for kind and returns its handle.
func (m *Manager) BindCallback(kind CallbackKind, fn Callback) int {
	return m.callbacks.bind(kind, fn)
}

// UnbindCallback removes the callback with the given handle. It reports
// whether the handle was bound.
func (m *Manager) UnbindCallback(kind CallbackKind, id int) bool {
	return m.callbacks.unbind(kind, id)
}
