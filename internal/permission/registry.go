package permission

import (
	"sort"
	"sync"
	"time"

	"github.com/opencode-ai/walletperm/pkg/types"
)

// activeRequest is one question waiting for the user. All callers asking the
// same question share it and are released together.
type activeRequest struct {
	id      string
	kind    CallbackKind
	request *types.PermissionRequest
	grouped *types.GroupedPermissionRequest
	created time.Time
	waiters []chan error
}

// PendingRequest is a snapshot of a request awaiting a grant or denial.
type PendingRequest struct {
	RequestID string                          `json:"requestID"`
	Kind      CallbackKind                    `json:"kind"`
	Request   *types.PermissionRequest        `json:"request,omitempty"`
	Grouped   *types.GroupedPermissionRequest `json:"grouped,omitempty"`
	Waiters   int                             `json:"waiters"`
	Created   time.Time                       `json:"created"`
}

// requestRegistry deduplicates concurrent identical requests. The existence
// check and the insert or append happen under one lock, so exactly one caller
// per key is told it is first.
type requestRegistry struct {
	mu      sync.Mutex
	pending map[string]*activeRequest
}

func newRequestRegistry() *requestRegistry {
	return &requestRegistry{pending: make(map[string]*activeRequest)}
}

// join registers a waiter under entry.id. When no request with that id is
// pending, entry becomes the pending request and first is true; otherwise
// the waiter is appended to the existing one and entry is discarded.
func (r *requestRegistry) join(entry *activeRequest) (wait <-chan error, first bool) {
	ch := make(chan error, 1)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.pending[entry.id]; ok {
		existing.waiters = append(existing.waiters, ch)
		return ch, false
	}
	entry.waiters = []chan error{ch}
	r.pending[entry.id] = entry
	return ch, true
}

// peek returns the pending request for id without resolving it.
func (r *requestRegistry) peek(id string) (*activeRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.pending[id]
	return entry, ok
}

// resolve removes the request for id and then releases every waiter with
// result (nil for a grant). It returns the removed request.
func (r *requestRegistry) resolve(id string, result error) (*activeRequest, bool) {
	r.mu.Lock()
	entry, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	r.mu.Unlock()

	if !ok {
		return nil, false
	}
	// Waiter channels are buffered; a caller that stopped waiting does not block this.
	for _, ch := range entry.waiters {
		ch <- result
	}
	return entry, true
}

// snapshot lists pending requests, oldest first.
func (r *requestRegistry) snapshot() []PendingRequest {
	r.mu.Lock()
	out := make([]PendingRequest, 0, len(r.pending))
	for _, e := range r.pending {
		out = append(out, PendingRequest{
			RequestID: e.id,
			Kind:      e.kind,
			Request:   e.request,
			Grouped:   e.grouped,
			Waiters:   len(e.waiters),
			Created:   e.created,
		})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].RequestID < out[j].RequestID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}
