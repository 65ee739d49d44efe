package permission

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestRegistryJoinAndResolve(t *testing.T) {
	r := newRequestRegistry()

	first, isFirst := r.join(&activeRequest{id: "k", kind: OnBasketAccessRequested})
	assert.True(t, isFirst)
	second, isFirst := r.join(&activeRequest{id: "k", kind: OnBasketAccessRequested})
	assert.False(t, isFirst)

	pending := r.snapshot()
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Waiters)

	entry, ok := r.resolve("k", nil)
	require.True(t, ok)
	assert.Len(t, entry.waiters, 2)
	assert.NoError(t, <-first)
	assert.NoError(t, <-second)

	_, ok = r.peek("k")
	assert.False(t, ok)
	assert.Empty(t, r.snapshot())
}

func TestRegistryResolveWithDenial(t *testing.T) {
	r := newRequestRegistry()
	wait, _ := r.join(&activeRequest{id: "k"})

	_, ok := r.resolve("k", deniedError("k"))
	require.True(t, ok)
	err := <-wait
	assert.True(t, IsDenied(err))
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestRegistryResolveUnknown(t *testing.T) {
	r := newRequestRegistry()
	_, ok := r.resolve("nope", nil)
	assert.False(t, ok)
}

func TestRegistryResolveDoesNotBlockOnAbandonedWaiter(t *testing.T) {
	r := newRequestRegistry()
	r.join(&activeRequest{id: "k"}) // nobody reads this waiter

	done := make(chan struct{})
	go func() {
		r.resolve("k", nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("resolve blocked on an abandoned waiter")
	}
}

func TestRegistryExactlyOneFirst(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	r := newRequestRegistry()
	const n = 50

	var firsts atomic.Int32
	var wg sync.WaitGroup
	waits := make(chan (<-chan error), n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wait, first := r.join(&activeRequest{id: "same"})
			if first {
				firsts.Add(1)
			}
			waits <- wait
		}()
	}
	wg.Wait()
	close(waits)

	assert.Equal(t, int32(1), firsts.Load())
	entry, ok := r.resolve("same", nil)
	require.True(t, ok)
	assert.Len(t, entry.waiters, n)
	for w := range waits {
		assert.NoError(t, <-w)
	}
}

func TestRegistrySnapshotOrder(t *testing.T) {
	r := newRequestRegistry()
	base := time.Unix(1_700_000_000, 0)
	r.join(&activeRequest{id: "b", created: base.Add(time.Second)})
	r.join(&activeRequest{id: "c", created: base})
	r.join(&activeRequest{id: "a", created: base})

	var ids []string
	for _, p := range r.snapshot() {
		ids = append(ids, p.RequestID)
	}
	assert.Equal(t, []string{"a", "c", "b"}, ids)
}
