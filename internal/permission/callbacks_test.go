package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestDispatchOrderAndSwallowedFailures(t *testing.T) {
	m := NewManager(newFakeWallet(), "admin.wallet", WithLogger(zerolog.Nop()))

	var calls []string
	m.BindCallback(OnBasketAccessRequested, func(ctx context.Context, ev RequestEvent) error {
		calls = append(calls, "first")
		return errors.New("ui offline")
	})
	m.BindCallback(OnBasketAccessRequested, func(ctx context.Context, ev RequestEvent) error {
		calls = append(calls, "second")
		panic("broken handler")
	})
	m.BindCallback(OnBasketAccessRequested, func(ctx context.Context, ev RequestEvent) error {
		calls = append(calls, "third:"+ev.RequestID)
		return nil
	})
	m.BindCallback(OnProtocolPermissionRequested, func(ctx context.Context, ev RequestEvent) error {
		calls = append(calls, "wrong kind")
		return nil
	})

	assert.NotPanics(t, func() {
		m.dispatch(context.Background(), OnBasketAccessRequested, RequestEvent{RequestID: "basket:o:b"})
	})
	assert.Equal(t, []string{"first", "second", "third:basket:o:b"}, calls)
}

func TestUnbindCallback(t *testing.T) {
	m := NewManager(newFakeWallet(), "admin.wallet", WithLogger(zerolog.Nop()))

	var calls int
	id := m.BindCallback(OnSpendingAuthorizationRequested, func(ctx context.Context, ev RequestEvent) error {
		calls++
		return nil
	})
	other := m.BindCallback(OnSpendingAuthorizationRequested, func(ctx context.Context, ev RequestEvent) error {
		return nil
	})
	assert.NotEqual(t, id, other)

	assert.False(t, m.UnbindCallback(OnBasketAccessRequested, id), "handle is bound to another kind")
	assert.True(t, m.UnbindCallback(OnSpendingAuthorizationRequested, id))
	assert.False(t, m.UnbindCallback(OnSpendingAuthorizationRequested, id))

	m.dispatch(context.Background(), OnSpendingAuthorizationRequested, RequestEvent{})
	assert.Zero(t, calls)
}

func TestUnbindDuringDispatch(t *testing.T) {
	m := NewManager(newFakeWallet(), "admin.wallet", WithLogger(zerolog.Nop()))

	var calls []int
	var second int
	m.BindCallback(OnCertificateAccessRequested, func(ctx context.Context, ev RequestEvent) error {
		calls = append(calls, 1)
		m.UnbindCallback(OnCertificateAccessRequested, second)
		return nil
	})
	second = m.BindCallback(OnCertificateAccessRequested, func(ctx context.Context, ev RequestEvent) error {
		calls = append(calls, 2)
		return nil
	})

	// The running dispatch keeps its snapshot; the next one sees the unbind.
	m.dispatch(context.Background(), OnCertificateAccessRequested, RequestEvent{})
	m.dispatch(context.Background(), OnCertificateAccessRequested, RequestEvent{})
	assert.Equal(t, []int{1, 2, 1}, calls)
}
