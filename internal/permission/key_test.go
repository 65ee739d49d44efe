package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opencode-ai/walletperm/pkg/types"
)

func TestRequestKey(t *testing.T) {
	tests := []struct {
		name string
		req  *types.PermissionRequest
		want string
	}{
		{
			name: "protocol",
			req: &types.PermissionRequest{
				Type:       types.PermissionProtocol,
				Originator: "app.example",
				Protocol: &types.ProtocolRequest{
					Privileged:   true,
					ProtocolID:   types.ProtocolID{SecurityLevel: 2, Protocol: "payments"},
					Counterparty: "self",
				},
			},
			want: "protocol:app.example:true:2:payments:self",
		},
		{
			name: "basket",
			req: &types.PermissionRequest{
				Type:       types.PermissionBasket,
				Originator: "app.example",
				Basket:     &types.BasketRequest{Basket: "tickets"},
			},
			want: "basket:app.example:tickets",
		},
		{
			name: "certificate",
			req: &types.PermissionRequest{
				Type:       types.PermissionCertificate,
				Originator: "app.example",
				Certificate: &types.CertificateRequest{
					Verifier: "02abc",
					CertType: "identity",
					Fields:   []string{"name"},
				},
			},
			want: "certificate:app.example:false:02abc:identity",
		},
		{
			name: "spending",
			req: &types.PermissionRequest{
				Type:       types.PermissionSpending,
				Originator: "app.example",
				Spending:   &types.SpendingRequest{Satoshis: 500},
			},
			want: "spending:app.example",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RequestKey(tt.req))
		})
	}
}

func TestRequestKeyIgnoresFieldsAndReason(t *testing.T) {
	a := &types.PermissionRequest{
		Type:       types.PermissionCertificate,
		Originator: "app.example",
		Reason:     "to log you in",
		Certificate: &types.CertificateRequest{
			Verifier: "02abc",
			CertType: "identity",
			Fields:   []string{"name"},
		},
	}
	b := &types.PermissionRequest{
		Type:       types.PermissionCertificate,
		Originator: "app.example",
		Reason:     "something else",
		Certificate: &types.CertificateRequest{
			Verifier: "02abc",
			CertType: "identity",
			Fields:   []string{"name", "email", "dob"},
		},
	}
	assert.Equal(t, RequestKey(a), RequestKey(b))

	b.Certificate.Privileged = true
	assert.NotEqual(t, RequestKey(a), RequestKey(b))
}

func TestRequestKeySpendingIgnoresAmount(t *testing.T) {
	a := &types.PermissionRequest{Type: types.PermissionSpending, Originator: "o", Spending: &types.SpendingRequest{Satoshis: 1}}
	b := &types.PermissionRequest{Type: types.PermissionSpending, Originator: "o", Spending: &types.SpendingRequest{Satoshis: 99}}
	assert.Equal(t, RequestKey(a), RequestKey(b))
}

func TestCacheKeyCertificateFields(t *testing.T) {
	a := cacheKey(certificateRequest("o", "name", "email"))
	b := cacheKey(certificateRequest("o", "email", "name", "email"))
	assert.Equal(t, a, b)
	assert.Equal(t, RequestKey(certificateRequest("o"))+"|email,name", a)
	assert.NotEqual(t, a, cacheKey(certificateRequest("o", "phone")))

	p := protocolRequest("o", 2, "payments", "self")
	assert.Equal(t, RequestKey(p), cacheKey(p))
}

func TestGroupedRequestKey(t *testing.T) {
	perms := types.GroupedPermissions{
		BasketAccess: []types.GroupedBasketAccess{{Basket: "tickets", Description: "store tickets"}},
	}
	a := GroupedRequestKey(&types.GroupedPermissionRequest{Originator: "app.example", Permissions: perms, Reason: "one"})
	b := GroupedRequestKey(&types.GroupedPermissionRequest{Originator: "app.example", Permissions: perms, Reason: "two"})
	assert.Equal(t, a, b)
	assert.True(t, isGroupedID(a))
	assert.Len(t, a, len("grouped:app.example:")+64)

	other := GroupedRequestKey(&types.GroupedPermissionRequest{Originator: "other.example", Permissions: perms})
	assert.NotEqual(t, a, other)
}
