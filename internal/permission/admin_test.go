package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opencode-ai/walletperm/pkg/types"
)

func TestIsAdminProtocol(t *testing.T) {
	tests := []struct {
		name  string
		proto string
		want  bool
	}{
		{"admin prefix", "admin-foo", true},
		{"admin exact", "admin", true},
		{"private prefix", "p something", true},
		{"p without space", "payments", false},
		{"case sensitive", "Admin-foo", false},
		{"ordinary", "todo list", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for level := 0; level <= 2; level++ {
				assert.Equal(t, tt.want, IsAdminProtocol(types.ProtocolID{SecurityLevel: level, Protocol: tt.proto}))
			}
		})
	}
}

func TestIsAdminProtocolParts(t *testing.T) {
	assert.True(t, IsAdminProtocolParts([]string{"2", "admin stuff"}))
	assert.False(t, IsAdminProtocolParts([]string{"admin stuff"}))
	assert.False(t, IsAdminProtocolParts(nil))
}

func TestIsAdminBasket(t *testing.T) {
	assert.True(t, IsAdminBasket("default"))
	assert.True(t, IsAdminBasket("admin basket-access"))
	assert.True(t, IsAdminBasket("p tokens"))
	assert.False(t, IsAdminBasket("defaults"))
	assert.False(t, IsAdminBasket("tickets"))
}

func TestIsAdminLabel(t *testing.T) {
	assert.True(t, IsAdminLabel("admin month 2026-01"))
	assert.False(t, IsAdminLabel("p label"))
	assert.False(t, IsAdminLabel("invoices"))
}

func TestIsAdminOriginator(t *testing.T) {
	m := NewManager(newFakeWallet(), "admin.wallet")
	assert.True(t, m.IsAdminOriginator("admin.wallet"))
	assert.False(t, m.IsAdminOriginator("ADMIN.wallet"))
	assert.False(t, m.IsAdminOriginator(""))
}
