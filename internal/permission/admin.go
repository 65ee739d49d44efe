package permission

import (
	"strings"

	"github.com/opencode-ai/walletperm/pkg/types"
)

// Names starting with these prefixes are reserved for the wallet itself.
const (
	adminPrefix     = "admin"
	privatePrefix   = "p "
	defaultBasket   = "default"
	labelProtoLevel = types.SecurityLevelShared
)

// IsAdminProtocol reports whether a protocol name is reserved for the wallet.
func IsAdminProtocol(p types.ProtocolID) bool {
	return strings.HasPrefix(p.Protocol, adminPrefix) || strings.HasPrefix(p.Protocol, privatePrefix)
}

// IsAdminProtocolParts applies IsAdminProtocol to the wire form; fewer than
// two elements is never admin.
func IsAdminProtocolParts(parts []string) bool {
	if len(parts) < 2 {
		return false
	}
	return strings.HasPrefix(parts[1], adminPrefix) || strings.HasPrefix(parts[1], privatePrefix)
}

// IsAdminBasket reports whether a basket is reserved for the wallet.
func IsAdminBasket(basket string) bool {
	return basket == defaultBasket || strings.HasPrefix(basket, adminPrefix) || strings.HasPrefix(basket, privatePrefix)
}

// IsAdminLabel reports whether an action label is reserved for the wallet.
func IsAdminLabel(label string) bool {
	return strings.HasPrefix(label, adminPrefix)
}

// IsAdminOriginator reports whether originator is the manager's admin identity.
func (m *Manager) IsAdminOriginator(originator string) bool {
	return originator == m.adminOriginator
}
