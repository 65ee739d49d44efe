package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/opencode-ai/walletperm/internal/permission"
	"github.com/opencode-ai/walletperm/pkg/types"
)

// RandomString generates a random string of n characters
func RandomString(n int) string {
	bytes := make([]byte, n/2+1)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)[:n]
}

// UniqueOriginator returns a fresh originator so specs sharing one server
// never see each other's tokens or cached grants.
func UniqueOriginator() string {
	return fmt.Sprintf("app-%s.example", RandomString(8))
}

// ProtocolArgs builds encrypting-usage protocol args for originator.
func ProtocolArgs(originator string, level int, protocol string) permission.ProtocolArgs {
	return permission.ProtocolArgs{
		Originator: originator,
		ProtocolID: types.ProtocolID{SecurityLevel: level, Protocol: protocol},
		Usage:      permission.UsageEncrypting,
	}
}

// ProtocolRequestID is the request ID the manager assigns to a
// non-privileged protocol request with counterparty self.
func ProtocolRequestID(originator string, level int, protocol string) string {
	return fmt.Sprintf("protocol:%s:false:%d:%s:self", originator, level, protocol)
}
