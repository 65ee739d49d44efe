package event

import (
	"github.com/opencode-ai/walletperm/internal/permission"
	"github.com/opencode-ai/walletperm/pkg/types"
)

// ServerConnectedData is sent first on every event stream.
type ServerConnectedData struct {
	Time int64 `json:"time"`
}

// PermissionRequestedData is the data for permission.requested events.
// Kind is the callback kind that fired, e.g. "onSpendingAuthorizationRequested".
type PermissionRequestedData struct {
	RequestID string                   `json:"requestID"`
	Kind      string                   `json:"kind"`
	Request   *types.PermissionRequest `json:"request"`
}

// GroupedPermissionRequestedData is the data for permission.grouped.requested events.
type GroupedPermissionRequestedData struct {
	RequestID string                          `json:"requestID"`
	Request   *types.GroupedPermissionRequest `json:"request"`
}

// PermissionGrantedData is the data for permission.granted events.
type PermissionGrantedData struct {
	RequestID string `json:"requestID"`
	Expiry    int64  `json:"expiry,omitempty"`
	Ephemeral bool   `json:"ephemeral,omitempty"`
}

// PermissionDeniedData is the data for permission.denied events.
type PermissionDeniedData struct {
	RequestID string `json:"requestID"`
}

// TokenRevokedData is the data for token.revoked events.
type TokenRevokedData struct {
	Type     types.PermissionType `json:"type"`
	Outpoint string               `json:"outpoint"`
}

// ConfigUpdatedData is the data for config.updated events. Permissions are
// the flags on disk; RestartRequired is set while they differ from the ones
// the server runs with.
type ConfigUpdatedData struct {
	Permissions     permission.Config `json:"permissions"`
	RestartRequired bool              `json:"restartRequired"`
}
