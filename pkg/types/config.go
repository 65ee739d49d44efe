package types

// Config represents the walletperm configuration.
type Config struct {
	// Schema reference (for editor support)
	Schema string `json:"$schema,omitempty" yaml:"schema,omitempty"`

	// AdminOriginator is the wallet's own trusted front-end; it bypasses all checks.
	AdminOriginator string `json:"adminOriginator,omitempty" yaml:"adminOriginator,omitempty"`

	// CacheTTL is how long a confirmed permission is memoized, e.g. "5m".
	CacheTTL string `json:"cacheTTL,omitempty" yaml:"cacheTTL,omitempty"`

	// DefaultGrantTTL is the token lifetime used when a grant carries no expiry, e.g. "720h".
	DefaultGrantTTL string `json:"defaultGrantTTL,omitempty" yaml:"defaultGrantTTL,omitempty"`

	// Permission policy flags
	Permissions *PermissionsConfig `json:"permissions,omitempty" yaml:"permissions,omitempty"`

	Server *ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`
	Wallet *WalletConfig `json:"wallet,omitempty" yaml:"wallet,omitempty"`
	Log    *LogConfig    `json:"log,omitempty" yaml:"log,omitempty"`
}

// PermissionsConfig mirrors the permissions manager flags. A nil flag keeps
// the restrictive default (true).
type PermissionsConfig struct {
	SeekProtocolPermissionsForSigning       *bool `json:"seekProtocolPermissionsForSigning,omitempty" yaml:"seekProtocolPermissionsForSigning,omitempty"`
	SeekProtocolPermissionsForEncrypting    *bool `json:"seekProtocolPermissionsForEncrypting,omitempty" yaml:"seekProtocolPermissionsForEncrypting,omitempty"`
	SeekProtocolPermissionsForHMAC          *bool `json:"seekProtocolPermissionsForHMAC,omitempty" yaml:"seekProtocolPermissionsForHMAC,omitempty"`
	SeekPermissionsForKeyLinkageRevelation  *bool `json:"seekPermissionsForKeyLinkageRevelation,omitempty" yaml:"seekPermissionsForKeyLinkageRevelation,omitempty"`
	SeekPermissionsForPublicKeyRevelation   *bool `json:"seekPermissionsForPublicKeyRevelation,omitempty" yaml:"seekPermissionsForPublicKeyRevelation,omitempty"`
	SeekPermissionsForIdentityKeyRevelation *bool `json:"seekPermissionsForIdentityKeyRevelation,omitempty" yaml:"seekPermissionsForIdentityKeyRevelation,omitempty"`
	SeekPermissionsForIdentityResolution    *bool `json:"seekPermissionsForIdentityResolution,omitempty" yaml:"seekPermissionsForIdentityResolution,omitempty"`

	SeekBasketInsertionPermissions *bool `json:"seekBasketInsertionPermissions,omitempty" yaml:"seekBasketInsertionPermissions,omitempty"`
	SeekBasketRemovalPermissions   *bool `json:"seekBasketRemovalPermissions,omitempty" yaml:"seekBasketRemovalPermissions,omitempty"`
	SeekBasketListingPermissions   *bool `json:"seekBasketListingPermissions,omitempty" yaml:"seekBasketListingPermissions,omitempty"`

	SeekPermissionWhenApplyingActionLabels  *bool `json:"seekPermissionWhenApplyingActionLabels,omitempty" yaml:"seekPermissionWhenApplyingActionLabels,omitempty"`
	SeekPermissionWhenListingActionsByLabel *bool `json:"seekPermissionWhenListingActionsByLabel,omitempty" yaml:"seekPermissionWhenListingActionsByLabel,omitempty"`

	SeekCertificateDisclosurePermissions     *bool `json:"seekCertificateDisclosurePermissions,omitempty" yaml:"seekCertificateDisclosurePermissions,omitempty"`
	SeekCertificateAcquisitionPermissions    *bool `json:"seekCertificateAcquisitionPermissions,omitempty" yaml:"seekCertificateAcquisitionPermissions,omitempty"`
	SeekCertificateRelinquishmentPermissions *bool `json:"seekCertificateRelinquishmentPermissions,omitempty" yaml:"seekCertificateRelinquishmentPermissions,omitempty"`
	SeekCertificateListingPermissions        *bool `json:"seekCertificateListingPermissions,omitempty" yaml:"seekCertificateListingPermissions,omitempty"`

	SeekSpendingPermissions *bool `json:"seekSpendingPermissions,omitempty" yaml:"seekSpendingPermissions,omitempty"`
	SeekGroupedPermission   *bool `json:"seekGroupedPermission,omitempty" yaml:"seekGroupedPermission,omitempty"`

	DifferentiatePrivilegedOperations *bool `json:"differentiatePrivilegedOperations,omitempty" yaml:"differentiatePrivilegedOperations,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
	Hostname string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	CORS     *bool  `json:"cors,omitempty" yaml:"cors,omitempty"`
}

// WalletConfig configures the local reference wallet.
type WalletConfig struct {
	// StorageDir overrides the default data directory.
	StorageDir string `json:"storageDir,omitempty" yaml:"storageDir,omitempty"`
	// RootKey is a hex-encoded 32-byte key; generated and persisted when empty.
	RootKey string `json:"rootKey,omitempty" yaml:"-"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Pretty bool   `json:"pretty,omitempty" yaml:"pretty,omitempty"`
}
