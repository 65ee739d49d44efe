package permission

import "github.com/opencode-ai/walletperm/pkg/types"

// Config toggles when the manager asks the user. Every flag defaults to true,
// the most restrictive setting. A Config is copied into the manager at
// construction and never changes afterwards.
type Config struct {
	SeekProtocolPermissionsForSigning       bool `json:"seekProtocolPermissionsForSigning"`
	SeekProtocolPermissionsForEncrypting    bool `json:"seekProtocolPermissionsForEncrypting"`
	SeekProtocolPermissionsForHMAC          bool `json:"seekProtocolPermissionsForHMAC"`
	SeekPermissionsForKeyLinkageRevelation  bool `json:"seekPermissionsForKeyLinkageRevelation"`
	SeekPermissionsForPublicKeyRevelation   bool `json:"seekPermissionsForPublicKeyRevelation"`
	SeekPermissionsForIdentityKeyRevelation bool `json:"seekPermissionsForIdentityKeyRevelation"`
	SeekPermissionsForIdentityResolution    bool `json:"seekPermissionsForIdentityResolution"`

	SeekBasketInsertionPermissions bool `json:"seekBasketInsertionPermissions"`
	SeekBasketRemovalPermissions   bool `json:"seekBasketRemovalPermissions"`
	SeekBasketListingPermissions   bool `json:"seekBasketListingPermissions"`

	SeekPermissionWhenApplyingActionLabels  bool `json:"seekPermissionWhenApplyingActionLabels"`
	SeekPermissionWhenListingActionsByLabel bool `json:"seekPermissionWhenListingActionsByLabel"`

	SeekCertificateDisclosurePermissions     bool `json:"seekCertificateDisclosurePermissions"`
	SeekCertificateAcquisitionPermissions    bool `json:"seekCertificateAcquisitionPermissions"`
	SeekCertificateRelinquishmentPermissions bool `json:"seekCertificateRelinquishmentPermissions"`
	SeekCertificateListingPermissions        bool `json:"seekCertificateListingPermissions"`

	SeekSpendingPermissions bool `json:"seekSpendingPermissions"`
	SeekGroupedPermission   bool `json:"seekGroupedPermission"`

	// DifferentiatePrivilegedOperations keeps privileged and ordinary
	// requests apart. When false every request is treated as non-privileged.
	DifferentiatePrivilegedOperations bool `json:"differentiatePrivilegedOperations"`
}

// DefaultConfig returns a Config with every flag set.
func DefaultConfig() Config {
	return Config{
		SeekProtocolPermissionsForSigning:        true,
		SeekProtocolPermissionsForEncrypting:     true,
		SeekProtocolPermissionsForHMAC:           true,
		SeekPermissionsForKeyLinkageRevelation:   true,
		SeekPermissionsForPublicKeyRevelation:    true,
		SeekPermissionsForIdentityKeyRevelation:  true,
		SeekPermissionsForIdentityResolution:     true,
		SeekBasketInsertionPermissions:           true,
		SeekBasketRemovalPermissions:             true,
		SeekBasketListingPermissions:             true,
		SeekPermissionWhenApplyingActionLabels:   true,
		SeekPermissionWhenListingActionsByLabel:  true,
		SeekCertificateDisclosurePermissions:     true,
		SeekCertificateAcquisitionPermissions:    true,
		SeekCertificateRelinquishmentPermissions: true,
		SeekCertificateListingPermissions:        true,
		SeekSpendingPermissions:                  true,
		SeekGroupedPermission:                    true,
		DifferentiatePrivilegedOperations:        true,
	}
}

// ConfigFromTypes overlays the flags set in c onto DefaultConfig.
func ConfigFromTypes(c *types.PermissionsConfig) Config {
	cfg := DefaultConfig()
	if c == nil {
		return cfg
	}
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&cfg.SeekProtocolPermissionsForSigning, c.SeekProtocolPermissionsForSigning)
	set(&cfg.SeekProtocolPermissionsForEncrypting, c.SeekProtocolPermissionsForEncrypting)
	set(&cfg.SeekProtocolPermissionsForHMAC, c.SeekProtocolPermissionsForHMAC)
	set(&cfg.SeekPermissionsForKeyLinkageRevelation, c.SeekPermissionsForKeyLinkageRevelation)
	set(&cfg.SeekPermissionsForPublicKeyRevelation, c.SeekPermissionsForPublicKeyRevelation)
	set(&cfg.SeekPermissionsForIdentityKeyRevelation, c.SeekPermissionsForIdentityKeyRevelation)
	set(&cfg.SeekPermissionsForIdentityResolution, c.SeekPermissionsForIdentityResolution)
	set(&cfg.SeekBasketInsertionPermissions, c.SeekBasketInsertionPermissions)
	set(&cfg.SeekBasketRemovalPermissions, c.SeekBasketRemovalPermissions)
	set(&cfg.SeekBasketListingPermissions, c.SeekBasketListingPermissions)
	set(&cfg.SeekPermissionWhenApplyingActionLabels, c.SeekPermissionWhenApplyingActionLabels)
	set(&cfg.SeekPermissionWhenListingActionsByLabel, c.SeekPermissionWhenListingActionsByLabel)
	set(&cfg.SeekCertificateDisclosurePermissions, c.SeekCertificateDisclosurePermissions)
	set(&cfg.SeekCertificateAcquisitionPermissions, c.SeekCertificateAcquisitionPermissions)
	set(&cfg.SeekCertificateRelinquishmentPermissions, c.SeekCertificateRelinquishmentPermissions)
	set(&cfg.SeekCertificateListingPermissions, c.SeekCertificateListingPermissions)
	set(&cfg.SeekSpendingPermissions, c.SeekSpendingPermissions)
	set(&cfg.SeekGroupedPermission, c.SeekGroupedPermission)
	set(&cfg.DifferentiatePrivilegedOperations, c.DifferentiatePrivilegedOperations)
	return cfg
}

// ProtocolUsage is what a protocol-scoped key is about to be used for.
type ProtocolUsage string

const (
	UsageSigning            ProtocolUsage = "signing"
	UsageEncrypting         ProtocolUsage = "encrypting"
	UsageHMAC               ProtocolUsage = "hmac"
	UsagePublicKey          ProtocolUsage = "publicKey"
	UsageIdentityKey        ProtocolUsage = "identityKey"
	UsageLinkageRevelation  ProtocolUsage = "linkageRevelation"
	UsageIdentityResolution ProtocolUsage = "identityResolution" // certificate discovery
	UsageGeneric            ProtocolUsage = "generic"
)

// BasketUsage is the kind of basket access requested.
type BasketUsage string

const (
	BasketInsertion BasketUsage = "insertion"
	BasketRemoval   BasketUsage = "removal"
	BasketListing   BasketUsage = "listing"
)

// CertificateUsage is the kind of certificate access requested.
type CertificateUsage string

const (
	CertificateDisclosure     CertificateUsage = "disclosure"
	CertificateAcquisition    CertificateUsage = "acquisition"
	CertificateRelinquishment CertificateUsage = "relinquishment"
	CertificateListing        CertificateUsage = "listing"
)

// LabelUsage is the kind of action-label access requested.
type LabelUsage string

const (
	LabelApply LabelUsage = "apply"
	LabelList  LabelUsage = "list"
)

func (c *Config) seekProtocol(usage ProtocolUsage) bool {
	switch usage {
	case UsageSigning:
		return c.SeekProtocolPermissionsForSigning
	case UsageEncrypting:
		return c.SeekProtocolPermissionsForEncrypting
	case UsageHMAC:
		return c.SeekProtocolPermissionsForHMAC
	case UsagePublicKey:
		return c.SeekPermissionsForPublicKeyRevelation
	case UsageIdentityKey:
		return c.SeekPermissionsForIdentityKeyRevelation
	case UsageLinkageRevelation:
		return c.SeekPermissionsForKeyLinkageRevelation
	case UsageIdentityResolution:
		return c.SeekPermissionsForIdentityResolution
	}
	return true
}

func (c *Config) seekBasket(usage BasketUsage) bool {
	switch usage {
	case BasketInsertion:
		return c.SeekBasketInsertionPermissions
	case BasketRemoval:
		return c.SeekBasketRemovalPermissions
	case BasketListing:
		return c.SeekBasketListingPermissions
	}
	return true
}

func (c *Config) seekCertificate(usage CertificateUsage) bool {
	switch usage {
	case CertificateDisclosure:
		return c.SeekCertificateDisclosurePermissions
	case CertificateAcquisition:
		return c.SeekCertificateAcquisitionPermissions
	case CertificateRelinquishment:
		return c.SeekCertificateRelinquishmentPermissions
	case CertificateListing:
		return c.SeekCertificateListingPermissions
	}
	return true
}

func (c *Config) seekLabel(usage LabelUsage) bool {
	switch usage {
	case LabelApply:
		return c.SeekPermissionWhenApplyingActionLabels
	case LabelList:
		return c.SeekPermissionWhenListingActionsByLabel
	}
	return true
}
