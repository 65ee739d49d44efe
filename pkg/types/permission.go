// Package types provides the core data types shared by the wallet permissions
// manager, its HTTP API and its CLI.
package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PermissionType discriminates the four permission sub-protocols.
type PermissionType string

const (
	PermissionProtocol    PermissionType = "protocol"    // DPACP
	PermissionBasket      PermissionType = "basket"      // DBAP
	PermissionCertificate PermissionType = "certificate" // DCAP
	PermissionSpending    PermissionType = "spending"    // DSAP
)

// Security levels for protocol IDs.
const (
	SecurityLevelPublic  = 0
	SecurityLevelShared  = 1
	SecurityLevelPrivate = 2
)

// ProtocolID identifies a protocol together with its security level.
// On the wire it is the two-element array [securityLevel, protocolName].
type ProtocolID struct {
	SecurityLevel int    `validate:"gte=0,lte=2"`
	Protocol      string `validate:"required"`
}

// Parts returns the string form of each element, in wire order.
func (p ProtocolID) Parts() []string {
	return []string{strconv.Itoa(p.SecurityLevel), p.Protocol}
}

// String joins the elements with ':'.
func (p ProtocolID) String() string {
	return strings.Join(p.Parts(), ":")
}

// ParseProtocolID builds a ProtocolID from its wire elements. Fewer than two
// elements, or a non-numeric security level, is an error.
func ParseProtocolID(parts []string) (ProtocolID, error) {
	if len(parts) < 2 {
		return ProtocolID{}, fmt.Errorf("protocol ID must have 2 elements, got %d", len(parts))
	}
	level, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return ProtocolID{}, fmt.Errorf("invalid security level %q", parts[0])
	}
	return ProtocolID{SecurityLevel: level, Protocol: parts[1]}, nil
}

func (p ProtocolID) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.SecurityLevel, p.Protocol})
}

func (p *ProtocolID) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("protocol ID must be an array: %w", err)
	}
	parts := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			parts = append(parts, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(r, &n); err != nil {
			return fmt.Errorf("protocol ID element %s is neither string nor number", string(r))
		}
		parts = append(parts, n.String())
	}
	parsed, err := ParseProtocolID(parts)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ProtocolRequest is the payload of a protocol permission request.
type ProtocolRequest struct {
	Privileged   bool       `json:"privileged"`
	ProtocolID   ProtocolID `json:"protocolID"`
	Counterparty string     `json:"counterparty,omitempty"`
}

// BasketRequest is the payload of a basket access request.
type BasketRequest struct {
	Basket string `json:"basket"`
}

// CertificateRequest is the payload of a certificate access request.
// Fields is the list of certificate fields the originator wants revealed.
type CertificateRequest struct {
	Privileged bool     `json:"privileged"`
	Verifier   string   `json:"verifier"`
	CertType   string   `json:"certType"`
	Fields     []string `json:"fields"`
}

// LineItem describes one part of a spend for the consent prompt.
type LineItem struct {
	Type        string `json:"type"` // "input" | "output" | "fee"
	Description string `json:"description"`
	Satoshis    uint64 `json:"satoshis"`
}

// SpendingRequest is the payload of a spending authorization request.
type SpendingRequest struct {
	Satoshis  uint64     `json:"satoshis"`
	LineItems []LineItem `json:"lineItems,omitempty"`
}

// PermissionRequest is a request for one permission on behalf of an
// originator. Exactly one payload, matching Type, is set.
type PermissionRequest struct {
	Type       PermissionType `json:"type"`
	Originator string         `json:"originator"`
	Reason     string         `json:"reason,omitempty"`

	Protocol    *ProtocolRequest    `json:"protocol,omitempty"`
	Basket      *BasketRequest      `json:"basket,omitempty"`
	Certificate *CertificateRequest `json:"certificate,omitempty"`
	Spending    *SpendingRequest    `json:"spending,omitempty"`

	// Renewal is set when the request replaces an expired or insufficient token.
	Renewal       bool             `json:"renewal,omitempty"`
	PreviousToken *PermissionToken `json:"previousToken,omitempty"`
}

// CheckPayload reports whether exactly the payload matching Type is present.
func (r *PermissionRequest) CheckPayload() error {
	set := 0
	for _, present := range []bool{r.Protocol != nil, r.Basket != nil, r.Certificate != nil, r.Spending != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("expected exactly one payload, found %d", set)
	}
	var ok bool
	switch r.Type {
	case PermissionProtocol:
		ok = r.Protocol != nil
	case PermissionBasket:
		ok = r.Basket != nil
	case PermissionCertificate:
		ok = r.Certificate != nil
	case PermissionSpending:
		ok = r.Spending != nil
	default:
		return fmt.Errorf("unknown permission type %q", r.Type)
	}
	if !ok {
		return fmt.Errorf("payload does not match type %q", r.Type)
	}
	return nil
}

// PermissionToken is a permission resolved from an unspent on-chain output.
// Tokens are never modified; renewal produces a new token and spends the old one.
type PermissionToken struct {
	Txid         string `json:"txid"`
	OutputIndex  uint32 `json:"outputIndex"`
	OutputScript string `json:"outputScript"`
	Satoshis     uint64 `json:"satoshis"`
	Originator   string `json:"originator"`
	// Expiry is a UNIX timestamp in seconds; 0 never expires.
	Expiry int64 `json:"expiry"`

	// DPACP / DCAP
	Privileged bool `json:"privileged,omitempty"`

	// DPACP
	Protocol      string `json:"protocol,omitempty"`
	SecurityLevel int    `json:"securityLevel,omitempty"`
	Counterparty  string `json:"counterparty,omitempty"`

	// DBAP
	BasketName string `json:"basketName,omitempty"`

	// DCAP
	Verifier   string   `json:"verifier,omitempty"`
	CertType   string   `json:"certType,omitempty"`
	CertFields []string `json:"certFields,omitempty"`

	// DSAP
	AuthorizedAmount uint64 `json:"authorizedAmount,omitempty"`
}

// Outpoint returns "txid.index".
func (t *PermissionToken) Outpoint() string {
	return fmt.Sprintf("%s.%d", t.Txid, t.OutputIndex)
}

// IsExpired reports whether the token's expiry has passed at nowUnix.
func (t *PermissionToken) IsExpired(nowUnix int64) bool {
	return IsExpired(t.Expiry, nowUnix)
}

// IsExpired reports whether expiry (UNIX seconds) has passed. Zero never expires.
func IsExpired(expiry, nowUnix int64) bool {
	return expiry > 0 && expiry < nowUnix
}

// GroupedProtocolPermission is one protocol entry of a BRC-73 group.
type GroupedProtocolPermission struct {
	ProtocolID   ProtocolID `json:"protocolID"`
	Counterparty string     `json:"counterparty,omitempty"`
	Description  string     `json:"description"`
}

// GroupedBasketAccess is one basket entry of a BRC-73 group.
type GroupedBasketAccess struct {
	Basket      string `json:"basket" validate:"required"`
	Description string `json:"description"`
}

// GroupedCertificateAccess is one certificate entry of a BRC-73 group.
type GroupedCertificateAccess struct {
	Type              string   `json:"type" validate:"required"`
	Fields            []string `json:"fields" validate:"dive,required"`
	VerifierPublicKey string   `json:"verifierPublicKey" validate:"required"`
	Description       string   `json:"description"`
}

// GroupedSpendingAuthorization is the optional spending entry of a BRC-73 group.
type GroupedSpendingAuthorization struct {
	Amount      uint64 `json:"amount" validate:"gt=0"`
	Description string `json:"description"`
}

// GroupedPermissions is a BRC-73 bundle of permissions requested or granted
// together.
type GroupedPermissions struct {
	Description           string                        `json:"description,omitempty"`
	SpendingAuthorization *GroupedSpendingAuthorization `json:"spendingAuthorization,omitempty"`
	ProtocolPermissions   []GroupedProtocolPermission   `json:"protocolPermissions,omitempty" validate:"dive"`
	BasketAccess          []GroupedBasketAccess         `json:"basketAccess,omitempty" validate:"dive"`
	CertificateAccess     []GroupedCertificateAccess    `json:"certificateAccess,omitempty" validate:"dive"`
}

// Empty reports whether the group contains no permissions.
func (g *GroupedPermissions) Empty() bool {
	return g.SpendingAuthorization == nil &&
		len(g.ProtocolPermissions) == 0 &&
		len(g.BasketAccess) == 0 &&
		len(g.CertificateAccess) == 0
}

// GroupedPermissionRequest asks for a BRC-73 group on behalf of an originator.
type GroupedPermissionRequest struct {
	Originator  string             `json:"originator" validate:"required"`
	Permissions GroupedPermissions `json:"permissions"`
	Reason      string             `json:"reason,omitempty"`
}
