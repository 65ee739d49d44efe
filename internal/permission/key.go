package permission

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"github.com/opencode-ai/walletperm/pkg/types"
)

// RequestKey returns the canonical key for a request. It is the request ID
// handed to the UI and, except for certificates, the cache key. Requests that should share one
// prompt produce the same key; the certificate field list and the reason are
// deliberately not part of it.
func RequestKey(r *types.PermissionRequest) string {
	switch r.Type {
	case types.PermissionProtocol:
		p := r.Protocol
		return join("protocol", r.Originator, strconv.FormatBool(p.Privileged), p.ProtocolID.String(), p.Counterparty)
	case types.PermissionBasket:
		return join("basket", r.Originator, r.Basket.Basket)
	case types.PermissionCertificate:
		c := r.Certificate
		return join("certificate", r.Originator, strconv.FormatBool(c.Privileged), c.Verifier, c.CertType)
	case types.PermissionSpending:
		return join("spending", r.Originator)
	}
	return ""
}

// certificateFieldsSep separates a certificate request key from its field
// list in cache keys.
const certificateFieldsSep = "|"

// cacheKey returns the key a confirmation of r is cached under. Certificate
// confirmations cover only the fields that were checked, so the sorted field
// list is part of the key.
func cacheKey(r *types.PermissionRequest) string {
	key := RequestKey(r)
	if r.Type != types.PermissionCertificate {
		return key
	}
	fields := slices.Clone(r.Certificate.Fields)
	slices.Sort(fields)
	return key + certificateFieldsSep + strings.Join(slices.Compact(fields), ",")
}

// GroupedRequestKey returns the key for a grouped request: the originator and
// a digest of the canonical JSON of the permission set.
func GroupedRequestKey(r *types.GroupedPermissionRequest) string {
	data, _ := json.Marshal(r.Permissions)
	sum := sha256.Sum256(data)
	return join("grouped", r.Originator, hex.EncodeToString(sum[:]))
}

func join(parts ...string) string {
	return strings.Join(parts, ":")
}
