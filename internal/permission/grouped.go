package permission

import (
	"context"
	"fmt"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"

	"github.com/opencode-ai/walletperm/pkg/types"
)

// groupedLookupLimit bounds concurrent token lookups for one grouped grant.
const groupedLookupLimit = 4

// EnsureGroupedPermissions asks the user for a BRC-73 bundle in one prompt.
// Entries that are already satisfied are dropped from the prompt; when none
// remain it returns true without asking.
func (m *Manager) EnsureGroupedPermissions(ctx context.Context, req types.GroupedPermissionRequest) (bool, error) {
	if err := validateArgs(&req); err != nil {
		return false, err
	}
	if m.IsAdminOriginator(req.Originator) {
		return true, nil
	}
	for _, p := range req.Permissions.ProtocolPermissions {
		if IsAdminProtocol(p.ProtocolID) {
			return false, invalidOperation("protocol %q is admin-only", p.ProtocolID.Protocol)
		}
	}
	for _, b := range req.Permissions.BasketAccess {
		if IsAdminBasket(b.Basket) {
			return false, invalidOperation("basket %q is admin-only", b.Basket)
		}
	}
	if !m.config.SeekGroupedPermission {
		return true, nil
	}

	missing, err := m.unsatisfied(ctx, req.Originator, req.Permissions)
	if err != nil {
		return false, err
	}
	if missing.Empty() {
		return true, nil
	}

	pending := &types.GroupedPermissionRequest{
		Originator:  req.Originator,
		Permissions: missing,
		Reason:      req.Reason,
	}
	key := GroupedRequestKey(pending)
	wait, first := m.registry.join(&activeRequest{
		id:      key,
		kind:    OnGroupedPermissionRequested,
		grouped: pending,
		created: m.clock.Now(),
	})
	if first {
		m.log.Debug().Str("requestID", key).Msg("grouped permission requested")
		m.dispatch(ctx, OnGroupedPermissionRequested, RequestEvent{RequestID: key, Grouped: pending})
	}
	return await(ctx, wait)
}

// unsatisfied returns the part of perms that has no valid token yet.
func (m *Manager) unsatisfied(ctx context.Context, originator string, perms types.GroupedPermissions) (types.GroupedPermissions, error) {
	out := types.GroupedPermissions{Description: perms.Description}

	for _, p := range perms.ProtocolPermissions {
		if p.ProtocolID.SecurityLevel == types.SecurityLevelPublic {
			continue
		}
		ok, err := m.holds(ctx, groupedProtocolRequest(originator, p))
		if err != nil {
			return out, err
		}
		if !ok {
			out.ProtocolPermissions = append(out.ProtocolPermissions, p)
		}
	}
	for _, b := range perms.BasketAccess {
		ok, err := m.holds(ctx, groupedBasketRequest(originator, b))
		if err != nil {
			return out, err
		}
		if !ok {
			out.BasketAccess = append(out.BasketAccess, b)
		}
	}
	for _, c := range perms.CertificateAccess {
		ok, err := m.holds(ctx, groupedCertificateRequest(originator, c))
		if err != nil {
			return out, err
		}
		if !ok {
			out.CertificateAccess = append(out.CertificateAccess, c)
		}
	}
	if s := perms.SpendingAuthorization; s != nil {
		token, err := m.findToken(ctx, groupedSpendingRequest(originator, *s), false)
		if err != nil {
			return out, err
		}
		if token == nil || token.AuthorizedAmount < s.Amount {
			out.SpendingAuthorization = s
		}
	}
	return out, nil
}

// holds reports whether a valid token or cache entry covers r.
func (m *Manager) holds(ctx context.Context, r *types.PermissionRequest) (bool, error) {
	if m.cache.isCached(cacheKey(r), m.cacheTTL) {
		return true, nil
	}
	token, err := m.findToken(ctx, r, false)
	if err != nil {
		return false, err
	}
	return token != nil, nil
}

// GrantGroupedPermission grants the subset granted of the grouped request
// requestID. Every granted entry must have been requested and at least one
// must be present; otherwise nothing is resolved and an InvalidParameter
// error is returned. The waiters are released before the tokens are issued.
func (m *Manager) GrantGroupedPermission(ctx context.Context, requestID string, granted types.GroupedPermissions, expiry int64) error {
	entry, ok := m.registry.peek(requestID)
	if !ok || entry.grouped == nil {
		return invalidOperation("no pending grouped request %q", requestID)
	}
	if granted.Empty() {
		return invalidParameter("granted", "nothing granted; deny the request instead")
	}
	if err := validateGroupedSubset(entry.grouped.Permissions, granted); err != nil {
		return err
	}
	entry, ok = m.registry.resolve(requestID, nil)
	if !ok {
		return invalidOperation("no pending grouped request %q", requestID)
	}
	m.log.Info().Str("requestID", requestID).Int("waiters", len(entry.waiters)).Msg("grouped permission granted")

	grants := groupedGrants(entry.grouped.Originator, granted)
	existing := make([][]*types.PermissionToken, len(grants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(groupedLookupLimit)
	for i, gr := range grants {
		g.Go(func() error {
			found, err := m.findTokens(gctx, gr.request, true, false)
			existing[i] = found
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// One token can match several granted entries. Each outpoint is spent
	// by the first issuance that claims it.
	expiry = m.grantExpiry(expiry)
	claimed := mapset.NewThreadUnsafeSet[string]()
	for i, gr := range grants {
		var inputs []*types.PermissionToken
		for _, token := range existing[i] {
			if claimed.Add(token.Outpoint()) {
				inputs = append(inputs, token)
			}
		}
		if err := m.issueOrRenew(ctx, gr.request, expiry, gr.amount, inputs); err != nil {
			return err
		}
	}
	return nil
}

type groupedGrant struct {
	request *types.PermissionRequest
	amount  uint64
}

// groupedGrants expands granted into one request per distinct entry.
func groupedGrants(originator string, granted types.GroupedPermissions) []groupedGrant {
	var grants []groupedGrant
	for _, p := range dedupe(granted.ProtocolPermissions, protocolEntryKey) {
		grants = append(grants, groupedGrant{request: groupedProtocolRequest(originator, p)})
	}
	for _, b := range dedupe(granted.BasketAccess, func(b types.GroupedBasketAccess) string { return b.Basket }) {
		grants = append(grants, groupedGrant{request: groupedBasketRequest(originator, b)})
	}
	for _, c := range dedupe(granted.CertificateAccess, certificateEntryKey) {
		grants = append(grants, groupedGrant{request: groupedCertificateRequest(originator, c)})
	}
	if s := granted.SpendingAuthorization; s != nil {
		grants = append(grants, groupedGrant{request: groupedSpendingRequest(originator, *s), amount: s.Amount})
	}
	return grants
}

// DenyGroupedPermission releases every caller waiting on the grouped request
// requestID with a denial.
func (m *Manager) DenyGroupedPermission(requestID string) error {
	if !isGroupedID(requestID) {
		return invalidOperation("no pending grouped request %q", requestID)
	}
	if _, ok := m.registry.resolve(requestID, deniedError(requestID)); !ok {
		return invalidOperation("no pending grouped request %q", requestID)
	}
	m.log.Info().Str("requestID", requestID).Msg("grouped permission denied")
	return nil
}

// issueOrRenew issues the token for r, spending existing so duplicates do
// not accumulate.
func (m *Manager) issueOrRenew(ctx context.Context, r *types.PermissionRequest, expiry int64, amount uint64, existing []*types.PermissionToken) error {
	description := "Grant " + string(r.Type) + " permission"
	if len(existing) > 0 {
		description = "Renew " + string(r.Type) + " permission"
	}
	token, err := m.issueToken(ctx, description, r, expiry, amount, existing)
	if err != nil {
		return err
	}
	if r.Type != types.PermissionSpending {
		m.cache.insert(cacheKey(r), token.Expiry)
	}
	return nil
}

// validateGroupedSubset checks that every granted entry was requested.
// Certificates may be granted with fewer fields than requested; spending
// with a smaller amount.
func validateGroupedSubset(requested, granted types.GroupedPermissions) error {
	protocols := mapset.NewSet[string]()
	for _, p := range requested.ProtocolPermissions {
		protocols.Add(protocolEntryKey(p))
	}
	for _, p := range granted.ProtocolPermissions {
		if !protocols.Contains(protocolEntryKey(p)) {
			return invalidParameter("protocolPermissions", "protocol %s was not requested", p.ProtocolID)
		}
	}

	baskets := mapset.NewSet[string]()
	for _, b := range requested.BasketAccess {
		baskets.Add(b.Basket)
	}
	for _, b := range granted.BasketAccess {
		if !baskets.Contains(b.Basket) {
			return invalidParameter("basketAccess", "basket %q was not requested", b.Basket)
		}
	}

	for _, c := range granted.CertificateAccess {
		if !certificateRequested(requested.CertificateAccess, c) {
			return invalidParameter("certificateAccess", "certificate %q for verifier %q was not requested with those fields", c.Type, c.VerifierPublicKey)
		}
	}

	if s := granted.SpendingAuthorization; s != nil {
		if requested.SpendingAuthorization == nil {
			return invalidParameter("spendingAuthorization", "spending authorization was not requested")
		}
		if s.Amount == 0 || s.Amount > requested.SpendingAuthorization.Amount {
			return invalidParameter("spendingAuthorization", "amount %d outside requested range 1..%d", s.Amount, requested.SpendingAuthorization.Amount)
		}
	}
	return nil
}

func certificateRequested(requested []types.GroupedCertificateAccess, c types.GroupedCertificateAccess) bool {
	for _, r := range requested {
		if r.Type == c.Type && r.VerifierPublicKey == c.VerifierPublicKey && fieldsSubset(c.Fields, r.Fields) {
			return true
		}
	}
	return false
}

func protocolEntryKey(p types.GroupedProtocolPermission) string {
	return join(strconv.Itoa(p.ProtocolID.SecurityLevel), p.ProtocolID.Protocol, groupedCounterparty(p))
}

func certificateEntryKey(c types.GroupedCertificateAccess) string {
	return fmt.Sprintf("%s|%s|%v", c.Type, c.VerifierPublicKey, c.Fields)
}

func dedupe[T any](items []T, key func(T) string) []T {
	seen := mapset.NewThreadUnsafeSet[string]()
	out := make([]T, 0, len(items))
	for _, it := range items {
		if seen.Add(key(it)) {
			out = append(out, it)
		}
	}
	return out
}

func groupedCounterparty(p types.GroupedProtocolPermission) string {
	if p.Counterparty == "" {
		return counterpartySelf
	}
	return p.Counterparty
}

// Grouped entries are always non-privileged.

func groupedProtocolRequest(originator string, p types.GroupedProtocolPermission) *types.PermissionRequest {
	return &types.PermissionRequest{
		Type:       types.PermissionProtocol,
		Originator: originator,
		Reason:     p.Description,
		Protocol: &types.ProtocolRequest{
			ProtocolID:   p.ProtocolID,
			Counterparty: groupedCounterparty(p),
		},
	}
}

func groupedBasketRequest(originator string, b types.GroupedBasketAccess) *types.PermissionRequest {
	return &types.PermissionRequest{
		Type:       types.PermissionBasket,
		Originator: originator,
		Reason:     b.Description,
		Basket:     &types.BasketRequest{Basket: b.Basket},
	}
}

func groupedCertificateRequest(originator string, c types.GroupedCertificateAccess) *types.PermissionRequest {
	return &types.PermissionRequest{
		Type:       types.PermissionCertificate,
		Originator: originator,
		Reason:     c.Description,
		Certificate: &types.CertificateRequest{
			Verifier: c.VerifierPublicKey,
			CertType: c.Type,
			Fields:   c.Fields,
		},
	}
}

func groupedSpendingRequest(originator string, s types.GroupedSpendingAuthorization) *types.PermissionRequest {
	return &types.PermissionRequest{
		Type:       types.PermissionSpending,
		Originator: originator,
		Reason:     s.Description,
		Spending:   &types.SpendingRequest{Satoshis: s.Amount},
	}
}
