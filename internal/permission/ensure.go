package permission

import (
	"context"

	"github.com/opencode-ai/walletperm/pkg/types"
)

// ProtocolArgs asks whether Originator may use a protocol-scoped key.
type ProtocolArgs struct {
	Originator   string           `json:"originator" validate:"required"`
	Privileged   bool             `json:"privileged,omitempty"`
	ProtocolID   types.ProtocolID `json:"protocolID"`
	Counterparty string           `json:"counterparty,omitempty"`
	Reason       string           `json:"reason,omitempty"`
	Usage        ProtocolUsage    `json:"usage,omitempty" validate:"omitempty,oneof=signing encrypting hmac publicKey identityKey linkageRevelation identityResolution generic"`
	// NoPrompt fails instead of asking the user when no valid token exists.
	NoPrompt bool `json:"noPrompt,omitempty"`
}

// BasketArgs asks whether Originator may use a basket.
type BasketArgs struct {
	Originator string      `json:"originator" validate:"required"`
	Basket     string      `json:"basket" validate:"required"`
	Reason     string      `json:"reason,omitempty"`
	Usage      BasketUsage `json:"usage,omitempty" validate:"omitempty,oneof=insertion removal listing"`
	NoPrompt   bool        `json:"noPrompt,omitempty"`
}

// CertificateArgs asks whether Originator may access fields of a certificate
// type on behalf of a verifier.
type CertificateArgs struct {
	Originator string           `json:"originator" validate:"required"`
	Privileged bool             `json:"privileged,omitempty"`
	Verifier   string           `json:"verifier" validate:"required"`
	CertType   string           `json:"certType" validate:"required"`
	Fields     []string         `json:"fields,omitempty" validate:"dive,required"`
	Reason     string           `json:"reason,omitempty"`
	Usage      CertificateUsage `json:"usage,omitempty" validate:"omitempty,oneof=disclosure acquisition relinquishment listing"`
	NoPrompt   bool             `json:"noPrompt,omitempty"`
}

// SpendingArgs asks whether Originator may spend Satoshis this month.
type SpendingArgs struct {
	Originator string           `json:"originator" validate:"required"`
	Satoshis   uint64           `json:"satoshis" validate:"gt=0"`
	LineItems  []types.LineItem `json:"lineItems,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	NoPrompt   bool             `json:"noPrompt,omitempty"`
}

// LabelArgs asks whether Originator may apply or list by an action label.
type LabelArgs struct {
	Originator string     `json:"originator" validate:"required"`
	Label      string     `json:"label" validate:"required"`
	Reason     string     `json:"reason,omitempty"`
	Usage      LabelUsage `json:"usage,omitempty" validate:"omitempty,oneof=apply list"`
	NoPrompt   bool       `json:"noPrompt,omitempty"`
}

// counterpartySelf is used when a protocol request names no counterparty.
const counterpartySelf = "self"

// EnsureProtocolPermission reports whether the protocol use in args is
// allowed, asking the user if needed. A denial is returned as an error for
// which IsDenied is true.
func (m *Manager) EnsureProtocolPermission(ctx context.Context, args ProtocolArgs) (bool, error) {
	if err := validateArgs(&args); err != nil {
		return false, err
	}
	if m.IsAdminOriginator(args.Originator) {
		return true, nil
	}
	if IsAdminProtocol(args.ProtocolID) {
		return false, invalidOperation("protocol %q is admin-only", args.ProtocolID.Protocol)
	}
	if args.ProtocolID.SecurityLevel == types.SecurityLevelPublic {
		return true, nil
	}
	if !m.config.seekProtocol(args.Usage) {
		return true, nil
	}

	counterparty := args.Counterparty
	if counterparty == "" {
		counterparty = counterpartySelf
	}
	req := &types.PermissionRequest{
		Type:       types.PermissionProtocol,
		Originator: args.Originator,
		Reason:     args.Reason,
		Protocol: &types.ProtocolRequest{
			Privileged:   m.effectivePrivileged(args.Privileged),
			ProtocolID:   args.ProtocolID,
			Counterparty: counterparty,
		},
	}
	return m.ensure(ctx, req, !args.NoPrompt)
}

// EnsureBasketAccess reports whether the basket access in args is allowed,
// asking the user if needed.
func (m *Manager) EnsureBasketAccess(ctx context.Context, args BasketArgs) (bool, error) {
	if err := validateArgs(&args); err != nil {
		return false, err
	}
	if m.IsAdminOriginator(args.Originator) {
		return true, nil
	}
	if IsAdminBasket(args.Basket) {
		return false, invalidOperation("basket %q is admin-only", args.Basket)
	}
	if !m.config.seekBasket(args.Usage) {
		return true, nil
	}

	req := &types.PermissionRequest{
		Type:       types.PermissionBasket,
		Originator: args.Originator,
		Reason:     args.Reason,
		Basket:     &types.BasketRequest{Basket: args.Basket},
	}
	return m.ensure(ctx, req, !args.NoPrompt)
}

// EnsureCertificateAccess reports whether the certificate access in args is
// allowed, asking the user if needed.
func (m *Manager) EnsureCertificateAccess(ctx context.Context, args CertificateArgs) (bool, error) {
	if err := validateArgs(&args); err != nil {
		return false, err
	}
	if m.IsAdminOriginator(args.Originator) {
		return true, nil
	}
	if !m.config.seekCertificate(args.Usage) {
		return true, nil
	}

	req := &types.PermissionRequest{
		Type:       types.PermissionCertificate,
		Originator: args.Originator,
		Reason:     args.Reason,
		Certificate: &types.CertificateRequest{
			Privileged: m.effectivePrivileged(args.Privileged),
			Verifier:   args.Verifier,
			CertType:   args.CertType,
			Fields:     args.Fields,
		},
	}
	return m.ensure(ctx, req, !args.NoPrompt)
}

// EnsureSpendingAuthorization reports whether originator may spend the
// requested amount on top of what it already spent this month. The result
// is never cached; the monthly budget is re-checked on every call.
func (m *Manager) EnsureSpendingAuthorization(ctx context.Context, args SpendingArgs) (bool, error) {
	if err := validateArgs(&args); err != nil {
		return false, err
	}
	if m.IsAdminOriginator(args.Originator) {
		return true, nil
	}
	if !m.config.SeekSpendingPermissions {
		return true, nil
	}

	req := &types.PermissionRequest{
		Type:       types.PermissionSpending,
		Originator: args.Originator,
		Reason:     args.Reason,
		Spending:   &types.SpendingRequest{Satoshis: args.Satoshis, LineItems: args.LineItems},
	}

	token, err := m.findToken(ctx, req, false)
	if err != nil {
		return false, err
	}
	if token == nil {
		if args.NoPrompt {
			return false, invalidOperation("no spending authorization for %s", args.Originator)
		}
		return m.requestPermission(ctx, RequestKey(req), req)
	}

	spent, err := m.QuerySpentThisMonth(ctx, args.Originator)
	if err != nil {
		return false, err
	}
	if withinBudget(spent, args.Satoshis, token.AuthorizedAmount) {
		return true, nil
	}
	if args.NoPrompt {
		return false, invalidOperation("spending authorization for %s exceeded: spent %d, requested %d, authorized %d",
			args.Originator, spent, args.Satoshis, token.AuthorizedAmount)
	}
	req.Renewal = true
	req.PreviousToken = token
	return m.requestPermission(ctx, RequestKey(req), req)
}

// EnsureLabelAccess reports whether originator may apply or list by label.
// Labels are checked as the level 1 protocol "action label {label}".
func (m *Manager) EnsureLabelAccess(ctx context.Context, args LabelArgs) (bool, error) {
	if err := validateArgs(&args); err != nil {
		return false, err
	}
	if m.IsAdminOriginator(args.Originator) {
		return true, nil
	}
	if IsAdminLabel(args.Label) {
		return false, invalidOperation("label %q is admin-only", args.Label)
	}
	if !m.config.seekLabel(args.Usage) {
		return true, nil
	}

	req := &types.PermissionRequest{
		Type:       types.PermissionProtocol,
		Originator: args.Originator,
		Reason:     args.Reason,
		Protocol: &types.ProtocolRequest{
			ProtocolID:   types.ProtocolID{SecurityLevel: labelProtoLevel, Protocol: "action label " + args.Label},
			Counterparty: counterpartySelf,
		},
	}
	return m.ensure(ctx, req, !args.NoPrompt)
}

func (m *Manager) effectivePrivileged(privileged bool) bool {
	return privileged && m.config.DifferentiatePrivilegedOperations
}

// withinBudget reports spent+requested <= authorized without overflowing.
func withinBudget(spent, requested, authorized uint64) bool {
	return requested <= authorized && spent <= authorized-requested
}

// ensure runs the cache, token and consent steps shared by the protocol,
// basket, certificate and label checks.
func (m *Manager) ensure(ctx context.Context, req *types.PermissionRequest, seek bool) (bool, error) {
	ck := cacheKey(req)
	if m.cache.isCached(ck, m.cacheTTL) {
		return true, nil
	}

	token, err := m.findToken(ctx, req, false)
	if err != nil {
		return false, err
	}
	if token != nil {
		m.cache.insert(ck, token.Expiry)
		return true, nil
	}

	expired, err := m.findToken(ctx, req, true)
	if err != nil {
		return false, err
	}
	if !seek {
		if expired != nil {
			return false, invalidOperation("%s permission for %s has expired", req.Type, req.Originator)
		}
		return false, invalidOperation("%s permission for %s has not been granted", req.Type, req.Originator)
	}
	if expired != nil {
		req.Renewal = true
		req.PreviousToken = expired
	}
	return m.requestPermission(ctx, RequestKey(req), req)
}

// requestPermission waits for the user to answer req. The first caller for
// key notifies the callbacks; later callers join the same wait.
func (m *Manager) requestPermission(ctx context.Context, key string, req *types.PermissionRequest) (bool, error) {
	kind := kindFor(req.Type)
	wait, first := m.registry.join(&activeRequest{
		id:      key,
		kind:    kind,
		request: req,
		created: m.clock.Now(),
	})
	if first {
		m.log.Debug().Str("requestID", key).Bool("renewal", req.Renewal).Msg("permission requested")
		m.dispatch(ctx, kind, RequestEvent{RequestID: key, Request: req})
	} else {
		m.log.Debug().Str("requestID", key).Msg("joined pending permission request")
	}
	return await(ctx, wait)
}

// await blocks until the request is resolved or ctx ends. Abandoning the
// wait leaves the request pending for the other waiters.
func await(ctx context.Context, wait <-chan error) (bool, error) {
	select {
	case err := <-wait:
		if err != nil {
			return false, err
		}
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
