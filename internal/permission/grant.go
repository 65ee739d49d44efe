package permission

import (
	"context"
	"strings"

	"github.com/opencode-ai/walletperm/pkg/types"
)

// GrantOptions qualify a grant.
type GrantOptions struct {
	// Expiry is a UNIX timestamp in seconds. Zero uses the manager's default
	// grant lifetime. Ignored for spending authorizations.
	Expiry int64 `json:"expiry,omitempty"`
	// Ephemeral releases the waiters without issuing a token or caching.
	Ephemeral bool `json:"ephemeral,omitempty"`
	// Amount is the monthly limit for spending authorizations. Zero
	// authorizes the requested amount, plus the previous limit on renewal.
	Amount uint64 `json:"amount,omitempty"`
}

// GrantPermission releases every caller waiting on requestID with success.
// Unless the grant is ephemeral it then issues or renews the permission
// token and caches the result.
func (m *Manager) GrantPermission(ctx context.Context, requestID string, opts GrantOptions) error {
	if isGroupedID(requestID) {
		return invalidOperation("request %q is grouped", requestID)
	}
	entry, ok := m.registry.resolve(requestID, nil)
	if !ok {
		return invalidOperation("no pending request %q", requestID)
	}
	req := entry.request
	m.log.Info().
		Str("requestID", requestID).
		Bool("ephemeral", opts.Ephemeral).
		Int("waiters", len(entry.waiters)).
		Msg("permission granted")
	if opts.Ephemeral {
		return nil
	}

	expiry := m.grantExpiry(opts.Expiry)
	var amount uint64
	if req.Type == types.PermissionSpending {
		amount = grantAmount(req, opts.Amount)
	}

	var token *types.PermissionToken
	var err error
	if req.Renewal {
		token, err = m.renewPermissionOnChain(ctx, req, expiry, amount)
	} else {
		token, err = m.createPermissionOnChain(ctx, req, expiry, amount)
	}
	if err != nil {
		return err
	}
	if req.Type != types.PermissionSpending {
		m.cache.insert(cacheKey(req), token.Expiry)
	}
	return nil
}

// DenyPermission releases every caller waiting on requestID with a denial.
func (m *Manager) DenyPermission(requestID string) error {
	if isGroupedID(requestID) {
		return invalidOperation("request %q is grouped", requestID)
	}
	if _, ok := m.registry.resolve(requestID, deniedError(requestID)); !ok {
		return invalidOperation("no pending request %q", requestID)
	}
	m.log.Info().Str("requestID", requestID).Msg("permission denied")
	return nil
}

func (m *Manager) grantExpiry(expiry int64) int64 {
	if expiry > 0 {
		return expiry
	}
	return m.clock.Now().Add(m.defaultGrantTTL).Unix()
}

func grantAmount(req *types.PermissionRequest, amount uint64) uint64 {
	if amount > 0 {
		return amount
	}
	total := req.Spending.Satoshis
	if req.Renewal && req.PreviousToken != nil {
		total += req.PreviousToken.AuthorizedAmount
	}
	return total
}

func isGroupedID(id string) bool {
	return strings.HasPrefix(id, "grouped:")
}
