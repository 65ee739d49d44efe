package permission

import (
	"context"

	"github.com/opencode-ai/walletperm/pkg/types"
)

// ListTokens returns every decodable token of type t, expired ones included,
// in storage order. An empty originator lists all originators.
func (m *Manager) ListTokens(ctx context.Context, t types.PermissionType, originator string) ([]*types.PermissionToken, error) {
	if BasketFor(t) == "" {
		return nil, invalidParameter("type", "unknown permission type %q", t)
	}
	var tags []string
	if originator != "" {
		tags = []string{"originator " + originator}
	}
	outputs, err := m.listTokenOutputs(ctx, t, tags)
	if err != nil {
		return nil, err
	}

	tokens := make([]*types.PermissionToken, 0, len(outputs))
	for _, out := range outputs {
		if token, ok := m.decodeToken(ctx, t, out); ok {
			tokens = append(tokens, token)
		}
	}
	return tokens, nil
}

// ListProtocolPermissions lists protocol permission tokens.
func (m *Manager) ListProtocolPermissions(ctx context.Context, originator string) ([]*types.PermissionToken, error) {
	return m.ListTokens(ctx, types.PermissionProtocol, originator)
}

// ListBasketAccess lists basket access tokens.
func (m *Manager) ListBasketAccess(ctx context.Context, originator string) ([]*types.PermissionToken, error) {
	return m.ListTokens(ctx, types.PermissionBasket, originator)
}

// ListCertificateAccess lists certificate access tokens.
func (m *Manager) ListCertificateAccess(ctx context.Context, originator string) ([]*types.PermissionToken, error) {
	return m.ListTokens(ctx, types.PermissionCertificate, originator)
}

// ListSpendingAuthorizations lists spending authorization tokens.
func (m *Manager) ListSpendingAuthorizations(ctx context.Context, originator string) ([]*types.PermissionToken, error) {
	return m.ListTokens(ctx, types.PermissionSpending, originator)
}

// RevokeOutpoint revokes the token of type t at outpoint.
func (m *Manager) RevokeOutpoint(ctx context.Context, t types.PermissionType, outpoint string) error {
	tokens, err := m.ListTokens(ctx, t, "")
	if err != nil {
		return err
	}
	for _, token := range tokens {
		if token.Outpoint() == outpoint {
			return m.RevokePermission(ctx, t, token)
		}
	}
	return notFound("no %s token at %s", t, outpoint)
}
