// Package permission decides whether an external application (an
// originator) may use wallet capabilities, and asks the user when it is not
// yet allowed.
//
// # Overview
//
// Permissions are granted per originator and recorded as encrypted tokens:
// unspent outputs in admin-only baskets of the underlying wallet. There are
// four kinds of permission:
//
//   - Protocol (DPACP): use of a protocol-scoped key at security level 1 or 2
//   - Basket (DBAP): inserting into, removing from or listing a basket
//   - Certificate (DCAP): revealing certificate fields to a verifier
//   - Spending (DSAP): a monthly spending limit
//
// # Checking
//
// Each Ensure* method follows the same order: argument validation, the admin
// originator bypass, rejection of admin-reserved names, carve-outs for public
// protocols and disabled config flags, the permission cache, and finally the
// token lookup:
//
//	m := NewManager(w, "admin.wallet")
//	ok, err := m.EnsureProtocolPermission(ctx, ProtocolArgs{
//		Originator: "app.example",
//		ProtocolID: types.ProtocolID{SecurityLevel: 2, Protocol: "payments"},
//		Counterparty: "self",
//		Usage: UsageSigning,
//	})
//
// When no valid token exists the caller blocks until the user answers.
// Identical concurrent requests share one prompt and one answer.
//
// # Consent
//
// The UI binds callbacks for each CallbackKind and answers with
// GrantPermission or DenyPermission using the request ID it was given:
//
//	m.BindCallback(OnProtocolPermissionRequested, func(ctx context.Context, ev RequestEvent) error {
//		return m.GrantPermission(ctx, ev.RequestID, GrantOptions{})
//	})
//
// Callback errors and panics are logged and never reach the requester.
//
// A grant releases the waiters first and then issues or renews the token.
// Renewal spends the previous token in the same action. A denial is an
// error for which IsDenied reports true.
//
// # Grouped requests
//
// EnsureGroupedPermissions asks for several permissions in one prompt
// (BRC-73). The UI may grant any subset of what was asked for.
//
// # Concurrency
//
// A Manager is safe for concurrent use. No lock is held across a call into
// the wallet or while waiting for the user.
package permission
