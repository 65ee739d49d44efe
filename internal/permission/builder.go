package permission

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/opencode-ai/walletperm/internal/wallet"
	"github.com/opencode-ai/walletperm/pkg/types"
)

// Admin baskets holding permission tokens, one per sub-protocol.
const (
	BasketProtocolPermission    = "admin protocol-permission"    // DPACP
	BasketBasketAccess          = "admin basket-access"          // DBAP
	BasketCertificateAccess     = "admin certificate-access"     // DCAP
	BasketSpendingAuthorization = "admin spending-authorization" // DSAP
)

// Token fields are encrypted under this admin protocol, key and counterparty.
// The protocol name carries the admin prefix so ordinary protocol requests
// can never reach it.
var (
	tokenEncryptionProtocol = [2]string{"2", "admin permission token encryption"}
	tokenEncryptionKeyID    = "1"
	tokenEncryptionParty    = "self"
)

const (
	tokenSatoshis = 1
	// unlockingScriptLength is the estimated size of the signature that
	// spends a token output.
	unlockingScriptLength = 73
)

// tokenInstructions is the JSON stored in a token output's custom
// instructions: the base64 ciphertext of each field, in field order.
type tokenInstructions struct {
	Fields []string `json:"fields"`
}

// BasketFor returns the admin basket for a permission type.
func BasketFor(t types.PermissionType) string {
	switch t {
	case types.PermissionProtocol:
		return BasketProtocolPermission
	case types.PermissionBasket:
		return BasketBasketAccess
	case types.PermissionCertificate:
		return BasketCertificateAccess
	case types.PermissionSpending:
		return BasketSpendingAuthorization
	}
	return ""
}

// BuildPushdropFields returns the ordered plaintext fields of the token that
// grants r until expiry. amount is used for spending authorizations only.
func BuildPushdropFields(r *types.PermissionRequest, expiry int64, amount uint64) []string {
	exp := strconv.FormatInt(expiry, 10)
	switch r.Type {
	case types.PermissionProtocol:
		p := r.Protocol
		return []string{
			r.Originator,
			exp,
			strconv.FormatBool(p.Privileged),
			strconv.Itoa(p.ProtocolID.SecurityLevel),
			p.ProtocolID.Protocol,
			p.Counterparty,
		}
	case types.PermissionBasket:
		return []string{r.Originator, exp, r.Basket.Basket}
	case types.PermissionCertificate:
		c := r.Certificate
		fields := c.Fields
		if fields == nil {
			fields = []string{}
		}
		fieldsJSON, _ := json.Marshal(fields)
		return []string{
			r.Originator,
			exp,
			strconv.FormatBool(c.Privileged),
			c.CertType,
			string(fieldsJSON),
			c.Verifier,
		}
	case types.PermissionSpending:
		return []string{r.Originator, strconv.FormatUint(amount, 10)}
	}
	return nil
}

// BuildTagsForRequest returns the tags for a token granting r. They are the
// same tags the finder filters on.
func BuildTagsForRequest(r *types.PermissionRequest) []string {
	tags := []string{"originator " + r.Originator}
	switch r.Type {
	case types.PermissionProtocol:
		p := r.Protocol
		tags = append(tags,
			"privileged "+strconv.FormatBool(p.Privileged),
			"protocolName "+p.ProtocolID.Protocol,
			"protocolSecurityLevel "+strconv.Itoa(p.ProtocolID.SecurityLevel),
		)
		if p.ProtocolID.SecurityLevel == types.SecurityLevelPrivate {
			tags = append(tags, "counterparty "+p.Counterparty)
		}
	case types.PermissionBasket:
		tags = append(tags, "basket "+r.Basket.Basket)
	case types.PermissionCertificate:
		c := r.Certificate
		tags = append(tags,
			"privileged "+strconv.FormatBool(c.Privileged),
			"type "+c.CertType,
			"verifier "+c.Verifier,
		)
	}
	return tags
}

// encryptFields encrypts each field on its own and returns the base64 forms
// and the raw ciphertexts.
func (m *Manager) encryptFields(ctx context.Context, fields []string) ([]string, [][]byte, error) {
	encoded := make([]string, len(fields))
	raw := make([][]byte, len(fields))
	for i, f := range fields {
		res, err := m.wallet.Encrypt(ctx, wallet.EncryptArgs{
			ProtocolID:   tokenEncryptionProtocol,
			KeyID:        tokenEncryptionKeyID,
			Counterparty: tokenEncryptionParty,
			Plaintext:    []byte(f),
		}, m.adminOriginator)
		if err != nil {
			return nil, nil, fmt.Errorf("encrypt token field %d: %w", i, err)
		}
		raw[i] = res.Ciphertext
		encoded[i] = base64.StdEncoding.EncodeToString(res.Ciphertext)
	}
	return encoded, raw, nil
}

// encodeTokenScript builds an unspendable data script (OP_FALSE OP_RETURN)
// pushing each encrypted field. The script only carries the data; spending
// authority comes from the wallet owning the output.
func encodeTokenScript(fields [][]byte) string {
	script := []byte{0x00, 0x6a}
	for _, f := range fields {
		n := len(f)
		switch {
		case n < 0x4c:
			script = append(script, byte(n))
		case n <= 0xff:
			script = append(script, 0x4c, byte(n))
		case n <= 0xffff:
			script = append(script, 0x4d)
			script = binary.LittleEndian.AppendUint16(script, uint16(n))
		default:
			script = append(script, 0x4e)
			script = binary.LittleEndian.AppendUint32(script, uint32(n))
		}
		script = append(script, f...)
	}
	return hex.EncodeToString(script)
}

// issueToken creates the token output for r, spending inputs in the same
// action. Wallet errors are returned unchanged apart from context wrapping.
func (m *Manager) issueToken(ctx context.Context, description string, r *types.PermissionRequest, expiry int64, amount uint64, inputs []*types.PermissionToken) (*types.PermissionToken, error) {
	fields := BuildPushdropFields(r, expiry, amount)
	if fields == nil {
		return nil, invalidParameter("type", "unknown permission type %q", r.Type)
	}
	encoded, raw, err := m.encryptFields(ctx, fields)
	if err != nil {
		return nil, err
	}
	instructions, err := json.Marshal(tokenInstructions{Fields: encoded})
	if err != nil {
		return nil, err
	}
	script := encodeTokenScript(raw)

	args := wallet.CreateActionArgs{
		Description: description,
		Outputs: []wallet.CreateActionOutput{{
			LockingScript:      script,
			Satoshis:           tokenSatoshis,
			OutputDescription:  fmt.Sprintf("%s permission token", r.Type),
			Basket:             BasketFor(r.Type),
			Tags:               BuildTagsForRequest(r),
			CustomInstructions: string(instructions),
		}},
	}
	for _, in := range inputs {
		args.Inputs = append(args.Inputs, wallet.CreateActionInput{
			Outpoint:              in.Outpoint(),
			UnlockingScriptLength: unlockingScriptLength,
			InputDescription:      fmt.Sprintf("Consume %s permission token", r.Type),
		})
	}

	res, err := m.wallet.CreateAction(ctx, args, m.adminOriginator)
	if err != nil {
		return nil, fmt.Errorf("create permission action: %w", err)
	}

	token := tokenFromRequest(r, expiry, amount)
	token.Txid = res.Txid
	token.OutputIndex = 0
	token.OutputScript = script
	token.Satoshis = tokenSatoshis

	m.log.Info().
		Str("txid", res.Txid).
		Str("type", string(r.Type)).
		Str("originator", r.Originator).
		Int("spent", len(inputs)).
		Msg(description)
	return token, nil
}

// createPermissionOnChain issues a new token for r.
func (m *Manager) createPermissionOnChain(ctx context.Context, r *types.PermissionRequest, expiry int64, amount uint64) (*types.PermissionToken, error) {
	return m.issueToken(ctx, "Grant "+string(r.Type)+" permission", r, expiry, amount, nil)
}

// renewPermissionOnChain replaces the token previously granting r with one
// that expires at expiry, spending the old token in the same action. When
// duplicate tokens match they are all spent, coalescing them into the
// replacement.
func (m *Manager) renewPermissionOnChain(ctx context.Context, r *types.PermissionRequest, expiry int64, amount uint64) (*types.PermissionToken, error) {
	prior, err := m.findTokens(ctx, r, true, false)
	if err != nil {
		return nil, err
	}
	switch len(prior) {
	case 0:
		return nil, notFound("no %s permission token to renew for %s", r.Type, r.Originator)
	case 1:
		return m.issueToken(ctx, "Renew "+string(r.Type)+" permission", r, expiry, amount, prior)
	default:
		return m.coalescePermissionTokens(ctx, prior, r, expiry, amount)
	}
}

// coalescePermissionTokens spends redundant tokens and issues a single
// replacement granting r.
func (m *Manager) coalescePermissionTokens(ctx context.Context, tokens []*types.PermissionToken, r *types.PermissionRequest, expiry int64, amount uint64) (*types.PermissionToken, error) {
	if len(tokens) < 2 {
		return nil, invalidParameter("tokens", "coalescing needs at least 2 tokens, got %d", len(tokens))
	}
	return m.issueToken(ctx, "Coalesce "+string(r.Type)+" permission tokens", r, expiry, amount, tokens)
}

// RevokePermission spends token without a replacement and forgets any
// cached confirmation it backed.
func (m *Manager) RevokePermission(ctx context.Context, t types.PermissionType, token *types.PermissionToken) error {
	if token == nil || token.Txid == "" {
		return invalidParameter("token", "token outpoint is required")
	}
	_, err := m.wallet.CreateAction(ctx, wallet.CreateActionArgs{
		Description: "Revoke " + string(t) + " permission",
		Inputs: []wallet.CreateActionInput{{
			Outpoint:              token.Outpoint(),
			UnlockingScriptLength: unlockingScriptLength,
			InputDescription:      "Revoke permission token",
		}},
	}, m.adminOriginator)
	if err != nil {
		return fmt.Errorf("revoke permission: %w", err)
	}
	if r := requestFromToken(t, token); r != nil {
		if t == types.PermissionCertificate {
			m.cache.forgetPrefix(RequestKey(r) + certificateFieldsSep)
		} else {
			m.cache.forget(RequestKey(r))
		}
	}
	m.log.Info().Str("outpoint", token.Outpoint()).Str("type", string(t)).Msg("permission revoked")
	return nil
}

// tokenFromRequest fills the permission fields of a token from r.
func tokenFromRequest(r *types.PermissionRequest, expiry int64, amount uint64) *types.PermissionToken {
	t := &types.PermissionToken{Originator: r.Originator, Expiry: expiry}
	switch r.Type {
	case types.PermissionProtocol:
		t.Privileged = r.Protocol.Privileged
		t.Protocol = r.Protocol.ProtocolID.Protocol
		t.SecurityLevel = r.Protocol.ProtocolID.SecurityLevel
		t.Counterparty = r.Protocol.Counterparty
	case types.PermissionBasket:
		t.BasketName = r.Basket.Basket
	case types.PermissionCertificate:
		t.Privileged = r.Certificate.Privileged
		t.Verifier = r.Certificate.Verifier
		t.CertType = r.Certificate.CertType
		t.CertFields = append([]string(nil), r.Certificate.Fields...)
	case types.PermissionSpending:
		t.Expiry = 0
		t.AuthorizedAmount = amount
	}
	return t
}

// requestFromToken rebuilds the request a token answers.
func requestFromToken(t types.PermissionType, token *types.PermissionToken) *types.PermissionRequest {
	r := &types.PermissionRequest{Type: t, Originator: token.Originator}
	switch t {
	case types.PermissionProtocol:
		r.Protocol = &types.ProtocolRequest{
			Privileged:   token.Privileged,
			ProtocolID:   types.ProtocolID{SecurityLevel: token.SecurityLevel, Protocol: token.Protocol},
			Counterparty: token.Counterparty,
		}
	case types.PermissionBasket:
		r.Basket = &types.BasketRequest{Basket: token.BasketName}
	case types.PermissionCertificate:
		r.Certificate = &types.CertificateRequest{
			Privileged: token.Privileged,
			Verifier:   token.Verifier,
			CertType:   token.CertType,
			Fields:     token.CertFields,
		}
	case types.PermissionSpending:
		r.Spending = &types.SpendingRequest{}
	default:
		return nil
	}
	return r
}
