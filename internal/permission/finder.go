package permission

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/opencode-ai/walletperm/internal/wallet"
	"github.com/opencode-ai/walletperm/pkg/types"
)

// Number of encrypted fields carried by each token type.
var fieldCounts = map[types.PermissionType]int{
	types.PermissionProtocol:    6,
	types.PermissionBasket:      3,
	types.PermissionCertificate: 6,
	types.PermissionSpending:    2,
}

// findToken returns the first token matching r, or nil when there is none.
// Expired tokens are skipped unless includeExpired is set.
func (m *Manager) findToken(ctx context.Context, r *types.PermissionRequest, includeExpired bool) (*types.PermissionToken, error) {
	tokens, err := m.findTokens(ctx, r, includeExpired, true)
	if err != nil || len(tokens) == 0 {
		return nil, err
	}
	return tokens[0], nil
}

// findTokens returns the tokens matching r in storage order, stopping at the
// first one when firstOnly is set.
func (m *Manager) findTokens(ctx context.Context, r *types.PermissionRequest, includeExpired, firstOnly bool) ([]*types.PermissionToken, error) {
	outputs, err := m.listTokenOutputs(ctx, r.Type, BuildTagsForRequest(r))
	if err != nil {
		return nil, err
	}

	now := m.clock.Now().Unix()
	var found []*types.PermissionToken
	for _, out := range outputs {
		token, ok := m.decodeToken(ctx, r.Type, out)
		if !ok || !tokenMatches(r, token) {
			continue
		}
		if !includeExpired && token.IsExpired(now) {
			continue
		}
		found = append(found, token)
		if firstOnly {
			break
		}
	}
	return found, nil
}

// listTokenOutputs queries the admin basket for t with every tag required.
func (m *Manager) listTokenOutputs(ctx context.Context, t types.PermissionType, tags []string) ([]wallet.Output, error) {
	res, err := m.wallet.ListOutputs(ctx, wallet.ListOutputsArgs{
		Basket:       BasketFor(t),
		Tags:         tags,
		TagQueryMode: wallet.QueryModeAll,
	}, m.adminOriginator)
	if err != nil {
		return nil, fmt.Errorf("list %s tokens: %w", t, err)
	}
	return res.Outputs, nil
}

// decodeToken decrypts and parses a token output. Any field that is missing,
// fails to decrypt or fails to parse rejects the whole candidate.
func (m *Manager) decodeToken(ctx context.Context, t types.PermissionType, out wallet.Output) (*types.PermissionToken, bool) {
	txid, index, err := splitOutpoint(out.Outpoint)
	if err != nil {
		m.log.Debug().Str("outpoint", out.Outpoint).Msg("skipping token with malformed outpoint")
		return nil, false
	}

	var instr tokenInstructions
	if err := json.Unmarshal([]byte(out.CustomInstructions), &instr); err != nil {
		return nil, false
	}
	if len(instr.Fields) != fieldCounts[t] {
		return nil, false
	}

	fields := make([]string, len(instr.Fields))
	for i, enc := range instr.Fields {
		plain, ok := m.decryptField(ctx, enc)
		if !ok {
			m.log.Debug().Str("outpoint", out.Outpoint).Int("field", i).Msg("skipping token with undecryptable field")
			return nil, false
		}
		fields[i] = plain
	}

	token := &types.PermissionToken{
		Txid:         txid,
		OutputIndex:  index,
		OutputScript: out.LockingScript,
		Satoshis:     out.Satoshis,
		Originator:   fields[0],
	}
	if !parseTokenFields(t, fields, token) {
		return nil, false
	}
	return token, true
}

func (m *Manager) decryptField(ctx context.Context, encoded string) (string, bool) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	res, err := m.wallet.Decrypt(ctx, wallet.DecryptArgs{
		ProtocolID:   tokenEncryptionProtocol,
		KeyID:        tokenEncryptionKeyID,
		Counterparty: tokenEncryptionParty,
		Ciphertext:   ciphertext,
	}, m.adminOriginator)
	if err != nil {
		return "", false
	}
	return string(res.Plaintext), true
}

// parseTokenFields fills the typed values of token from the decrypted fields,
// which are in the order BuildPushdropFields produces.
func parseTokenFields(t types.PermissionType, f []string, token *types.PermissionToken) bool {
	var err error
	switch t {
	case types.PermissionProtocol:
		if token.Expiry, err = strconv.ParseInt(f[1], 10, 64); err != nil {
			return false
		}
		if token.Privileged, err = strconv.ParseBool(f[2]); err != nil {
			return false
		}
		if token.SecurityLevel, err = strconv.Atoi(f[3]); err != nil {
			return false
		}
		token.Protocol = f[4]
		token.Counterparty = f[5]
	case types.PermissionBasket:
		if token.Expiry, err = strconv.ParseInt(f[1], 10, 64); err != nil {
			return false
		}
		token.BasketName = f[2]
	case types.PermissionCertificate:
		if token.Expiry, err = strconv.ParseInt(f[1], 10, 64); err != nil {
			return false
		}
		if token.Privileged, err = strconv.ParseBool(f[2]); err != nil {
			return false
		}
		token.CertType = f[3]
		if err = json.Unmarshal([]byte(f[4]), &token.CertFields); err != nil {
			return false
		}
		token.Verifier = f[5]
	case types.PermissionSpending:
		if token.AuthorizedAmount, err = strconv.ParseUint(f[1], 10, 64); err != nil {
			return false
		}
	default:
		return false
	}
	return true
}

// tokenMatches reports whether every decoded value of token satisfies r.
// Certificate tokens match when the requested fields are a subset of the
// granted ones.
func tokenMatches(r *types.PermissionRequest, token *types.PermissionToken) bool {
	if token.Originator != r.Originator {
		return false
	}
	switch r.Type {
	case types.PermissionProtocol:
		p := r.Protocol
		if token.Privileged != p.Privileged ||
			token.SecurityLevel != p.ProtocolID.SecurityLevel ||
			token.Protocol != p.ProtocolID.Protocol {
			return false
		}
		if p.ProtocolID.SecurityLevel == types.SecurityLevelPrivate && token.Counterparty != p.Counterparty {
			return false
		}
		return true
	case types.PermissionBasket:
		return token.BasketName == r.Basket.Basket
	case types.PermissionCertificate:
		c := r.Certificate
		if token.Privileged != c.Privileged || token.CertType != c.CertType || token.Verifier != c.Verifier {
			return false
		}
		return fieldsSubset(c.Fields, token.CertFields)
	case types.PermissionSpending:
		return true
	}
	return false
}

// fieldsSubset reports whether every requested field is in granted.
func fieldsSubset(requested, granted []string) bool {
	return mapset.NewSet(requested...).IsSubset(mapset.NewSet(granted...))
}

// splitOutpoint parses "txid.index".
func splitOutpoint(outpoint string) (string, uint32, error) {
	dot := strings.LastIndexByte(outpoint, '.')
	if dot <= 0 {
		return "", 0, fmt.Errorf("malformed outpoint %q", outpoint)
	}
	index, err := strconv.ParseUint(outpoint[dot+1:], 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("malformed outpoint %q: %w", outpoint, err)
	}
	return outpoint[:dot], uint32(index), nil
}
