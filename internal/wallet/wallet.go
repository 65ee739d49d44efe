// Package wallet defines the capability the permissions manager consumes from
// the underlying wallet: output and action listing, action creation, and
// symmetric encryption scoped to the wallet's own bookkeeping key.
//
// Every method takes the originator the call is made on behalf of. The
// permissions manager always passes its admin originator.
package wallet

import (
	"context"
	"errors"
	"time"
)

// QueryMode selects how multiple tags or labels combine.
type QueryMode string

const (
	QueryModeAll QueryMode = "all"
	QueryModeAny QueryMode = "any"
)

// ErrUnknownOutpoint is returned when an action input does not reference a
// spendable output.
var ErrUnknownOutpoint = errors.New("unknown or spent outpoint")

// SpendingLabels returns the labels that attribute an action by originator
// to the calendar month (UTC) containing t.
func SpendingLabels(originator string, t time.Time) []string {
	return []string{
		"admin originator " + originator,
		"admin month " + t.UTC().Format("2006-01"),
	}
}

// Interface is the underlying wallet capability.
type Interface interface {
	ListOutputs(ctx context.Context, args ListOutputsArgs, originator string) (*ListOutputsResult, error)
	ListActions(ctx context.Context, args ListActionsArgs, originator string) (*ListActionsResult, error)
	CreateAction(ctx context.Context, args CreateActionArgs, originator string) (*CreateActionResult, error)
	Encrypt(ctx context.Context, args EncryptArgs, originator string) (*EncryptResult, error)
	Decrypt(ctx context.Context, args DecryptArgs, originator string) (*DecryptResult, error)
}

// ListOutputsArgs selects outputs from one basket.
type ListOutputsArgs struct {
	Basket       string    `json:"basket"`
	Tags         []string  `json:"tags,omitempty"`
	TagQueryMode QueryMode `json:"tagQueryMode,omitempty"`
	Limit        int       `json:"limit,omitempty"`
}

// Output is one spendable output.
type Output struct {
	Outpoint           string   `json:"outpoint"` // "txid.index"
	Satoshis           uint64   `json:"satoshis"`
	LockingScript      string   `json:"lockingScript,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	CustomInstructions string   `json:"customInstructions,omitempty"`
}

type ListOutputsResult struct {
	TotalOutputs int      `json:"totalOutputs"`
	Outputs      []Output `json:"outputs"`
}

// ListActionsArgs selects actions by label.
type ListActionsArgs struct {
	Labels         []string  `json:"labels"`
	LabelQueryMode QueryMode `json:"labelQueryMode,omitempty"`
	Limit          int       `json:"limit,omitempty"`
}

// Action is a recorded wallet action. Satoshis is the net amount the action
// spent from the wallet.
type Action struct {
	Txid        string   `json:"txid"`
	Satoshis    int64    `json:"satoshis"`
	Description string   `json:"description"`
	Labels      []string `json:"labels,omitempty"`
}

type ListActionsResult struct {
	TotalActions int      `json:"totalActions"`
	Actions      []Action `json:"actions"`
}

// CreateActionInput spends an existing output.
type CreateActionInput struct {
	Outpoint              string `json:"outpoint"`
	UnlockingScriptLength int    `json:"unlockingScriptLength"`
	InputDescription      string `json:"inputDescription"`
}

// CreateActionOutput creates a new output.
type CreateActionOutput struct {
	LockingScript      string   `json:"lockingScript"`
	Satoshis           uint64   `json:"satoshis"`
	OutputDescription  string   `json:"outputDescription"`
	Basket             string   `json:"basket,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	CustomInstructions string   `json:"customInstructions,omitempty"`
}

type CreateActionArgs struct {
	Description string               `json:"description"`
	Inputs      []CreateActionInput  `json:"inputs,omitempty"`
	Outputs     []CreateActionOutput `json:"outputs,omitempty"`
	Labels      []string             `json:"labels,omitempty"`
}

type CreateActionResult struct {
	Txid string `json:"txid"`
}

// EncryptArgs encrypts plaintext under the key identified by ProtocolID,
// KeyID and Counterparty.
type EncryptArgs struct {
	ProtocolID   [2]string `json:"protocolID"`
	KeyID        string    `json:"keyID"`
	Counterparty string    `json:"counterparty"`
	Plaintext    []byte    `json:"plaintext"`
}

type EncryptResult struct {
	Ciphertext []byte `json:"ciphertext"`
}

// DecryptArgs reverses EncryptArgs.
type DecryptArgs struct {
	ProtocolID   [2]string `json:"protocolID"`
	KeyID        string    `json:"keyID"`
	Counterparty string    `json:"counterparty"`
	Ciphertext   []byte    `json:"ciphertext"`
}

type DecryptResult struct {
	Plaintext []byte `json:"plaintext"`
}
