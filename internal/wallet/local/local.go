// Package local implements wallet.Interface over the file-based storage
// package. It keeps outputs, actions and the root key on disk and performs
// field encryption with keys derived from the root key.
//
// It does not build or sign transactions: an action is recorded, its inputs
// are marked spent and its outputs become spendable. It exists so the
// permissions manager can run end to end without a remote wallet.
package local

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/walletperm/internal/logging"
	"github.com/opencode-ai/walletperm/internal/storage"
	"github.com/opencode-ai/walletperm/internal/wallet"
)

var _ wallet.Interface = (*Wallet)(nil)

const rootKeySize = 32

// storedOutput is the on-disk form of a spendable output. Records are keyed
// by a ULID so that a directory scan yields creation order.
type storedOutput struct {
	wallet.Output
	Basket string `json:"basket"`
}

// outpointRef locates the record for an outpoint.
type outpointRef struct {
	Basket string `json:"basket"`
	Key    string `json:"key"`
}

type rootKeyRecord struct {
	Key string `json:"key"`
}

// Wallet is a file-backed wallet.Interface.
type Wallet struct {
	store   *storage.Storage
	rootKey []byte
	admin   string
	now     func() time.Time
	log     zerolog.Logger

	// mu serializes CreateAction so inputs are checked and spent atomically.
	mu sync.Mutex
}

// Option configures a Wallet.
type Option func(*Wallet)

// WithAdminOriginator names the originator whose actions are not attributed
// as spends. Once it is set, every other originator's actions get
// wallet.SpendingLabels.
func WithAdminOriginator(originator string) Option {
	return func(w *Wallet) { w.admin = originator }
}

// New opens a wallet on store. rootKeyHex, when non-empty, must be 32
// hex-encoded bytes; otherwise a persisted key is loaded or generated.
func New(ctx context.Context, store *storage.Storage, rootKeyHex string, opts ...Option) (*Wallet, error) {
	w := &Wallet{
		store: store,
		now:   time.Now,
		log:   logging.Component("wallet"),
	}
	for _, opt := range opts {
		opt(w)
	}

	if rootKeyHex != "" {
		key, err := hex.DecodeString(rootKeyHex)
		if err != nil || len(key) != rootKeySize {
			return nil, fmt.Errorf("root key must be %d hex-encoded bytes", rootKeySize)
		}
		w.rootKey = key
		return w, nil
	}

	var rec rootKeyRecord
	err := store.Update(ctx, []string{"keys", "root"}, &rec, func(exists bool) error {
		if exists && rec.Key != "" {
			return nil
		}
		key := make([]byte, rootKeySize)
		if _, err := rand.Read(key); err != nil {
			return err
		}
		rec.Key = hex.EncodeToString(key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load root key: %w", err)
	}
	key, err := hex.DecodeString(rec.Key)
	if err != nil || len(key) != rootKeySize {
		return nil, errors.New("stored root key is corrupt")
	}
	w.rootKey = key
	return w, nil
}

func basketDir(basket string) string {
	return url.PathEscape(basket)
}

func outpointKey(outpoint string) string {
	return strings.ReplaceAll(outpoint, ".", "_")
}

// ListOutputs returns the basket's spendable outputs matching the tag filter,
// in creation order.
func (w *Wallet) ListOutputs(ctx context.Context, args wallet.ListOutputsArgs, originator string) (*wallet.ListOutputsResult, error) {
	if args.Basket == "" {
		return nil, errors.New("basket is required")
	}

	result := &wallet.ListOutputsResult{Outputs: []wallet.Output{}}
	err := w.store.Scan(ctx, []string{"outputs", basketDir(args.Basket)}, func(key string, data json.RawMessage) error {
		var out storedOutput
		if err := json.Unmarshal(data, &out); err != nil {
			w.log.Warn().Err(err).Str("key", key).Msg("skipping unreadable output record")
			return nil
		}
		if !matchAll(args.TagQueryMode, out.Tags, args.Tags) {
			return nil
		}
		result.TotalOutputs++
		if args.Limit <= 0 || len(result.Outputs) < args.Limit {
			result.Outputs = append(result.Outputs, out.Output)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListActions returns recorded actions matching the label filter.
func (w *Wallet) ListActions(ctx context.Context, args wallet.ListActionsArgs, originator string) (*wallet.ListActionsResult, error) {
	result := &wallet.ListActionsResult{Actions: []wallet.Action{}}
	err := w.store.Scan(ctx, []string{"actions"}, func(key string, data json.RawMessage) error {
		var action wallet.Action
		if err := json.Unmarshal(data, &action); err != nil {
			return nil
		}
		if !matchAll(args.LabelQueryMode, action.Labels, args.Labels) {
			return nil
		}
		result.TotalActions++
		if args.Limit <= 0 || len(result.Actions) < args.Limit {
			result.Actions = append(result.Actions, action)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateAction spends the inputs and records the outputs. Every input must
// reference an unspent output of this wallet.
func (w *Wallet) CreateAction(ctx context.Context, args wallet.CreateActionArgs, originator string) (*wallet.CreateActionResult, error) {
	if len(args.Inputs) == 0 && len(args.Outputs) == 0 {
		return nil, errors.New("action must have at least one input or output")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	refs := make([]outpointRef, len(args.Inputs))
	for i, in := range args.Inputs {
		if err := w.store.Get(ctx, []string{"outpoints", outpointKey(in.Outpoint)}, &refs[i]); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", wallet.ErrUnknownOutpoint, in.Outpoint)
			}
			return nil, err
		}
	}

	txid, err := newTxid(args)
	if err != nil {
		return nil, err
	}

	for i, in := range args.Inputs {
		if err := w.store.Delete(ctx, []string{"outputs", basketDir(refs[i].Basket), refs[i].Key}); err != nil {
			return nil, err
		}
		if err := w.store.Delete(ctx, []string{"outpoints", outpointKey(in.Outpoint)}); err != nil {
			return nil, err
		}
	}

	var spent int64
	for i, out := range args.Outputs {
		if out.Basket == "" {
			spent += int64(out.Satoshis)
			continue
		}
		outpoint := fmt.Sprintf("%s.%d", txid, i)
		key := ulid.Make().String()
		rec := storedOutput{
			Output: wallet.Output{
				Outpoint:           outpoint,
				Satoshis:           out.Satoshis,
				LockingScript:      out.LockingScript,
				Tags:               out.Tags,
				CustomInstructions: out.CustomInstructions,
			},
			Basket: out.Basket,
		}
		if err := w.store.Put(ctx, []string{"outputs", basketDir(out.Basket), key}, rec); err != nil {
			return nil, err
		}
		ref := outpointRef{Basket: out.Basket, Key: key}
		if err := w.store.Put(ctx, []string{"outpoints", outpointKey(outpoint)}, ref); err != nil {
			return nil, err
		}
	}

	labels := args.Labels
	if w.admin != "" && originator != "" && originator != w.admin {
		set := mapset.NewThreadUnsafeSet(labels...)
		set.Append(wallet.SpendingLabels(originator, w.now())...)
		labels = set.ToSlice()
	}
	action := wallet.Action{
		Txid:        txid,
		Satoshis:    spent,
		Description: args.Description,
		Labels:      labels,
	}
	if err := w.store.Put(ctx, []string{"actions", ulid.Make().String()}, action); err != nil {
		return nil, err
	}

	w.log.Debug().
		Str("txid", txid).
		Str("originator", originator).
		Int("inputs", len(args.Inputs)).
		Int("outputs", len(args.Outputs)).
		Msg("action recorded")

	return &wallet.CreateActionResult{Txid: txid}, nil
}

func newTxid(args wallet.CreateActionArgs) (string, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	id := ulid.Make()
	h := sha256.New()
	h.Write(id[:])
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// matchAll reports whether have satisfies want under mode. An empty want
// always matches.
func matchAll(mode wallet.QueryMode, have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := mapset.NewThreadUnsafeSet(have...)
	if mode == wallet.QueryModeAny {
		for _, t := range want {
			if set.Contains(t) {
				return true
			}
		}
		return false
	}
	return set.Contains(want...)
}
