package permission

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/opencode-ai/walletperm/internal/wallet"
)

var fakeCipherPrefix = []byte("enc:")

// fakeWallet is an in-memory wallet.Interface. Encryption prefixes the
// plaintext so tests can corrupt fields deliberately.
type fakeWallet struct {
	mu      sync.Mutex
	outputs map[string][]wallet.Output // by basket, creation order
	actions []wallet.Action
	created []wallet.CreateActionArgs
	seq     int

	listOutputsCalls int
	createErr        error
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{outputs: make(map[string][]wallet.Output)}
}

func (w *fakeWallet) ListOutputs(_ context.Context, args wallet.ListOutputsArgs, _ string) (*wallet.ListOutputsResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listOutputsCalls++

	res := &wallet.ListOutputsResult{}
	for _, o := range w.outputs[args.Basket] {
		if hasTags(o.Tags, args.Tags, args.TagQueryMode) {
			res.Outputs = append(res.Outputs, o)
		}
	}
	res.TotalOutputs = len(res.Outputs)
	return res, nil
}

func (w *fakeWallet) ListActions(_ context.Context, args wallet.ListActionsArgs, _ string) (*wallet.ListActionsResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	res := &wallet.ListActionsResult{}
	for _, a := range w.actions {
		if hasTags(a.Labels, args.Labels, args.LabelQueryMode) {
			res.Actions = append(res.Actions, a)
		}
	}
	res.TotalActions = len(res.Actions)
	return res, nil
}

func (w *fakeWallet) CreateAction(_ context.Context, args wallet.CreateActionArgs, _ string) (*wallet.CreateActionResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.createErr != nil {
		return nil, w.createErr
	}

	for _, in := range args.Inputs {
		if !w.removeOutpoint(in.Outpoint) {
			return nil, fmt.Errorf("%w: %s", wallet.ErrUnknownOutpoint, in.Outpoint)
		}
	}

	w.seq++
	txid := fmt.Sprintf("%064x", w.seq)
	for i, out := range args.Outputs {
		w.outputs[out.Basket] = append(w.outputs[out.Basket], wallet.Output{
			Outpoint:           fmt.Sprintf("%s.%d", txid, i),
			Satoshis:           out.Satoshis,
			LockingScript:      out.LockingScript,
			Tags:               out.Tags,
			CustomInstructions: out.CustomInstructions,
		})
	}
	w.created = append(w.created, args)
	return &wallet.CreateActionResult{Txid: txid}, nil
}

func (w *fakeWallet) Encrypt(_ context.Context, args wallet.EncryptArgs, _ string) (*wallet.EncryptResult, error) {
	return &wallet.EncryptResult{Ciphertext: append(slices.Clone(fakeCipherPrefix), args.Plaintext...)}, nil
}

func (w *fakeWallet) Decrypt(_ context.Context, args wallet.DecryptArgs, _ string) (*wallet.DecryptResult, error) {
	if !bytes.HasPrefix(args.Ciphertext, fakeCipherPrefix) {
		return nil, fmt.Errorf("decryption failed")
	}
	return &wallet.DecryptResult{Plaintext: bytes.TrimPrefix(args.Ciphertext, fakeCipherPrefix)}, nil
}

func (w *fakeWallet) removeOutpoint(outpoint string) bool {
	for basket, outs := range w.outputs {
		for i, o := range outs {
			if o.Outpoint == outpoint {
				w.outputs[basket] = slices.Delete(slices.Clone(outs), i, i+1)
				return true
			}
		}
	}
	return false
}

// addSpend records an action attributed to originator in the month of at.
func (w *fakeWallet) addSpend(originator string, at time.Time, satoshis int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.actions = append(w.actions, wallet.Action{
		Txid:     fmt.Sprintf("spend-%d", len(w.actions)),
		Satoshis: satoshis,
		Labels:   SpendingLabels(originator, at),
	})
}

func (w *fakeWallet) basket(name string) []wallet.Output {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.outputs[name])
}

func (w *fakeWallet) createdActions() []wallet.CreateActionArgs {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.created)
}

func (w *fakeWallet) outputLookups() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.listOutputsCalls
}

func hasTags(have, want []string, mode wallet.QueryMode) bool {
	if len(want) == 0 {
		return true
	}
	for _, t := range want {
		found := slices.Contains(have, t)
		if mode == wallet.QueryModeAny && found {
			return true
		}
		if mode != wallet.QueryModeAny && !found {
			return false
		}
	}
	return mode != wallet.QueryModeAny
}

// fakeClock is a settable Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
