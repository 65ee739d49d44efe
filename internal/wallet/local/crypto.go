package local

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/opencode-ai/walletperm/internal/wallet"
)

// ErrDecrypt is returned when a ciphertext fails authentication under the
// derived key.
var ErrDecrypt = errors.New("decryption failed")

// Encrypt seals plaintext with XChaCha20-Poly1305 under a key derived from
// the root key, the protocol, the key ID and the counterparty. The random
// nonce is prepended to the ciphertext.
func (w *Wallet) Encrypt(ctx context.Context, args wallet.EncryptArgs, originator string) (*wallet.EncryptResult, error) {
	aead, err := w.aeadFor(args.ProtocolID, args.KeyID, args.Counterparty)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(args.Plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return &wallet.EncryptResult{Ciphertext: aead.Seal(nonce, nonce, args.Plaintext, nil)}, nil
}

// Decrypt opens a ciphertext produced by Encrypt with the same parameters.
func (w *Wallet) Decrypt(ctx context.Context, args wallet.DecryptArgs, originator string) (*wallet.DecryptResult, error) {
	aead, err := w.aeadFor(args.ProtocolID, args.KeyID, args.Counterparty)
	if err != nil {
		return nil, err
	}
	if len(args.Ciphertext) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrDecrypt
	}
	nonce, sealed := args.Ciphertext[:aead.NonceSize()], args.Ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return &wallet.DecryptResult{Plaintext: plaintext}, nil
}

func (w *Wallet) aeadFor(protocolID [2]string, keyID, counterparty string) (cipher.AEAD, error) {
	if protocolID[1] == "" || keyID == "" || counterparty == "" {
		return nil, fmt.Errorf("protocol, key ID and counterparty are required")
	}
	info := strings.Join([]string{protocolID[0], protocolID[1], keyID, counterparty}, "|")
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, w.rootKey, nil, []byte(info)), key); err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(key)
}
