// Package wallet is the player's signing capability: it signs and submits
// ledger transactions and signs auth challenges.
package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"voble/internal/chain"
)

var (
	ErrUserRejected = errors.New("User rejected the request")
	ErrBadKeyfile   = errors.New("invalid_keyfile")
)

type Wallet interface {
	Address() chain.Address
	SignAndSend(ctx context.Context, msg chain.Message) (string, error)
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
}

type Sender interface {
	Send(ctx context.Context, tx *chain.Transaction, commitment string) (string, error)
	Confirm(ctx context.Context, signature string, attempts int, interval time.Duration) error
}

// Keyfile is a local wallet backed by an ed25519 keypair file in the
// 64-integer JSON array format used by ledger CLIs.
type Keyfile struct {
	priv   ed25519.PrivateKey
	sender Sender

	ConfirmAttempts int
	ConfirmInterval time.Duration
}

func LoadKeyfile(path string, sender Sender) (*Keyfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKeyfile, err)
	}
	if len(ints) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrBadKeyfile, ed25519.PrivateKeySize, len(ints))
	}
	b := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: byte %d out of range", ErrBadKeyfile, i)
		}
		b[i] = byte(v)
	}
	return New(ed25519.NewKeyFromSeed(b[:ed25519.SeedSize]), sender), nil
}

func New(priv ed25519.PrivateKey, sender Sender) *Keyfile {
	return &Keyfile{priv: priv, sender: sender, ConfirmAttempts: 30, ConfirmInterval: time.Second}
}

func (w *Keyfile) Address() chain.Address {
	var a chain.Address
	copy(a[:], w.priv[ed25519.SeedSize:])
	return a
}

func (w *Keyfile) PublicKey() chain.Address { return w.Address() }

func (w *Keyfile) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(w.priv, msg), nil
}

func (w *Keyfile) SignMessage(_ context.Context, msg []byte) ([]byte, error) {
	return w.Sign(msg)
}

// SignAndSend signs msg as fee payer, submits it and waits for confirmation.
func (w *Keyfile) SignAndSend(ctx context.Context, msg chain.Message) (string, error) {
	if w.sender == nil {
		return "", errors.New("wallet has no ledger sender")
	}
	tx, err := chain.SignTransaction(msg, w)
	if err != nil {
		return "", err
	}
	sig, err := w.sender.Send(ctx, tx, "confirmed")
	if err != nil {
		return "", err
	}
	if err := w.sender.Confirm(ctx, sig, w.ConfirmAttempts, w.ConfirmInterval); err != nil {
		return sig, err
	}
	return sig, nil
}
