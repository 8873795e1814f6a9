package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"voble/internal/chain"
)

var ErrTransactionFailed = errors.New("transaction_failed")

const (
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

func (c *Client) LatestBlockhash(ctx context.Context) (chain.Address, error) {
	var out struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := c.Call(ctx, "getLatestBlockhash", []any{map[string]any{"commitment": CommitmentConfirmed}}, &out); err != nil {
		return chain.Address{}, err
	}
	return chain.ParseAddress(out.Value.Blockhash)
}

// AccountInfo returns the account data, or ok=false when the account does
// not exist.
func (c *Client) AccountInfo(ctx context.Context, addr chain.Address) (data []byte, ok bool, err error) {
	var out struct {
		Value *struct {
			Data []string `json:"data"`
		} `json:"value"`
	}
	params := []any{addr.String(), map[string]any{"encoding": "base64", "commitment": CommitmentConfirmed}}
	if err := c.Call(ctx, "getAccountInfo", params, &out); err != nil {
		return nil, false, err
	}
	if out.Value == nil {
		return nil, false, nil
	}
	if len(out.Value.Data) == 0 {
		return []byte{}, true, nil
	}
	raw, err := base64.StdEncoding.DecodeString(out.Value.Data[0])
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", chain.ErrDecode, err)
	}
	return raw, true, nil
}

type SimulationResult struct {
	Err  json.RawMessage `json:"err"`
	Logs []string        `json:"logs"`
}

func (s SimulationResult) Failed() bool {
	return len(s.Err) > 0 && string(s.Err) != "null"
}

func (c *Client) Simulate(ctx context.Context, tx *chain.Transaction) (SimulationResult, error) {
	encoded, err := tx.Base64()
	if err != nil {
		return SimulationResult{}, err
	}
	var out struct {
		Value SimulationResult `json:"value"`
	}
	params := []any{encoded, map[string]any{"encoding": "base64", "commitment": CommitmentConfirmed}}
	if err := c.Call(ctx, "simulateTransaction", params, &out); err != nil {
		return SimulationResult{}, err
	}
	return out.Value, nil
}

// Send submits a signed transaction without waiting for confirmation.
func (c *Client) Send(ctx context.Context, tx *chain.Transaction, commitment string) (string, error) {
	encoded, err := tx.Base64()
	if err != nil {
		return "", err
	}
	if commitment == "" {
		commitment = CommitmentConfirmed
	}
	var sig string
	params := []any{encoded, map[string]any{"encoding": "base64", "preflightCommitment": commitment}}
	if err := c.Call(ctx, "sendTransaction", params, &sig); err != nil {
		return "", err
	}
	if sig == "" {
		sig = tx.Signature()
	}
	return sig, nil
}

// Confirm polls the signature status until it reaches confirmed commitment,
// fails, or attempts run out.
func (c *Client) Confirm(ctx context.Context, signature string, attempts int, interval time.Duration) error {
	if attempts <= 0 {
		attempts = 30
	}
	for i := 0; i < attempts; i++ {
		var out struct {
			Value []*struct {
				Err                json.RawMessage `json:"err"`
				ConfirmationStatus string          `json:"confirmationStatus"`
			} `json:"value"`
		}
		params := []any{[]string{signature}, map[string]any{"searchTransactionHistory": false}}
		if err := c.Call(ctx, "getSignatureStatuses", params, &out); err != nil {
			return err
		}
		if len(out.Value) > 0 && out.Value[0] != nil {
			st := out.Value[0]
			if len(st.Err) > 0 && string(st.Err) != "null" {
				return fmt.Errorf("%w: %s", ErrTransactionFailed, st.Err)
			}
			if st.ConfirmationStatus == CommitmentConfirmed || st.ConfirmationStatus == CommitmentFinalized {
				return nil
			}
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("%w: %s not confirmed", ErrTransactionFailed, signature)
}
