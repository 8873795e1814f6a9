// Package ticket buys a paid attempt on the base ledger, initialises the
// matching TEE session, and replays that initialisation when a previous
// purchase left it unapplied.
package ticket

import (
	"context"
	"fmt"
	"time"

	"voble/internal/auth"
	"voble/internal/chain"
	"voble/internal/clock"
	"voble/internal/config"
	"voble/internal/keys"
	"voble/internal/period"
	"voble/internal/rpc"
	"voble/internal/wallet"
)

type TEE interface {
	LatestBlockhash(ctx context.Context) (chain.Address, error)
	Simulate(ctx context.Context, tx *chain.Transaction) (rpc.SimulationResult, error)
	Send(ctx context.Context, tx *chain.Transaction, commitment string) (string, error)
}

type Ledger interface {
	LatestBlockhash(ctx context.Context) (chain.Address, error)
}

type SessionKeys interface {
	SessionKey(ctx context.Context, player chain.Address) (*keys.SessionKey, error)
}

type TokenSource interface {
	Token(ctx context.Context, signer auth.MessageSigner) (string, error)
}

type Preconditions interface {
	CheckAggregationRecords(ctx context.Context, p period.Periods) error
}

// Deps are the collaborators shared by Executor and Agent. TEE returns a
// client bound to an auth token.
type Deps struct {
	Wallet  wallet.Wallet
	Keys    SessionKeys
	Tokens  TokenSource
	Ledger  Ledger
	TEE     func(token string) TEE
	Records Preconditions
	Periods period.Provider
	Program chain.Program
	Clock   clock.Clock
}

// TEEDialer adapts an rpc client to Deps.TEE.
func TEEDialer(c *rpc.Client) func(string) TEE {
	return func(token string) TEE {
		return c.WithToken(token)
	}
}

type Options struct {
	Mint            chain.Address
	TicketPrice     uint64
	ResetRetries    int
	ResetRetryDelay time.Duration
	RecoveryRetries int
	RecoveryDelay   time.Duration
}

func OptionsFromConfig(cfg config.ChainConfig) (Options, error) {
	opts := Options{
		Mint:            chain.DefaultPaymentMint,
		TicketPrice:     cfg.TicketPrice,
		ResetRetries:    cfg.ResetRetries,
		ResetRetryDelay: cfg.ResetRetryDelay(),
		RecoveryRetries: cfg.RecoveryRetries,
		RecoveryDelay:   cfg.RecoveryDelay(),
	}
	if cfg.PaymentMint != "" {
		mint, err := chain.ParseAddress(cfg.PaymentMint)
		if err != nil {
			return Options{}, fmt.Errorf("PAYMENT_MINT: %w", err)
		}
		opts.Mint = mint
	}
	return opts, nil
}

func (o Options) withDefaults() Options {
	if o.Mint.IsZero() {
		o.Mint = chain.DefaultPaymentMint
	}
	if o.ResetRetries <= 0 {
		o.ResetRetries = 3
	}
	if o.RecoveryRetries <= 0 {
		o.RecoveryRetries = 5
	}
	return o
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Periods == nil {
		d.Periods = period.ClockProvider{}
	}
	return d
}

func resetMessage(program chain.Program, key *keys.SessionKey, player chain.Address, periodID string, blockhash chain.Address) chain.Message {
	payer := key.PublicKey()
	return chain.Message{
		FeePayer:        payer,
		RecentBlockhash: blockhash,
		Instructions:    []chain.Instruction{program.ResetSessionInstruction(payer, player, periodID)},
	}
}

// sendReset signs the reset with a fresh blockhash and submits it without
// waiting for confirmation.
func sendReset(ctx context.Context, tee TEE, program chain.Program, key *keys.SessionKey, player chain.Address, periodID string) (string, error) {
	blockhash, err := tee.LatestBlockhash(ctx)
	if err != nil {
		return "", err
	}
	tx, err := chain.SignTransaction(resetMessage(program, key, player, periodID, blockhash), key)
	if err != nil {
		return "", err
	}
	return tee.Send(ctx, tx, rpc.CommitmentConfirmed)
}
