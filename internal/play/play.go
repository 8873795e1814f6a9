// Package play runs the in-game flows that follow a successful start:
// submitting guesses to the TEE and committing the finished game to the
// leaderboards.
package play

import (
	"context"
	"errors"
	"strings"
	"time"

	"voble/internal/chain"
	"voble/internal/clock"
	"voble/internal/config"
	"voble/internal/game"
	"voble/internal/period"
	"voble/internal/rpc"
	"voble/internal/ticket"
	"voble/internal/wallet"
)

const (
	WordLength = 6
	MaxGuesses = 7
)

var (
	ErrInvalidGuess   = errors.New("Guess must be 6 letters")
	ErrNotPlaying     = errors.New("No active game session found. Please buy a ticket first.")
	ErrPeriodMismatch = errors.New("Session period does not match. Please refresh and try again.")
)

// Coordinator is the slice of *game.Coordinator the flows drive.
type Coordinator interface {
	PeriodID() string
	State() game.State
	SetPhase(p game.Phase) error
	SetError(msg string)
	Fail(msg string)
}

type TEE interface {
	ticket.TEE
	Confirm(ctx context.Context, signature string, attempts int, interval time.Duration) error
}

// TEEDialer adapts an rpc client to Deps.TEE.
func TEEDialer(c *rpc.Client) func(string) TEE {
	return func(token string) TEE {
		return c.WithToken(token)
	}
}

type Deps struct {
	Wallet   wallet.Wallet
	Keys     ticket.SessionKeys
	Tokens   ticket.TokenSource
	TEE      func(token string) TEE
	Sessions game.Sessions
	Periods  period.Provider
	Program  chain.Program
	Clock    clock.Clock
}

type Options struct {
	ConfirmAttempts int
	ConfirmInterval time.Duration
	SettleDelay     time.Duration
}

func OptionsFromConfig(cfg config.ChainConfig) Options {
	return Options{
		ConfirmAttempts: cfg.ConfirmAttempts,
		ConfirmInterval: cfg.ConfirmInterval(),
		SettleDelay:     cfg.CompleteSettle(),
	}
}

type Runner struct {
	deps Deps
	opts Options
}

func NewRunner(deps Deps, opts Options) *Runner {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Periods == nil {
		deps.Periods = period.ClockProvider{}
	}
	if opts.ConfirmAttempts <= 0 {
		opts.ConfirmAttempts = 30
	}
	return &Runner{deps: deps, opts: opts}
}

// NormalizeGuess upper-cases guess and checks it is WordLength ASCII
// letters.
func NormalizeGuess(guess string) (string, error) {
	g := strings.ToUpper(strings.TrimSpace(guess))
	if len(g) != WordLength {
		return "", ErrInvalidGuess
	}
	for i := 0; i < len(g); i++ {
		if g[i] < 'A' || g[i] > 'Z' {
			return "", ErrInvalidGuess
		}
	}
	return g, nil
}

// tee authenticates the wallet and returns the session key with a TEE
// client bound to the fresh token.
func (r *Runner) tee(ctx context.Context) (chain.Address, TEE, chain.Signer, error) {
	if r.deps.Wallet == nil {
		return chain.Address{}, nil, nil, ticket.ErrNoWallet
	}
	player := r.deps.Wallet.Address()
	if player.IsZero() {
		return chain.Address{}, nil, nil, ticket.ErrWalletNotReady
	}
	key, err := r.deps.Keys.SessionKey(ctx, player)
	if err != nil || key == nil {
		return player, nil, nil, ticket.ErrNoSessionKey
	}
	token, err := r.deps.Tokens.Token(ctx, r.deps.Wallet)
	if err != nil || token == "" {
		return player, nil, nil, ticket.ErrTEEAuth
	}
	return player, r.deps.TEE(token), key, nil
}

// signed builds a single-instruction transaction paid by key.
func signed(ctx context.Context, tee TEE, key chain.Signer, ix chain.Instruction) (*chain.Transaction, error) {
	blockhash, err := tee.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	return chain.SignTransaction(chain.Message{
		FeePayer:        key.PublicKey(),
		RecentBlockhash: blockhash,
		Instructions:    []chain.Instruction{ix},
	}, key)
}
