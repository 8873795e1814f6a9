// Package session reads the player's live session from the TEE. The base
// ledger copy is never consulted: while a game is delegated it is stale.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"voble/internal/auth"
	"voble/internal/chain"
	"voble/internal/rpc"

	"github.com/rs/zerolog/log"
)

var (
	ErrNoWallet       = errors.New("no_wallet")
	ErrPeriodRequired = errors.New("period_required")
	ErrSessionDecode  = errors.New("session account exists on TEE but cannot be decoded")
)

const maxNetworkFailures = 2

// Record is the TEE session projected for the coordinator. IsCurrentPeriod
// is recomputed on every fetch.
type Record struct {
	Player              string        `json:"player"`
	PeriodIDOnRecord    string        `json:"periodId"`
	IsCurrentPeriod     bool          `json:"isCurrentPeriod"`
	Completed           bool          `json:"completed"`
	GuessesUsed         int           `json:"guessesUsed"`
	IsSolved            bool          `json:"isSolved"`
	Score               uint32        `json:"score"`
	TimeMs              uint32        `json:"timeMs"`
	Guesses             []chain.Guess `json:"guesses"`
	TargetWord          string        `json:"targetWord,omitempty"`
	VRFRequestTimestamp int64         `json:"vrfRequestTimestamp"`
}

// Playable reports whether the record allows entering the playing phase.
func (r *Record) Playable() bool {
	return r != nil && r.IsCurrentPeriod && !r.Completed
}

type AccountReader interface {
	AccountInfo(ctx context.Context, addr chain.Address) ([]byte, bool, error)
}

type TokenSource interface {
	Token(ctx context.Context, signer auth.MessageSigner) (string, error)
	Clear(ctx context.Context, player string)
}

// Reader fetches one wallet's session. It tracks consecutive network
// failures and drops the auth token after the second so the next fetch
// re-authenticates.
type Reader struct {
	signer  auth.MessageSigner
	tokens  TokenSource
	program chain.Program
	open    func(token string) AccountReader

	mu       sync.Mutex
	failures int
}

func NewReader(tee *rpc.Client, tokens TokenSource, signer auth.MessageSigner, program chain.Program) *Reader {
	return &Reader{
		signer:  signer,
		tokens:  tokens,
		program: program,
		open: func(token string) AccountReader {
			return tee.WithToken(token)
		},
	}
}

// Fetch returns nil when no session exists or the TEE could not be reached.
func (r *Reader) Fetch(ctx context.Context, periodID string) (*Record, error) {
	if r.signer == nil {
		return nil, ErrNoWallet
	}
	want := strings.TrimSpace(periodID)
	if want == "" {
		return nil, ErrPeriodRequired
	}
	player := r.signer.Address()

	token, err := r.tokens.Token(ctx, r.signer)
	if err != nil {
		log.Warn().Err(err).Str("player", player.String()).Msg("no TEE token; session unavailable")
		return nil, nil
	}

	data, ok, err := r.open(token).AccountInfo(ctx, r.program.Session(player))
	if err != nil {
		if errors.Is(err, chain.ErrDecode) {
			return nil, fmt.Errorf("%w: %v", ErrSessionDecode, err)
		}
		if rpc.IsNetworkError(err) {
			r.networkFailure(ctx, player.String(), err)
		} else {
			log.Warn().Err(err).Str("player", player.String()).Msg("session fetch failed")
		}
		return nil, nil
	}
	r.resetFailures()
	if !ok {
		return nil, nil
	}

	acc, err := chain.DecodeSession(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionDecode, err)
	}
	rec := &Record{
		Player:              acc.Player.String(),
		PeriodIDOnRecord:    acc.PeriodID,
		IsCurrentPeriod:     acc.PeriodID == want,
		Completed:           acc.Completed,
		GuessesUsed:         int(acc.GuessesUsed),
		IsSolved:            acc.IsSolved,
		Score:               acc.Score,
		TimeMs:              acc.TimeMs,
		Guesses:             acc.Guesses,
		VRFRequestTimestamp: acc.VRFRequestTimestamp,
	}
	if acc.Completed {
		rec.TargetWord = acc.RevealedTargetWord
	}
	if rec.PeriodIDOnRecord != "" && !rec.IsCurrentPeriod {
		log.Debug().Str("player", rec.Player).Str("on_record", rec.PeriodIDOnRecord).Str("requested", want).Msg("session period mismatch")
	}
	return rec, nil
}

func (r *Reader) networkFailure(ctx context.Context, player string, err error) {
	r.mu.Lock()
	r.failures++
	n := r.failures
	if n >= maxNetworkFailures {
		r.failures = 0
	}
	r.mu.Unlock()

	metricFetchFailures.Inc()
	log.Warn().Err(err).Str("player", player).Int("consecutive", n).Msg("TEE session fetch network failure")
	if n >= maxNetworkFailures {
		log.Warn().Str("player", player).Msg("clearing stale TEE token")
		r.tokens.Clear(ctx, player)
	}
}

func (r *Reader) resetFailures() {
	r.mu.Lock()
	r.failures = 0
	r.mu.Unlock()
}
