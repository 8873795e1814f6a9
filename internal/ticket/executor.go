package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"voble/internal/chain"
	"voble/internal/keys"
	"voble/internal/ledger"
	"voble/internal/rpc"
	"voble/internal/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Result reports a purchase. TicketPurchased and ResetApplied track how far
// the pipeline got, for progress display only.
type Result struct {
	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
	SessionID       string `json:"sessionId,omitempty"`
	Signature       string `json:"signature,omitempty"`
	TicketPurchased bool   `json:"ticketPurchased"`
	ResetApplied    bool   `json:"resetApplied"`
}

type Executor struct {
	deps Deps
	opts Options
}

func NewExecutor(deps Deps, opts Options) *Executor {
	return &Executor{deps: deps.withDefaults(), opts: opts.withDefaults()}
}

// BuyTicket pays for periodID on the ledger and initialises the TEE session.
// Failures are reported in Result.Error, never returned.
func (e *Executor) BuyTicket(ctx context.Context, periodID string) Result {
	var res Result
	attempt := store.NewID("buy")
	err := e.buy(ctx, strings.TrimSpace(periodID), attempt, &res)
	if err != nil {
		res.Success = false
		res.Error = purchaseErrorMessage(err, e.opts.TicketPrice)
		class := failureClass(err)
		metricPurchases.WithLabelValues(class).Inc()
		log.Warn().Err(err).Str("attempt", attempt).Str("class", class).Bool("ticket_purchased", res.TicketPurchased).Msg("ticket purchase failed")
		return res
	}
	res.Success = true
	metricPurchases.WithLabelValues("ok").Inc()
	return res
}

func (e *Executor) buy(ctx context.Context, periodID, attempt string, res *Result) error {
	if e.deps.Wallet == nil {
		return ErrNoWallet
	}
	player := e.deps.Wallet.Address()
	if player.IsZero() {
		return ErrWalletNotReady
	}
	if periodID == "" {
		return ErrPeriodRequired
	}
	logger := log.With().Str("attempt", attempt).Str("player", player.String()).Str("period", periodID).Logger()

	if err := e.checkLeaderboards(ctx, logger); err != nil {
		return err
	}

	key, err := e.deps.Keys.SessionKey(ctx, player)
	if err != nil || key == nil {
		logger.Warn().Err(err).Msg("session key unavailable")
		return ErrNoSessionKey
	}

	tee, err := e.preflight(ctx, key, player, periodID, logger)
	if err != nil {
		return err
	}

	blockhash, err := e.deps.Ledger.LatestBlockhash(ctx)
	if err != nil {
		return err
	}
	buy := e.deps.Program.BuyTicketInstruction(chain.BuyTicketParams{
		Payer:      player,
		Mint:       e.opts.Mint,
		PayerToken: chain.AssociatedTokenAddress(player, e.opts.Mint),
		PeriodID:   periodID,
	})
	sig, err := e.deps.Wallet.SignAndSend(ctx, chain.Message{
		FeePayer:        player,
		RecentBlockhash: blockhash,
		Instructions:    []chain.Instruction{buy},
	})
	if err != nil {
		return err
	}
	res.Signature = sig
	res.TicketPurchased = true
	logger.Info().Str("signature", sig).Msg("ticket purchased")

	if err := e.applyReset(ctx, tee, key, player, periodID, logger); err != nil {
		return err
	}
	res.ResetApplied = true
	res.SessionID = fmt.Sprintf("voble-%s-%s", player, periodID)
	return nil
}

func (e *Executor) checkLeaderboards(ctx context.Context, logger zerolog.Logger) error {
	err := e.deps.Records.CheckAggregationRecords(ctx, e.deps.Periods.Current())
	if err == nil {
		return nil
	}
	var missing *ledger.MissingRecordsError
	if errors.As(err, &missing) {
		return &LeaderboardsMissingError{Missing: missing.Missing}
	}
	logger.Warn().Err(err).Msg("leaderboard check failed")
	return ErrLeaderboardUnverifiable
}

// preflight simulates the reset on the TEE before any funds move. A program
// rejection is expected while the ticket is unpaid and proves the TEE is up.
func (e *Executor) preflight(ctx context.Context, key *keys.SessionKey, player chain.Address, periodID string, logger zerolog.Logger) (TEE, error) {
	tee, err := e.simulateReset(ctx, key, player, periodID, logger)
	if err == nil {
		return tee, nil
	}
	var unavailable *TEEUnavailableError
	if errors.As(err, &unavailable) {
		return nil, err
	}
	logger.Warn().Err(err).Msg("pre-flight check failed")
	return nil, ErrTEEUnreachable
}

func (e *Executor) simulateReset(ctx context.Context, key *keys.SessionKey, player chain.Address, periodID string, logger zerolog.Logger) (TEE, error) {
	token, err := e.deps.Tokens.Token(ctx, e.deps.Wallet)
	if err != nil || token == "" {
		return nil, fmt.Errorf("%w: %v", ErrTEEAuth, err)
	}
	tee := e.deps.TEE(token)
	blockhash, err := tee.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := chain.SignTransaction(resetMessage(e.deps.Program, key, player, periodID, blockhash), key)
	if err != nil {
		return nil, err
	}
	sim, err := tee.Simulate(ctx, tx)
	if err != nil {
		return nil, err
	}
	if !sim.Failed() {
		logger.Debug().Msg("pre-flight simulation passed")
		return tee, nil
	}
	errJSON := string(sim.Err)
	if rpc.IsProgramRejection(errJSON, sim.Logs) {
		logger.Debug().Str("err", errJSON).Msg("pre-flight rejected by program as expected")
		return tee, nil
	}
	logger.Error().Str("err", errJSON).Strs("logs", sim.Logs).Msg("pre-flight simulation failed")
	return nil, &TEEUnavailableError{ErrJSON: errJSON}
}

// applyReset sends the real reset after payment, retrying with a fresh
// blockhash each time.
func (e *Executor) applyReset(ctx context.Context, tee TEE, key *keys.SessionKey, player chain.Address, periodID string, logger zerolog.Logger) error {
	for attempt := 1; ; attempt++ {
		sig, err := sendReset(ctx, tee, e.deps.Program, key, player, periodID)
		if err == nil {
			metricResets.WithLabelValues("ok").Inc()
			logger.Info().Str("signature", sig).Int("attempt", attempt).Msg("session reset applied")
			return nil
		}
		metricResets.WithLabelValues("error").Inc()
		logger.Warn().Err(err).Int("attempt", attempt).Int("max", e.opts.ResetRetries).Msg("session reset failed")
		if attempt >= e.opts.ResetRetries {
			return ErrResetFailed
		}
		if err := e.deps.Clock.Sleep(ctx, e.opts.ResetRetryDelay); err != nil {
			return ErrResetFailed
		}
	}
}
