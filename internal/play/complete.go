package play

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"voble/internal/chain"
	"voble/internal/game"
	"voble/internal/rpc"
	"voble/internal/ticket"

	"github.com/rs/zerolog/log"
)

// CompleteResult reports a commit of the finished game. The outcome fields
// come from the session as the TEE reports it after the commit settles.
type CompleteResult struct {
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	Signature  string `json:"signature,omitempty"`
	Won        bool   `json:"won"`
	Score      uint32 `json:"score"`
	TargetWord string `json:"targetWord,omitempty"`
	TimeMs     uint32 `json:"timeMs"`
}

// SimulationError is a commit the TEE refused in simulation.
type SimulationError struct {
	ErrJSON string
	Logs    []string
}

func (e *SimulationError) Error() string {
	return "Simulation failed: " + e.ErrJSON
}

// CompleteGame commits the session's result to the player's stats and the
// current leaderboards, then moves the coordinator to result.
func (r *Runner) CompleteGame(ctx context.Context, c Coordinator) CompleteResult {
	switch c.State().Phase {
	case game.PhasePlaying, game.PhaseSubmitting, game.PhaseCompleting:
	default:
		return CompleteResult{Error: ErrNotPlaying.Error()}
	}
	if err := c.SetPhase(game.PhaseCompleting); err != nil {
		return CompleteResult{Error: ErrNotPlaying.Error()}
	}
	logger := log.With().Str("period", c.PeriodID()).Logger()

	sig, err := r.commit(ctx)
	if err != nil {
		msg := completeErrorMessage(err)
		metricCompletions.WithLabelValues("error").Inc()
		logger.Warn().Err(err).Str("message", msg).Msg("game completion failed")
		c.Fail(msg)
		return CompleteResult{Error: msg}
	}
	metricCompletions.WithLabelValues("ok").Inc()
	logger.Info().Str("signature", sig).Msg("game committed")

	res := CompleteResult{Success: true, Signature: sig}
	if err := r.deps.Clock.Sleep(ctx, r.opts.SettleDelay); err != nil {
		return res
	}
	if rec, err := r.deps.Sessions.Fetch(ctx, c.PeriodID()); err == nil && rec != nil {
		res.Won = rec.IsSolved
		res.Score = rec.Score
		res.TargetWord = rec.TargetWord
		res.TimeMs = rec.TimeMs
	} else {
		logger.Warn().Err(err).Msg("session refetch after commit failed")
	}
	if err := c.SetPhase(game.PhaseResult); err != nil {
		logger.Warn().Err(err).Str("phase", string(c.State().Phase)).Msg("could not enter result after commit")
	}
	return res
}

func (r *Runner) commit(ctx context.Context) (string, error) {
	player, tee, key, err := r.tee(ctx)
	if err != nil {
		return "", err
	}
	periods := r.deps.Periods.Current()
	ix := r.deps.Program.CommitStatsInstruction(chain.CommitStatsParams{
		Payer:   key.PublicKey(),
		Player:  player,
		Daily:   periods.Daily,
		Weekly:  periods.Weekly,
		Monthly: periods.Monthly,
	})
	tx, err := signed(ctx, tee, key, ix)
	if err != nil {
		return "", err
	}
	sim, err := tee.Simulate(ctx, tx)
	if err != nil {
		return "", err
	}
	if sim.Failed() {
		return "", &SimulationError{ErrJSON: string(sim.Err), Logs: sim.Logs}
	}
	sig, err := tee.Send(ctx, tx, rpc.CommitmentConfirmed)
	if err != nil {
		return "", err
	}
	if err := tee.Confirm(ctx, sig, r.opts.ConfirmAttempts, r.opts.ConfirmInterval); err != nil {
		return "", fmt.Errorf("confirm %s: %w", sig, err)
	}
	return sig, nil
}

var completionMessages = []struct {
	match, msg string
}{
	{"user rejected", "Transaction was rejected"},
	{"insufficient", "Insufficient SOL balance for transaction fees"},
	{"game already completed", "Game has already been completed"},
	{"game not started", "No active game session found. Please buy a ticket first."},
	{"no guesses submitted", "You must submit at least one guess before completing the game"},
}

// completeErrorMessage maps a commit failure to the player's message.
// Program error names in simulation logs count toward the match.
func completeErrorMessage(err error) string {
	if ownMessage(err) {
		return err.Error()
	}
	text := err.Error()
	var sim *SimulationError
	if errors.As(err, &sim) {
		text += " " + strings.Join(sim.Logs, " ")
	}
	text = strings.ToLower(text)
	for _, m := range completionMessages {
		if strings.Contains(text, m.match) {
			return m.msg
		}
	}
	return rpc.DescribeError(err)
}

func ownMessage(err error) bool {
	for _, target := range []error{ticket.ErrNoWallet, ticket.ErrWalletNotReady, ticket.ErrNoSessionKey, ticket.ErrTEEAuth} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
