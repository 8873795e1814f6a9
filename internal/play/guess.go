package play

import (
	"context"
	"errors"

	"voble/internal/chain"
	"voble/internal/game"
	"voble/internal/rpc"
	"voble/internal/session"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// GuessResult reports a submission. Failures are in Error; when the guess
// ended the game, Completion holds the outcome of the commit.
type GuessResult struct {
	Success    bool            `json:"success"`
	Error      string          `json:"error,omitempty"`
	Signature  string          `json:"signature,omitempty"`
	Session    *session.Record `json:"session,omitempty"`
	Completion *CompleteResult `json:"completion,omitempty"`
}

// SubmitGuess sends guess for the coordinator's period and advances the
// phase from what the TEE reports back.
func (r *Runner) SubmitGuess(ctx context.Context, c Coordinator, guess string) GuessResult {
	word, err := NormalizeGuess(guess)
	if err != nil {
		return GuessResult{Error: err.Error()}
	}
	if c.State().Phase != game.PhasePlaying || c.SetPhase(game.PhaseSubmitting) != nil {
		return GuessResult{Error: ErrNotPlaying.Error()}
	}
	logger := log.With().Str("period", c.PeriodID()).Logger()

	sig, err := r.sendGuess(ctx, c.PeriodID(), word)
	if err != nil {
		msg := guessErrorMessage(err)
		metricGuesses.WithLabelValues("error").Inc()
		logger.Warn().Err(err).Msg("guess submission failed")
		resume(logger, c)
		c.SetError(msg)
		return GuessResult{Error: msg}
	}
	metricGuesses.WithLabelValues("ok").Inc()
	res := GuessResult{Success: true, Signature: sig}

	rec, err := r.deps.Sessions.Fetch(ctx, c.PeriodID())
	if err != nil || rec == nil {
		logger.Warn().Err(err).Msg("session refetch after guess failed")
		resume(logger, c)
		return res
	}
	res.Session = rec
	if !Finished(rec) {
		resume(logger, c)
		return res
	}
	logger.Info().Int("guesses", rec.GuessesUsed).Bool("solved", rec.IsSolved).Msg("game finished; committing")
	done := r.CompleteGame(ctx, c)
	res.Completion = &done
	return res
}

// resume returns from submitting to playing. A rejection means the phase
// moved underneath the guess (closed, failed or retried).
func resume(logger zerolog.Logger, c Coordinator) {
	if err := c.SetPhase(game.PhasePlaying); err != nil {
		logger.Warn().Err(err).Str("phase", string(c.State().Phase)).Msg("could not resume playing after guess")
	}
}

// Finished reports whether no further guess can be made.
func Finished(rec *session.Record) bool {
	if rec == nil {
		return false
	}
	if rec.IsSolved || rec.GuessesUsed >= MaxGuesses {
		return true
	}
	if rec.GuessesUsed == 0 || rec.GuessesUsed > len(rec.Guesses) {
		return false
	}
	last := rec.Guesses[rec.GuessesUsed-1]
	if len(last.Result) == 0 {
		return false
	}
	for _, l := range last.Result {
		if l != chain.LetterCorrect {
			return false
		}
	}
	return true
}

func (r *Runner) sendGuess(ctx context.Context, periodID, word string) (string, error) {
	player, tee, key, err := r.tee(ctx)
	if err != nil {
		return "", err
	}
	// The program checks the period too; this only saves a doomed send.
	if rec, err := r.deps.Sessions.Fetch(ctx, periodID); err == nil && rec != nil && rec.PeriodIDOnRecord != periodID {
		return "", ErrPeriodMismatch
	}
	tx, err := signed(ctx, tee, key, r.deps.Program.SubmitGuessInstruction(player, word))
	if err != nil {
		return "", err
	}
	return tee.Send(ctx, tx, rpc.CommitmentConfirmed)
}

func guessErrorMessage(err error) string {
	if errors.Is(err, ErrPeriodMismatch) || ownMessage(err) {
		return err.Error()
	}
	return rpc.DescribeError(err)
}
