package ticket

import (
	"context"
	"strings"

	"voble/internal/rpc"
	"voble/internal/store"

	"github.com/rs/zerolog/log"
)

type RecoverResult struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// Agent replays the session reset for a ticket that was paid but never
// applied on the TEE.
type Agent struct {
	deps Deps
	opts Options
}

func NewAgent(deps Deps, opts Options) *Agent {
	return &Agent{deps: deps.withDefaults(), opts: opts.withDefaults()}
}

func (a *Agent) RecoverTicket(ctx context.Context, periodID string) RecoverResult {
	attempt := store.NewID("rec")
	sig, err := a.recover(ctx, strings.TrimSpace(periodID), attempt)
	if err != nil {
		metricRecoveries.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("attempt", attempt).Msg("ticket recovery failed")
		return RecoverResult{Error: err.Error()}
	}
	outcome := "ok"
	if sig == AlreadyRecovered {
		outcome = "already_used"
	}
	metricRecoveries.WithLabelValues(outcome).Inc()
	return RecoverResult{Success: true, Signature: sig}
}

func (a *Agent) recover(ctx context.Context, periodID, attempt string) (string, error) {
	if a.deps.Wallet == nil {
		return "", ErrNoWallet
	}
	player := a.deps.Wallet.Address()
	if periodID == "" {
		return "", ErrPeriodRequired
	}
	key, err := a.deps.Keys.SessionKey(ctx, player)
	if err != nil || key == nil {
		return "", ErrRecoveryNoSessionKey
	}
	token, err := a.deps.Tokens.Token(ctx, a.deps.Wallet)
	if err != nil || token == "" {
		return "", ErrTEEAuth
	}
	tee := a.deps.TEE(token)
	logger := log.With().Str("attempt", attempt).Str("player", player.String()).Str("period", periodID).Logger()

	for n := 1; ; n++ {
		metricRecoveryAttempts.Inc()
		sig, err := sendReset(ctx, tee, a.deps.Program, key, player, periodID)
		if err == nil {
			logger.Info().Str("signature", sig).Int("try", n).Msg("ticket recovered")
			return sig, nil
		}
		if rpc.IsTicketAlreadyUsed(err) {
			logger.Info().Int("try", n).Msg("ticket already used; session was reset earlier")
			return AlreadyRecovered, nil
		}
		logger.Warn().Err(err).Int("try", n).Int("max", a.opts.RecoveryRetries).Msg("recovery attempt failed")
		if n >= a.opts.RecoveryRetries {
			return "", &RecoveryExhaustedError{Attempts: n, Last: err}
		}
		if err := a.deps.Clock.Sleep(ctx, a.opts.RecoveryDelay); err != nil {
			return "", &RecoveryExhaustedError{Attempts: n, Last: err}
		}
	}
}
