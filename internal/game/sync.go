package game

import (
	"time"

	"voble/internal/config"
)

const SyncFailedMessage = "Game session failed to sync. Please refresh and try again."

// SyncPolicy bounds how long the coordinator polls for the TEE session
// after a purchase: Attempts polls, each preceded by Delay(n).
type SyncPolicy struct {
	Attempts     int
	Step         time.Duration
	MaxDelay     time.Duration
	ConfirmDelay time.Duration
}

func DefaultSyncPolicy() SyncPolicy {
	return SyncPolicy{
		Attempts:     12,
		Step:         time.Second,
		MaxDelay:     5 * time.Second,
		ConfirmDelay: 500 * time.Millisecond,
	}
}

func SyncPolicyFromConfig(cfg config.ChainConfig) SyncPolicy {
	p := SyncPolicy{
		Attempts:     cfg.SyncAttempts,
		Step:         cfg.SyncStep(),
		MaxDelay:     cfg.SyncMaxDelay(),
		ConfirmDelay: cfg.SyncConfirmDelay(),
	}
	if p.Attempts <= 0 {
		p.Attempts = DefaultSyncPolicy().Attempts
	}
	return p
}

// Delay is the wait before poll n (1-based): n*Step capped at MaxDelay.
func (p SyncPolicy) Delay(n int) time.Duration {
	d := time.Duration(n) * p.Step
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Budget is the worst-case total wait.
func (p SyncPolicy) Budget() time.Duration {
	var total time.Duration
	for n := 1; n <= p.Attempts; n++ {
		total += p.Delay(n)
	}
	return total + p.ConfirmDelay
}
