package game

import (
	"context"
	"time"

	"voble/internal/ledger"
	"voble/internal/session"
)

const recoveryFailedMessage = "Failed to recover game session"

// Reconcile compares the ledger and TEE views while idle. A paid but
// unapplied ticket starts auto-recovery, at most once until Retry; a live
// session for this period restores the playing phase. StartGame waits for
// the decision, so a start cannot buy a ticket the reads are about to
// recover.
func (c *Coordinator) Reconcile(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	ctx, cancel := c.bind(ctx)
	defer cancel()
	if !c.enter(ctx) {
		return ctx.Err()
	}
	held := true
	defer func() {
		if held {
			c.leave()
		}
	}()
	if c.State().Phase != PhaseIdle || c.inFlight.Load() {
		return nil
	}

	var profile *ledger.ProfileRecord
	if c.deps.Profiles != nil {
		p, err := c.deps.Profiles.Profile(ctx, c.cfg.Player)
		if err != nil {
			c.logger.Warn().Err(err).Msg("profile read failed")
		}
		profile = p
	}
	sess, err := c.deps.Sessions.Fetch(ctx, c.cfg.PeriodID)
	if err != nil {
		return err
	}

	if c.claimRecovery(profile, sess) {
		held = false
		c.leave()
		c.runRecovery(ctx)
		return nil
	}
	c.restore(ctx, sess)
	return nil
}

// claimRecovery sets the one-shot latch and enters recovering in one step,
// before any I/O, so overlapping Reconcile calls recover once.
func (c *Coordinator) claimRecovery(profile *ledger.ProfileRecord, sess *session.Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() || c.phase != PhaseIdle || c.recoveryAttempted {
		return false
	}
	if !NeedsRecovery(profile, sess, c.cfg.PeriodID) {
		return false
	}
	c.recoveryAttempted = true
	c.logger.Info().Str("session_period", sess.PeriodIDOnRecord).Msg("paid ticket without current session; recovering")
	return c.transitionLocked(PhaseRecovering, "")
}

func (c *Coordinator) runRecovery(ctx context.Context) {
	res := c.deps.Recoverer.RecoverTicket(ctx, c.cfg.PeriodID)
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = recoveryFailedMessage
		}
		c.Fail(msg)
		return
	}
	if err := c.deps.Clock.Sleep(ctx, c.cfg.RecoveryPropagation); err != nil {
		return
	}
	rec, err := c.deps.Sessions.Fetch(ctx, c.cfg.PeriodID)
	if err != nil || !rec.Playable() {
		c.logger.Info().Msg("recovered session not visible yet; polling")
		if _, err := c.awaitSession(ctx); err != nil {
			if ctx.Err() == nil {
				c.Fail(SyncFailedMessage)
			}
			return
		}
	}
	c.enterPlaying(ctx, c.deps.Clock.Now())
}

// restore resumes a game already running on the TEE. The timer comes from
// storage, else from the elapsed time the session reports.
func (c *Coordinator) restore(ctx context.Context, sess *session.Record) {
	if !sess.Playable() || c.State().Phase != PhaseIdle {
		return
	}
	now := c.deps.Clock.Now()
	start := now
	if ms, ok := c.loadStartTime(ctx); ok {
		start = time.UnixMilli(ms)
	} else if sess.TimeMs > 0 {
		start = now.Add(-time.Duration(sess.TimeMs) * time.Millisecond)
	}
	if c.enterPlaying(ctx, start) {
		c.logger.Info().Time("start", start).Msg("restored running game")
	}
}
