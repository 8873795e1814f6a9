// Package game holds the session lifecycle coordinator: one phase machine
// per (player, period) that drives purchase, TEE reset, sync polling,
// auto-recovery and restore after a restart.
package game

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"voble/internal/chain"
	"voble/internal/clock"
	"voble/internal/ledger"
	"voble/internal/session"
	"voble/internal/store"
	"voble/internal/ticket"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Sessions interface {
	Fetch(ctx context.Context, periodID string) (*session.Record, error)
}

type Profiles interface {
	Profile(ctx context.Context, player chain.Address) (*ledger.ProfileRecord, error)
}

type Purchaser interface {
	BuyTicket(ctx context.Context, periodID string) ticket.Result
}

type Recoverer interface {
	RecoverTicket(ctx context.Context, periodID string) ticket.RecoverResult
}

type Deps struct {
	Sessions  Sessions
	Profiles  Profiles
	Purchaser Purchaser
	Recoverer Recoverer
	Store     store.KV
	Clock     clock.Clock
}

type Config struct {
	Player              chain.Address
	PeriodID            string
	Sync                SyncPolicy
	RecoveryPropagation time.Duration
}

// State is a snapshot of the coordinator with the derived display flags.
// StartTime is unix milliseconds, 0 when no game is running.
type State struct {
	PeriodID        string `json:"periodId"`
	Phase           Phase  `json:"phase"`
	Error           string `json:"error"`
	StartTime       int64  `json:"startTime"`
	IsStartingGame  bool   `json:"isStartingGame"`
	TicketPurchased bool   `json:"ticketPurchased"`
	VRFCompleted    bool   `json:"vrfCompleted"`
}

const subscriberBuffer = 32

type Coordinator struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger

	life   context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	inFlight atomic.Bool
	// gate serializes the start decision with Reconcile's read-then-claim.
	gate chan struct{}

	mu                sync.Mutex
	phase             Phase
	errMsg            string
	startTime         int64
	purchased         bool
	resetApplied      bool
	recoveryAttempted bool
	subs              map[int]chan State
	nextSub           int
}

func NewCoordinator(cfg Config, deps Deps) *Coordinator {
	if cfg.Sync.Attempts <= 0 {
		cfg.Sync = DefaultSyncPolicy()
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	life, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:    cfg,
		deps:   deps,
		logger: log.With().Str("player", cfg.Player.String()).Str("period", cfg.PeriodID).Logger(),
		life:   life,
		cancel: cancel,
		phase:  PhaseIdle,
		gate:   make(chan struct{}, 1),
		subs:   map[int]chan State{},
	}
}

// enter waits for the gate or for ctx to end.
func (c *Coordinator) enter(ctx context.Context) bool {
	select {
	case c.gate <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Coordinator) leave() { <-c.gate }

func (c *Coordinator) PeriodID() string { return c.cfg.PeriodID }

func (c *Coordinator) Player() chain.Address { return c.cfg.Player }

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Coordinator) stateLocked() State {
	return State{
		PeriodID:        c.cfg.PeriodID,
		Phase:           c.phase,
		Error:           c.errMsg,
		StartTime:       c.startTime,
		IsStartingGame:  c.phase.Starting(),
		TicketPurchased: c.purchased || c.phase.pastPurchase(),
		VRFCompleted:    c.resetApplied || c.phase.pastReset(),
	}
}

// Subscribe streams state snapshots, starting with the current one. Slow
// readers miss intermediate snapshots rather than blocking transitions.
func (c *Coordinator) Subscribe() (<-chan State, func()) {
	ch := make(chan State, subscriberBuffer)
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.stateLocked()
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
			c.mu.Unlock()
		})
	}
}

// Close stops in-flight work from touching state and ends subscriptions.
func (c *Coordinator) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.cancel()
	c.mu.Lock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()
	c.logger.Debug().Msg("coordinator closed")
}

func (c *Coordinator) Closed() bool { return c.closed.Load() }

// bind derives a context that also ends when the coordinator is closed.
func (c *Coordinator) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// publishLocked must be called with mu held.
func (c *Coordinator) publishLocked() {
	st := c.stateLocked()
	for _, ch := range c.subs {
		select {
		case ch <- st:
		default:
		}
	}
}

func (c *Coordinator) transitionLocked(to Phase, msg string) bool {
	if c.closed.Load() {
		return false
	}
	from := c.phase
	if !from.CanTransitionTo(to) {
		metricRejectedTransitions.WithLabelValues(string(from), string(to)).Inc()
		c.logger.Warn().Str("from", string(from)).Str("to", string(to)).Msg("rejected phase transition")
		return false
	}
	c.phase = to
	switch {
	case to != PhaseError:
		c.errMsg = ""
	case msg != "":
		c.errMsg = msg
	}
	metricTransitions.WithLabelValues(string(to)).Inc()
	if to == PhaseError {
		c.logger.Warn().Str("from", string(from)).Str("error", c.errMsg).Msg("phase error")
	} else {
		c.logger.Info().Str("from", string(from)).Str("to", string(to)).Msg("phase")
	}
	c.publishLocked()
	return true
}

func (c *Coordinator) transition(to Phase, msg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitionLocked(to, msg)
}

// SetPhase moves to phase p if the transition table allows it. Playing is
// only reachable from submitting here.
func (c *Coordinator) SetPhase(p Phase) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.phase.CanSetTo(p) {
		metricRejectedTransitions.WithLabelValues(string(c.phase), string(p)).Inc()
		c.logger.Warn().Str("from", string(c.phase)).Str("to", string(p)).Msg("rejected phase request")
		return ErrIllegalTransition
	}
	if !c.transitionLocked(p, "") {
		return ErrIllegalTransition
	}
	return nil
}

// SetError replaces the error text without changing phase.
func (c *Coordinator) SetError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return
	}
	c.errMsg = msg
	c.publishLocked()
}

// Fail moves to the error phase with msg.
func (c *Coordinator) Fail(msg string) {
	c.transition(PhaseError, msg)
}

// SetStartTimeNow starts the timer unless a game is already being timed.
func (c *Coordinator) SetStartTimeNow(ctx context.Context) {
	now := c.deps.Clock.Now().UnixMilli()
	c.mu.Lock()
	if c.closed.Load() || (c.phase == PhasePlaying && c.startTime != 0) {
		c.mu.Unlock()
		return
	}
	c.startTime = now
	c.publishLocked()
	c.mu.Unlock()
	c.persistStartTime(ctx, now)
}

// Retry returns to idle and re-arms auto-recovery. The timer is left for
// the next start to overwrite.
func (c *Coordinator) Retry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return
	}
	c.recoveryAttempted = false
	c.purchased = false
	c.resetApplied = false
	c.transitionLocked(PhaseIdle, "")
}

// StartGame runs purchase, reset and sync to completion. Every failure ends
// in the error phase; nothing is returned. A call made while another is
// running is ignored.
func (c *Coordinator) StartGame(ctx context.Context) {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.logger.Debug().Msg("start already in flight")
		return
	}
	defer c.inFlight.Store(false)
	ctx, cancel := c.bind(ctx)
	defer cancel()

	// A Reconcile between its reads and its claim decides first; a claimed
	// recovery or restored game then rejects preflight.
	if !c.enter(ctx) {
		metricStarts.WithLabelValues("aborted").Inc()
		return
	}
	c.mu.Lock()
	c.purchased = false
	c.resetApplied = false
	ok := c.transitionLocked(PhasePreflight, "")
	c.mu.Unlock()
	c.leave()
	if !ok {
		metricStarts.WithLabelValues("rejected").Inc()
		return
	}
	outcome := c.runStart(ctx)
	metricStarts.WithLabelValues(outcome).Inc()
}

func (c *Coordinator) InFlight() bool { return c.inFlight.Load() }

func (c *Coordinator) runStart(ctx context.Context) string {
	if !c.transition(PhaseBuying, "") {
		return "aborted"
	}
	res := c.deps.Purchaser.BuyTicket(ctx, c.cfg.PeriodID)

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return "aborted"
	}
	c.purchased = res.TicketPurchased
	c.resetApplied = res.ResetApplied
	c.mu.Unlock()

	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "Failed to buy ticket"
		}
		c.Fail(msg)
		return "purchase_failed"
	}

	if !c.transition(PhaseResetting, "") || !c.transition(PhaseSyncing, "") {
		return "aborted"
	}
	if _, err := c.awaitSession(ctx); err != nil {
		if ctx.Err() != nil {
			return "aborted"
		}
		c.Fail(SyncFailedMessage)
		return "sync_failed"
	}
	if !c.enterPlaying(ctx, c.deps.Clock.Now()) {
		return "aborted"
	}
	return "ok"
}

var errSyncExhausted = errors.New("sync_exhausted")

// awaitSession polls until a fetch and its confirming refetch both see a
// current, incomplete session.
func (c *Coordinator) awaitSession(ctx context.Context) (*session.Record, error) {
	p := c.cfg.Sync
	for n := 1; n <= p.Attempts; n++ {
		if err := c.deps.Clock.Sleep(ctx, p.Delay(n)); err != nil {
			return nil, err
		}
		rec, err := c.deps.Sessions.Fetch(ctx, c.cfg.PeriodID)
		if err != nil {
			c.logger.Debug().Err(err).Int("attempt", n).Msg("sync fetch failed")
			continue
		}
		if !rec.Playable() {
			continue
		}
		if err := c.deps.Clock.Sleep(ctx, p.ConfirmDelay); err != nil {
			return nil, err
		}
		confirmed, err := c.deps.Sessions.Fetch(ctx, c.cfg.PeriodID)
		if err == nil && confirmed.Playable() {
			metricSyncAttempts.Observe(float64(n))
			c.logger.Info().Int("attempt", n).Msg("session synced")
			return confirmed, nil
		}
		c.logger.Warn().Int("attempt", n).Msg("session sync not confirmed; polling on")
	}
	metricSyncAttempts.Observe(float64(p.Attempts + 1))
	return nil, errSyncExhausted
}

// enterPlaying sets the timer and moves to playing.
func (c *Coordinator) enterPlaying(ctx context.Context, start time.Time) bool {
	now := c.deps.Clock.Now()
	if start.After(now) {
		start = now
	}
	ms := start.UnixMilli()

	c.mu.Lock()
	if c.closed.Load() || !c.phase.CanTransitionTo(PhasePlaying) || c.phase == PhasePlaying {
		c.mu.Unlock()
		return false
	}
	c.startTime = ms
	ok := c.transitionLocked(PhasePlaying, "")
	c.mu.Unlock()
	if ok {
		c.persistStartTime(ctx, ms)
	}
	return ok
}

func (c *Coordinator) persistStartTime(ctx context.Context, ms int64) {
	if c.deps.Store == nil {
		return
	}
	key := store.StartTimeKey(c.cfg.Player.String(), c.cfg.PeriodID)
	if err := c.deps.Store.Set(ctx, key, strconv.FormatInt(ms, 10)); err != nil {
		c.logger.Warn().Err(err).Msg("persist start time failed")
	}
}

func (c *Coordinator) loadStartTime(ctx context.Context) (int64, bool) {
	if c.deps.Store == nil {
		return 0, false
	}
	raw, err := c.deps.Store.Get(ctx, store.StartTimeKey(c.cfg.Player.String(), c.cfg.PeriodID))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.Warn().Err(err).Msg("load start time failed")
		}
		return 0, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return 0, false
	}
	return ms, true
}
