// Package game keeps one lifecycle coordinator per period for the
// configured wallet and exposes the operations the HTTP and MCP surfaces
// call.
package game

import (
	"context"
	"strings"
	"sync"
	"time"

	"voble/internal/chain"
	"voble/internal/clock"
	gamecore "voble/internal/game"
	"voble/internal/period"
	"voble/internal/play"

	"github.com/rs/zerolog/log"
)

type Deps struct {
	Player  chain.Address
	Periods period.Provider
	Clock   clock.Clock
	Runner  *play.Runner
	// NewCoordinator builds a coordinator for one period.
	NewCoordinator func(periodID string) *gamecore.Coordinator
}

type Options struct {
	IdleTTL time.Duration
}

type entry struct {
	coord    *gamecore.Coordinator
	lastUsed time.Time
}

type Service struct {
	deps Deps
	opts Options

	base context.Context
	stop context.CancelFunc

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

func NewService(deps Deps, opts Options) *Service {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Periods == nil {
		deps.Periods = period.ClockProvider{}
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	base, stop := context.WithCancel(context.Background())
	return &Service{deps: deps, opts: opts, base: base, stop: stop, entries: map[string]*entry{}}
}

func (s *Service) Player() chain.Address { return s.deps.Player }

func (s *Service) Period() period.Periods { return s.deps.Periods.Current() }

// coordinator returns the coordinator for the current daily period,
// creating it on first use. Creating one closes those of earlier periods
// and reconciles the new one in the background.
func (s *Service) coordinator() (*gamecore.Coordinator, error) {
	periodID := s.deps.Periods.Current().Daily
	now := s.deps.Clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if e, ok := s.entries[periodID]; ok && !e.coord.Closed() {
		e.lastUsed = now
		return e.coord, nil
	}
	for id, e := range s.entries {
		if id != periodID {
			log.Info().Str("period", id).Str("current", periodID).Msg("period rolled over; closing coordinator")
			e.coord.Close()
			delete(s.entries, id)
		}
	}
	c := s.deps.NewCoordinator(periodID)
	s.entries[periodID] = &entry{coord: c, lastUsed: now}
	metricCoordinators.Set(float64(len(s.entries)))
	go s.reconcile(c)
	return c, nil
}

func (s *Service) reconcile(c *gamecore.Coordinator) {
	if err := c.Reconcile(s.base); err != nil && !c.Closed() {
		log.Warn().Err(err).Str("period", c.PeriodID()).Msg("reconcile failed")
	}
}

func (s *Service) State(_ context.Context) (gamecore.State, error) {
	c, err := s.coordinator()
	if err != nil {
		return gamecore.State{}, err
	}
	return c.State(), nil
}

// Reconcile runs recovery or restore for the current period and waits for
// it, for callers that must know the settled phase before starting.
func (s *Service) Reconcile(ctx context.Context) (gamecore.State, error) {
	c, err := s.coordinator()
	if err != nil {
		return gamecore.State{}, err
	}
	if err := c.Reconcile(ctx); err != nil {
		return c.State(), err
	}
	return c.State(), nil
}

// StartGame begins a start in the background and returns the state as it
// is now. A start already in flight is left alone.
func (s *Service) StartGame(_ context.Context) (gamecore.State, error) {
	c, err := s.coordinator()
	if err != nil {
		return gamecore.State{}, err
	}
	if !c.InFlight() {
		go c.StartGame(s.base)
	}
	return c.State(), nil
}

// Retry clears an error and reconciles again, which re-arms recovery.
func (s *Service) Retry(_ context.Context) (gamecore.State, error) {
	c, err := s.coordinator()
	if err != nil {
		return gamecore.State{}, err
	}
	c.Retry()
	go s.reconcile(c)
	return c.State(), nil
}

func (s *Service) SetPhase(_ context.Context, phase string) (gamecore.State, error) {
	p, ok := gamecore.ParsePhase(strings.TrimSpace(phase))
	if !ok {
		return gamecore.State{}, ErrInvalidPhase
	}
	c, err := s.coordinator()
	if err != nil {
		return gamecore.State{}, err
	}
	if err := c.SetPhase(p); err != nil {
		return c.State(), err
	}
	return c.State(), nil
}

func (s *Service) SubmitGuess(ctx context.Context, guess string) (play.GuessResult, error) {
	if strings.TrimSpace(guess) == "" {
		return play.GuessResult{}, ErrInvalidRequest
	}
	c, err := s.coordinator()
	if err != nil {
		return play.GuessResult{}, err
	}
	return s.deps.Runner.SubmitGuess(ctx, c, guess), nil
}

func (s *Service) CompleteGame(ctx context.Context) (play.CompleteResult, error) {
	c, err := s.coordinator()
	if err != nil {
		return play.CompleteResult{}, err
	}
	return s.deps.Runner.CompleteGame(ctx, c), nil
}

// Subscribe streams the current coordinator's snapshots. The stream ends
// when the coordinator is closed, including on period rollover.
func (s *Service) Subscribe(_ context.Context) (<-chan gamecore.State, func(), error) {
	c, err := s.coordinator()
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := c.Subscribe()
	return ch, cancel, nil
}

func (s *Service) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(s.deps.Clock.Now())
			}
		}
	}()
}

// sweep closes coordinators unused for longer than IdleTTL. Coordinators
// with work in progress are kept.
func (s *Service) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	closed := 0
	for id, e := range s.entries {
		if now.Sub(e.lastUsed) < s.opts.IdleTTL || busy(e.coord) {
			continue
		}
		e.coord.Close()
		delete(s.entries, id)
		closed++
	}
	if closed > 0 {
		metricCoordinators.Set(float64(len(s.entries)))
		log.Debug().Int("closed", closed).Msg("idle coordinators swept")
	}
	return closed
}

func busy(c *gamecore.Coordinator) bool {
	if c.InFlight() {
		return true
	}
	switch c.State().Phase {
	case gamecore.PhaseRecovering, gamecore.PhaseSubmitting, gamecore.PhaseCompleting:
		return true
	}
	return c.State().IsStartingGame
}

func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stop()
	for id, e := range s.entries {
		e.coord.Close()
		delete(s.entries, id)
	}
	metricCoordinators.Set(0)
}
