package game

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"voble/internal/chain"
	"voble/internal/clock"
	"voble/internal/ledger"
	"voble/internal/session"
	"voble/internal/store"
	"voble/internal/ticket"
)

const (
	testPeriod     = "2025-01-02"
	previousPeriod = "2025-01-01"
)

var testPlayer = chain.MustParseAddress("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")

func currentSession() *session.Record {
	return &session.Record{Player: testPlayer.String(), PeriodIDOnRecord: testPeriod, IsCurrentPeriod: true}
}

func staleSession() *session.Record {
	return &session.Record{Player: testPlayer.String(), PeriodIDOnRecord: previousPeriod, Completed: true}
}

// scriptedSessions answers fetch n (1-based) with next(n).
type scriptedSessions struct {
	next func(n int) *session.Record

	mu    sync.Mutex
	calls int
	last  *session.Record
}

func (s *scriptedSessions) Fetch(context.Context, string) (*session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = s.next(s.calls)
	return s.last, nil
}

func (s *scriptedSessions) fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func always(rec func() *session.Record) func(int) *session.Record {
	return func(int) *session.Record { return rec() }
}

type fakePurchaser struct {
	res     ticket.Result
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (p *fakePurchaser) BuyTicket(context.Context, string) ticket.Result {
	p.calls.Add(1)
	if p.entered != nil {
		p.entered <- struct{}{}
	}
	if p.release != nil {
		<-p.release
	}
	return p.res
}

type fakeRecoverer struct {
	res     ticket.RecoverResult
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (r *fakeRecoverer) RecoverTicket(context.Context, string) ticket.RecoverResult {
	r.calls.Add(1)
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	return r.res
}

type fakeProfiles struct{ profile *ledger.ProfileRecord }

func (f fakeProfiles) Profile(context.Context, chain.Address) (*ledger.ProfileRecord, error) {
	return f.profile, nil
}

// blockingProfiles parks every read until release is closed.
type blockingProfiles struct {
	profile *ledger.ProfileRecord
	entered chan struct{}
	release chan struct{}
}

func (b *blockingProfiles) Profile(ctx context.Context, _ chain.Address) (*ledger.ProfileRecord, error) {
	b.entered <- struct{}{}
	select {
	case <-b.release:
		return b.profile, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fixture struct {
	c         *Coordinator
	clock     *clock.Fake
	kv        *store.Memory
	sessions  *scriptedSessions
	purchaser *fakePurchaser
	recoverer *fakeRecoverer
	start     time.Time
}

func newFixture(t *testing.T, next func(int) *session.Record, profile *ledger.ProfileRecord) *fixture {
	t.Helper()
	start := time.Date(2025, 1, 2, 4, 0, 0, 0, time.UTC)
	f := &fixture{
		clock:     clock.NewFake(start),
		kv:        store.NewMemory(),
		sessions:  &scriptedSessions{next: next},
		purchaser: &fakePurchaser{res: ticket.Result{Success: true, TicketPurchased: true, ResetApplied: true}},
		recoverer: &fakeRecoverer{res: ticket.RecoverResult{Success: true, Signature: "sig"}},
		start:     start,
	}
	f.c = NewCoordinator(Config{
		Player:              testPlayer,
		PeriodID:            testPeriod,
		Sync:                DefaultSyncPolicy(),
		RecoveryPropagation: 2 * time.Second,
	}, Deps{
		Sessions:  f.sessions,
		Profiles:  fakeProfiles{profile: profile},
		Purchaser: f.purchaser,
		Recoverer: f.recoverer,
		Store:     f.kv,
		Clock:     f.clock,
	})
	t.Cleanup(f.c.Close)
	return f
}

// phases drains buffered snapshots and returns their phases.
func phases(ch <-chan State) []Phase {
	var out []Phase
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, st.Phase)
		default:
			return out
		}
	}
}

func equalPhases(a, b []Phase) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
