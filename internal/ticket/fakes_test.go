package ticket

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"voble/internal/auth"
	"voble/internal/chain"
	"voble/internal/clock"
	"voble/internal/keys"
	"voble/internal/period"
	"voble/internal/rpc"
	"voble/internal/store"
)

var (
	testProgram   = chain.Program{ID: chain.MustParseAddress("VobLeL6dUaN3mRPRS3d7xhJtJ2k1ak3nwHHBWHnUFkw")}
	testPeriods   = period.Periods{Daily: "2025-01-02", Weekly: "W52", Monthly: "2025-01"}
	testBlockhash = chain.MustParseAddress("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
)

type fakeWallet struct {
	priv ed25519.PrivateKey
	err  error

	mu    sync.Mutex
	sends []chain.Message
}

func newFakeWallet() *fakeWallet {
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = 7
	return &fakeWallet{priv: ed25519.NewKeyFromSeed(seed)}
}

func (w *fakeWallet) Address() chain.Address {
	var a chain.Address
	copy(a[:], w.priv.Public().(ed25519.PublicKey))
	return a
}

func (w *fakeWallet) SignAndSend(_ context.Context, msg chain.Message) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sends = append(w.sends, msg)
	if w.err != nil {
		return "", w.err
	}
	return "ledger-sig", nil
}

func (w *fakeWallet) SignMessage(_ context.Context, msg []byte) ([]byte, error) {
	return ed25519.Sign(w.priv, msg), nil
}

func (w *fakeWallet) sendCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sends)
}

type fakeTokens struct{ err error }

func (f fakeTokens) Token(context.Context, auth.MessageSigner) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "tok", nil
}

type fakeLedger struct{}

func (fakeLedger) LatestBlockhash(context.Context) (chain.Address, error) {
	return testBlockhash, nil
}

type fakeRecords struct{ err error }

func (f fakeRecords) CheckAggregationRecords(context.Context, period.Periods) error {
	return f.err
}

// fakeTEE answers simulations with sim/simErr and sends with sendErr(n),
// where n counts sends from 1.
type fakeTEE struct {
	sim     rpc.SimulationResult
	simErr  error
	sendErr func(n int) error

	mu        sync.Mutex
	simulated int
	sent      int
	payers    []chain.Address
}

func (f *fakeTEE) LatestBlockhash(context.Context) (chain.Address, error) {
	return testBlockhash, nil
}

func (f *fakeTEE) Simulate(_ context.Context, tx *chain.Transaction) (rpc.SimulationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.simulated++
	return f.sim, f.simErr
}

func (f *fakeTEE) Send(_ context.Context, tx *chain.Transaction, _ string) (string, error) {
	f.mu.Lock()
	f.sent++
	n := f.sent
	f.payers = append(f.payers, tx.Message.FeePayer)
	f.mu.Unlock()
	if f.sendErr != nil {
		if err := f.sendErr(n); err != nil {
			return "", err
		}
	}
	return tx.Signature(), nil
}

func (f *fakeTEE) counts() (simulated, sent int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.simulated, f.sent
}

func programRejection(code int, name string) rpc.SimulationResult {
	errJSON, _ := json.Marshal(map[string]any{"InstructionError": []any{0, map[string]int{"Custom": code}}})
	return rpc.SimulationResult{
		Err:  errJSON,
		Logs: []string{"Program log: AnchorError occurred. Error Code: " + name + "."},
	}
}

func alwaysFail(msg string) func(int) error {
	return func(int) error { return errors.New(msg) }
}

type harness struct {
	wallet  *fakeWallet
	tee     *fakeTEE
	clock   *clock.Fake
	keys    *keys.Provider
	records *fakeRecords
	tokens  *fakeTokens
}

func newHarness() *harness {
	return &harness{
		wallet:  newFakeWallet(),
		tee:     &fakeTEE{sim: programRejection(6031, "InvalidTicketReceipt")},
		clock:   clock.NewFake(time.Date(2025, 1, 2, 4, 0, 0, 0, time.UTC)),
		keys:    keys.NewProvider(store.NewMemory()),
		records: &fakeRecords{},
		tokens:  &fakeTokens{},
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Wallet:  h.wallet,
		Keys:    h.keys,
		Tokens:  h.tokens,
		Ledger:  fakeLedger{},
		TEE:     func(string) TEE { return h.tee },
		Records: h.records,
		Periods: period.Fixed(testPeriods),
		Program: testProgram,
		Clock:   h.clock,
	}
}

func (h *harness) opts() Options {
	return Options{
		TicketPrice:     100_000_000,
		ResetRetries:    3,
		ResetRetryDelay: 2 * time.Second,
		RecoveryRetries: 5,
		RecoveryDelay:   3 * time.Second,
	}
}

func (h *harness) executor() *Executor { return NewExecutor(h.deps(), h.opts()) }

func (h *harness) agent() *Agent { return NewAgent(h.deps(), h.opts()) }
