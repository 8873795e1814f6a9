package session

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"testing"

	"voble/internal/auth"
	"voble/internal/chain"
	"voble/internal/rpc"
)

var testProgram = chain.Program{ID: chain.MustParseAddress("VobLeL6dUaN3mRPRS3d7xhJtJ2k1ak3nwHHBWHnUFkw")}

type testSigner struct{ priv ed25519.PrivateKey }

func (s testSigner) Address() chain.Address {
	var a chain.Address
	copy(a[:], s.priv.Public().(ed25519.PublicKey))
	return a
}

func (s testSigner) SignMessage(_ context.Context, msg []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, msg), nil
}

type fakeTokens struct {
	err     error
	cleared []string
}

func (f *fakeTokens) Token(context.Context, auth.MessageSigner) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "tok", nil
}

func (f *fakeTokens) Clear(_ context.Context, player string) {
	f.cleared = append(f.cleared, player)
}

type fakeAccount struct {
	data []byte
	ok   bool
	err  error
}

func (f *fakeAccount) AccountInfo(context.Context, chain.Address) ([]byte, bool, error) {
	return f.data, f.ok, f.err
}

func newTestReader(tokens *fakeTokens, acc *fakeAccount) (*Reader, testSigner) {
	signer := testSigner{priv: ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))}
	r := &Reader{signer: signer, tokens: tokens, program: testProgram}
	r.open = func(string) AccountReader { return acc }
	return r, signer
}

func TestFetchCurrentSession(t *testing.T) {
	acc := &fakeAccount{ok: true}
	r, signer := newTestReader(&fakeTokens{}, acc)
	acc.data = chain.EncodeSession(chain.SessionAccount{
		Player:      signer.Address(),
		PeriodID:    "2025-01-02",
		GuessesUsed: 2,
		TimeMs:      4200,
		Guesses: []chain.Guess{
			{Word: "CRANE", Result: []chain.LetterResult{0, 1, 2, 0, 0}},
			{Word: "SLATE", Result: []chain.LetterResult{2, 2, 2, 2, 2}},
		},
		RevealedTargetWord: "SLATE",
	})

	rec, err := r.Fetch(context.Background(), " 2025-01-02 ")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !rec.IsCurrentPeriod || rec.Completed || !rec.Playable() {
		t.Fatalf("expected playable current session, got %+v", rec)
	}
	if rec.GuessesUsed != 2 || len(rec.Guesses) != 2 || rec.TimeMs != 4200 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.TargetWord != "" {
		t.Fatalf("target word must stay hidden until completion, got %q", rec.TargetWord)
	}
}

func TestFetchStaleSession(t *testing.T) {
	acc := &fakeAccount{ok: true}
	r, signer := newTestReader(&fakeTokens{}, acc)
	acc.data = chain.EncodeSession(chain.SessionAccount{Player: signer.Address(), PeriodID: "2025-01-01", Completed: true, RevealedTargetWord: "CRANE"})

	rec, err := r.Fetch(context.Background(), "2025-01-02")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if rec.IsCurrentPeriod || rec.Playable() {
		t.Fatalf("expected stale session, got %+v", rec)
	}
	if rec.PeriodIDOnRecord != "2025-01-01" || rec.TargetWord != "CRANE" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestFetchAbsent(t *testing.T) {
	r, _ := newTestReader(&fakeTokens{}, &fakeAccount{})
	rec, err := r.Fetch(context.Background(), "2025-01-02")
	if err != nil || rec != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", rec, err)
	}
}

func TestFetchPreconditions(t *testing.T) {
	r, _ := newTestReader(&fakeTokens{}, &fakeAccount{})
	if _, err := r.Fetch(context.Background(), "  "); !errors.Is(err, ErrPeriodRequired) {
		t.Fatalf("expected ErrPeriodRequired, got %v", err)
	}
	r.signer = nil
	if _, err := r.Fetch(context.Background(), "2025-01-02"); !errors.Is(err, ErrNoWallet) {
		t.Fatalf("expected ErrNoWallet, got %v", err)
	}
}

func TestFetchDecodeFailure(t *testing.T) {
	r, _ := newTestReader(&fakeTokens{}, &fakeAccount{ok: true, data: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}})
	_, err := r.Fetch(context.Background(), "2025-01-02")
	if !errors.Is(err, ErrSessionDecode) {
		t.Fatalf("expected ErrSessionDecode, got %v", err)
	}
}

func TestFetchClearsTokenAfterSecondNetworkFailure(t *testing.T) {
	tokens := &fakeTokens{}
	acc := &fakeAccount{err: fmt.Errorf("%w: tee getAccountInfo: connection reset", rpc.ErrUnavailable)}
	r, signer := newTestReader(tokens, acc)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		rec, err := r.Fetch(ctx, "2025-01-02")
		if err != nil || rec != nil {
			t.Fatalf("attempt %d: expected nil, nil; got %+v, %v", i, rec, err)
		}
	}
	if len(tokens.cleared) != 1 || tokens.cleared[0] != signer.Address().String() {
		t.Fatalf("expected one clear for player, got %v", tokens.cleared)
	}
	if r.failures != 0 {
		t.Fatalf("expected counter reset, got %d", r.failures)
	}
}

func TestFetchSuccessResetsFailureCounter(t *testing.T) {
	tokens := &fakeTokens{}
	acc := &fakeAccount{err: fmt.Errorf("%w: boom", rpc.ErrUnavailable)}
	r, _ := newTestReader(tokens, acc)
	ctx := context.Background()

	_, _ = r.Fetch(ctx, "2025-01-02")
	acc.err = nil
	_, _ = r.Fetch(ctx, "2025-01-02")
	acc.err = fmt.Errorf("%w: boom", rpc.ErrUnavailable)
	_, _ = r.Fetch(ctx, "2025-01-02")

	if len(tokens.cleared) != 0 {
		t.Fatalf("non-consecutive failures must not clear token, got %v", tokens.cleared)
	}
}

func TestFetchTokenFailureReportsAbsent(t *testing.T) {
	r, _ := newTestReader(&fakeTokens{err: auth.ErrHandshakeFailed}, &fakeAccount{ok: true})
	rec, err := r.Fetch(context.Background(), "2025-01-02")
	if err != nil || rec != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", rec, err)
	}
}
