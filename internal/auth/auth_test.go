package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"voble/internal/chain"
	"voble/internal/config"
	"voble/internal/store"

	"github.com/alicebob/miniredis/v2"
	jwt "github.com/form3tech-oss/jwt-go"
	"github.com/mr-tron/base58"
	"github.com/redis/go-redis/v9"
)

type testSigner struct {
	priv ed25519.PrivateKey
	fail bool
}

func newTestSigner(seed byte) *testSigner {
	s := make([]byte, ed25519.SeedSize)
	for i := range s {
		s[i] = seed
	}
	return &testSigner{priv: ed25519.NewKeyFromSeed(s)}
}

func (s *testSigner) Address() chain.Address {
	var a chain.Address
	copy(a[:], s.priv.Public().(ed25519.PublicKey))
	return a
}

func (s *testSigner) SignMessage(_ context.Context, msg []byte) ([]byte, error) {
	if s.fail {
		return nil, errors.New("User rejected the request")
	}
	return ed25519.Sign(s.priv, msg), nil
}

// fakeTEE serves the challenge/login pair and verifies signatures.
type fakeTEE struct {
	logins    atomic.Int32
	expiresAt int64
	token     string
}

func (f *fakeTEE) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/challenge", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"challenge": "nonce-" + r.URL.Query().Get("pubkey")})
	})
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Pubkey    string `json:"pubkey"`
			Challenge string `json:"challenge"`
			Signature string `json:"signature"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode login: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		pub, _ := base58.Decode(body.Pubkey)
		sig, _ := base58.Decode(body.Signature)
		if len(pub) != ed25519.PublicKeySize || !ed25519.Verify(pub, []byte(body.Challenge), sig) {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad signature"})
			return
		}
		f.logins.Add(1)
		resp := map[string]any{"token": f.token}
		if f.expiresAt > 0 {
			resp["expiresAt"] = f.expiresAt
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func newFakeTEE(t *testing.T, tee *fakeTEE) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(tee.handler(t))
	t.Cleanup(srv.Close)
	return srv
}

func TestTokenHandshakeAndCache(t *testing.T) {
	tee := &fakeTEE{token: "tok-1", expiresAt: time.Now().Add(time.Hour).UnixMilli()}
	srv := newFakeTEE(t, tee)
	kv := store.NewMemory()
	c := NewClient(srv.URL, kv, nil, time.Second)
	signer := newTestSigner(1)

	tok, err := c.Token(context.Background(), signer)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok != "tok-1" {
		t.Fatalf("expected tok-1, got %q", tok)
	}
	if _, err := c.Token(context.Background(), signer); err != nil {
		t.Fatalf("second token: %v", err)
	}
	if n := tee.logins.Load(); n != 1 {
		t.Fatalf("expected one login, got %d", n)
	}

	raw, err := kv.Get(context.Background(), store.AuthTokensKey)
	if err != nil {
		t.Fatalf("persisted tokens: %v", err)
	}
	var persisted map[string]Credential
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		t.Fatalf("decode persisted: %v", err)
	}
	if persisted[signer.Address().String()].Token != "tok-1" {
		t.Fatalf("unexpected persisted map: %s", raw)
	}
}

func TestTokenConcurrentCallersShareHandshake(t *testing.T) {
	tee := &fakeTEE{token: "tok", expiresAt: time.Now().Add(time.Hour).UnixMilli()}
	srv := newFakeTEE(t, tee)
	c := NewClient(srv.URL, store.NewMemory(), nil, time.Second)
	signer := newTestSigner(2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Token(context.Background(), signer); err != nil {
				t.Errorf("token: %v", err)
			}
		}()
	}
	wg.Wait()
	if n := tee.logins.Load(); n != 1 {
		t.Fatalf("expected single handshake, got %d", n)
	}
}

func TestTokenExpiredTriggersNewHandshake(t *testing.T) {
	tee := &fakeTEE{token: "tok", expiresAt: time.Now().Add(time.Minute).UnixMilli()}
	srv := newFakeTEE(t, tee)
	c := NewClient(srv.URL, store.NewMemory(), nil, time.Second)
	signer := newTestSigner(3)

	if _, err := c.Token(context.Background(), signer); err != nil {
		t.Fatalf("token: %v", err)
	}
	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := c.Token(context.Background(), signer); err != nil {
		t.Fatalf("token after expiry: %v", err)
	}
	if n := tee.logins.Load(); n != 2 {
		t.Fatalf("expected two handshakes, got %d", n)
	}
}

func TestTokenExpiryFromJWTClaim(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Unix()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	tee := &fakeTEE{token: signed}
	srv := newFakeTEE(t, tee)
	c := NewClient(srv.URL, store.NewMemory(), nil, time.Second)
	signer := newTestSigner(4)

	if _, err := c.Token(context.Background(), signer); err != nil {
		t.Fatalf("token: %v", err)
	}
	cred, _ := c.tokens.Load(signer.Address().String())
	if cred.ExpiresAt != exp*1000 {
		t.Fatalf("expected expiry %d, got %d", exp*1000, cred.ExpiresAt)
	}
}

func TestTokenExpiryDefaultsToOneHour(t *testing.T) {
	tee := &fakeTEE{token: "opaque"}
	srv := newFakeTEE(t, tee)
	c := NewClient(srv.URL, store.NewMemory(), nil, time.Second)
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	signer := newTestSigner(5)

	if _, err := c.Token(context.Background(), signer); err != nil {
		t.Fatalf("token: %v", err)
	}
	cred, _ := c.tokens.Load(signer.Address().String())
	if want := now.Add(time.Hour).UnixMilli(); cred.ExpiresAt != want {
		t.Fatalf("expected %d, got %d", want, cred.ExpiresAt)
	}
}

func TestTokenErrors(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", store.NewMemory(), nil, time.Second)
	if _, err := c.Token(context.Background(), nil); !errors.Is(err, ErrWalletNotConnected) {
		t.Fatalf("expected ErrWalletNotConnected, got %v", err)
	}

	tee := &fakeTEE{token: "tok"}
	srv := newFakeTEE(t, tee)
	c = NewClient(srv.URL, store.NewMemory(), nil, time.Second)
	signer := newTestSigner(6)
	signer.fail = true
	_, err := c.Token(context.Background(), signer)
	if !errors.Is(err, ErrHandshakeFailed) {
		t.Fatalf("expected ErrHandshakeFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "sign challenge") {
		t.Fatalf("expected sign challenge context, got %v", err)
	}
}

func TestClearForcesReauth(t *testing.T) {
	tee := &fakeTEE{token: "tok", expiresAt: time.Now().Add(time.Hour).UnixMilli()}
	srv := newFakeTEE(t, tee)
	kv := store.NewMemory()
	c := NewClient(srv.URL, kv, nil, time.Second)
	signer := newTestSigner(7)
	ctx := context.Background()

	if _, err := c.Token(ctx, signer); err != nil {
		t.Fatalf("token: %v", err)
	}
	c.Clear(ctx, signer.Address().String())
	if _, ok := c.Cached(ctx, signer.Address().String()); ok {
		t.Fatalf("expected token cleared")
	}
	raw, _ := kv.Get(ctx, store.AuthTokensKey)
	if strings.Contains(raw, signer.Address().String()) {
		t.Fatalf("expected persisted map without player, got %s", raw)
	}
	if _, err := c.Token(ctx, signer); err != nil {
		t.Fatalf("token: %v", err)
	}
	if n := tee.logins.Load(); n != 2 {
		t.Fatalf("expected reauth, got %d logins", n)
	}
}

func TestCachedLoadsPersistedTokens(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()
	exp := time.Now().Add(time.Hour).UnixMilli()
	raw, _ := json.Marshal(map[string]Credential{"player-a": {Token: "stored", ExpiresAt: exp}})
	if err := kv.Set(ctx, store.AuthTokensKey, string(raw)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	c := NewClient("http://unused", kv, nil, time.Second)
	tok, ok := c.Cached(ctx, "player-a")
	if !ok || tok != "stored" {
		t.Fatalf("expected stored token, got %q ok=%v", tok, ok)
	}
}

func TestLocalBroadcasterSharesTokens(t *testing.T) {
	tee := &fakeTEE{token: "shared", expiresAt: time.Now().Add(time.Hour).UnixMilli()}
	srv := newFakeTEE(t, tee)
	bc := NewLocalBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewClient(srv.URL, nil, bc, time.Second)
	b := NewClient(srv.URL, nil, bc, time.Second)
	if err := b.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	signer := newTestSigner(8)
	if _, err := a.Token(ctx, signer); err != nil {
		t.Fatalf("token: %v", err)
	}
	tok, ok := b.Cached(ctx, signer.Address().String())
	if !ok || tok != "shared" {
		t.Fatalf("expected peer to adopt token, got %q ok=%v", tok, ok)
	}
}

// redisAddr prefers TEST_REDIS_ADDR and falls back to an in-process server.
func redisAddr(t *testing.T) string {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil {
		t.Fatalf("load test config: %v", err)
	}
	if cfg.TestRedisAddr != "" {
		return cfg.TestRedisAddr
	}
	return miniredis.RunT(t).Addr()
}

func TestRedisBroadcasterSharesTokens(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr(t)})
	t.Cleanup(func() { _ = rdb.Close() })

	tee := &fakeTEE{token: "via-redis", expiresAt: time.Now().Add(time.Hour).UnixMilli()}
	srv := newFakeTEE(t, tee)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewClient(srv.URL, nil, NewRedisBroadcaster(rdb, "voble:test:"+t.Name()), time.Second)
	b := NewClient(srv.URL, nil, NewRedisBroadcaster(rdb, "voble:test:"+t.Name()), time.Second)
	if err := b.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	signer := newTestSigner(9)
	if _, err := a.Token(ctx, signer); err != nil {
		t.Fatalf("token: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tok, ok := b.Cached(ctx, signer.Address().String()); ok {
			if tok != "via-redis" {
				t.Fatalf("unexpected token %q", tok)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("peer never received token update")
}
