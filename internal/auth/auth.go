// Package auth obtains and caches bearer tokens for the TEE endpoint.
//
// Tokens are keyed by player address, persisted as one JSON object under
// store.AuthTokensKey, and every change is broadcast so other instances
// adopt it instead of repeating the challenge-response handshake.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"voble/internal/chain"
	"voble/internal/store"

	jwt "github.com/form3tech-oss/jwt-go"
	"github.com/mr-tron/base58"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrWalletNotConnected = errors.New("wallet_not_connected")
	ErrHandshakeFailed    = errors.New("auth_handshake_failed")
)

const defaultTokenTTL = time.Hour

// Credential mirrors the TEE login response. ExpiresAt is unix milliseconds.
type Credential struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

type MessageSigner interface {
	Address() chain.Address
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
}

type Client struct {
	baseURL string
	inner   *http.Client
	kv      store.KV
	bc      Broadcaster
	origin  string
	now     func() time.Time

	tokens *xsync.Map[string, Credential]
	flight *xsync.Map[string, *sync.Mutex]
	loaded atomic.Bool
}

func NewClient(baseURL string, kv store.KV, bc Broadcaster, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if bc == nil {
		bc = NewLocalBroadcaster()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		inner:   &http.Client{Timeout: timeout},
		kv:      kv,
		bc:      bc,
		origin:  store.NewID("auth"),
		now:     time.Now,
		tokens:  xsync.NewMap[string, Credential](),
		flight:  xsync.NewMap[string, *sync.Mutex](),
	}
}

// Start subscribes to token updates from other instances until ctx ends.
func (c *Client) Start(ctx context.Context) error {
	return c.bc.Subscribe(ctx, func(u Update) {
		if u.Origin == c.origin {
			return
		}
		c.replace(u.Tokens)
		c.loaded.Store(true)
		log.Debug().Str("from", u.Origin).Int("players", len(u.Tokens)).Msg("auth tokens updated by peer")
	})
}

// Cached returns a non-expired token without touching the network.
func (c *Client) Cached(ctx context.Context, player string) (string, bool) {
	c.ensureLoaded(ctx)
	cred, ok := c.tokens.Load(player)
	if !ok || cred.ExpiresAt <= c.now().UnixMilli() {
		return "", false
	}
	return cred.Token, true
}

// Token returns a valid token for the signer's address, running the
// challenge-response handshake when the cached one is missing or expired.
// Concurrent callers for the same player share one handshake.
func (c *Client) Token(ctx context.Context, signer MessageSigner) (string, error) {
	if signer == nil {
		return "", ErrWalletNotConnected
	}
	player := signer.Address().String()
	if tok, ok := c.Cached(ctx, player); ok {
		return tok, nil
	}

	mu, _ := c.flight.LoadOrStore(player, &sync.Mutex{})
	mu.Lock()
	defer mu.Unlock()
	if tok, ok := c.Cached(ctx, player); ok {
		return tok, nil
	}

	cred, err := c.handshake(ctx, signer)
	if err != nil {
		metricHandshakes.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	metricHandshakes.WithLabelValues("ok").Inc()
	c.tokens.Store(player, cred)
	c.persist(ctx)
	log.Info().Str("player", player).Time("expires_at", time.UnixMilli(cred.ExpiresAt)).Msg("authenticated with TEE")
	return cred.Token, nil
}

// Clear forgets the player's token so the next Token call re-authenticates.
func (c *Client) Clear(ctx context.Context, player string) {
	c.ensureLoaded(ctx)
	if _, ok := c.tokens.LoadAndDelete(player); !ok {
		return
	}
	c.persist(ctx)
	log.Info().Str("player", player).Msg("cleared TEE auth token")
}

func (c *Client) handshake(ctx context.Context, signer MessageSigner) (Credential, error) {
	pubkey := signer.Address().String()

	var challenge struct {
		Challenge string `json:"challenge"`
		Error     string `json:"error"`
	}
	q := url.Values{"pubkey": []string{pubkey}}
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/auth/challenge?"+q.Encode(), nil, &challenge); err != nil {
		return Credential{}, fmt.Errorf("challenge: %w", err)
	}
	if challenge.Challenge == "" {
		return Credential{}, fmt.Errorf("challenge: empty (%s)", challenge.Error)
	}

	sig, err := signer.SignMessage(ctx, []byte(challenge.Challenge))
	if err != nil {
		return Credential{}, fmt.Errorf("sign challenge: %w", err)
	}

	var login struct {
		Token     string `json:"token"`
		ExpiresAt int64  `json:"expiresAt"`
		Error     string `json:"error"`
	}
	body := map[string]string{
		"pubkey":    pubkey,
		"challenge": challenge.Challenge,
		"signature": base58.Encode(sig),
	}
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/auth/login", body, &login); err != nil {
		return Credential{}, fmt.Errorf("login: %w", err)
	}
	if login.Token == "" {
		return Credential{}, fmt.Errorf("login: no token (%s)", login.Error)
	}
	cred := Credential{Token: login.Token, ExpiresAt: login.ExpiresAt}
	if cred.ExpiresAt <= 0 {
		cred.ExpiresAt = c.expiryFromToken(login.Token)
	}
	return cred, nil
}

// expiryFromToken reads the exp claim when the login response omits
// expiresAt. The signature is the TEE's business, not ours.
func (c *Client) expiryFromToken(token string) int64 {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err == nil {
		if exp, ok := claims["exp"].(float64); ok && exp > 0 {
			return int64(exp) * 1000
		}
	}
	return c.now().Add(defaultTokenTTL).UnixMilli()
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body any, out any) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.inner.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) snapshot() map[string]Credential {
	out := make(map[string]Credential, c.tokens.Size())
	c.tokens.Range(func(k string, v Credential) bool {
		out[k] = v
		return true
	})
	return out
}

func (c *Client) replace(tokens map[string]Credential) {
	c.tokens.Clear()
	for k, v := range tokens {
		c.tokens.Store(k, v)
	}
}

func (c *Client) persist(ctx context.Context) {
	tokens := c.snapshot()
	raw, err := json.Marshal(tokens)
	if err != nil {
		return
	}
	if c.kv != nil {
		if err := c.kv.Set(ctx, store.AuthTokensKey, string(raw)); err != nil {
			log.Warn().Err(err).Msg("persist auth tokens failed")
		}
	}
	if err := c.bc.Publish(ctx, Update{Origin: c.origin, Tokens: tokens}); err != nil {
		log.Warn().Err(err).Msg("broadcast auth tokens failed")
	}
}

// ensureLoaded pulls persisted tokens while the in-memory cache is empty.
func (c *Client) ensureLoaded(ctx context.Context) {
	if c.loaded.Load() || c.kv == nil || c.tokens.Size() > 0 {
		return
	}
	raw, err := c.kv.Get(ctx, store.AuthTokensKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.loaded.Store(true)
		}
		return
	}
	var tokens map[string]Credential
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		log.Warn().Err(err).Msg("stored auth tokens malformed; ignoring")
		c.loaded.Store(true)
		return
	}
	c.replace(tokens)
	c.loaded.Store(true)
}
