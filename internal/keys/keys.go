// Package keys manages the disposable ed25519 key that pays for TEE-side
// transactions so the player does not sign every guess.
package keys

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"sync"

	"voble/internal/chain"
	"voble/internal/store"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
)

var ErrKeyUnavailable = errors.New("session_key_unavailable")

type SessionKey struct {
	priv ed25519.PrivateKey
}

func (k *SessionKey) PublicKey() chain.Address {
	var a chain.Address
	copy(a[:], k.priv[ed25519.SeedSize:])
	return a
}

func (k *SessionKey) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(k.priv, msg), nil
}

// Provider hands out one session key per player, generating it on first use
// and persisting it so restarts reuse the same key.
type Provider struct {
	kv     store.KV
	random io.Reader

	mu    sync.Mutex
	cache map[chain.Address]*SessionKey
}

func NewProvider(kv store.KV) *Provider {
	return &Provider{kv: kv, random: rand.Reader, cache: map[chain.Address]*SessionKey{}}
}

func (p *Provider) SessionKey(ctx context.Context, player chain.Address) (*SessionKey, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if k, ok := p.cache[player]; ok {
		return k, nil
	}

	key := store.SessionKeypairKey(player.String())
	if k, ok := p.load(ctx, key); ok {
		p.cache[player] = k
		return k, nil
	}

	_, priv, err := ed25519.GenerateKey(p.random)
	if err != nil {
		return nil, errors.Join(ErrKeyUnavailable, err)
	}
	// Another process may have persisted a key since the first read.
	if k, ok := p.load(ctx, key); ok {
		p.cache[player] = k
		return k, nil
	}
	if err := p.kv.Set(ctx, key, base58.Encode(priv)); err != nil {
		return nil, errors.Join(ErrKeyUnavailable, err)
	}
	k := &SessionKey{priv: priv}
	p.cache[player] = k
	log.Info().Str("player", player.String()).Str("session_key", k.PublicKey().String()).Msg("generated session key")
	return k, nil
}

func (p *Provider) load(ctx context.Context, key string) (*SessionKey, bool) {
	raw, err := p.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Str("key", key).Msg("session key read failed")
		}
		return nil, false
	}
	b, err := base58.Decode(raw)
	if err != nil || len(b) != ed25519.PrivateKeySize {
		log.Warn().Str("key", key).Msg("stored session key malformed; regenerating")
		return nil, false
	}
	priv := ed25519.NewKeyFromSeed(b[:ed25519.SeedSize])
	if !bytes.Equal(priv[ed25519.SeedSize:], b[ed25519.SeedSize:]) {
		log.Warn().Str("key", key).Msg("stored session key public half mismatch; regenerating")
		return nil, false
	}
	return &SessionKey{priv: priv}, true
}

// FromSeed builds a key from a 32-byte seed, for wallets and tests.
func FromSeed(seed []byte) (*SessionKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, ErrKeyUnavailable
	}
	return &SessionKey{priv: ed25519.NewKeyFromSeed(seed)}, nil
}
