package store

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// KV is the persisted key/value store backing session timers, the auth token
// cache and disposable session keys.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

const AuthTokensKey = "private-rollup-auth-tokens"

func StartTimeKey(player, periodID string) string {
	return fmt.Sprintf("voble_startTime_%s_%s", player, periodID)
}

func SessionKeypairKey(player string) string {
	return "voble_temp_keypair_" + player
}

// Open picks a backend by name. The caller closes the returned store.
func Open(ctx context.Context, backend, postgresDSN, sqlitePath string) (KV, func(), error) {
	switch backend {
	case "postgres":
		st, err := New(postgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := st.Ping(ctx); err != nil {
			st.Close()
			return nil, nil, err
		}
		if err := st.EnsureSchema(ctx); err != nil {
			st.Close()
			return nil, nil, err
		}
		return st, st.Close, nil
	case "sqlite", "":
		st, err := OpenSQLite(sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	case "memory":
		return NewMemory(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
