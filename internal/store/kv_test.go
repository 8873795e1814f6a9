package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func exerciseKV(t *testing.T, ctx context.Context, kv KV) {
	t.Helper()
	key := StartTimeKey("player1", "2024-06-01")

	if _, err := kv.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) err = %v, want ErrNotFound", err)
	}
	if err := kv.Set(ctx, key, "1717200000000"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := kv.Set(ctx, key, "1717200000500"); err != nil {
		t.Fatalf("Set(overwrite) error = %v", err)
	}
	got, err := kv.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "1717200000500" {
		t.Fatalf("Get() = %q, want 1717200000500", got)
	}
	if err := kv.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := kv.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(after delete) err = %v, want ErrNotFound", err)
	}
}

func TestMemoryKV(t *testing.T) {
	exerciseKV(t, context.Background(), NewMemory())
}

func TestSQLiteKV(t *testing.T) {
	st, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer st.Close()
	exerciseKV(t, context.Background(), st)
}

func TestSQLiteKVSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	ctx := context.Background()
	st, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := st.Set(ctx, SessionKeypairKey("p"), "abc"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	_ = st.Close()

	st, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer st.Close()
	if v, err := st.Get(ctx, SessionKeypairKey("p")); err != nil || v != "abc" {
		t.Fatalf("Get() = %q, %v", v, err)
	}
}

func TestPostgresKV(t *testing.T) {
	st, ctx, cleanup := openPostgres(t)
	defer cleanup()
	exerciseKV(t, ctx, st)
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, _, err := Open(context.Background(), "etcd", "", ""); err == nil {
		t.Fatal("Open(etcd) expected error")
	}
}

func TestNewIDIsPrefixedAndIncreasing(t *testing.T) {
	a := NewID("att")
	b := NewID("att")
	if !strings.HasPrefix(a, "att_") {
		t.Fatalf("NewID() = %q, want att_ prefix", a)
	}
	if a >= b {
		t.Fatalf("ids not increasing: %q >= %q", a, b)
	}
}
