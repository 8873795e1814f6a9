package config

import "testing"

func TestLoadServerDefaults(t *testing.T) {
	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.HTTPAddr != ":8090" {
		t.Fatalf("HTTPAddr = %q, want :8090", cfg.HTTPAddr)
	}
	if cfg.StoreBackend != "sqlite" {
		t.Fatalf("StoreBackend = %q, want sqlite", cfg.StoreBackend)
	}
	if cfg.RedisChannel != "voble:auth-tokens" {
		t.Fatalf("RedisChannel = %q, want voble:auth-tokens", cfg.RedisChannel)
	}
	if cfg.CoordinatorIdleTTLMins != 30 {
		t.Fatalf("CoordinatorIdleTTLMins = %d, want 30", cfg.CoordinatorIdleTTLMins)
	}
}

func TestLoadServerOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/voble?sslmode=disable")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("COORDINATOR_IDLE_TTL_MINUTES", "5")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.StoreBackend != "postgres" || cfg.PostgresDSN == "" {
		t.Fatalf("unexpected store config: %+v", cfg)
	}
	if cfg.RedisAddr != "127.0.0.1:6379" {
		t.Fatalf("RedisAddr = %q", cfg.RedisAddr)
	}
	if cfg.CoordinatorIdleTTLMins != 5 {
		t.Fatalf("CoordinatorIdleTTLMins = %d, want 5", cfg.CoordinatorIdleTTLMins)
	}
}
