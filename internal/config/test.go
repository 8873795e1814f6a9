package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
)

var ErrNoTestPostgres = errors.New("TEST_POSTGRES_DSN not set")

// TestConfig points integration tests at real backends. Tests fall back to
// in-process fakes or skip when a field is empty.
type TestConfig struct {
	TestPostgresDSN string `env:"TEST_POSTGRES_DSN"`
	TestRedisAddr   string `env:"TEST_REDIS_ADDR"`
}

func LoadTest() (TestConfig, error) {
	var cfg TestConfig
	err := env.Parse(&cfg)
	return cfg, err
}

// PostgresDSN returns the test database or ErrNoTestPostgres.
func (c TestConfig) PostgresDSN() (string, error) {
	if c.TestPostgresDSN == "" {
		return "", ErrNoTestPostgres
	}
	return c.TestPostgresDSN, nil
}
