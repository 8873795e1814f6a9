package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8090"`
	AdminAPIKey string `env:"ADMIN_API_KEY"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"sqlite"`
	PostgresDSN  string `env:"POSTGRES_DSN"`
	SQLitePath   string `env:"SQLITE_PATH" envDefault:"voble.db"`

	RedisAddr    string `env:"REDIS_ADDR"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"voble:auth-tokens"`

	CoordinatorIdleTTLMins int `env:"COORDINATOR_IDLE_TTL_MINUTES" envDefault:"30"`
	JanitorIntervalSecs    int `env:"JANITOR_INTERVAL_SECONDS" envDefault:"60"`
}

func (c ServerConfig) CoordinatorIdleTTL() time.Duration {
	return time.Duration(c.CoordinatorIdleTTLMins) * time.Minute
}

func (c ServerConfig) JanitorInterval() time.Duration {
	return time.Duration(c.JanitorIntervalSecs) * time.Second
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
