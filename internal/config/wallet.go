package config

import "github.com/caarlos0/env/v11"

type WalletConfig struct {
	KeypairPath string `env:"WALLET_KEYPAIR_PATH"`
}

func LoadWallet() (WalletConfig, error) {
	var cfg WalletConfig
	err := env.Parse(&cfg)
	return cfg, err
}
