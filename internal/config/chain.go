package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ChainConfig struct {
	LedgerRPCURL string `env:"LEDGER_RPC_URL,required,notEmpty"`
	TEERPCURL    string `env:"TEE_RPC_URL,required,notEmpty"`
	ProgramID    string `env:"PROGRAM_ID,required,notEmpty"`
	PaymentMint  string `env:"PAYMENT_MINT"`
	// TicketPrice is in lamports.
	TicketPrice uint64 `env:"TICKET_PRICE" envDefault:"100000000"`

	ResetRetries        int `env:"RESET_RETRIES" envDefault:"3"`
	ResetRetryDelayMS   int `env:"RESET_RETRY_DELAY_MS" envDefault:"2000"`
	RecoveryRetries     int `env:"RECOVERY_RETRIES" envDefault:"5"`
	RecoveryDelayMS     int `env:"RECOVERY_RETRY_DELAY_MS" envDefault:"3000"`
	RecoveryPropagateMS int `env:"RECOVERY_PROPAGATION_MS" envDefault:"2000"`

	SyncAttempts       int `env:"SYNC_ATTEMPTS" envDefault:"12"`
	SyncStepMS         int `env:"SYNC_STEP_MS" envDefault:"1000"`
	SyncMaxDelayMS     int `env:"SYNC_MAX_DELAY_MS" envDefault:"5000"`
	SyncConfirmDelayMS int `env:"SYNC_CONFIRM_DELAY_MS" envDefault:"500"`

	ConfirmAttempts   int `env:"CONFIRM_ATTEMPTS" envDefault:"30"`
	ConfirmIntervalMS int `env:"CONFIRM_INTERVAL_MS" envDefault:"500"`
	CompleteSettleMS  int `env:"COMPLETE_SETTLE_MS" envDefault:"2000"`

	RPCTimeoutMS int `env:"RPC_TIMEOUT_MS" envDefault:"10000"`
}

func LoadChain() (ChainConfig, error) {
	var cfg ChainConfig
	err := env.Parse(&cfg)
	return cfg, err
}

func (c ChainConfig) RPCTimeout() time.Duration {
	return ms(c.RPCTimeoutMS)
}

func (c ChainConfig) ResetRetryDelay() time.Duration {
	return ms(c.ResetRetryDelayMS)
}

func (c ChainConfig) RecoveryDelay() time.Duration {
	return ms(c.RecoveryDelayMS)
}

func (c ChainConfig) RecoveryPropagation() time.Duration {
	return ms(c.RecoveryPropagateMS)
}

func (c ChainConfig) SyncStep() time.Duration {
	return ms(c.SyncStepMS)
}

func (c ChainConfig) SyncMaxDelay() time.Duration {
	return ms(c.SyncMaxDelayMS)
}

func (c ChainConfig) SyncConfirmDelay() time.Duration {
	return ms(c.SyncConfirmDelayMS)
}

func (c ChainConfig) ConfirmInterval() time.Duration {
	return ms(c.ConfirmIntervalMS)
}

func (c ChainConfig) CompleteSettle() time.Duration {
	return ms(c.CompleteSettleMS)
}

func ms(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	return time.Duration(n) * time.Millisecond
}
