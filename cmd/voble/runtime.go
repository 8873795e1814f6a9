package main

import (
	"context"
	"errors"
	"fmt"

	appgame "voble/internal/app/game"
	"voble/internal/auth"
	"voble/internal/chain"
	"voble/internal/config"
	gamecore "voble/internal/game"
	"voble/internal/keys"
	"voble/internal/ledger"
	"voble/internal/period"
	"voble/internal/play"
	"voble/internal/rpc"
	"voble/internal/session"
	"voble/internal/store"
	"voble/internal/ticket"
	"voble/internal/wallet"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var errNoKeypair = errors.New("WALLET_KEYPAIR_PATH is required")

// runtime is the wired object graph shared by the commands.
type runtime struct {
	cfg     config.AppConfig
	kv      store.KV
	wallet  *wallet.Keyfile
	auth    *auth.Client
	agent   *ticket.Agent
	service *appgame.Service

	closers []func()
}

func (rt *runtime) Close() {
	if rt.service != nil {
		rt.service.Close()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

func openStore(ctx context.Context, cfg config.ServerConfig) (store.KV, func(), error) {
	kv, closeKV, err := store.Open(ctx, cfg.StoreBackend, cfg.PostgresDSN, cfg.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	return kv, closeKV, nil
}

func newBroadcaster(cfg config.ServerConfig) (auth.Broadcaster, func()) {
	if cfg.RedisAddr == "" {
		return auth.NewLocalBroadcaster(), func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	log.Info().Str("addr", cfg.RedisAddr).Str("channel", cfg.RedisChannel).Msg("auth tokens shared over redis")
	return auth.NewRedisBroadcaster(client, cfg.RedisChannel), func() { _ = client.Close() }
}

func newRuntime(ctx context.Context, cfg config.AppConfig) (*runtime, error) {
	if cfg.Wallet.KeypairPath == "" {
		return nil, errNoKeypair
	}
	programID, err := chain.ParseAddress(cfg.Chain.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("PROGRAM_ID: %w", err)
	}
	program := chain.Program{ID: programID}

	rt := &runtime{cfg: cfg}
	kv, closeKV, err := openStore(ctx, cfg.Server)
	if err != nil {
		return nil, err
	}
	rt.kv = kv
	rt.closers = append(rt.closers, closeKV)

	ledgerRPC := rpc.NewClient("ledger", cfg.Chain.LedgerRPCURL, cfg.Chain.RPCTimeout())
	teeRPC := rpc.NewClient("tee", cfg.Chain.TEERPCURL, cfg.Chain.RPCTimeout())

	w, err := wallet.LoadKeyfile(cfg.Wallet.KeypairPath, ledgerRPC)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	w.ConfirmAttempts = cfg.Chain.ConfirmAttempts
	w.ConfirmInterval = cfg.Chain.ConfirmInterval()
	rt.wallet = w

	bc, closeBC := newBroadcaster(cfg.Server)
	rt.closers = append(rt.closers, closeBC)
	rt.auth = auth.NewClient(cfg.Chain.TEERPCURL, kv, bc, cfg.Chain.RPCTimeout())

	ticketOpts, err := ticket.OptionsFromConfig(cfg.Chain)
	if err != nil {
		rt.Close()
		return nil, err
	}
	sessionKeys := keys.NewProvider(kv)
	records := ledger.NewReader(ledgerRPC, program)
	sessions := session.NewReader(teeRPC, rt.auth, w, program)
	periods := period.ClockProvider{}

	ticketDeps := ticket.Deps{
		Wallet:  w,
		Keys:    sessionKeys,
		Tokens:  rt.auth,
		Ledger:  ledgerRPC,
		TEE:     ticket.TEEDialer(teeRPC),
		Records: records,
		Periods: periods,
		Program: program,
	}
	executor := ticket.NewExecutor(ticketDeps, ticketOpts)
	rt.agent = ticket.NewAgent(ticketDeps, ticketOpts)

	runner := play.NewRunner(play.Deps{
		Wallet:   w,
		Keys:     sessionKeys,
		Tokens:   rt.auth,
		TEE:      play.TEEDialer(teeRPC),
		Sessions: sessions,
		Periods:  periods,
		Program:  program,
	}, play.OptionsFromConfig(cfg.Chain))

	player := w.Address()
	coordCfg := gamecore.Config{
		Player:              player,
		Sync:                gamecore.SyncPolicyFromConfig(cfg.Chain),
		RecoveryPropagation: cfg.Chain.RecoveryPropagation(),
	}
	coordDeps := gamecore.Deps{
		Sessions:  sessions,
		Profiles:  records,
		Purchaser: executor,
		Recoverer: rt.agent,
		Store:     kv,
	}
	rt.service = appgame.NewService(appgame.Deps{
		Player:  player,
		Periods: periods,
		Runner:  runner,
		NewCoordinator: func(periodID string) *gamecore.Coordinator {
			c := coordCfg
			c.PeriodID = periodID
			return gamecore.NewCoordinator(c, coordDeps)
		},
	}, appgame.Options{IdleTTL: cfg.Server.CoordinatorIdleTTL()})

	log.Info().Str("player", player.String()).Str("program", programID.String()).Str("store", cfg.Server.StoreBackend).Msg("runtime ready")
	return rt, nil
}
