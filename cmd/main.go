package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"wallet-session/internal/api"
	"wallet-session/internal/config"
	"wallet-session/internal/database"
	"wallet-session/internal/emitters"
	"wallet-session/internal/events"
	"wallet-session/internal/health"
	"wallet-session/internal/interfaces"
	"wallet-session/internal/logger"
	"wallet-session/internal/monitors"
	"wallet-session/internal/provider"
	"wallet-session/internal/session"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			logger.GetLogger().Error().Interface("panic", r).Msg("Application panicked, recovering")
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.GetLogger().Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(cfg.LogLevel)
	log := logger.GetLogger()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ks, err := provider.OpenKeystore(cfg.Wallet.KeystoreDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Please install a wallet")
	}

	wallet, err := provider.New(ctx, provider.Options{
		Chains:       cfg.Chains,
		DefaultChain: cfg.DefaultChain,
		Passphrase:   cfg.Wallet.Passphrase,
		PollInterval: cfg.Wallet.ChainPollInterval,
	}, ks, provider.DialHTTP(cfg.HTTP.Timeout, logger.Component("rpc")), logger.Component("provider"))
	if err != nil {
		log.Fatal().Err(err).Msg("Please install a wallet")
	}
	defer wallet.Close()

	var (
		sinks   []interfaces.EventEmitter
		journal api.EventLister
	)

	if cfg.Kafka.Enabled {
		kafkaEmitter := emitters.NewKafkaEmitter(cfg.Kafka, logger.Component("kafka"))
		defer kafkaEmitter.Close()
		sinks = append(sinks, kafkaEmitter)
	}

	if cfg.Database.Enabled {
		db, err := database.Open(cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		if err := database.RunMigrations(db, cfg.Database.DBName); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		j := database.NewJournal(db, logger.Component("journal"))
		defer j.Close()
		sinks = append(sinks, j)
		journal = j
	}

	emitter := &events.LogEmitter{WrappedEmitters: sinks, Logger: logger.Component("events")}

	controller := session.NewController(wallet, emitter, session.Options{
		History:        cfg.Features.History,
		Voting:         cfg.Features.Voting,
		NetworkNames:   cfg.Features.NetworkNames,
		ConfirmTimeout: cfg.Wallet.ConfirmTimeout,
		VotingContract: common.HexToAddress(cfg.Voting.ContractAddress),
		ProposalCount:  uint64(cfg.Voting.ProposalCount),
	}, logger.Component("session"))

	if err := controller.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("Please install a wallet")
	}

	if cfg.Wallet.BalanceWatchInterval > 0 {
		monitors.NewBalanceMonitor(wallet, controller, cfg.Wallet.BalanceWatchInterval, logger.Component("balance")).Start(ctx)
	}

	checker := health.NewChecker(logger.Component("health"))
	checker.RegisterProvider(ctx, wallet, cfg.Wallet.ChainPollInterval)
	checker.SetReady(true)

	server := &http.Server{
		Addr:              cfg.HTTP.ListenAddress,
		Handler:           api.NewRouter(api.NewAPI(controller, journal, *logger.Component("api")), checker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.HTTP.ListenAddress).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}
