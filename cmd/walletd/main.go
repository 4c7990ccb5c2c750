package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/taskbay/walletcore/internal/api"
	"github.com/taskbay/walletcore/internal/chain"
	"github.com/taskbay/walletcore/internal/config"
	"github.com/taskbay/walletcore/internal/handler"
	"github.com/taskbay/walletcore/internal/logger"
	"github.com/taskbay/walletcore/internal/metrics"
	"github.com/taskbay/walletcore/internal/model"
	"github.com/taskbay/walletcore/internal/payment"
	"github.com/taskbay/walletcore/internal/repo"
	"github.com/taskbay/walletcore/internal/tokengate"
	"github.com/taskbay/walletcore/internal/txbuilder"
	"github.com/taskbay/walletcore/internal/vault"
	"github.com/taskbay/walletcore/internal/x402"

	_ "github.com/taskbay/walletcore/docs"
)

const shutdownTimeout = 15 * time.Second

// @title Wallet Core API
// @version 1.0
// @description Custodial wallet and on-chain payment subsystem
// @BasePath /
func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet: config failures go to stderr directly.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	v, err := vault.New([]byte(cfg.EncryptionKey))
	if err != nil {
		log.Fatal("vault init failed", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	rec := metrics.New(registry)

	gw := chain.NewSolanaGateway(cfg.SolanaRPCURL, log, rec)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store repo.Store
	if cfg.RedisAddr != "" {
		redisStore, err := repo.NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("redis connect failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		defer redisStore.Close()
		store = redisStore
		log.Info("using redis store", zap.String("addr", cfg.RedisAddr))
	} else {
		store = repo.NewMemory()
		log.Warn("using in-memory store, state will not survive restarts")
	}

	asset := model.NativeAsset()
	if cfg.AssetMint != "" {
		// Already validated by config.Load.
		mint := solana.MustPublicKeyFromBase58(cfg.AssetMint)
		asset = model.Asset{Symbol: cfg.AssetSymbol, Mint: mint, Decimals: cfg.AssetDecimals}
	}

	builder := txbuilder.New(gw)
	orchestrator := payment.New(store, gw, v, builder, payment.Settings{
		Quota:            cfg.FreeUseQuota,
		Price:            cfg.Price(),
		Asset:            asset,
		ReceivingAddress: cfg.Receiving(),
		ConfirmTimeout:   cfg.ConfirmTimeout,
	}, log, rec)
	protocol := x402.New(gw, builder, cfg.Network, log, rec)
	gate := tokengate.New(gw, log)

	router := api.SetupRouter(api.Handlers{
		Payment:   handler.NewPaymentHandler(orchestrator, protocol, store, asset),
		Wallet:    handler.NewWalletHandler(orchestrator),
		TokenGate: handler.NewTokenGateHandler(gate, store, rec),
	}, registry)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("port", cfg.Port), zap.String("network", cfg.Network))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", zap.Error(err))
		}
	}
}
