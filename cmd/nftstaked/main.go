package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nftstake/config"
	"nftstake/gateway"
	"nftstake/native/nftstake"
	"nftstake/observability/logging"
	"nftstake/state"
	"nftstake/storage"
)

const envKey = "NFTSTAKE_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envKey))
	logger := logging.Setup("nftstaked", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	engine := nftstake.NewEngine()
	engine.SetState(state.NewKVState(db))
	engine.SetCustody(state.NewNFTCustody(db))

	if err := initPlatform(engine, cfg); err != nil {
		logger.Error("Failed to initialise platform", slog.Any("error", err))
		os.Exit(1)
	}

	server := gateway.NewServer(engine, logger)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Gateway listening", slog.String("address", cfg.ListenAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Gateway failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", slog.Any("error", err))
	}
	logger.Info("Shutdown complete")
}

// initPlatform creates the platform registry on first boot. A restart against
// an existing data directory keeps the stored registry as-is.
func initPlatform(engine *nftstake.Engine, cfg *config.Config) error {
	admin, err := cfg.Admin()
	if err != nil {
		return err
	}
	treasury, err := cfg.Treasury()
	if err != nil {
		return err
	}
	signerKey, err := cfg.SignerKey()
	if err != nil {
		return err
	}
	if err := engine.Init(admin, treasury, signerKey); err != nil {
		if errors.Is(err, nftstake.ErrAlreadyInitialized) {
			return nil
		}
		return fmt.Errorf("init platform: %w", err)
	}
	return nil
}
