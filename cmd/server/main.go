package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Tyrowin/roomrelay/internal/server"
)

func main() {
	// Local .env is optional.
	_ = godotenv.Load()

	cfg, err := server.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	logger, err := server.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relaySrv := server.New(cfg, logger)
	httpServer := server.CreateServer(cfg.Port, relaySrv.SetupRoutes())

	errs := make(chan error, 1)
	go func() {
		errs <- server.StartServer(httpServer, logger)
	}()

	select {
	case err := <-errs:
		if err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
		return
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, logger); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	if err := relaySrv.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Warn("session shutdown incomplete", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
