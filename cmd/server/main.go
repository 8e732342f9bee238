package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"residence-backend/internal/bootstrap"
	"residence-backend/internal/config"
	"residence-backend/internal/logger"
	"residence-backend/internal/seed"
	"residence-backend/internal/server"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Service: "residence-backend"})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	for _, w := range cfg.Warnings() {
		zl.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.Open(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("open services", zap.Error(err))
	}
	defer svc.Close()

	if cfg.SeedDemoData {
		if _, err := seed.Run(ctx, svc.Store, svc.Codec, seed.Options{AdminPassword: cfg.AdminPassword}, zl); err != nil {
			zl.Fatal("seed demo data", zap.Error(err))
		}
	}

	app := server.New(svc)

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server listening", zap.String("port", cfg.HTTPPort), zap.String("store", cfg.StoreDriver))
		errCh <- app.Listen(":" + cfg.HTTPPort)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			zl.Error("server stopped", zap.Error(err))
		}
	case <-ctx.Done():
		zl.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			zl.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}
