package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adminauth-service/internal/app"
	"adminauth-service/internal/config"
	"adminauth-service/internal/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[MAIN] No .env file found, relying on system env vars")
	}
	cfg := config.Load()

	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	srv := app.NewServer(cfg, zl)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = srv.Build(ctx)
	cancel()
	if err != nil {
		_ = srv.Shutdown(context.Background())
		zl.Fatal("server failed to start", zap.Error(err))
	}

	// Run server in a separate goroutine so we can listen for shutdown signals
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		zl.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			zl.Error("server stopped unexpectedly", zap.Error(err))
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown incomplete", zap.Error(err))
		return
	}
	zl.Info("server stopped gracefully")
}
