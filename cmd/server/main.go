package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/app"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/config"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to start discovery service", zap.Error(err))
	}
	defer svc.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Startup Discovery Agent starting", zap.String("port", cfg.Port))
		logger.Info("Agent card available", zap.String("url", "http://localhost:"+cfg.Port+"/.well-known/agent.json"))
		logger.Info("Discovery API available", zap.String("url", "http://localhost:"+cfg.Port+"/api/discovery"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
