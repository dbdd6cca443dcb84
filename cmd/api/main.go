package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labverse/sentinel-core/internal/app"
	"github.com/labverse/sentinel-core/internal/config"
	"github.com/labverse/sentinel-core/pkg/logger"
	"github.com/labverse/sentinel-core/pkg/server"
)

func main() {
	// Setup structured logging
	logger.SetupLogger()
	log := logger.New("api-service")

	// Load configuration
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().
			Err(err).
			Str("action", "app_init_failed").
			Msg("Failed to initialize components")
	}
	defer a.Close()

	// Recurring downloads fire in-process so the console sees them
	if err := a.StartScheduler(ctx); err != nil {
		log.Fatal().
			Err(err).
			Str("action", "scheduler_start_failed").
			Msg("Failed to start scheduler")
	}

	srv := server.New(cfg, log, server.Dependencies{
		Session:       a.Session,
		Store:         a.Store,
		BackendFailed: a.Backend.IsBreakerOpen,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error().
				Err(err).
				Str("action", "server_failed").
				Msg("Server failed to start")
			a.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info().
			Str("action", "signal_received").
			Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().
			Err(err).
			Str("action", "shutdown_failed").
			Msg("Server did not shut down cleanly")
	}
}
