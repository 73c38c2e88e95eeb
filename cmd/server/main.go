package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-bot-network/backend/pkg/config"
	"ai-bot-network/backend/pkg/di"
	"ai-bot-network/backend/pkg/logger"
	"ai-bot-network/backend/pkg/router"
)

func main() {
	// New loads .env before reading the environment
	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting application",
		"version", router.Version,
		"env", cfg.Server.Env,
		"db_driver", cfg.Database.Driver,
		"generation_provider", cfg.Generation.Provider,
		"quota_backend", cfg.Quota.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// an unreachable database is tolerated; only bad settings fail here
	db, err := config.NewDB(ctx, cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	container, err := di.New(ctx, cfg, db, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}

	r := router.New(container)
	if err := r.SetupRoutes(ctx); err != nil {
		log.LogError(err, "Failed to set up routes")
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		// generation calls are bounded by the backend timeout, so leave room for them
		WriteTimeout: cfg.Server.Timeout + cfg.Generation.Timeout,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port, "tiers", container.Dispatcher.Levels())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogError(err, "Server failed to start")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}
	if err := container.Close(shutdownCtx); err != nil {
		log.LogError(err, "Failed to release resources")
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	log.Info("Server exited gracefully")
}
