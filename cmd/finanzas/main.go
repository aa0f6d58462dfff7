package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finanzas/internal/backend"
	"finanzas/internal/cache"
	"finanzas/internal/cli"
	apphttp "finanzas/internal/http"
	"finanzas/internal/log"
	"finanzas/internal/services"
	"finanzas/internal/stats"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, nil)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", backendCfg.Type)
		os.Exit(1)
	}

	statsCache := cache.NewLRUCache[any](cfg.StatsCacheSize, cfg.StatsCacheTTL)
	cacheManager := cache.NewManager(func(removed int) {
		logger.Debug("Stats cache cleanup completed", "entries_removed", removed)
	})
	cacheManager.Register(statsCache)
	cacheManager.StartCleanup(10 * time.Minute)

	aggregator := stats.NewCachedAggregator(stats.NewAggregator(result.Backend), statsCache)
	txService := services.NewTransactionService(result.Backend, result.Publisher, aggregator, logger)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ImportMaxBytes:     cfg.ImportMaxBytes,
	}, apphttp.Dependencies{
		Transactions: txService,
		Stats:        aggregator,
		Ready:        result.Backend.Ping,
		Logger:       logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting finanzas server",
		"port", cfg.Port,
		"backend", backendCfg.Type,
		"amqp_enabled", result.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
