package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"bolso/internal/backend"
	"bolso/internal/cli"
	apphttp "bolso/internal/http"
	"bolso/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)

	app, err := cli.Bootstrap(context.Background(), cfg, logger, true)
	if err != nil {
		logger.LogError(context.Background(), "Failed to initialize application", err, log.OpStartup, nil)
		os.Exit(1)
	}

	var ready func(ctx context.Context) error
	if p, ok := app.Store.Store.(backend.Pinger); ok {
		ready = p.Ping
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              ready,
	}, app.Finance, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		if err := app.Close(); err != nil {
			logger.Error("Failed to release resources", log.FieldError, err.Error())
		}
	})

	logger.Info("Starting bolso server", "port", cfg.Port, "backend", cfg.RecordBackend, "amqp", cfg.AMQPURL != "")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
