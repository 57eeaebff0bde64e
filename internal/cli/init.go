// Package cli provides the initialization shared by the bolso binaries.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bolso/internal/backend"
	"bolso/internal/cache"
	"bolso/internal/config"
	"bolso/internal/core"
	"bolso/internal/log"
	"bolso/internal/services"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: component,
		Format:    cfg.LogFormat,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and exits the process when it
// is invalid. The logger is built from the loaded config.
func LoadAndValidateConfig(component string) (*config.Config, *log.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg, component)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeConfiguration,
			log.FieldOperation, log.OpStartup)
		os.Exit(1)
	}
	return cfg, logger
}

// App bundles the record store and the finance service every binary needs.
type App struct {
	Store   backend.BackendResult
	Finance *services.FinanceService

	cleanups []backend.CleanupFunc
}

// Bootstrap opens the configured store and builds the finance service on
// top of it. Notifications raised by the service go through dispatcher
// when it is non-nil; otherwise they are only stored.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *log.Logger, withDispatcher bool) (*App, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, err
	}

	app := &App{Store: *res, cleanups: []backend.CleanupFunc{res.Cleanup}}

	summaries := cache.NewLRUCache[core.MonthSummary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
	sweeper := cache.NewManager()
	sweeper.Register(summaries)
	sweeper.StartCleanup(cfg.SummaryCacheTTL)
	app.cleanups = append(app.cleanups, func() error { sweeper.Stop(); return nil })

	opts := []services.Option{
		services.WithLogger(logger.WithComponent(log.ComponentFinance)),
		services.WithLocation(cfg.Location()),
		services.WithSummaryCache(summaries),
	}
	if withDispatcher {
		d, cleanup, err := backend.NewDispatcher(cfg, res.Store, logger.WithComponent(log.ComponentNotification))
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("notification dispatcher: %w", err)
		}
		app.cleanups = append(app.cleanups, cleanup)
		opts = append(opts, services.WithDispatcher(d))
	}

	app.Finance = services.NewFinanceService(res.Store, opts...)
	return app, nil
}

// Close releases everything Bootstrap opened, newest first.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.cleanups = nil
	return firstErr
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
