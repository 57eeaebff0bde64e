package main

import (
	"context"
	"flag"
	"os"
	"time"

	"bolso/internal/cli"
	"bolso/internal/log"
	"bolso/internal/services"
)

func main() {
	once := flag.Bool("once", false, "run a single pass over every user and exit")
	flag.Parse()

	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentScheduler)

	app, err := cli.Bootstrap(context.Background(), cfg, logger, true)
	if err != nil {
		logger.LogError(context.Background(), "Failed to initialize application", err, log.OpStartup, nil)
		os.Exit(1)
	}
	defer app.Close()

	st := app.Store.Store
	scheduler := services.NewScheduler(st,
		services.NewRolloverProcessor(st, logger),
		services.NewReminderProcessor(app.Finance, cfg.ReminderHour, logger),
		services.SchedulerConfig{Interval: cfg.SchedulerInterval, Concurrency: services.DefaultSchedulerConfig().Concurrency},
		logger)

	if *once {
		stats := scheduler.RunOnce(context.Background())
		logger.Info("Scheduler pass completed",
			"users", stats.Users,
			"rolled_over", stats.RolledOver,
			"reminders", stats.Reminders,
			"failures", stats.Failures)
		if stats.Failures > 0 {
			os.Exit(1)
		}
		return
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Warn("Scheduler did not stop cleanly", log.FieldError, err.Error())
		}
	})

	if err := scheduler.Start(ctx); err != nil {
		logger.LogError(context.Background(), "Failed to start scheduler", err, log.OpStartup, nil)
		os.Exit(1)
	}
	logger.Info("Started bolso-scheduler", "interval", cfg.SchedulerInterval.String(), "reminder_hour", cfg.ReminderHour)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Scheduler stopped gracefully")
}
