package main

import (
	"context"
	"os"
	"time"

	"bolso/internal/amqp"
	"bolso/internal/backend"
	"bolso/internal/cli"
	"bolso/internal/log"
	"bolso/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for bolso-worker")
		os.Exit(1)
	}

	app, err := cli.Bootstrap(context.Background(), cfg, logger, false)
	if err != nil {
		logger.LogError(context.Background(), "Failed to initialize application", err, log.OpStartup, nil)
		os.Exit(1)
	}
	defer app.Close()

	deliver, err := backend.NewDelivery(cfg, app.Store.Store, logger.WithComponent(log.ComponentNotification))
	if err != nil {
		logger.LogError(context.Background(), "Failed to initialize transports", err, log.OpStartup, nil)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.LogError(context.Background(), "Failed to initialize AMQP client", err, log.OpStartup, nil)
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewNotificationWorker(client, deliver, logger).WithMaxAttempts(cfg.NotifyMaxAttempts)

	ctx, done := cli.GracefulShutdown(logger, 15*time.Second, nil)

	logger.Info("Starting bolso-worker",
		"queue", cfg.AMQPQueue,
		"transports", len(deliver),
		"max_attempts", cfg.NotifyMaxAttempts)
	if err := w.Run(ctx); err != nil {
		logger.LogError(context.Background(), "Worker stopped with error", err, log.OpConsume, nil)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
