package backend

import (
	"fmt"

	"bolso/internal/amqp"
	"bolso/internal/config"
	"bolso/internal/core"
	"bolso/internal/log"
	"bolso/internal/notify"
	"bolso/internal/notify/discord"
	"bolso/internal/store"
)

// Transport names recorded on retried worker deliveries.
const (
	TransportWebhook = "webhook"
	TransportDiscord = "discord"
)

// NewDelivery builds the transports that actually reach the user: the
// per-user webhook and, when configured, the Discord operator channel.
func NewDelivery(cfg *config.Config, st store.WebhookStore, logger *log.Logger) (notify.Multi, error) {
	out := notify.Multi{{Name: TransportWebhook, Dispatcher: notify.NewWebhook(st, cfg.WebhookTimeout, logger)}}

	if cfg.DiscordBotToken != "" {
		d, err := discord.New(cfg.DiscordBotToken, cfg.DiscordChannelID)
		if err != nil {
			return nil, fmt.Errorf("discord transport: %w", err)
		}
		users := make([]core.UserID, len(cfg.DiscordUsers))
		for i, u := range cfg.DiscordUsers {
			users[i] = core.UserID(u)
		}
		out = append(out, notify.Transport{Name: TransportDiscord, Dispatcher: d.OnlyUsers(users...)})
		if len(users) == 0 {
			logger.Warn("Discord operator channel receives every user's notifications",
				"channel_id", cfg.DiscordChannelID)
		} else {
			logger.Info("Discord operator channel enabled",
				"channel_id", cfg.DiscordChannelID,
				"users", len(users))
		}
	}
	return out, nil
}

// NewDispatcher picks how the API hands notifications off. With AMQP
// configured they are queued for the worker; otherwise, or when the broker
// is unreachable at startup, they are delivered in-process.
func NewDispatcher(cfg *config.Config, st store.WebhookStore, logger *log.Logger) (notify.Dispatcher, CleanupFunc, error) {
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err == nil {
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
			return notify.Queue{Publisher: client}, client.Close, nil
		}
		logger.Warn("Failed to initialize AMQP client, delivering in-process", "error", err)
	}

	d, err := NewDelivery(cfg, st, logger)
	if err != nil {
		return nil, nil, err
	}
	return d, func() error { return nil }, nil
}
