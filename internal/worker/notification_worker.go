// Package worker delivers queued notifications to the user's transports.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"bolso/internal/amqp"
	"bolso/internal/core"
	"bolso/internal/log"
	"bolso/internal/notify"
)

// Queue is the AMQP client as the worker sees it: consume, and put a
// message back for a later attempt.
type Queue interface {
	ConsumeWithReconnect(ctx context.Context, handler amqp.Handler) error
	Republish(ctx context.Context, msg *amqp.NotificationMessage) error
}

// DefaultMaxAttempts bounds deliveries of one notification.
const DefaultMaxAttempts = 5

// NotificationWorker consumes notification messages and hands each one to
// every transport under the notification's user.
type NotificationWorker struct {
	queue       Queue
	transports  notify.Multi
	logger      *log.Logger
	heartbeat   time.Duration
	maxAttempts int
	retryDelay  time.Duration
}

func NewNotificationWorker(queue Queue, transports notify.Multi, logger *log.Logger) *NotificationWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &NotificationWorker{
		queue:       queue,
		transports:  transports,
		logger:      logger.WithComponent(log.ComponentWorker),
		heartbeat:   time.Minute,
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  2 * time.Second,
	}
}

// WithMaxAttempts overrides DefaultMaxAttempts; values below 1 are ignored.
func (w *NotificationWorker) WithMaxAttempts(n int) *NotificationWorker {
	if n >= 1 {
		w.maxAttempts = n
	}
	return w
}

// HandleNotification delivers one message to each transport not yet settled
// on it. A transport settles on success or on a validation failure, which
// redelivery cannot fix. Remote failures republish the message with the
// settled set so healthy transports are not sent the notification twice;
// after maxAttempts the notification is dropped. An error is returned only
// when the retry could not be queued, so the broker redelivers the original.
func (w *NotificationWorker) HandleNotification(ctx context.Context, msg *amqp.NotificationMessage) error {
	n := msg.Notification
	ctx = core.WithUser(ctx, n.UserID)
	attempt := msg.Attempt + 1
	fields := func() log.LogFields {
		return log.NewFields().WithNotification(n).With("notification_id", n.ID).With("attempt", attempt)
	}

	var failed []error
	for _, t := range w.transports {
		if msg.IsSettled(t.Name) {
			continue
		}
		err := t.Dispatcher.Dispatch(ctx, n)
		switch {
		case err == nil:
			msg.Settle(t.Name)
		case errors.Is(err, core.ErrValidation):
			w.logger.LogError(ctx, "Dropping undeliverable notification", err, log.OpDispatch,
				fields().With(log.FieldTransport, t.Name))
			msg.Settle(t.Name)
		default:
			w.logger.LogError(ctx, "Notification delivery failed", err, log.OpDispatch,
				fields().With(log.FieldTransport, t.Name))
			failed = append(failed, fmt.Errorf("%s: %w", t.Name, err))
		}
	}

	if len(failed) == 0 {
		w.logger.InfoContext(ctx, "Notification delivered", fields().ToSlice()...)
		return nil
	}

	msg.Attempt++
	if msg.Attempt >= w.maxAttempts {
		w.logger.LogError(ctx, "Giving up on notification", errors.Join(failed...), log.OpDispatch,
			fields().With("max_attempts", w.maxAttempts))
		return nil
	}

	if w.retryDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.retryDelay * time.Duration(msg.Attempt)):
		}
	}
	if err := w.queue.Republish(ctx, msg); err != nil {
		return fmt.Errorf("requeue notification %s: %w", n.ID, errors.Join(append(failed, err)...))
	}
	return nil
}

// Run consumes until ctx is cancelled. The heartbeat logs liveness so a
// stalled consumer shows up in the logs.
func (w *NotificationWorker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.queue.ConsumeWithReconnect(gctx, w.HandleNotification)
	})

	g.Go(func() error {
		ticker := time.NewTicker(w.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				w.logger.DebugContext(gctx, "Notification worker alive")
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
