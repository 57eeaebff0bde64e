// Package notify delivers stored notifications to the user's transports.
package notify

import (
	"context"
	"errors"
	"fmt"

	"bolso/internal/core"
)

// Dispatcher hands a stored notification to a transport. The context
// carries the notification's user.
type Dispatcher interface {
	Dispatch(ctx context.Context, n core.Notification) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, n core.Notification) error

func (f DispatcherFunc) Dispatch(ctx context.Context, n core.Notification) error { return f(ctx, n) }

// Noop drops every notification. Used when no transport is configured.
type Noop struct{}

func (Noop) Dispatch(context.Context, core.Notification) error { return nil }

// Transport is a named delivery target. The name lets a retried delivery
// skip transports that already accepted the notification.
type Transport struct {
	Name       string
	Dispatcher Dispatcher
}

// Multi fans a notification out to every transport and joins their errors.
type Multi []Transport

func (m Multi) Dispatch(ctx context.Context, n core.Notification) error {
	var errs []error
	for _, t := range m {
		if err := t.Dispatcher.Dispatch(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Publisher is the queue side of the AMQP client.
type Publisher interface {
	PublishNotification(ctx context.Context, n core.Notification) error
}

// Queue defers delivery to the worker by publishing the notification.
type Queue struct {
	Publisher Publisher
}

func (q Queue) Dispatch(ctx context.Context, n core.Notification) error {
	return q.Publisher.PublishNotification(ctx, n)
}
