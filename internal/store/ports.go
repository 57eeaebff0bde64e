// Package store defines the Record Store: durable, per-user storage of
// transactions, cards, goals, fixed payments and notification state.
//
// Every method except the ones on Directory reads the user from the context
// (core.UserFromContext) and fails with core.ErrNotAuthenticated when it is
// missing. Backend failures are returned as *core.RemoteError.
package store

import (
	"context"
	"time"

	"bolso/internal/core"
)

type (
	TransactionStore interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		// InsertTransactions stores all records or none. IDs are assigned
		// to records that have none and the stored records are returned.
		InsertTransactions(ctx context.Context, txs ...core.Transaction) ([]core.Transaction, error)
		DeleteTransaction(ctx context.Context, id string) error
	}

	CardStore interface {
		ListCards(ctx context.Context) ([]core.CreditCard, error)
		InsertCard(ctx context.Context, c core.CreditCard) (core.CreditCard, error)
		// DeleteCard removes the card and every transaction referencing it.
		DeleteCard(ctx context.Context, id string) error
	}

	GoalStore interface {
		ListGoals(ctx context.Context) ([]core.MonthlyGoal, error)
		// UpsertGoal replaces the goal of the same month if one exists.
		UpsertGoal(ctx context.Context, g core.MonthlyGoal) (core.MonthlyGoal, error)
	}

	FixedPaymentStore interface {
		ListFixedPayments(ctx context.Context) ([]core.FixedPayment, error)
		InsertFixedPayment(ctx context.Context, p core.FixedPayment) (core.FixedPayment, error)
		UpdateFixedPayment(ctx context.Context, id string, patch core.FixedPaymentPatch) (core.FixedPayment, error)
		DeleteFixedPayment(ctx context.Context, id string) error
	}

	NotificationStore interface {
		// ListNotifications returns the newest notifications first.
		ListNotifications(ctx context.Context, limit int) ([]core.Notification, error)
		InsertNotification(ctx context.Context, n core.Notification) (core.Notification, error)
		MarkNotificationRead(ctx context.Context, id string) error
		// HasNotification reports whether a notification of typ about
		// relatedID was created at or after since.
		HasNotification(ctx context.Context, typ core.NotificationType, relatedID string, since time.Time) (bool, error)
	}

	WebhookStore interface {
		// GetWebhookSettings returns zero settings when none are saved.
		GetWebhookSettings(ctx context.Context) (core.WebhookSettings, error)
		SaveWebhookSettings(ctx context.Context, s core.WebhookSettings) error
		InsertWebhookLog(ctx context.Context, l core.WebhookLog) error
	}

	DismissalStore interface {
		GetDismissals(ctx context.Context) (core.Dismissals, error)
		SaveDismissals(ctx context.Context, d core.Dismissals) error
	}

	ProfileStore interface {
		// GetProfile returns a default profile when none is saved.
		GetProfile(ctx context.Context) (core.Profile, error)
		SaveProfile(ctx context.Context, p core.Profile) error
	}

	// Directory spans all users and is only used by background jobs.
	Directory interface {
		ListUsers(ctx context.Context) ([]core.UserID, error)
	}

	// Store is the full Record Store.
	Store interface {
		TransactionStore
		CardStore
		GoalStore
		FixedPaymentStore
		NotificationStore
		WebhookStore
		DismissalStore
		ProfileStore
		Directory
		Close() error
	}
)

// DefaultProfile is returned for users that never saved one.
func DefaultProfile(id core.UserID) core.Profile {
	return core.Profile{UserID: id, NotificationsEnabled: true, Timezone: "America/Sao_Paulo"}
}
