package services

import (
	"context"
	"fmt"
	"time"

	"bolso/internal/core"
	"bolso/internal/log"
	"bolso/internal/urgency"
)

// ReminderProcessor turns the urgent items surface into reminder
// notifications, at most one per item and day.
type ReminderProcessor struct {
	finance *FinanceService
	hour    int
	logger  *log.Logger
}

func NewReminderProcessor(finance *FinanceService, hour int, logger *log.Logger) *ReminderProcessor {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ReminderProcessor{finance: finance, hour: hour, logger: logger.WithComponent(log.ComponentScheduler)}
}

// Remind sends the user's reminders due at now. Nothing is sent before the
// reminder hour in the user's timezone, or when notifications are disabled.
func (p *ReminderProcessor) Remind(ctx context.Context, now time.Time) (int, error) {
	st := p.finance.store
	profile, err := st.GetProfile(ctx)
	if err != nil {
		return 0, fmt.Errorf("get profile: %w", err)
	}
	if !profile.NotificationsEnabled {
		return 0, nil
	}

	local := now.In(profile.Location())
	if local.Hour() < p.hour {
		return 0, nil
	}
	today := core.DateOf(local)
	startOfDay := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())

	payments, err := st.ListFixedPayments(ctx)
	if err != nil {
		return 0, err
	}
	cards, err := st.ListCards(ctx)
	if err != nil {
		return 0, err
	}
	dismissals, err := st.GetDismissals(ctx)
	if err != nil {
		return 0, err
	}

	items := urgency.Items(urgency.Input{
		Payments:   payments,
		Cards:      cards,
		Today:      today,
		Dismissals: dismissals,
	})

	sent := 0
	for _, item := range items {
		typ := reminderType(item.Kind)
		seen, err := st.HasNotification(ctx, typ, item.ID, startOfDay)
		if err != nil {
			return sent, err
		}
		if seen {
			continue
		}
		if _, err := p.finance.Notify(ctx, reminderFor(item, typ, now)); err != nil {
			p.logger.LogError(ctx, "Failed to send reminder", err, log.OpRemind,
				log.NewFields().With("item_id", item.ID))
			continue
		}
		sent++
	}
	return sent, nil
}

func reminderType(kind urgency.ItemKind) core.NotificationType {
	if kind == urgency.KindCard {
		return core.NotifyDueDateMorning
	}
	return core.NotifyPaymentReminder
}

func reminderFor(item urgency.Item, typ core.NotificationType, now time.Time) core.Notification {
	var msg string
	if item.Kind == urgency.KindCard {
		msg = fmt.Sprintf("Fatura do cartão %s: %s", item.Name, item.Status)
	} else {
		msg = fmt.Sprintf("%s (%s): %s", item.Name, item.Amount.BRL(), item.Status)
	}
	return core.Notification{
		Type:      typ,
		Title:     item.Name,
		Message:   msg,
		RelatedID: item.ID,
		CreatedAt: now.UTC(),
		Extra: map[string]any{
			"dueDay":   item.DueDay,
			"daysLeft": item.DaysLeft,
			"level":    item.Level.String(),
		},
	}
}
