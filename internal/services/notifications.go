package services

import (
	"context"
	"slices"

	"bolso/internal/aggregate"
	"bolso/internal/alerts"
	"bolso/internal/core"
	"bolso/internal/log"
)

// Notify stores n in the user's history and hands it to the dispatcher when
// the user has notifications enabled. A dispatch failure is logged and does
// not fail the call: the notification is already stored.
func (s *FinanceService) Notify(ctx context.Context, n core.Notification) (core.Notification, error) {
	user, err := core.UserFromContext(ctx)
	if err != nil {
		return core.Notification{}, err
	}
	n.UserID = user
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}
	stored, err := s.store.InsertNotification(ctx, n)
	if err != nil {
		s.logger.LogError(ctx, "Failed to store notification", err, log.OpCreate,
			log.NewFields().WithNotification(n))
		return core.Notification{}, err
	}

	profile, err := s.store.GetProfile(ctx)
	if err != nil {
		s.logger.LogError(ctx, "Failed to load profile for dispatch", err, log.OpRead,
			log.NewFields().WithUser(user))
		return stored, nil
	}
	if !profile.NotificationsEnabled {
		return stored, nil
	}

	if err := s.dispatcher.Dispatch(ctx, stored); err != nil {
		s.logger.LogError(ctx, "Failed to dispatch notification", err, log.OpDispatch,
			log.NewFields().WithNotification(stored))
	}
	return stored, nil
}

type cardMonth struct {
	cardID string
	month  core.MonthKey
}

// raiseSpendingAlerts compares goal progress and card usage before and after
// a write and notifies every threshold the write crossed.
func (s *FinanceService) raiseSpendingAlerts(ctx context.Context, before, added []core.Transaction) {
	after := append(slices.Clone(before), added...)

	var (
		months []core.MonthKey
		pairs  []cardMonth
	)
	for _, e := range core.ExpensesOf(added) {
		m := e.Date.MonthKey()
		if !slices.Contains(months, m) {
			months = append(months, m)
		}
		if e.CreditCardID != "" {
			p := cardMonth{cardID: e.CreditCardID, month: m}
			if !slices.Contains(pairs, p) {
				pairs = append(pairs, p)
			}
		}
	}

	var raised []alerts.Alert

	goals, err := s.store.ListGoals(ctx)
	if err != nil {
		s.logger.LogError(ctx, "Failed to load goals for alerts", err, log.OpRead, nil)
	} else {
		for _, m := range months {
			goal := aggregate.GoalFor(goals, m)
			raised = append(raised, alerts.Goal(m, goal,
				aggregate.TotalExpenses(before, m),
				aggregate.TotalExpenses(after, m))...)
		}
	}

	if len(pairs) > 0 {
		cards, err := s.store.ListCards(ctx)
		if err != nil {
			s.logger.LogError(ctx, "Failed to load cards for alerts", err, log.OpRead, nil)
		}
		for _, p := range pairs {
			i := slices.IndexFunc(cards, func(c core.CreditCard) bool { return c.ID == p.cardID })
			if i < 0 {
				continue
			}
			raised = append(raised, alerts.Card(cards[i], p.month,
				aggregate.CardSpent(before, p.cardID, p.month),
				aggregate.CardSpent(after, p.cardID, p.month))...)
		}
	}

	for _, a := range raised {
		n := core.Notification{
			Type:      a.Type,
			Title:     a.Title,
			Message:   a.Message,
			RelatedID: a.RelatedID,
			Extra:     a.Extra,
		}
		if _, err := s.Notify(ctx, n); err == nil {
			s.logger.InfoContext(ctx, "Spending alert raised",
				log.NewFields().WithNotification(n).With(log.FieldThreshold, a.Extra["threshold"]).ToSlice()...)
		}
	}
}
