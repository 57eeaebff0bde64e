// Package alerts decides which budget and card-limit notifications a write
// triggers. A threshold fires only when the write crosses it, so repeated
// expenses above a threshold do not repeat the alert.
package alerts

import (
	"fmt"

	"bolso/internal/core"
)

// Threshold is one percentage level and the notification it raises.
type Threshold struct {
	Percent float64
	Type    core.NotificationType
}

var (
	// GoalThresholds apply to monthly goal progress.
	GoalThresholds = []Threshold{
		{Percent: 75, Type: core.NotifyBudgetAlert},
		{Percent: 90, Type: core.NotifyGoalWarning},
		{Percent: 100, Type: core.NotifyGoalAchieved},
	}

	// CardThresholds apply to card limit usage.
	CardThresholds = []Threshold{
		{Percent: 80, Type: core.NotifyCardLimitWarning},
		{Percent: 95, Type: core.NotifyCardLimitWarning},
	}
)

// Crossed returns the thresholds t with before < t <= after, lowest first.
func Crossed(thresholds []Threshold, before, after float64) []Threshold {
	var out []Threshold
	for _, t := range thresholds {
		if before < t.Percent && t.Percent <= after {
			out = append(out, t)
		}
	}
	return out
}

// Alert is a notification the caller should store and dispatch.
type Alert struct {
	Type      core.NotificationType
	Title     string
	Message   string
	RelatedID string
	Extra     map[string]any
}

func percentOf(spent, base core.Money) float64 {
	if base.Cents <= 0 {
		return 0
	}
	return 100 * float64(spent.Cents) / float64(base.Cents)
}

// Goal returns the alerts raised when month spending moves from before to
// after against goal. Without a goal nothing fires.
func Goal(month core.MonthKey, goal, before, after core.Money) []Alert {
	if goal.Cents <= 0 {
		return nil
	}
	var out []Alert
	for _, t := range Crossed(GoalThresholds, percentOf(before, goal), percentOf(after, goal)) {
		out = append(out, Alert{
			Type:      t.Type,
			Title:     goalTitle(t),
			Message:   fmt.Sprintf("Você já gastou %s de %s da meta de %s (%.0f%%).", after.BRL(), goal.BRL(), month, t.Percent),
			RelatedID: string(month),
			Extra: map[string]any{
				"month":     string(month),
				"threshold": t.Percent,
				"spent":     after.String(),
				"goal":      goal.String(),
			},
		})
	}
	return out
}

func goalTitle(t Threshold) string {
	switch t.Type {
	case core.NotifyGoalAchieved:
		return "Meta mensal atingida"
	case core.NotifyGoalWarning:
		return "Meta mensal quase no limite"
	default:
		return fmt.Sprintf("%.0f%% da meta mensal", t.Percent)
	}
}

// Card returns the alerts raised when a card's month spending moves from
// before to after against its limit.
func Card(card core.CreditCard, month core.MonthKey, before, after core.Money) []Alert {
	if card.Limit.Cents <= 0 {
		return nil
	}
	var out []Alert
	for _, t := range Crossed(CardThresholds, percentOf(before, card.Limit), percentOf(after, card.Limit)) {
		out = append(out, Alert{
			Type:      t.Type,
			Title:     fmt.Sprintf("Cartão %s em %.0f%% do limite", card.Name, t.Percent),
			Message:   fmt.Sprintf("O cartão %s já usou %s de %s em %s.", card.Name, after.BRL(), card.Limit.BRL(), month),
			RelatedID: card.ID,
			Extra: map[string]any{
				"month":     string(month),
				"threshold": t.Percent,
				"spent":     after.String(),
				"limit":     card.Limit.String(),
			},
		})
	}
	return out
}
