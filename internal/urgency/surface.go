package urgency

import (
	"fmt"
	"sort"

	"bolso/internal/core"
)

// ItemKind tells payments and card due dates apart.
type ItemKind string

const (
	KindPayment ItemKind = "payment"
	KindCard    ItemKind = "card"
)

// SurfaceRule decides which urgency levels of an item kind reach the user.
type SurfaceRule interface {
	Surfaces(level Level) bool
}

// PaymentRule surfaces every urgent level, overdue included.
type PaymentRule struct{}

func (PaymentRule) Surfaces(level Level) bool { return level != NotUrgent }

// CardRule surfaces cards due today or soon. An overdue card bill is assumed
// settled with the statement and is not shown.
type CardRule struct{}

func (CardRule) Surfaces(level Level) bool { return level == DueToday || level == DueSoon }

var surfaceRules = map[ItemKind]SurfaceRule{
	KindPayment: PaymentRule{},
	KindCard:    CardRule{},
}

// GetSurfaceRule returns the rule for kind.
func GetSurfaceRule(kind ItemKind) (SurfaceRule, error) {
	rule, ok := surfaceRules[kind]
	if !ok {
		return nil, fmt.Errorf("unknown item kind: %s", kind)
	}
	return rule, nil
}

// Item is one entry of the urgent list.
type Item struct {
	// ID is the dismissal id: the payment id, or "card-<id>" for cards.
	ID       string     `json:"id"`
	Kind     ItemKind   `json:"kind"`
	RefID    string     `json:"refId"`
	Name     string     `json:"name"`
	Amount   core.Money `json:"amount,omitempty"`
	DueDay   int        `json:"dueDay"`
	Level    Level      `json:"level"`
	Status   string     `json:"status"`
	DaysLeft int        `json:"daysLeft"`
}

// CardAlertID is the dismissal id of a card's due-date alert.
func CardAlertID(cardID string) string { return "card-" + cardID }

// Input is the record snapshot the urgent list is computed from.
type Input struct {
	Payments   []core.FixedPayment
	Cards      []core.CreditCard
	Today      core.Date
	Dismissals core.Dismissals
}

// Items returns the urgent payments and cards for Input.Today, minus the
// ones dismissed today, sorted by due day. Paid payments and payments of
// other months never appear.
func Items(in Input) []Item {
	today := in.Today.Day()
	month := in.Today.MonthKey()
	var out []Item

	for _, p := range in.Payments {
		if p.IsPaid || p.Month != month {
			continue
		}
		if item, ok := build(KindPayment, p.ID, p.ID, p.Name, p.Amount, p.DueDay, today); ok {
			out = append(out, item)
		}
	}
	for _, c := range in.Cards {
		if item, ok := build(KindCard, CardAlertID(c.ID), c.ID, c.Name, core.Money{}, c.DueDay, today); ok {
			out = append(out, item)
		}
	}

	filtered := out[:0]
	for _, item := range out {
		if !in.Dismissals.Contains(in.Today, item.ID) {
			filtered = append(filtered, item)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].DueDay < filtered[j].DueDay })
	return filtered
}

func build(kind ItemKind, id, ref, name string, amount core.Money, dueDay, today int) (Item, bool) {
	rule, err := GetSurfaceRule(kind)
	if err != nil {
		return Item{}, false
	}
	level := Classify(dueDay, today)
	if !rule.Surfaces(level) {
		return Item{}, false
	}
	return Item{
		ID:       id,
		Kind:     kind,
		RefID:    ref,
		Name:     name,
		Amount:   amount,
		DueDay:   dueDay,
		Level:    level,
		Status:   StatusText(dueDay, today),
		DaysLeft: DaysUntil(dueDay, today),
	}, true
}
