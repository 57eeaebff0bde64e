// Package urgency classifies due days relative to today and builds the list
// of urgent items shown to the user and used for reminders.
//
// Classification compares day-of-month numbers only. A payment due on the 5th
// is Overdue when today is the 20th, whichever month the 5th belongs to.
package urgency

import (
	"fmt"
)

// Level is the urgency bucket of a due day.
type Level int

const (
	NotUrgent Level = iota
	DueSoon
	DueToday
	Overdue
)

// SoonWindow is how many days ahead a due day counts as DueSoon.
const SoonWindow = 3

var levelNames = map[Level]string{
	NotUrgent: "not_urgent",
	DueSoon:   "due_soon",
	DueToday:  "due_today",
	Overdue:   "overdue",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// Classify buckets dueDay against today, both days of the month.
func Classify(dueDay, today int) Level {
	switch diff := dueDay - today; {
	case diff < 0:
		return Overdue
	case diff == 0:
		return DueToday
	case diff <= SoonWindow:
		return DueSoon
	default:
		return NotUrgent
	}
}

// DaysUntil is dueDay minus today, negative when overdue.
func DaysUntil(dueDay, today int) int { return dueDay - today }

// StatusText renders the user-facing status of an urgent item.
func StatusText(dueDay, today int) string {
	switch Classify(dueDay, today) {
	case Overdue:
		return "Atrasado!"
	case DueToday:
		return "Vence hoje!"
	}
	n := DaysUntil(dueDay, today)
	if n == 1 {
		return "Vence em 1 dia"
	}
	return fmt.Sprintf("Vence em %d dias", n)
}
