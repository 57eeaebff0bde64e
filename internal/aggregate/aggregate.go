// Package aggregate computes monthly totals, category breakdowns and budget
// progress from a user's records. Every function is pure: the same inputs
// always produce the same outputs and nothing is mutated.
package aggregate

import (
	"bolso/internal/core"
)

// Totals walks the transactions once and returns expense and income sums for
// month. The transaction set is closed, so the switch is exhaustive.
func Totals(txs []core.Transaction, month core.MonthKey) (expenses, income core.Money) {
	for _, tx := range txs {
		switch t := tx.(type) {
		case core.Expense:
			if month.Contains(t.Date) {
				expenses = expenses.Add(t.Amount)
			}
		case core.Income:
			if month.Contains(t.Date) {
				income = income.Add(t.Amount)
			}
		}
	}
	return expenses, income
}

// TotalExpenses sums expense amounts dated in month.
func TotalExpenses(txs []core.Transaction, month core.MonthKey) core.Money {
	e, _ := Totals(txs, month)
	return e
}

// TotalIncome sums income amounts dated in month.
func TotalIncome(txs []core.Transaction, month core.MonthKey) core.Money {
	_, i := Totals(txs, month)
	return i
}

// ExpensesByCategory maps every category to its expense total in month.
// All five keys are always present.
func ExpensesByCategory(txs []core.Transaction, month core.MonthKey) map[core.Category]core.Money {
	out := make(map[core.Category]core.Money, len(core.AllCategories()))
	for _, c := range core.AllCategories() {
		out[c] = core.Money{}
	}
	for _, e := range core.ExpensesOf(txs) {
		if !month.Contains(e.Date) {
			continue
		}
		c := e.Category
		if !c.Valid() {
			c = core.Outros
		}
		out[c] = out[c].Add(e.Amount)
	}
	return out
}

// ProgressPercentage is 100*spent/goal capped at 100, or 0 without a goal.
func ProgressPercentage(spent, goal core.Money) float64 {
	if goal.Cents <= 0 {
		return 0
	}
	p := 100 * float64(spent.Cents) / float64(goal.Cents)
	switch {
	case p > 100:
		return 100
	case p < 0:
		return 0
	}
	return p
}

// RemainingBudget is goal minus spent, floored at zero.
func RemainingBudget(spent, goal core.Money) core.Money {
	if r := goal.Sub(spent); r.Cents > 0 {
		return r
	}
	return core.Money{}
}

// GoalFor returns the goal amount for month, or zero when none is set.
func GoalFor(goals []core.MonthlyGoal, month core.MonthKey) core.Money {
	for _, g := range goals {
		if g.Month == month {
			return g.Amount
		}
	}
	return core.Money{}
}

// Summarize builds the full month view.
func Summarize(txs []core.Transaction, goals []core.MonthlyGoal, month core.MonthKey) core.MonthSummary {
	expenses, income := Totals(txs, month)
	goal := GoalFor(goals, month)
	return core.MonthSummary{
		Month:              month,
		TotalExpenses:      expenses,
		TotalIncome:        income,
		Balance:            income.Sub(expenses),
		ExpensesByCategory: ExpensesByCategory(txs, month),
		Goal:               goal,
		ProgressPercentage: ProgressPercentage(expenses, goal),
		RemainingBudget:    RemainingBudget(expenses, goal),
	}
}

// CardSpent sums the card's expenses dated in month.
func CardSpent(txs []core.Transaction, cardID string, month core.MonthKey) core.Money {
	var spent core.Money
	for _, e := range core.ExpensesOf(txs) {
		if e.CreditCardID == cardID && month.Contains(e.Date) {
			spent = spent.Add(e.Amount)
		}
	}
	return spent
}

// CardUsage reports a card's month spending against its limit. Unlike goal
// progress, the percentage is not capped and may exceed 100.
func CardUsage(txs []core.Transaction, card core.CreditCard, month core.MonthKey) core.CardUsage {
	spent := CardSpent(txs, card.ID, month)
	return core.CardUsage{
		CardID:     card.ID,
		Month:      month,
		Spent:      spent,
		Limit:      card.Limit,
		Available:  RemainingBudget(spent, card.Limit),
		Percentage: UsagePercentage(spent, card.Limit),
	}
}

// UsagePercentage is 100*spent/limit without an upper cap.
func UsagePercentage(spent, limit core.Money) float64 {
	if limit.Cents <= 0 {
		return 0
	}
	return 100 * float64(spent.Cents) / float64(limit.Cents)
}

// FixedPaymentTotals splits the month's fixed payments into pending and paid.
func FixedPaymentTotals(payments []core.FixedPayment, month core.MonthKey) core.FixedPaymentTotals {
	out := core.FixedPaymentTotals{Month: month}
	for _, p := range payments {
		if p.Month != month {
			continue
		}
		if p.IsPaid {
			out.Paid = out.Paid.Add(p.Amount)
		} else {
			out.Pending = out.Pending.Add(p.Amount)
		}
	}
	return out
}
