// Package installments splits card purchases into dated monthly records and
// projects the installments still ahead on a card.
package installments

import (
	"fmt"
	"sort"
	"strings"

	"bolso/internal/core"
)

// Purchase is one card purchase as entered by the user.
type Purchase struct {
	Total        core.Money
	Count        int
	FirstDate    core.Date
	Category     core.Category
	Note         string
	CreditCardID string
}

// Validate checks the purchase before expansion. Count is only checked here;
// a single-payment purchase goes through Single instead.
func (p Purchase) Validate() error {
	if err := p.Total.Validate(); err != nil {
		return core.NewValidationError("amount", err)
	}
	if p.Count < core.MinInstallments || p.Count > core.MaxInstallments {
		return core.NewValidationError("installments", core.ErrInvalidInstallmentCount)
	}
	if err := p.FirstDate.Validate(); err != nil {
		return err
	}
	if !p.Category.Valid() {
		return core.NewValidationError("category", core.ErrInvalidCategory)
	}
	return nil
}

// Expand returns exactly p.Count expense records, one per month starting at
// p.FirstDate. The total is split in cents; the remainder goes one cent each
// to the earliest installments, so the amounts always sum to p.Total.
//
// Nothing is returned on a validation failure, so callers never persist a
// partial sequence.
func Expand(p Purchase) ([]core.Expense, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	shares := Split(p.Total, p.Count)
	out := make([]core.Expense, p.Count)
	for i := range p.Count {
		e := core.Expense{
			TxBase: core.TxBase{
				Amount: shares[i],
				Date:   p.FirstDate.AddMonths(i),
				Note:   Note(p.Note, i+1, p.Count),
			},
			Category:     p.Category,
			CreditCardID: p.CreditCardID,
			Installment:  &core.Installment{Index: i + 1, Count: p.Count},
		}
		if err := e.Validate(); err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// Single builds the one-record form of a purchase with installments disabled.
func Single(p Purchase) (core.Expense, error) {
	e := core.Expense{
		TxBase:       core.TxBase{Amount: p.Total, Date: p.FirstDate, Note: p.Note},
		Category:     p.Category,
		CreditCardID: p.CreditCardID,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// Split divides total into n shares that differ by at most one cent.
func Split(total core.Money, n int) []core.Money {
	if n <= 0 {
		return nil
	}
	base := total.Cents / int64(n)
	rem := total.Cents % int64(n)
	shares := make([]core.Money, n)
	for i := range shares {
		c := base
		if int64(i) < rem {
			c++
		}
		shares[i] = core.Money{Cents: c}
	}
	return shares
}

// Note formats the annotation of installment i of n.
func Note(note string, i, n int) string {
	suffix := fmt.Sprintf("Parcela %d/%d", i, n)
	if note = strings.TrimSpace(note); note != "" {
		return note + " - " + suffix
	}
	return suffix
}

// Future returns the installment records of a card dated on or after from,
// ordered by date.
func Future(txs []core.Transaction, cardID string, from core.Date) []core.FutureInstallment {
	fromMonth := from.MonthKey().FirstDay()
	var out []core.FutureInstallment
	for _, e := range core.ExpensesOf(txs) {
		if e.CreditCardID != cardID || !e.IsInstallment() || e.Date.Before(from.Time) {
			continue
		}
		out = append(out, core.FutureInstallment{
			Expense:     e,
			MonthsAhead: monthsBetween(fromMonth, e.Date),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Expense.Date.Before(out[j].Expense.Date.Time)
	})
	return out
}

// ByMonth totals a card's installment records for the months from the month
// of from through monthsAhead months later. Months without installments are
// reported with zero totals.
func ByMonth(txs []core.Transaction, cardID string, from core.Date, monthsAhead int) []core.MonthInstallments {
	if monthsAhead < 0 {
		monthsAhead = 0
	}
	start := from.MonthKey()
	out := make([]core.MonthInstallments, monthsAhead+1)
	index := make(map[core.MonthKey]int, len(out))
	for i := range out {
		m := start.Add(i)
		out[i].Month = m
		index[m] = i
	}
	for _, e := range core.ExpensesOf(txs) {
		if e.CreditCardID != cardID || !e.IsInstallment() {
			continue
		}
		i, ok := index[e.Date.MonthKey()]
		if !ok {
			continue
		}
		out[i].Total = out[i].Total.Add(e.Amount)
		out[i].Count++
	}
	return out
}

func monthsBetween(from, to core.Date) int {
	return (to.Year()-from.Year())*12 + to.Month() - from.Month()
}
