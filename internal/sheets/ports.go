// Package sheets exports month reports to a spreadsheet.
package sheets

import (
	"context"
	"fmt"
	"slices"

	"bolso/internal/core"
)

// MonthExporter writes a month report and returns a reference to where it
// landed (for Google Sheets, the A1 range).
type MonthExporter interface {
	ExportMonth(ctx context.Context, r Report) (ref string, err error)
}

// Report is everything exported for one user and month.
type Report struct {
	User         core.UserID
	Month        core.MonthKey
	Summary      core.MonthSummary
	Transactions []core.Transaction
}

// TransactionHeader labels the transaction table.
var TransactionHeader = []any{"Data", "Tipo", "Categoria/Fonte", "Valor", "Nota", "Parcela"}

// Rows lays out the report as a values matrix: summary block, per-category
// block, then the month's transactions oldest first.
func Rows(r Report) [][]any {
	s := r.Summary
	rows := [][]any{
		{"Bolso", string(r.Month)},
		{"Receitas", amount(s.TotalIncome)},
		{"Despesas", amount(s.TotalExpenses)},
		{"Saldo", amount(s.Balance)},
		{"Meta", amount(s.Goal)},
		{"Progresso", fmt.Sprintf("%.1f%%", s.ProgressPercentage)},
		{"Restante", amount(s.RemainingBudget)},
		{},
		{"Categoria", "Total"},
	}
	for _, c := range core.AllCategories() {
		rows = append(rows, []any{c.Label(), amount(s.ExpensesByCategory[c])})
	}
	rows = append(rows, []any{}, TransactionHeader)

	txs := slices.Clone(r.Transactions)
	slices.SortStableFunc(txs, func(a, b core.Transaction) int {
		return a.Base().Date.Compare(b.Base().Date.Time)
	})
	for _, tx := range txs {
		if !r.Month.Contains(tx.Base().Date) {
			continue
		}
		rows = append(rows, transactionRow(tx))
	}
	return rows
}

func transactionRow(tx core.Transaction) []any {
	b := tx.Base()
	switch t := tx.(type) {
	case core.Expense:
		parcel := ""
		if t.Installment != nil {
			parcel = fmt.Sprintf("%d/%d", t.Installment.Index, t.Installment.Count)
		}
		return []any{b.Date.String(), "Despesa", t.Category.Label(), amount(b.Amount), b.Note, parcel}
	case core.Income:
		return []any{b.Date.String(), "Receita", t.Source, amount(b.Amount), b.Note, ""}
	default:
		return []any{b.Date.String(), string(tx.Kind()), "", amount(b.Amount), b.Note, ""}
	}
}

func amount(m core.Money) float64 {
	return m.Decimal().InexactFloat64()
}
