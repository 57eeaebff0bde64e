package sheets

import (
	"testing"

	"bolso/internal/aggregate"
	"bolso/internal/core"
)

func TestRows(t *testing.T) {
	txs := []core.Transaction{
		core.Expense{
			TxBase:      core.TxBase{ID: "e2", Amount: core.MoneyFromCents(3334), Date: core.NewDate(2024, 3, 20), Note: "TV - Parcela 1/3"},
			Category:    core.Lazer,
			Installment: &core.Installment{Index: 1, Count: 3},
		},
		core.Income{TxBase: core.TxBase{ID: "i1", Amount: core.MoneyFromCents(500000), Date: core.NewDate(2024, 3, 5)}, Source: "salario"},
		core.Expense{TxBase: core.TxBase{ID: "e9", Amount: core.MoneyFromCents(100), Date: core.NewDate(2024, 4, 1)}, Category: core.Outros},
	}
	month := core.MonthKey("2024-03")
	r := Report{User: "u1", Month: month, Summary: aggregate.Summarize(txs, nil, month), Transactions: txs}

	rows := Rows(r)

	if rows[0][1] != "2024-03" {
		t.Errorf("title row = %v", rows[0])
	}
	if rows[1][1] != 5000.0 || rows[2][1] != 33.34 {
		t.Errorf("income/expense rows = %v %v", rows[1], rows[2])
	}

	header := -1
	for i, row := range rows {
		if len(row) > 0 && row[0] == "Data" {
			header = i
		}
	}
	if header < 0 {
		t.Fatal("transaction header missing")
	}
	body := rows[header+1:]
	if len(body) != 2 {
		t.Fatalf("transaction rows = %v, want only the month's two", body)
	}
	if body[0][0] != "2024-03-05" || body[0][1] != "Receita" || body[0][2] != "salario" {
		t.Errorf("first row = %v, want the income (oldest first)", body[0])
	}
	if body[1][2] != "Lazer" || body[1][5] != "1/3" {
		t.Errorf("second row = %v", body[1])
	}

	categories := 0
	for _, row := range rows[:header] {
		for _, c := range core.AllCategories() {
			if len(row) == 2 && row[0] == c.Label() {
				categories++
			}
		}
	}
	if categories != 5 {
		t.Errorf("category rows = %d, want 5", categories)
	}
}
