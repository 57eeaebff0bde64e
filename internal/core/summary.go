package core

// MonthSummary is the aggregate view of one month for one user.
type MonthSummary struct {
	Month              MonthKey           `json:"month"`
	TotalExpenses      Money              `json:"totalExpenses"`
	TotalIncome        Money              `json:"totalIncome"`
	Balance            Money              `json:"balance"`
	ExpensesByCategory map[Category]Money `json:"expensesByCategory"`
	Goal               Money              `json:"goal"`
	ProgressPercentage float64            `json:"progressPercentage"`
	RemainingBudget    Money              `json:"remainingBudget"`
}

// CardUsage is a card's spending in a month against its limit.
type CardUsage struct {
	CardID     string   `json:"cardId"`
	Month      MonthKey `json:"month"`
	Spent      Money    `json:"spent"`
	Limit      Money    `json:"limit"`
	Available  Money    `json:"available"`
	Percentage float64  `json:"percentage"`
}

// FixedPaymentTotals splits a month's fixed payments by paid status.
type FixedPaymentTotals struct {
	Month   MonthKey `json:"month"`
	Pending Money    `json:"totalPending"`
	Paid    Money    `json:"totalPaid"`
}

// FutureInstallment is an installment record still ahead of a reference date.
type FutureInstallment struct {
	Expense     Expense `json:"expense"`
	MonthsAhead int     `json:"monthsAhead"`
}

// MonthInstallments totals the installment records falling in one month.
type MonthInstallments struct {
	Month MonthKey `json:"month"`
	Total Money    `json:"totalAmount"`
	Count int      `json:"installmentCount"`
}
