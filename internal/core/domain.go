package core

import (
	"fmt"
	"strings"
)

const (
	KindExpense TransactionKind = "expense"
	KindIncome  TransactionKind = "income"
)

const (
	MinInstallments = 2
	MaxInstallments = 48
	maxNoteLength   = 200
)

type (
	TransactionKind string

	Money struct {
		Cents int64
	}

	// TxBase holds the fields every transaction carries.
	TxBase struct {
		ID     string `json:"id"`
		Amount Money  `json:"amount"`
		Date   Date   `json:"date"`
		Note   string `json:"note,omitempty"`
	}

	// Transaction is either an Expense or an Income. The set is closed;
	// consumers switch on the concrete type.
	Transaction interface {
		Base() TxBase
		Kind() TransactionKind
		Validate() error
		transaction()
	}

	// Installment marks an expense as one part of a split purchase.
	Installment struct {
		Index int `json:"currentInstallment"` // 1-based
		Count int `json:"installments"`
	}

	Expense struct {
		TxBase
		Category     Category     `json:"category"`
		CreditCardID string       `json:"creditCardId,omitempty"`
		Installment  *Installment `json:"installment,omitempty"`
	}

	Income struct {
		TxBase
		Source string `json:"source"`
	}

	// MonthlyGoal is the spending ceiling for one month.
	MonthlyGoal struct {
		Month  MonthKey `json:"month"`
		Amount Money    `json:"amount"`
	}

	CreditCard struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Limit      Money  `json:"limit"`
		ClosingDay int    `json:"closingDay"`
		DueDay     int    `json:"dueDay"`
		Color      string `json:"color"`
	}

	// FixedPayment is one month's instance of a recurring bill.
	FixedPayment struct {
		ID       string   `json:"id"`
		Name     string   `json:"name"`
		Amount   Money    `json:"amount"`
		DueDay   int      `json:"dueDay"`
		Category Category `json:"category"`
		IsPaid   bool     `json:"isPaid"`
		Month    MonthKey `json:"month"`
	}

	// FixedPaymentPatch carries the mutable fields of a fixed payment.
	FixedPaymentPatch struct {
		IsPaid *bool
	}
)

// Interface conformance
var (
	_ Transaction = Expense{}
	_ Transaction = Income{}
)

func (b TxBase) Base() TxBase { return b }

func (Expense) Kind() TransactionKind { return KindExpense }
func (Income) Kind() TransactionKind  { return KindIncome }
func (Expense) transaction()          {}
func (Income) transaction()           {}

// IsInstallment reports whether the expense is part of a split purchase.
func (e Expense) IsInstallment() bool { return e.Installment != nil }

func (b TxBase) validate() error {
	if err := b.Amount.Validate(); err != nil {
		return NewValidationError("amount", err)
	}
	if err := b.Date.Validate(); err != nil {
		return err
	}
	if len(b.Note) > maxNoteLength {
		return NewValidationError("note", ErrNoteTooLong)
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.TxBase.validate(); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return NewValidationError("category", ErrInvalidCategory)
	}
	if in := e.Installment; in != nil {
		if in.Count < MinInstallments || in.Count > MaxInstallments {
			return NewValidationError("installments", ErrInvalidInstallmentCount)
		}
		if in.Index < 1 || in.Index > in.Count {
			return NewValidationError("currentInstallment", fmt.Errorf("index %d outside 1..%d", in.Index, in.Count))
		}
	}
	return nil
}

func (i Income) Validate() error {
	if err := i.TxBase.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(i.Source) == "" {
		return NewValidationError("source", ErrEmptySource)
	}
	return nil
}

func (g MonthlyGoal) Validate() error {
	if err := g.Month.Validate(); err != nil {
		return err
	}
	if err := g.Amount.Validate(); err != nil {
		return NewValidationError("amount", err)
	}
	return nil
}

// ValidateDay checks a day-of-month field.
func ValidateDay(field string, day int) error {
	if day < 1 || day > 31 {
		return NewValidationError(field, ErrInvalidDay)
	}
	return nil
}

func (c CreditCard) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return NewValidationError("name", ErrEmptyName)
	}
	if err := c.Limit.Validate(); err != nil {
		return NewValidationError("limit", err)
	}
	if err := ValidateDay("closingDay", c.ClosingDay); err != nil {
		return err
	}
	return ValidateDay("dueDay", c.DueDay)
}

func (p FixedPayment) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("name", ErrEmptyName)
	}
	if err := p.Amount.Validate(); err != nil {
		return NewValidationError("amount", err)
	}
	if err := ValidateDay("dueDay", p.DueDay); err != nil {
		return err
	}
	if !p.Category.Valid() {
		return NewValidationError("category", ErrInvalidCategory)
	}
	return p.Month.Validate()
}

// Apply returns a copy of p with the patch applied.
func (p FixedPayment) Apply(patch FixedPaymentPatch) FixedPayment {
	if patch.IsPaid != nil {
		p.IsPaid = *patch.IsPaid
	}
	return p
}

// ExpensesOf filters the expense variants out of a transaction list.
func ExpensesOf(txs []Transaction) []Expense {
	out := make([]Expense, 0, len(txs))
	for _, tx := range txs {
		if e, ok := tx.(Expense); ok {
			out = append(out, e)
		}
	}
	return out
}

// ParseKind validates a transaction kind string.
func ParseKind(s string) (TransactionKind, error) {
	switch k := TransactionKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindExpense, KindIncome:
		return k, nil
	default:
		return "", NewValidationError("type", ErrInvalidKind)
	}
}
