package http

import (
	"net/http"

	"bolso/internal/core"
	"bolso/internal/installments"
	"bolso/internal/log"
)

// transactionView flattens either transaction variant into one JSON shape
// tagged with its kind.
type transactionView struct {
	Type         core.TransactionKind `json:"type"`
	ID           string               `json:"id"`
	Amount       core.Money           `json:"amount"`
	Date         core.Date            `json:"date"`
	Note         string               `json:"note,omitempty"`
	Category     core.Category        `json:"category,omitempty"`
	CreditCardID string               `json:"creditCardId,omitempty"`
	Installment  *core.Installment    `json:"installment,omitempty"`
	Source       string               `json:"source,omitempty"`
}

func viewOf(tx core.Transaction) transactionView {
	b := tx.Base()
	v := transactionView{Type: tx.Kind(), ID: b.ID, Amount: b.Amount, Date: b.Date, Note: b.Note}
	switch t := tx.(type) {
	case core.Expense:
		v.Category = t.Category
		v.CreditCardID = t.CreditCardID
		v.Installment = t.Installment
	case core.Income:
		v.Source = t.Source
	}
	return v
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	month, err := parseMonth(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	txs, err := s.finance.Transactions(r.Context(), month)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	out := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		out = append(out, viewOf(tx))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	e, err := req.toExpense(s.finance.Today(r.Context()))
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	stored, err := s.finance.AddExpense(r.Context(), e)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense created",
		log.NewFields().WithOperation(log.OpCreate).WithExpense(stored).ToSlice()...)
	writeJSON(w, http.StatusCreated, viewOf(stored))
}

func (s *Server) handleAddIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	stored, err := s.finance.AddIncome(r.Context(), req.toIncome(s.finance.Today(r.Context())))
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(stored))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.finance.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAddCardPurchase stores a card purchase. Installments above one split
// it into monthly records; zero or one stores a single expense.
func (s *Server) handleAddCardPurchase(w http.ResponseWriter, r *http.Request) {
	var req cardPurchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	cat, err := core.ParseCategory(req.Category)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	if req.Installments < 0 {
		writeError(w, r, log.OpCreate, core.NewValidationError("installments", core.ErrInvalidInstallmentCount))
		return
	}
	split := req.Installments > 1
	count := req.Installments
	if !split {
		count = 1
	}
	p := installments.Purchase{
		Total:        req.Amount,
		Count:        count,
		FirstDate:    orToday(req.Date, s.finance.Today(r.Context())),
		Category:     cat,
		Note:         sanitizeInput(req.Note),
		CreditCardID: sanitizeInput(req.CreditCardID),
	}
	stored, err := s.finance.AddCardPurchase(r.Context(), p, split)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Card purchase created",
		log.NewFields().WithOperation(log.OpCreate).
			With(log.FieldCardID, p.CreditCardID).
			With(log.FieldCount, len(stored)).
			With(log.FieldAmountCents, p.Total.Cents).ToSlice()...)
	writeJSON(w, http.StatusCreated, stored)
}
