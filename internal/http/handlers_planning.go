package http

import (
	"net/http"

	"bolso/internal/core"
	"bolso/internal/log"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	month, err := parseMonth(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpSummary, err)
		return
	}
	summary, err := s.finance.Summary(r.Context(), month)
	if err != nil {
		writeError(w, r, log.OpSummary, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.finance.Goals(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

// handlePutGoal sets the goal of the month named in the path.
func (s *Server) handlePutGoal(w http.ResponseWriter, r *http.Request) {
	month, err := core.ParseMonthKey(r.PathValue("month"))
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	goal, err := s.finance.SetGoal(r.Context(), core.MonthlyGoal{Month: month, Amount: req.Amount})
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleListFixedPayments(w http.ResponseWriter, r *http.Request) {
	month, err := parseMonth(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	payments, err := s.finance.FixedPayments(r.Context(), month)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (s *Server) handleAddFixedPayment(w http.ResponseWriter, r *http.Request) {
	var req fixedPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	cat, err := core.ParseCategory(req.Category)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	p, err := s.finance.AddFixedPayment(r.Context(), core.FixedPayment{
		Name:     sanitizeInput(req.Name),
		Amount:   req.Amount,
		DueDay:   req.DueDay,
		Category: cat,
		Month:    req.Month,
	})
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleTogglePaid(w http.ResponseWriter, r *http.Request) {
	p, err := s.finance.TogglePaid(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteFixedPayment(w http.ResponseWriter, r *http.Request) {
	if err := s.finance.DeleteFixedPayment(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFixedPaymentTotals(w http.ResponseWriter, r *http.Request) {
	month, err := parseMonth(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpSummary, err)
		return
	}
	totals, err := s.finance.FixedPaymentTotals(r.Context(), month)
	if err != nil {
		writeError(w, r, log.OpSummary, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// categoryView describes one category for clients building forms.
type categoryView struct {
	Key   core.Category `json:"key"`
	Label string        `json:"label"`
	Icon  string        `json:"icon"`
	Color string        `json:"color"`
}

func handleCategories(w http.ResponseWriter, r *http.Request) {
	cats := core.AllCategories()
	out := struct {
		Categories    []categoryView `json:"categories"`
		IncomeSources []string       `json:"incomeSources"`
		CardColors    []string       `json:"cardColors"`
	}{
		Categories:    make([]categoryView, 0, len(cats)),
		IncomeSources: core.IncomeSources,
		CardColors:    core.CardColors,
	}
	for _, c := range cats {
		out.Categories = append(out.Categories, categoryView{Key: c, Label: c.Label(), Icon: c.Icon(), Color: c.Color()})
	}
	writeJSON(w, http.StatusOK, out)
}
