package http

import (
	"net/http"
	"strings"

	"bolso/internal/core"
	"bolso/internal/log"
)

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.finance.Cards(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) handleAddCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	card, err := s.finance.AddCard(r.Context(), core.CreditCard{
		Name:       sanitizeInput(req.Name),
		Limit:      req.Limit,
		ClosingDay: req.ClosingDay,
		DueDay:     req.DueDay,
		Color:      strings.TrimSpace(req.Color),
	})
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := s.finance.DeleteCard(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCardUsage(w http.ResponseWriter, r *http.Request) {
	month, err := parseMonth(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	usage, err := s.finance.CardUsage(r.Context(), r.PathValue("id"), month)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

func (s *Server) handleFutureInstallments(w http.ResponseWriter, r *http.Request) {
	future, err := s.finance.FutureInstallments(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, future)
}

// handleInstallmentsByMonth projects the card's installment totals over the
// next "months" months (default six).
func (s *Server) handleInstallmentsByMonth(w http.ResponseWriter, r *http.Request) {
	months, err := parseIntParam(r.URL.Query(), "months", defaultHorizon)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	byMonth, err := s.finance.InstallmentsByMonth(r.Context(), r.PathValue("id"), months)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, byMonth)
}
