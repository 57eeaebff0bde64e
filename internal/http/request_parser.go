package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"bolso/internal/core"
)

// HeaderUserID carries the user authenticated by the upstream gateway.
const HeaderUserID = "X-User-ID"

const (
	maxBodyBytes   = 64 << 10
	maxUserIDLen   = 128
	defaultHorizon = 6
)

// requireUser puts the X-User-ID user in the request context.
func requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := sanitizeInput(r.Header.Get(HeaderUserID))
		if id == "" || len(id) > maxUserIDLen {
			writeError(w, r, "auth", core.ErrNotAuthenticated)
			return
		}
		next(w, r.WithContext(core.WithUser(r.Context(), core.UserID(id))))
	}
}

// decodeJSON reads one JSON object into dst, rejecting unknown fields and
// trailing data. Decoding failures are validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			return ve
		}
		return core.NewValidationError("", fmt.Errorf("malformed JSON body: %w", err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return core.NewValidationError("", errors.New("body must contain a single JSON object"))
	}
	return nil
}

// parseMonth reads the optional "month" query parameter (YYYY-MM). An empty
// value means the current month and is resolved by the service.
func parseMonth(query url.Values) (core.MonthKey, error) {
	v := strings.TrimSpace(query.Get("month"))
	if v == "" {
		return "", nil
	}
	return core.ParseMonthKey(v)
}

// parseIntParam reads an optional integer query parameter.
func parseIntParam(query url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.NewValidationError(key, fmt.Errorf("must be an integer"))
	}
	return n, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// Request bodies.

type expenseRequest struct {
	Amount       core.Money `json:"amount"`
	Date         core.Date  `json:"date"`
	Category     string     `json:"category"`
	Note         string     `json:"note"`
	CreditCardID string     `json:"creditCardId"`
}

func (req expenseRequest) toExpense(today core.Date) (core.Expense, error) {
	cat, err := core.ParseCategory(req.Category)
	if err != nil {
		return core.Expense{}, err
	}
	return core.Expense{
		TxBase: core.TxBase{
			Amount: req.Amount,
			Date:   orToday(req.Date, today),
			Note:   sanitizeInput(req.Note),
		},
		Category:     cat,
		CreditCardID: strings.TrimSpace(req.CreditCardID),
	}, nil
}

type incomeRequest struct {
	Amount core.Money `json:"amount"`
	Date   core.Date  `json:"date"`
	Source string     `json:"source"`
	Note   string     `json:"note"`
}

func (req incomeRequest) toIncome(today core.Date) core.Income {
	return core.Income{
		TxBase: core.TxBase{
			Amount: req.Amount,
			Date:   orToday(req.Date, today),
			Note:   sanitizeInput(req.Note),
		},
		Source: strings.ToLower(sanitizeInput(req.Source)),
	}
}

type cardPurchaseRequest struct {
	Amount       core.Money `json:"amount"`
	Date         core.Date  `json:"date"`
	Category     string     `json:"category"`
	Note         string     `json:"note"`
	CreditCardID string     `json:"creditCardId"`
	Installments int        `json:"installments"`
}

type cardRequest struct {
	Name       string     `json:"name"`
	Limit      core.Money `json:"limit"`
	ClosingDay int        `json:"closingDay"`
	DueDay     int        `json:"dueDay"`
	Color      string     `json:"color"`
}

type goalRequest struct {
	Amount core.Money `json:"amount"`
}

type fixedPaymentRequest struct {
	Name     string        `json:"name"`
	Amount   core.Money    `json:"amount"`
	DueDay   int           `json:"dueDay"`
	Category string        `json:"category"`
	Month    core.MonthKey `json:"month"`
}

type dismissRequest struct {
	ID string `json:"id"`
}

func orToday(d, today core.Date) core.Date {
	if d.IsZero() {
		return today
	}
	return d
}
