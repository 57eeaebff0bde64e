// Package core provides the finance domain types and money handling.
//
// This file contains parsing and formatting of monetary amounts. Amounts are
// kept as integer cents; github.com/shopspring/decimal is used at the edges
// where user text or JSON numbers are converted to and from cents.
package core

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseDecimalToCents converts a decimal string to cents with half-up rounding.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. When
// both appear, the last one is the decimal separator and the other groups
// thousands, so "1.234,56" and "1,234.56" are both 123456 cents.
// Zero, negative or malformed values return ErrInvalidAmount.
//
// Examples:
//
//	ParseDecimalToCents("12.34")    -> 1234, nil
//	ParseDecimalToCents("12,34")    -> 1234, nil
//	ParseDecimalToCents("1.234,5")  -> 123450, nil
//	ParseDecimalToCents("12.345")   -> 1235, nil (half-up)
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	s = normalizeSeparators(s)
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return 0, ErrInvalidAmount
		}
	}
	if strings.Count(s, ".") > 1 {
		return 0, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return decimalToCents(d)
}

func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		return strings.Replace(s, ",", ".", 1)
	case lastDot >= 0 && lastComma >= 0:
		return strings.ReplaceAll(s, ",", "")
	default:
		return strings.ReplaceAll(s, ",", ".")
	}
}

func decimalToCents(d decimal.Decimal) (int64, error) {
	cents := d.Mul(hundred).Round(0)
	if !cents.IsPositive() || cents.GreaterThan(decimal.NewFromInt(maxCents)) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

const maxCents = 1<<53 - 1

// MoneyFromCents is a small convenience for literals in callers and tests.
func MoneyFromCents(c int64) Money { return Money{Cents: c} }

// ParseMoney parses user text into a positive Money.
func ParseMoney(s string) (Money, error) {
	c, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: c}, nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) IsZero() bool { return m.Cents == 0 }

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount with two decimals and a dot separator.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// BRL formats the amount for display, e.g. "R$ 1.234,56".
func (m Money) BRL() string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := decimal.NewFromInt(cents / 100).String()
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	frac := decimal.NewFromInt(cents % 100).String()
	if len(frac) == 1 {
		frac = "0" + frac
	}
	out := "R$ " + b.String() + "," + frac
	if neg {
		return "-" + out
	}
	return out
}

// MarshalJSON writes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().StringFixed(2)), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
// Zero is accepted here; positivity is checked by Validate.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || string(data) == "null" {
		m.Cents = 0
		return nil
	}
	d, err := decimal.NewFromString(normalizeSeparators(string(data)))
	if err != nil {
		return NewValidationError("amount", ErrInvalidAmount)
	}
	cents := d.Mul(hundred).Round(0)
	if cents.Abs().GreaterThan(decimal.NewFromInt(maxCents)) {
		return NewValidationError("amount", ErrInvalidAmount)
	}
	m.Cents = cents.IntPart()
	return nil
}
