package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// Date is a calendar date without a time component, always in UTC.
type Date struct {
	time.Time
}

// MonthKey identifies a calendar month as "YYYY-MM".
type MonthKey string

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses an ISO date ("2006-01-02").
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, NewValidationError("date", fmt.Errorf("expected YYYY-MM-DD: %w", err))
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return NewValidationError("date", fmt.Errorf("date cannot be zero"))
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String returns the ISO form used for storage and month membership.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// AddMonths moves the date by n months keeping the day of month. Days past
// the end of the target month overflow into the following month, so
// 2024-01-31 plus one month is 2024-03-02.
func (d Date) AddMonths(n int) Date {
	return Date{Time: d.AddDate(0, n, 0)}
}

// MonthKey returns the month the date belongs to.
func (d Date) MonthKey() MonthKey {
	return MonthKey(d.Format(MonthLayout))
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return NewValidationError("date", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthOf builds the key for a year and month.
func MonthOf(year, month int) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", year, month))
}

// CurrentMonth returns the key of the month containing now.
func CurrentMonth(now time.Time) MonthKey {
	return MonthOf(now.Year(), int(now.Month()))
}

// ParseMonthKey validates s as "YYYY-MM". A full date such as "2024-03-01"
// is accepted and reduced to its month.
func ParseMonthKey(s string) (MonthKey, error) {
	s = strings.TrimSpace(s)
	if len(s) == len(DateLayout) {
		s = s[:len(MonthLayout)]
	}
	if _, err := time.Parse(MonthLayout, s); err != nil {
		return "", NewValidationError("month", ErrInvalidMonth)
	}
	return MonthKey(s), nil
}

func (m MonthKey) Validate() error {
	_, err := ParseMonthKey(string(m))
	return err
}

// Contains reports whether d falls in the month. Membership is a textual
// prefix match on the ISO date, which is equivalent to a range check for
// well-formed dates.
func (m MonthKey) Contains(d Date) bool {
	if m == "" || d.IsZero() {
		return false
	}
	return strings.HasPrefix(d.String(), string(m))
}

// FirstDay returns the first calendar day of the month.
func (m MonthKey) FirstDay() Date {
	t, err := time.Parse(MonthLayout, string(m))
	if err != nil {
		return Date{}
	}
	return Date{Time: t}
}

// Add moves the key by n months.
func (m MonthKey) Add(n int) MonthKey {
	first := m.FirstDay()
	if first.IsZero() {
		return m
	}
	return first.AddMonths(n).MonthKey()
}

func (m MonthKey) String() string { return string(m) }
