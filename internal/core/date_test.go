package core

import (
	"context"
	"errors"
	"testing"
)

func TestDateAddMonths(t *testing.T) {
	tests := []struct {
		name string
		from Date
		n    int
		want string
	}{
		{"same day next month", NewDate(2024, 1, 15), 1, "2024-02-15"},
		{"crosses year", NewDate(2024, 11, 15), 2, "2025-01-15"},
		{"overflow leap february", NewDate(2024, 1, 31), 1, "2024-03-02"},
		{"overflow common february", NewDate(2023, 1, 31), 1, "2023-03-03"},
		{"thirty day month", NewDate(2024, 3, 31), 1, "2024-05-01"},
		{"zero", NewDate(2024, 6, 1), 0, "2024-06-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.AddMonths(tt.n).String(); got != tt.want {
				t.Errorf("AddMonths(%d) = %s, want %s", tt.n, got, tt.want)
			}
		})
	}
}

func TestMonthKey(t *testing.T) {
	m, err := ParseMonthKey("2024-03")
	if err != nil {
		t.Fatalf("ParseMonthKey: %v", err)
	}
	if full, _ := ParseMonthKey("2024-03-01"); full != m {
		t.Fatalf("full date should reduce to its month, got %q", full)
	}
	for _, bad := range []string{"", "2024-13", "24-03", "march"} {
		if _, err := ParseMonthKey(bad); !errors.Is(err, ErrValidation) {
			t.Errorf("ParseMonthKey(%q) expected validation error, got %v", bad, err)
		}
	}

	if !m.Contains(NewDate(2024, 3, 31)) {
		t.Errorf("2024-03 should contain 2024-03-31")
	}
	if m.Contains(NewDate(2024, 4, 1)) || m.Contains(NewDate(2023, 3, 1)) {
		t.Errorf("2024-03 should not contain other months")
	}
	if got := m.Add(-3); got != "2023-12" {
		t.Errorf("Add(-3) = %s, want 2023-12", got)
	}
	if got := MonthOf(2024, 7); got != "2024-07" {
		t.Errorf("MonthOf = %s", got)
	}
}

func TestDismissalsExpire(t *testing.T) {
	day := NewDate(2024, 5, 10)
	next := NewDate(2024, 5, 11)

	var d Dismissals
	d = d.Add(day, "fp-1")
	d = d.Add(day, "card-c1")
	d = d.Add(day, "fp-1")

	if len(d.On(day)) != 2 {
		t.Fatalf("expected 2 ids on the same day, got %v", d.On(day))
	}
	if !d.Contains(day, "card-c1") {
		t.Fatalf("expected card-c1 dismissed")
	}
	if d.Contains(next, "fp-1") || len(d.On(next)) != 0 {
		t.Fatalf("dismissals must not carry over to the next day")
	}

	d = d.Add(next, "fp-2")
	if d.Contains(next, "fp-1") || !d.Contains(next, "fp-2") {
		t.Fatalf("adding on a new day should start a fresh set, got %+v", d)
	}
}

func TestUserFromContext(t *testing.T) {
	if _, err := UserFromContext(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	ctx := WithUser(context.Background(), "u-1")
	if id, err := UserFromContext(ctx); err != nil || id != "u-1" {
		t.Fatalf("got %q, %v", id, err)
	}
	if _, err := UserFromContext(WithUser(context.Background(), "")); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("empty user id must not authenticate")
	}
}

func TestNormalizeWhatsApp(t *testing.T) {
	tests := []struct{ in, want string }{
		{"(11) 98765-4321", "+5511987654321"},
		{"+55 11 98765-4321", "+5511987654321"},
		{"011 98765 4321", "+5511987654321"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeWhatsApp(tt.in); got != tt.want {
			t.Errorf("NormalizeWhatsApp(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
