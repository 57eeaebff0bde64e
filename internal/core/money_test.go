package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"12.344", 1234, true},
		{" 2.50 ", 250, true},
		{"R$ 10,00", 1000, true},
		{"1.234,56", 123456, true},
		{"1,234.56", 123456, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"0.001", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1e3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error, got %d", tc.in, got)
			}
		}
	}
}

func TestMoneyFormatting(t *testing.T) {
	tests := []struct {
		name   string
		cents  int64
		plain  string
		brl    string
	}{
		{"zero", 0, "0.00", "R$ 0,00"},
		{"cents only", 5, "0.05", "R$ 0,05"},
		{"hundreds", 30000, "300.00", "R$ 300,00"},
		{"thousands", 123456, "1234.56", "R$ 1.234,56"},
		{"millions", 123456789, "1234567.89", "R$ 1.234.567,89"},
		{"negative", -1050, "-10.50", "-R$ 10,50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Money{Cents: tt.cents}
			if got := m.String(); got != tt.plain {
				t.Errorf("String() = %q, want %q", got, tt.plain)
			}
			if got := m.BRL(); got != tt.brl {
				t.Errorf("BRL() = %q, want %q", got, tt.brl)
			}
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Money `json:"a"`
	}{Money{Cents: 10050}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"a":100.50}` {
		t.Fatalf("marshal got %s", b)
	}

	for _, in := range []string{`100.5`, `"100.50"`, `"100,50"`} {
		var m Money
		if err := json.Unmarshal([]byte(in), &m); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if m.Cents != 10050 {
			t.Fatalf("unmarshal %s got %d cents", in, m.Cents)
		}
	}

	var m Money
	if err := json.Unmarshal([]byte(`"abc"`), &m); err == nil {
		t.Fatalf("expected error for non-numeric amount")
	}
}

func TestMoneyJSON_RejectsOutOfRange(t *testing.T) {
	tests := []string{
		`184467440737095517.16`,
		`"184467440737095517,16"`,
		`90071992547409.92`,
		`-90071992547409.92`,
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			m := Money{Cents: 7}
			err := json.Unmarshal([]byte(in), &m)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("Unmarshal(%s) error = %v, want validation error", in, err)
			}
			if m.Cents != 7 {
				t.Errorf("Unmarshal(%s) changed cents to %d", in, m.Cents)
			}
		})
	}

	var m Money
	if err := json.Unmarshal([]byte(`90071992547409.91`), &m); err != nil {
		t.Fatalf("Unmarshal(max) error = %v", err)
	}
	if m.Cents != maxCents {
		t.Errorf("Unmarshal(max) = %d, want %d", m.Cents, int64(maxCents))
	}
}
