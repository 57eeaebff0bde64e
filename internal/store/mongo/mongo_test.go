package mongo

import (
	"context"
	"errors"
	"reflect"
	"os"
	"strings"
	"testing"
	"time"

	"bolso/internal/core"
	"bolso/internal/log"
	"bolso/internal/store"
	"bolso/internal/store/storetest"
)

func TestTxDocRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		tx   core.Transaction
	}{
		{"installment expense", core.Expense{
			TxBase:       core.TxBase{ID: "t1", Amount: core.Money{Cents: 3334}, Date: core.NewDate(2024, 3, 15), Note: "Parcela 1/3"},
			Category:     core.Lazer,
			CreditCardID: "c1",
			Installment:  &core.Installment{Index: 1, Count: 3},
		}},
		{"plain expense", core.Expense{
			TxBase:   core.TxBase{ID: "t2", Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 3, 1)},
			Category: core.Outros,
		}},
		{"income", core.Income{
			TxBase: core.TxBase{ID: "t3", Amount: core.Money{Cents: 500000}, Date: core.NewDate(2024, 3, 5)},
			Source: "freelance",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := toTxDoc("u1", tt.tx, now)
			if doc.UserID != "u1" || doc.Kind != string(tt.tx.Kind()) {
				t.Fatalf("toTxDoc() = %+v", doc)
			}
			got, err := doc.transaction()
			if err != nil {
				t.Fatalf("transaction() error = %v", err)
			}
			if got.Kind() != tt.tx.Kind() || got.Base().ID != tt.tx.Base().ID ||
				got.Base().Amount != tt.tx.Base().Amount || !got.Base().Date.Equal(tt.tx.Base().Date.Time) {
				t.Errorf("round trip = %+v, want %+v", got, tt.tx)
			}
			if want, ok := tt.tx.(core.Expense); ok {
				e := got.(core.Expense)
				if e.IsInstallment() != want.IsInstallment() || e.CreditCardID != want.CreditCardID || e.Category != want.Category {
					t.Errorf("expense fields = %+v, want %+v", e, want)
				}
			}
		})
	}
}

func TestTxDocUnknownKind(t *testing.T) {
	if _, err := (txDoc{Kind: "transfer", Date: "2024-01-01"}).transaction(); err == nil {
		t.Errorf("expected error for unknown kind")
	}
}

// TestStore runs the shared suite against a live server. It needs MONGO_URI.
func TestStore(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" || testing.Short() {
		t.Skip("MONGO_URI not set, skipping MongoDB store test")
	}
	storetest.Run(t, func(t *testing.T) store.Store {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		name := "bolso_test_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
		s, err := Connect(ctx, uri, name, log.Discard())
		if err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if err := s.db.Drop(ctx); err != nil {
			t.Fatalf("drop test database: %v", err)
		}
		return s
	})
}

func TestCascadeDelete(t *testing.T) {
	var calls []string
	step := func(name string, n int64, err error) deleteStep {
		return func(context.Context) (int64, error) {
			calls = append(calls, name)
			return n, err
		}
	}
	down := errors.New("connection reset")
	ctx := context.Background()

	t.Run("dependents go first", func(t *testing.T) {
		calls = nil
		removed, err := cascadeDelete(ctx, "card", "c1", step("exists", 1, nil), step("dependents", 2, nil), step("parent", 1, nil))
		if err != nil || removed != 2 {
			t.Fatalf("cascadeDelete() = %d, %v, want 2, nil", removed, err)
		}
		if want := []string{"exists", "dependents", "parent"}; !reflect.DeepEqual(calls, want) {
			t.Errorf("calls = %v, want %v", calls, want)
		}
	})

	t.Run("missing parent touches nothing", func(t *testing.T) {
		calls = nil
		_, err := cascadeDelete(ctx, "card", "c1", step("exists", 0, nil), step("dependents", 0, nil), step("parent", 0, nil))
		if !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("cascadeDelete() error = %v, want ErrNotFound", err)
		}
		if len(calls) != 1 {
			t.Errorf("calls = %v, want only the existence check", calls)
		}
	})

	t.Run("failed dependents keep the parent for a retry", func(t *testing.T) {
		calls = nil
		_, err := cascadeDelete(ctx, "card", "c1", step("exists", 1, nil), step("dependents", 0, down), step("parent", 1, nil))
		if !errors.Is(err, core.ErrRemoteFailure) {
			t.Fatalf("cascadeDelete() error = %v, want remote failure", err)
		}
		if want := []string{"exists", "dependents"}; !reflect.DeepEqual(calls, want) {
			t.Errorf("calls = %v, want %v", calls, want)
		}

		calls = nil
		removed, err := cascadeDelete(ctx, "card", "c1", step("exists", 1, nil), step("dependents", 2, nil), step("parent", 1, nil))
		if err != nil || removed != 2 {
			t.Errorf("retry cascadeDelete() = %d, %v, want 2, nil", removed, err)
		}
	})
}
