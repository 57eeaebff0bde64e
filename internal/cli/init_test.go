package cli

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"bolso/internal/backend"
	"bolso/internal/config"
	"bolso/internal/core"
	"bolso/internal/log"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	return &config.Config{
		RecordBackend:    backend,
		SQLiteDBPath:     filepath.Join(t.TempDir(), "bolso.db"),
		WebhookTimeout:   time.Second,
		Timezone:         "UTC",
		SummaryCacheSize: 8,
		SummaryCacheTTL:  time.Minute,
	}
}

func TestBootstrap(t *testing.T) {
	for _, kind := range []string{config.BackendMemory, config.BackendSQLite} {
		t.Run(kind, func(t *testing.T) {
			app, err := Bootstrap(context.Background(), testConfig(t, kind), log.Discard(), true)
			if err != nil {
				t.Fatalf("Bootstrap() error = %v", err)
			}
			defer app.Close()

			ctx := core.WithUser(context.Background(), "u1")
			card, err := app.Finance.AddCard(ctx, core.CreditCard{Name: "Inter", Limit: core.MoneyFromCents(10000), ClosingDay: 1, DueDay: 8})
			if err != nil {
				t.Fatalf("AddCard() error = %v", err)
			}
			cards, err := app.Finance.Cards(ctx)
			if err != nil || len(cards) != 1 || cards[0].ID != card.ID {
				t.Errorf("Cards() = %v, %v", cards, err)
			}
		})
	}
}

func TestBootstrap_InvalidBackend(t *testing.T) {
	if _, err := Bootstrap(context.Background(), testConfig(t, "sheets"), log.Discard(), false); err == nil {
		t.Error("Bootstrap() with unknown backend should fail")
	}
}

func TestApp_CloseOrder(t *testing.T) {
	var order []int
	boom := errors.New("boom")
	app := &App{cleanups: []backend.CleanupFunc{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return boom },
	}}
	if err := app.Close(); !errors.Is(err, boom) {
		t.Errorf("Close() error = %v, want boom", err)
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("cleanup order = %v, want [2 1]", order)
	}
	if err := app.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}
