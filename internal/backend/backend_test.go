package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bolso/internal/config"
	"bolso/internal/core"
	"bolso/internal/log"
	"bolso/internal/notify"
	"bolso/internal/store/memory"
)

func TestFromAppConfig(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		want    BackendType
		wantErr bool
	}{
		{"memory", "memory", MemoryBackend, false},
		{"sqlite", "sqlite", SQLiteBackend, false},
		{"mongo", "mongo", MongoBackend, false},
		{"sheets is gone", "sheets", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAppConfig(&config.Config{RecordBackend: tt.backend, SQLiteDBPath: "x.db"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromAppConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got.Type != tt.want {
				t.Errorf("FromAppConfig() type = %v, want %v", got.Type, tt.want)
			}
		})
	}

	if _, err := FromAppConfig(nil); err == nil {
		t.Error("FromAppConfig(nil) should fail")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"memory", Config{Type: MemoryBackend}, ""},
		{"sqlite without path", Config{Type: SQLiteBackend}, "SQLite database path"},
		{"mongo without uri", Config{Type: MongoBackend, MongoDatabase: "bolso"}, "Mongo URI"},
		{"mongo without database", Config{Type: MongoBackend, MongoURI: "mongodb://x"}, "Mongo database"},
		{"unknown", Config{Type: "redis"}, "invalid backend type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestFactory_CreateBackend(t *testing.T) {
	f := NewFactory(log.Discard())

	t.Run("memory", func(t *testing.T) {
		res, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend})
		if err != nil {
			t.Fatalf("CreateBackend() error = %v", err)
		}
		defer res.Cleanup()
		ctx := core.WithUser(context.Background(), "u1")
		if _, err := res.Store.ListTransactions(ctx); err != nil {
			t.Errorf("ListTransactions() error = %v", err)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bolso.db")
		res, err := f.CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
		if err != nil {
			t.Fatalf("CreateBackend() error = %v", err)
		}
		defer res.Cleanup()
		if p, ok := res.Store.(Pinger); !ok || p.Ping(context.Background()) != nil {
			t.Error("sqlite store should answer Ping")
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := f.CreateBackend(context.Background(), Config{Type: SQLiteBackend}); err == nil {
			t.Error("CreateBackend() should fail validation")
		}
	})
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := strings.Join(GetBackendTypeStrings(), ",")
	if got != "memory,sqlite,mongo" {
		t.Errorf("GetBackendTypeStrings() = %s", got)
	}
}

func TestNewDispatcher_WithoutAMQP(t *testing.T) {
	cfg := &config.Config{WebhookTimeout: time.Second}
	d, cleanup, err := NewDispatcher(cfg, memory.New(), log.Discard())
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	defer cleanup()
	multi, ok := d.(notify.Multi)
	if !ok || len(multi) != 1 || multi[0].Name != TransportWebhook {
		t.Errorf("NewDispatcher() = %T %v, want in-process webhook delivery", d, d)
	}
}

func TestNewDelivery_DiscordOperatorChannel(t *testing.T) {
	cfg := &config.Config{
		WebhookTimeout:   time.Second,
		DiscordBotToken:  "token",
		DiscordChannelID: "chan-1",
		DiscordUsers:     []string{"ops"},
	}
	multi, err := NewDelivery(cfg, memory.New(), log.Discard())
	if err != nil {
		t.Fatalf("NewDelivery() error = %v", err)
	}
	if len(multi) != 2 || multi[0].Name != TransportWebhook || multi[1].Name != TransportDiscord {
		t.Fatalf("NewDelivery() = %+v, want webhook then discord", multi)
	}
	// user-1 is outside the operator allowlist, so Discord must not be contacted.
	n := core.Notification{ID: "n1", UserID: "user-1", Type: core.NotifyBudgetAlert, Title: "Orçamento"}
	if err := multi[1].Dispatcher.Dispatch(context.Background(), n); err != nil {
		t.Errorf("Dispatch() for a user outside the allowlist error = %v, want skipped", err)
	}
}
