// Package storetest holds the behaviour every Record Store backend must share.
// Backends call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"bolso/internal/core"
	"bolso/internal/store"
)

// Factory opens an empty store for one test.
type Factory func(t *testing.T) store.Store

// Run executes the shared suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"requires user", testRequiresUser},
		{"transactions round trip", testTransactions},
		{"batch insert is all or nothing", testAtomicBatch},
		{"users are isolated", testUserIsolation},
		{"card delete cascades", testCardCascade},
		{"goal upsert replaces month", testGoalUpsert},
		{"fixed payment patch", testFixedPayments},
		{"notifications", testNotifications},
		{"webhook settings and dismissals", testWebhookAndDismissals},
		{"profile defaults", testProfile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

func userCtx(id core.UserID) context.Context {
	return core.WithUser(context.Background(), id)
}

func expense(cents int64, date core.Date, card string) core.Expense {
	return core.Expense{
		TxBase:       core.TxBase{Amount: core.Money{Cents: cents}, Date: date, Note: "n"},
		Category:     core.Alimentacao,
		CreditCardID: card,
	}
}

func testRequiresUser(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.ListTransactions(ctx); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Errorf("ListTransactions() error = %v, want ErrNotAuthenticated", err)
	}
	if _, err := s.InsertTransactions(ctx, expense(100, core.NewDate(2024, 1, 1), "")); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Errorf("InsertTransactions() error = %v, want ErrNotAuthenticated", err)
	}
	if err := s.DeleteCard(ctx, "x"); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Errorf("DeleteCard() error = %v, want ErrNotAuthenticated", err)
	}
}

func testTransactions(t *testing.T, s store.Store) {
	ctx := userCtx("u1")
	in := core.Expense{
		TxBase:       core.TxBase{Amount: core.Money{Cents: 4590}, Date: core.NewDate(2024, 3, 9), Note: "Parcela 1/2"},
		Category:     core.Lazer,
		CreditCardID: "c1",
		Installment:  &core.Installment{Index: 1, Count: 2},
	}
	inc := core.Income{TxBase: core.TxBase{Amount: core.Money{Cents: 500000}, Date: core.NewDate(2024, 3, 5)}, Source: "salario"}

	stored, err := s.InsertTransactions(ctx, in, inc)
	if err != nil {
		t.Fatalf("InsertTransactions() error = %v", err)
	}
	if len(stored) != 2 || stored[0].Base().ID == "" || stored[1].Base().ID == "" {
		t.Fatalf("InsertTransactions() = %+v, want ids assigned", stored)
	}

	list, err := s.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListTransactions() len = %d, want 2", len(list))
	}
	var gotExpense core.Expense
	var gotIncome core.Income
	for _, tx := range list {
		switch v := tx.(type) {
		case core.Expense:
			gotExpense = v
		case core.Income:
			gotIncome = v
		}
	}
	if gotExpense.Amount.Cents != 4590 || gotExpense.Date.String() != "2024-03-09" || gotExpense.Category != core.Lazer ||
		gotExpense.CreditCardID != "c1" || gotExpense.Installment == nil || gotExpense.Installment.Count != 2 ||
		gotExpense.Note != "Parcela 1/2" {
		t.Errorf("stored expense = %+v", gotExpense)
	}
	if gotIncome.Source != "salario" || gotIncome.Amount.Cents != 500000 {
		t.Errorf("stored income = %+v", gotIncome)
	}

	if err := s.DeleteTransaction(ctx, gotExpense.ID); err != nil {
		t.Fatalf("DeleteTransaction() error = %v", err)
	}
	if err := s.DeleteTransaction(ctx, gotExpense.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second DeleteTransaction() error = %v, want ErrNotFound", err)
	}
	list, _ = s.ListTransactions(ctx)
	if len(list) != 1 {
		t.Errorf("after delete len = %d, want 1", len(list))
	}
}

func testAtomicBatch(t *testing.T, s store.Store) {
	ctx := userCtx("u1")
	good := expense(1000, core.NewDate(2024, 1, 1), "")
	bad := expense(0, core.NewDate(2024, 2, 1), "")
	if _, err := s.InsertTransactions(ctx, good, bad); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("InsertTransactions() error = %v, want validation error", err)
	}
	list, err := s.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("partial batch persisted: %+v", list)
	}
}

func testUserIsolation(t *testing.T, s store.Store) {
	a, b := userCtx("alice"), userCtx("bob")
	if _, err := s.InsertTransactions(a, expense(1000, core.NewDate(2024, 1, 1), "")); err != nil {
		t.Fatalf("InsertTransactions() error = %v", err)
	}
	card, err := s.InsertCard(a, core.CreditCard{Name: "Nubank", Limit: core.Money{Cents: 100000}, ClosingDay: 1, DueDay: 10})
	if err != nil {
		t.Fatalf("InsertCard() error = %v", err)
	}

	list, _ := s.ListTransactions(b)
	if len(list) != 0 {
		t.Errorf("bob sees alice's transactions: %+v", list)
	}
	if err := s.DeleteCard(b, card.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("bob deleting alice's card error = %v, want ErrNotFound", err)
	}
	cards, _ := s.ListCards(a)
	if len(cards) != 1 {
		t.Errorf("alice's card was removed by bob")
	}

	users, err := s.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	found := map[core.UserID]bool{}
	for _, u := range users {
		found[u] = true
	}
	if !found["alice"] {
		t.Errorf("ListUsers() = %v, want alice", users)
	}
}

func testCardCascade(t *testing.T, s store.Store) {
	ctx := userCtx("u1")
	card, err := s.InsertCard(ctx, core.CreditCard{Name: "Inter", Limit: core.Money{Cents: 200000}, ClosingDay: 3, DueDay: 10, Color: "#3b82f6"})
	if err != nil {
		t.Fatalf("InsertCard() error = %v", err)
	}
	if card.ID == "" {
		t.Fatalf("InsertCard() did not assign an id")
	}
	_, err = s.InsertTransactions(ctx,
		expense(30000, core.NewDate(2024, 3, 1), card.ID),
		expense(25000, core.NewDate(2024, 3, 2), card.ID),
		expense(1000, core.NewDate(2024, 3, 3), ""),
	)
	if err != nil {
		t.Fatalf("InsertTransactions() error = %v", err)
	}

	if err := s.DeleteCard(ctx, card.ID); err != nil {
		t.Fatalf("DeleteCard() error = %v", err)
	}
	list, _ := s.ListTransactions(ctx)
	if len(list) != 1 || list[0].Base().Amount.Cents != 1000 {
		t.Errorf("after cascade = %+v, want only the unrelated expense", list)
	}
	cards, _ := s.ListCards(ctx)
	if len(cards) != 0 {
		t.Errorf("ListCards() = %+v, want empty", cards)
	}
}

func testGoalUpsert(t *testing.T, s store.Store) {
	ctx := userCtx("u1")
	for _, cents := range []int64{100000, 150000} {
		if _, err := s.UpsertGoal(ctx, core.MonthlyGoal{Month: "2024-03", Amount: core.Money{Cents: cents}}); err != nil {
			t.Fatalf("UpsertGoal() error = %v", err)
		}
	}
	if _, err := s.UpsertGoal(ctx, core.MonthlyGoal{Month: "2024-04", Amount: core.Money{Cents: 90000}}); err != nil {
		t.Fatalf("UpsertGoal() error = %v", err)
	}
	goals, err := s.ListGoals(ctx)
	if err != nil {
		t.Fatalf("ListGoals() error = %v", err)
	}
	if len(goals) != 2 {
		t.Fatalf("ListGoals() = %+v, want 2", goals)
	}
	for _, g := range goals {
		if g.Month == "2024-03" && g.Amount.Cents != 150000 {
			t.Errorf("goal for 2024-03 = %d, want 150000", g.Amount.Cents)
		}
	}
}

func testFixedPayments(t *testing.T, s store.Store) {
	ctx := userCtx("u1")
	p, err := s.InsertFixedPayment(ctx, core.FixedPayment{Name: "Luz", Amount: core.Money{Cents: 12000}, DueDay: 10, Category: core.Contas, Month: "2024-03"})
	if err != nil {
		t.Fatalf("InsertFixedPayment() error = %v", err)
	}
	paid := true
	got, err := s.UpdateFixedPayment(ctx, p.ID, core.FixedPaymentPatch{IsPaid: &paid})
	if err != nil {
		t.Fatalf("UpdateFixedPayment() error = %v", err)
	}
	if !got.IsPaid || got.Name != "Luz" {
		t.Errorf("UpdateFixedPayment() = %+v", got)
	}
	list, _ := s.ListFixedPayments(ctx)
	if len(list) != 1 || !list[0].IsPaid {
		t.Errorf("ListFixedPayments() = %+v", list)
	}
	if _, err := s.UpdateFixedPayment(ctx, "missing", core.FixedPaymentPatch{IsPaid: &paid}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("UpdateFixedPayment(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteFixedPayment(ctx, p.ID); err != nil {
		t.Fatalf("DeleteFixedPayment() error = %v", err)
	}
	if list, _ := s.ListFixedPayments(ctx); len(list) != 0 {
		t.Errorf("after delete = %+v", list)
	}
}

func testNotifications(t *testing.T, s store.Store) {
	ctx := userCtx("u1")
	base := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	first, err := s.InsertNotification(ctx, core.Notification{
		Type: core.NotifyPaymentReminder, Title: "Luz", Message: "Vence hoje!", RelatedID: "p1",
		Extra: map[string]any{"dueDay": float64(10)}, CreatedAt: base,
	})
	if err != nil {
		t.Fatalf("InsertNotification() error = %v", err)
	}
	if first.ID == "" || first.UserID != "u1" {
		t.Errorf("InsertNotification() = %+v", first)
	}
	if _, err := s.InsertNotification(ctx, core.Notification{Type: core.NotifyBudgetAlert, Title: "75%", RelatedID: "2024-03", CreatedAt: base.Add(time.Hour)}); err != nil {
		t.Fatalf("InsertNotification() error = %v", err)
	}

	list, err := s.ListNotifications(ctx, 10)
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if len(list) != 2 || list[0].Type != core.NotifyBudgetAlert {
		t.Fatalf("ListNotifications() = %+v, want newest first", list)
	}
	if list[1].Extra["dueDay"] != float64(10) {
		t.Errorf("extra data = %v", list[1].Extra)
	}
	if limited, _ := s.ListNotifications(ctx, 1); len(limited) != 1 {
		t.Errorf("limit ignored: %d", len(limited))
	}

	if err := s.MarkNotificationRead(ctx, first.ID); err != nil {
		t.Fatalf("MarkNotificationRead() error = %v", err)
	}
	list, _ = s.ListNotifications(ctx, 10)
	if !list[1].IsRead {
		t.Errorf("notification not marked read")
	}

	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	if ok, _ := s.HasNotification(ctx, core.NotifyPaymentReminder, "p1", day); !ok {
		t.Errorf("HasNotification(same day) = false")
	}
	if ok, _ := s.HasNotification(ctx, core.NotifyPaymentReminder, "p1", day.AddDate(0, 0, 1)); ok {
		t.Errorf("HasNotification(next day) = true")
	}
	if ok, _ := s.HasNotification(ctx, core.NotifyPaymentReminder, "p2", day); ok {
		t.Errorf("HasNotification(other item) = true")
	}
}

func testWebhookAndDismissals(t *testing.T, s store.Store) {
	ctx := userCtx("u1")
	if w, err := s.GetWebhookSettings(ctx); err != nil || w.URL != "" {
		t.Fatalf("GetWebhookSettings() = %+v, %v, want empty", w, err)
	}
	want := core.WebhookSettings{URL: "https://hooks.example.com/x", Secret: "s3cr3t", Active: true}
	if err := s.SaveWebhookSettings(ctx, want); err != nil {
		t.Fatalf("SaveWebhookSettings() error = %v", err)
	}
	want.Active = false
	if err := s.SaveWebhookSettings(ctx, want); err != nil {
		t.Fatalf("SaveWebhookSettings() error = %v", err)
	}
	if got, _ := s.GetWebhookSettings(ctx); got != want {
		t.Errorf("GetWebhookSettings() = %+v, want %+v", got, want)
	}
	if err := s.InsertWebhookLog(ctx, core.WebhookLog{NotificationID: "n1", URL: want.URL, Payload: []byte(`{}`), Status: 200, Success: true, SentAt: time.Now()}); err != nil {
		t.Errorf("InsertWebhookLog() error = %v", err)
	}

	day := core.NewDate(2024, 3, 10)
	if err := s.SaveDismissals(ctx, core.Dismissals{}.Add(day, "p1").Add(day, "card-c1")); err != nil {
		t.Fatalf("SaveDismissals() error = %v", err)
	}
	got, err := s.GetDismissals(ctx)
	if err != nil {
		t.Fatalf("GetDismissals() error = %v", err)
	}
	if !got.Contains(day, "p1") || !got.Contains(day, "card-c1") {
		t.Errorf("GetDismissals() = %+v", got)
	}
	if got.Contains(core.NewDate(2024, 3, 11), "p1") {
		t.Errorf("dismissals leaked into the next day")
	}
}

func testProfile(t *testing.T, s store.Store) {
	ctx := userCtx("u1")
	p, err := s.GetProfile(ctx)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if p.UserID != "u1" || !p.NotificationsEnabled {
		t.Errorf("default profile = %+v", p)
	}
	p.FullName = "Ana"
	p.WhatsApp = "+5511987654321"
	p.NotificationsEnabled = false
	if err := s.SaveProfile(ctx, p); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}
	got, _ := s.GetProfile(ctx)
	if got != p {
		t.Errorf("GetProfile() = %+v, want %+v", got, p)
	}
}
