package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bolso/internal/core"
	"bolso/internal/installments"
	"bolso/internal/log"
	"bolso/internal/store/memory"
	"bolso/internal/urgency"
)

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type recordingDispatcher struct {
	mu  sync.Mutex
	got []core.Notification
	err error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, n core.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, n)
	return d.err
}

func (d *recordingDispatcher) types() []core.NotificationType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]core.NotificationType, len(d.got))
	for i, n := range d.got {
		out[i] = n.Type
	}
	return out
}

func newTestService(t *testing.T) (*FinanceService, *memory.Store, *recordingDispatcher, context.Context) {
	t.Helper()
	st := memory.New()
	d := &recordingDispatcher{}
	svc := NewFinanceService(st,
		WithDispatcher(d),
		WithLogger(log.Discard()),
		WithClock(func() time.Time { return fixedNow }),
	)
	return svc, st, d, core.WithUser(context.Background(), "user-1")
}

func expense(cents int64, date string, cat core.Category) core.Expense {
	d, _ := core.ParseDate(date)
	return core.Expense{TxBase: core.TxBase{Amount: core.MoneyFromCents(cents), Date: d}, Category: cat}
}

func TestFinanceService_RequiresUser(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Summary(ctx, "2024-03"); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Errorf("Summary() error = %v, want ErrNotAuthenticated", err)
	}
	if _, err := svc.AddExpense(ctx, expense(100, "2024-03-01", core.Lazer)); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Errorf("AddExpense() error = %v, want ErrNotAuthenticated", err)
	}
}

func TestFinanceService_AddCardPurchase(t *testing.T) {
	svc, _, _, ctx := newTestService(t)
	card, err := svc.AddCard(ctx, core.CreditCard{Name: "Nubank", Limit: core.MoneyFromCents(500000), ClosingDay: 3, DueDay: 10})
	if err != nil {
		t.Fatalf("AddCard() error = %v", err)
	}
	if card.Color != core.CardColors[0] {
		t.Errorf("AddCard() color = %q, want first palette color", card.Color)
	}

	first, _ := core.ParseDate("2024-01-31")
	purchase := installments.Purchase{
		Total:        core.MoneyFromCents(10000),
		Count:        3,
		FirstDate:    first,
		Category:     core.Lazer,
		Note:         "TV",
		CreditCardID: card.ID,
	}

	t.Run("split into installments", func(t *testing.T) {
		got, err := svc.AddCardPurchase(ctx, purchase, true)
		if err != nil {
			t.Fatalf("AddCardPurchase() error = %v", err)
		}
		wantCents := []int64{3334, 3333, 3333}
		wantDates := []string{"2024-01-31", "2024-03-02", "2024-03-31"}
		if len(got) != 3 {
			t.Fatalf("AddCardPurchase() returned %d records, want 3", len(got))
		}
		for i, e := range got {
			if e.ID == "" {
				t.Errorf("record %d has no id", i)
			}
			if e.Amount.Cents != wantCents[i] {
				t.Errorf("record %d amount = %d, want %d", i, e.Amount.Cents, wantCents[i])
			}
			if e.Date.String() != wantDates[i] {
				t.Errorf("record %d date = %s, want %s", i, e.Date, wantDates[i])
			}
		}
		if got[1].Note != "TV - Parcela 2/3" {
			t.Errorf("note = %q", got[1].Note)
		}
	})

	t.Run("single payment", func(t *testing.T) {
		got, err := svc.AddCardPurchase(ctx, purchase, false)
		if err != nil {
			t.Fatalf("AddCardPurchase() error = %v", err)
		}
		if len(got) != 1 || got[0].Amount.Cents != 10000 || got[0].Note != "TV" || got[0].IsInstallment() {
			t.Errorf("AddCardPurchase() = %+v", got)
		}
	})

	t.Run("unknown card stores nothing", func(t *testing.T) {
		before, _ := svc.Transactions(ctx, "")
		p := purchase
		p.CreditCardID = "missing"
		if _, err := svc.AddCardPurchase(ctx, p, true); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("AddCardPurchase() error = %v, want ErrNotFound", err)
		}
		after, _ := svc.Transactions(ctx, "")
		if len(after) != len(before) {
			t.Errorf("transactions grew from %d to %d", len(before), len(after))
		}
	})

	t.Run("invalid count stores nothing", func(t *testing.T) {
		before, _ := svc.Transactions(ctx, "")
		p := purchase
		p.Count = 49
		if _, err := svc.AddCardPurchase(ctx, p, true); !errors.Is(err, core.ErrValidation) {
			t.Errorf("AddCardPurchase() error = %v, want validation error", err)
		}
		after, _ := svc.Transactions(ctx, "")
		if len(after) != len(before) {
			t.Errorf("transactions grew from %d to %d", len(before), len(after))
		}
	})

	t.Run("delete card cascades", func(t *testing.T) {
		if err := svc.DeleteCard(ctx, card.ID); err != nil {
			t.Fatalf("DeleteCard() error = %v", err)
		}
		txs, _ := svc.Transactions(ctx, "")
		if len(txs) != 0 {
			t.Errorf("card transactions left after delete: %d", len(txs))
		}
	})
}

func TestFinanceService_SummaryCacheInvalidation(t *testing.T) {
	svc, _, _, ctx := newTestService(t)

	if _, err := svc.AddIncome(ctx, core.Income{
		TxBase: core.TxBase{Amount: core.MoneyFromCents(300000), Date: core.NewDate(2024, 3, 5)},
		Source: "salario",
	}); err != nil {
		t.Fatalf("AddIncome() error = %v", err)
	}

	s1, err := svc.Summary(ctx, "")
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if s1.Month != "2024-03" || s1.TotalIncome.Cents != 300000 || s1.TotalExpenses.Cents != 0 {
		t.Errorf("Summary() = %+v", s1)
	}

	if _, err := svc.AddExpense(ctx, expense(5000, "2024-03-08", core.Alimentacao)); err != nil {
		t.Fatalf("AddExpense() error = %v", err)
	}
	s2, _ := svc.Summary(ctx, "2024-03")
	if s2.TotalExpenses.Cents != 5000 || s2.Balance.Cents != 295000 {
		t.Errorf("Summary() after write = %+v, want fresh totals", s2)
	}
	if s2.ExpensesByCategory[core.Alimentacao].Cents != 5000 || len(s2.ExpensesByCategory) != 5 {
		t.Errorf("ExpensesByCategory = %v", s2.ExpensesByCategory)
	}

	if _, err := svc.SetGoal(ctx, core.MonthlyGoal{Month: "2024-03", Amount: core.MoneyFromCents(10000)}); err != nil {
		t.Fatalf("SetGoal() error = %v", err)
	}
	s3, _ := svc.Summary(ctx, "2024-03")
	if s3.ProgressPercentage != 50 || s3.RemainingBudget.Cents != 5000 {
		t.Errorf("Summary() after goal = %+v", s3)
	}

	if _, err := svc.Summary(ctx, "2024-13"); !errors.Is(err, core.ErrValidation) {
		t.Errorf("Summary(bad month) error = %v, want validation error", err)
	}
}

func TestFinanceService_GoalAlerts(t *testing.T) {
	svc, _, d, ctx := newTestService(t)
	if _, err := svc.SetGoal(ctx, core.MonthlyGoal{Month: "2024-03", Amount: core.MoneyFromCents(100000)}); err != nil {
		t.Fatalf("SetGoal() error = %v", err)
	}

	steps := []struct {
		cents int64
		want  []core.NotificationType
	}{
		{50000, nil},
		{26000, []core.NotificationType{core.NotifyBudgetAlert}},
		{1000, nil},
		{30000, []core.NotificationType{core.NotifyGoalWarning, core.NotifyGoalAchieved}},
		{5000, nil},
	}
	for i, step := range steps {
		before := len(d.types())
		if _, err := svc.AddExpense(ctx, expense(step.cents, "2024-03-09", core.Lazer)); err != nil {
			t.Fatalf("step %d AddExpense() error = %v", i, err)
		}
		got := d.types()[before:]
		if len(got) != len(step.want) {
			t.Fatalf("step %d alerts = %v, want %v", i, got, step.want)
		}
		for j := range got {
			if got[j] != step.want[j] {
				t.Errorf("step %d alert %d = %v, want %v", i, j, got[j], step.want[j])
			}
		}
	}

	stored, err := svc.Notifications(ctx, 0)
	if err != nil {
		t.Fatalf("Notifications() error = %v", err)
	}
	if len(stored) != 3 {
		t.Errorf("stored notifications = %d, want 3", len(stored))
	}
	for _, n := range stored {
		if n.RelatedID != "2024-03" || n.UserID != "user-1" {
			t.Errorf("notification = %+v", n)
		}
	}
}

func TestFinanceService_CardAlerts(t *testing.T) {
	svc, _, d, ctx := newTestService(t)
	card, _ := svc.AddCard(ctx, core.CreditCard{Name: "Inter", Limit: core.MoneyFromCents(100000), ClosingDay: 1, DueDay: 8})

	e := expense(85000, "2024-03-02", core.Contas)
	e.CreditCardID = card.ID
	if _, err := svc.AddExpense(ctx, e); err != nil {
		t.Fatalf("AddExpense() error = %v", err)
	}
	if got := d.types(); len(got) != 1 || got[0] != core.NotifyCardLimitWarning {
		t.Fatalf("alerts = %v, want one card_limit_warning", got)
	}

	e.Amount = core.MoneyFromCents(20000)
	svc.AddExpense(ctx, e)
	if got := d.types(); len(got) != 2 {
		t.Fatalf("alerts = %v, want the 95%% crossing", got)
	}

	usage, err := svc.CardUsage(ctx, card.ID, "")
	if err != nil {
		t.Fatalf("CardUsage() error = %v", err)
	}
	if usage.Percentage != 105 || usage.Available.Cents != 0 || usage.Spent.Cents != 105000 {
		t.Errorf("CardUsage() = %+v", usage)
	}
}

func TestFinanceService_NotifyRespectsProfile(t *testing.T) {
	svc, st, d, ctx := newTestService(t)
	st.SaveProfile(ctx, core.Profile{UserID: "user-1", NotificationsEnabled: false, Timezone: "UTC"})

	n, err := svc.Notify(ctx, core.Notification{Type: core.NotifyMonthlySummary, Title: "Resumo"})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if n.ID == "" || !n.CreatedAt.Equal(fixedNow) {
		t.Errorf("Notify() = %+v", n)
	}
	if len(d.types()) != 0 {
		t.Errorf("disabled notifications were dispatched: %v", d.types())
	}
	list, _ := svc.Notifications(ctx, 10)
	if len(list) != 1 {
		t.Errorf("notification not stored")
	}
}

func TestFinanceService_DispatchFailureDoesNotFailWrite(t *testing.T) {
	svc, _, d, ctx := newTestService(t)
	d.err = core.NewRemoteError("amqp publish", errors.New("broker down"))
	svc.SetGoal(ctx, core.MonthlyGoal{Month: "2024-03", Amount: core.MoneyFromCents(1000)})

	if _, err := svc.AddExpense(ctx, expense(2000, "2024-03-01", core.Outros)); err != nil {
		t.Errorf("AddExpense() error = %v, want write to succeed", err)
	}
}

func TestFinanceService_FixedPayments(t *testing.T) {
	svc, _, _, ctx := newTestService(t)
	rent, err := svc.AddFixedPayment(ctx, core.FixedPayment{Name: "Aluguel", Amount: core.MoneyFromCents(150000), DueDay: 10, Category: core.Contas})
	if err != nil {
		t.Fatalf("AddFixedPayment() error = %v", err)
	}
	if rent.Month != "2024-03" {
		t.Errorf("default month = %s, want 2024-03", rent.Month)
	}
	svc.AddFixedPayment(ctx, core.FixedPayment{Name: "Internet", Amount: core.MoneyFromCents(10000), DueDay: 5, Category: core.Contas})

	toggled, err := svc.TogglePaid(ctx, rent.ID)
	if err != nil || !toggled.IsPaid {
		t.Fatalf("TogglePaid() = %+v, %v", toggled, err)
	}

	totals, err := svc.FixedPaymentTotals(ctx, "")
	if err != nil {
		t.Fatalf("FixedPaymentTotals() error = %v", err)
	}
	if totals.Paid.Cents != 150000 || totals.Pending.Cents != 10000 {
		t.Errorf("FixedPaymentTotals() = %+v", totals)
	}

	list, _ := svc.FixedPayments(ctx, "")
	if len(list) != 2 || list[0].Name != "Internet" {
		t.Errorf("FixedPayments() should be ordered by due day, got %+v", list)
	}

	if _, err := svc.TogglePaid(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("TogglePaid(missing) error = %v, want ErrNotFound", err)
	}
}

func TestFinanceService_UrgentItemsAndDismiss(t *testing.T) {
	svc, _, _, ctx := newTestService(t)
	overdue, _ := svc.AddFixedPayment(ctx, core.FixedPayment{Name: "Luz", Amount: core.MoneyFromCents(9000), DueDay: 5, Category: core.Contas})
	svc.AddFixedPayment(ctx, core.FixedPayment{Name: "Academia", Amount: core.MoneyFromCents(9000), DueDay: 25, Category: core.Lazer})
	card, _ := svc.AddCard(ctx, core.CreditCard{Name: "Nubank", Limit: core.MoneyFromCents(100000), ClosingDay: 3, DueDay: 12})

	items, err := svc.UrgentItems(ctx)
	if err != nil {
		t.Fatalf("UrgentItems() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("UrgentItems() = %+v, want overdue payment and due card", items)
	}
	if items[0].ID != overdue.ID || items[0].Level != urgency.Overdue || items[0].Status != "Atrasado!" {
		t.Errorf("first item = %+v", items[0])
	}
	if items[1].ID != urgency.CardAlertID(card.ID) || items[1].Status != "Vence em 2 dias" {
		t.Errorf("second item = %+v", items[1])
	}

	if _, err := svc.Dismiss(ctx, items[1].ID); err != nil {
		t.Fatalf("Dismiss() error = %v", err)
	}
	items, _ = svc.UrgentItems(ctx)
	if len(items) != 1 || items[0].ID != overdue.ID {
		t.Errorf("UrgentItems() after dismiss = %+v", items)
	}

	svc.now = func() time.Time { return fixedNow.AddDate(0, 0, 1) }
	items, _ = svc.UrgentItems(ctx)
	if len(items) != 2 {
		t.Errorf("dismissal should expire the next day, got %d items", len(items))
	}
}

func TestFinanceService_ProfileAndWebhook(t *testing.T) {
	svc, _, _, ctx := newTestService(t)

	p, err := svc.Profile(ctx)
	if err != nil || !p.NotificationsEnabled {
		t.Fatalf("default Profile() = %+v, %v", p, err)
	}

	saved, err := svc.SaveProfile(ctx, core.Profile{FullName: " Ana ", WhatsApp: "(11) 98765-4321", NotificationsEnabled: true})
	if err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}
	if saved.WhatsApp != "+5511987654321" || saved.FullName != "Ana" || saved.Timezone != "America/Sao_Paulo" {
		t.Errorf("SaveProfile() = %+v", saved)
	}
	if _, err := svc.SaveProfile(ctx, core.Profile{Timezone: "Nowhere/City"}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("SaveProfile(bad tz) error = %v, want validation error", err)
	}

	tests := []struct {
		name     string
		settings core.WebhookSettings
		wantErr  bool
	}{
		{"valid", core.WebhookSettings{URL: "https://hooks.example.com/x", Active: true}, false},
		{"empty and inactive", core.WebhookSettings{}, false},
		{"active without url", core.WebhookSettings{Active: true}, true},
		{"relative url", core.WebhookSettings{URL: "/hook", Active: true}, true},
		{"ftp url", core.WebhookSettings{URL: "ftp://example.com"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.SaveWebhookSettings(ctx, tt.settings)
			if (err != nil) != tt.wantErr {
				t.Errorf("SaveWebhookSettings() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFinanceService_InstallmentProjections(t *testing.T) {
	svc, _, _, ctx := newTestService(t)
	card, _ := svc.AddCard(ctx, core.CreditCard{Name: "C6", Limit: core.MoneyFromCents(1000000), ClosingDay: 1, DueDay: 10})
	svc.AddCardPurchase(ctx, installments.Purchase{
		Total:        core.MoneyFromCents(60000),
		Count:        6,
		FirstDate:    core.NewDate(2024, 1, 15),
		Category:     core.Outros,
		CreditCardID: card.ID,
	}, true)

	future, err := svc.FutureInstallments(ctx, card.ID)
	if err != nil {
		t.Fatalf("FutureInstallments() error = %v", err)
	}
	// March through June remain from 2024-03-10
	if len(future) != 4 || future[0].MonthsAhead != 0 {
		t.Errorf("FutureInstallments() = %+v", future)
	}

	byMonth, err := svc.InstallmentsByMonth(ctx, card.ID, 6)
	if err != nil {
		t.Fatalf("InstallmentsByMonth() error = %v", err)
	}
	if len(byMonth) != 7 || byMonth[0].Total.Cents != 10000 || byMonth[4].Count != 0 {
		t.Errorf("InstallmentsByMonth() = %+v", byMonth)
	}

	if _, err := svc.InstallmentsByMonth(ctx, card.ID, 0); !errors.Is(err, core.ErrValidation) {
		t.Errorf("InstallmentsByMonth(0) error = %v, want validation error", err)
	}
}

func TestFinanceService_TodayFollowsProfileTimezone(t *testing.T) {
	svc, _, _, ctx := newTestService(t)

	if got := svc.Today(context.Background()).String(); got != "2024-03-10" {
		t.Errorf("Today(no user) = %s, want service location date 2024-03-10", got)
	}
	if got := svc.Today(ctx).String(); got != "2024-03-10" {
		t.Errorf("Today(default profile) = %s, want 2024-03-10", got)
	}

	// 12:00 UTC is already 02:00 on the 11th in Kiritimati (UTC+14).
	profile, err := svc.SaveProfile(ctx, core.Profile{Timezone: "Pacific/Kiritimati", NotificationsEnabled: true})
	if err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}
	if got := svc.Today(ctx).String(); got != "2024-03-11" {
		t.Errorf("Today(profile) = %s, want 2024-03-11", got)
	}

	dismissals, err := svc.Dismiss(ctx, "card-c1")
	if err != nil {
		t.Fatalf("Dismiss() error = %v", err)
	}
	reminderDay := core.DateOf(fixedNow.In(profile.Location()))
	if dismissals.Date.String() != reminderDay.String() {
		t.Errorf("dismissal keyed to %s, reminders check %s", dismissals.Date, reminderDay)
	}
	if !dismissals.Contains(reminderDay, "card-c1") {
		t.Errorf("dismissal not visible on the reminder day %s", reminderDay)
	}
}
