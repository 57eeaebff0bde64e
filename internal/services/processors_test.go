package services

import (
	"context"
	"testing"
	"time"

	"bolso/internal/core"
	"bolso/internal/log"
	"bolso/internal/store/memory"
)

func TestRolloverProcessor(t *testing.T) {
	st := memory.New()
	ctx := core.WithUser(context.Background(), "user-1")
	seed := []core.FixedPayment{
		{Name: "Aluguel", Amount: core.MoneyFromCents(150000), DueDay: 10, Category: core.Contas, Month: "2024-02", IsPaid: true},
		{Name: "Internet", Amount: core.MoneyFromCents(10000), DueDay: 5, Category: core.Contas, Month: "2024-02"},
		{Name: " internet ", Amount: core.MoneyFromCents(12000), DueDay: 5, Category: core.Contas, Month: "2024-03"},
		{Name: "Academia", Amount: core.MoneyFromCents(9000), DueDay: 1, Category: core.Lazer, Month: "2024-01"},
	}
	for _, p := range seed {
		if _, err := st.InsertFixedPayment(ctx, p); err != nil {
			t.Fatalf("InsertFixedPayment() error = %v", err)
		}
	}

	p := NewRolloverProcessor(st, log.Discard())

	n, err := p.Rollover(ctx, "2024-03")
	if err != nil {
		t.Fatalf("Rollover() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Rollover() = %d, want 1 (only Aluguel is missing)", n)
	}

	all, _ := st.ListFixedPayments(ctx)
	var march []core.FixedPayment
	for _, fp := range all {
		if fp.Month == "2024-03" {
			march = append(march, fp)
		}
	}
	if len(march) != 2 {
		t.Fatalf("march payments = %+v", march)
	}
	for _, fp := range march {
		if fp.Name == "Aluguel" && (fp.IsPaid || fp.Amount.Cents != 150000 || fp.DueDay != 10) {
			t.Errorf("rolled payment = %+v, want unpaid copy", fp)
		}
	}

	again, err := p.Rollover(ctx, "2024-03")
	if err != nil || again != 0 {
		t.Errorf("second Rollover() = %d, %v, want 0", again, err)
	}

	if _, err := p.Rollover(ctx, "march"); err == nil {
		t.Error("Rollover() should reject a malformed month")
	}
}

func TestReminderProcessor(t *testing.T) {
	svc, st, d, ctx := newTestService(t)
	st.SaveProfile(ctx, core.Profile{UserID: "user-1", NotificationsEnabled: true, Timezone: "UTC"})
	svc.AddFixedPayment(ctx, core.FixedPayment{Name: "Luz", Amount: core.MoneyFromCents(9000), DueDay: 11, Category: core.Contas})
	svc.AddFixedPayment(ctx, core.FixedPayment{Name: "Água", Amount: core.MoneyFromCents(5000), DueDay: 28, Category: core.Contas})
	svc.AddCard(ctx, core.CreditCard{Name: "Nubank", Limit: core.MoneyFromCents(100000), ClosingDay: 3, DueDay: 10})

	p := NewReminderProcessor(svc, 8, log.Discard())

	early := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
	if n, err := p.Remind(ctx, early); err != nil || n != 0 {
		t.Errorf("Remind() before the reminder hour = %d, %v, want 0", n, err)
	}

	n, err := p.Remind(ctx, fixedNow)
	if err != nil {
		t.Fatalf("Remind() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("Remind() = %d, want 2", n)
	}
	types := d.types()
	if types[0] != core.NotifyDueDateMorning || types[1] != core.NotifyPaymentReminder {
		t.Errorf("reminder types = %v", types)
	}

	if n, _ := p.Remind(ctx, fixedNow.Add(time.Hour)); n != 0 {
		t.Errorf("second Remind() on the same day = %d, want 0", n)
	}

	// The next morning the card is overdue and drops out; Luz is due today.
	if n, _ := p.Remind(ctx, fixedNow.AddDate(0, 0, 1)); n != 1 {
		t.Errorf("Remind() next day = %d, want 1", n)
	}
}

func TestReminderProcessor_Disabled(t *testing.T) {
	svc, st, d, ctx := newTestService(t)
	st.SaveProfile(ctx, core.Profile{UserID: "user-1", NotificationsEnabled: false})
	svc.AddFixedPayment(ctx, core.FixedPayment{Name: "Luz", Amount: core.MoneyFromCents(9000), DueDay: 10, Category: core.Contas})

	n, err := NewReminderProcessor(svc, 0, log.Discard()).Remind(ctx, fixedNow)
	if err != nil || n != 0 || len(d.types()) != 0 {
		t.Errorf("Remind() = %d, %v, dispatched %v", n, err, d.types())
	}
}

func TestScheduler_RunOnce(t *testing.T) {
	svc, st, d, _ := newTestService(t)
	for _, user := range []core.UserID{"ana", "bia"} {
		uctx := core.WithUser(context.Background(), user)
		st.SaveProfile(uctx, core.Profile{UserID: user, NotificationsEnabled: true, Timezone: "UTC"})
		st.InsertFixedPayment(uctx, core.FixedPayment{Name: "Aluguel", Amount: core.MoneyFromCents(100000), DueDay: 10, Category: core.Contas, Month: "2024-02"})
	}

	s := NewScheduler(st, NewRolloverProcessor(st, log.Discard()), NewReminderProcessor(svc, 8, log.Discard()),
		SchedulerConfig{Interval: time.Minute, Concurrency: 2}, log.Discard())
	s.now = func() time.Time { return fixedNow }

	stats := s.RunOnce(context.Background())
	if stats.Users != 2 || stats.RolledOver != 2 || stats.Reminders != 2 || stats.Failures != 0 {
		t.Errorf("RunOnce() = %+v", stats)
	}
	for _, n := range d.got {
		if n.UserID != "ana" && n.UserID != "bia" {
			t.Errorf("reminder for unexpected user %q", n.UserID)
		}
	}

	stats = s.RunOnce(context.Background())
	if stats.RolledOver != 0 || stats.Reminders != 0 {
		t.Errorf("second RunOnce() = %+v, want nothing new", stats)
	}
}

func TestScheduler_Lifecycle(t *testing.T) {
	st := memory.New()
	s := NewScheduler(st, nil, nil, SchedulerConfig{Interval: time.Hour}, log.Discard())

	if s.IsRunning() {
		t.Error("scheduler should not be running initially")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Error("expected error when starting already running scheduler")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if s.IsRunning() {
		t.Error("scheduler should not be running after Stop")
	}
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(memory.New(), nil, nil, SchedulerConfig{}, nil)
	if s.config.Interval != DefaultSchedulerConfig().Interval {
		t.Errorf("Interval = %v, want default", s.config.Interval)
	}
	if s.config.Concurrency != 1 {
		t.Errorf("Concurrency = %d, want 1", s.config.Concurrency)
	}
}
