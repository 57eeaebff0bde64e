// Package services orchestrates the pure finance logic over the record store
// and the notification transports.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"bolso/internal/aggregate"
	"bolso/internal/cache"
	"bolso/internal/core"
	"bolso/internal/installments"
	"bolso/internal/log"
	"bolso/internal/notify"
	"bolso/internal/store"
	"bolso/internal/urgency"
)

const (
	defaultSummaryCacheSize = 512
	defaultSummaryCacheTTL  = 5 * time.Minute
	defaultNotificationPage = 50
	maxNotificationPage     = 200
)

// FinanceService is the single entry point for user-facing operations. Every
// method reads the user from ctx.
type FinanceService struct {
	store      store.Store
	dispatcher notify.Dispatcher
	summaries  cache.Cache[core.MonthSummary]
	logger     *log.Logger
	now        func() time.Time
	loc        *time.Location
}

type Option func(*FinanceService)

func WithDispatcher(d notify.Dispatcher) Option {
	return func(s *FinanceService) { s.dispatcher = d }
}

func WithSummaryCache(c cache.Cache[core.MonthSummary]) Option {
	return func(s *FinanceService) { s.summaries = c }
}

func WithLogger(l *log.Logger) Option {
	return func(s *FinanceService) { s.logger = l.WithComponent(log.ComponentFinance) }
}

func WithClock(now func() time.Time) Option {
	return func(s *FinanceService) { s.now = now }
}

// WithLocation sets the zone used to decide what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *FinanceService) { s.loc = loc }
}

func NewFinanceService(st store.Store, opts ...Option) *FinanceService {
	s := &FinanceService{
		store:      st,
		dispatcher: notify.Noop{},
		logger:     log.New(log.DefaultConfig()).WithComponent(log.ComponentFinance),
		now:        time.Now,
		loc:        time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.summaries == nil {
		s.summaries = cache.NewLRUCache[core.MonthSummary](defaultSummaryCacheSize, defaultSummaryCacheTTL)
	}
	return s
}

// Today is the current calendar date for the user in ctx: in their profile
// timezone, or in the service location when there is no user or profile.
// Reminders and dismissals use the same zone, so "today" agrees everywhere.
func (s *FinanceService) Today(ctx context.Context) core.Date {
	return core.DateOf(s.now().In(s.location(ctx)))
}

func (s *FinanceService) location(ctx context.Context) *time.Location {
	if _, err := core.UserFromContext(ctx); err != nil {
		return s.loc
	}
	p, err := s.store.GetProfile(ctx)
	if err != nil || p.Timezone == "" {
		return s.loc
	}
	return p.Location()
}

func (s *FinanceService) currentMonth(ctx context.Context) core.MonthKey {
	return s.Today(ctx).MonthKey()
}

func summaryKey(user core.UserID, month core.MonthKey) string {
	return string(user) + "|" + string(month)
}

func (s *FinanceService) invalidate(ctx context.Context) {
	if user, err := core.UserFromContext(ctx); err == nil {
		s.summaries.DeletePrefix(string(user) + "|")
	}
}

// Transactions lists the user's transactions newest first. An empty month
// returns every transaction.
func (s *FinanceService) Transactions(ctx context.Context, month core.MonthKey) ([]core.Transaction, error) {
	if month != "" {
		if err := month.Validate(); err != nil {
			return nil, err
		}
	}
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	if month != "" {
		txs = slices.DeleteFunc(txs, func(tx core.Transaction) bool { return !month.Contains(tx.Base().Date) })
	}
	slices.SortStableFunc(txs, func(a, b core.Transaction) int {
		return b.Base().Date.Compare(a.Base().Date.Time)
	})
	return txs, nil
}

// AddExpense stores a single expense. When it references a card the card
// must exist.
func (s *FinanceService) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if e.CreditCardID != "" {
		if _, err := s.card(ctx, e.CreditCardID); err != nil {
			return core.Expense{}, err
		}
	}
	stored, err := s.writeExpenses(ctx, []core.Expense{e})
	if err != nil {
		return core.Expense{}, err
	}
	return stored[0], nil
}

func (s *FinanceService) AddIncome(ctx context.Context, in core.Income) (core.Income, error) {
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	stored, err := s.store.InsertTransactions(ctx, in)
	if err != nil {
		s.logger.LogError(ctx, "Failed to store income", err, log.OpCreate, log.NewFields())
		return core.Income{}, err
	}
	s.invalidate(ctx)
	return stored[0].(core.Income), nil
}

// AddCardPurchase records a card purchase. With split set the purchase is
// expanded into monthly installments that are stored all at once; otherwise
// a single expense is stored.
func (s *FinanceService) AddCardPurchase(ctx context.Context, p installments.Purchase, split bool) ([]core.Expense, error) {
	if strings.TrimSpace(p.CreditCardID) == "" {
		return nil, core.NewValidationError("creditCardId", errors.New("required"))
	}
	var (
		exps []core.Expense
		err  error
	)
	if split {
		exps, err = installments.Expand(p)
	} else {
		var e core.Expense
		e, err = installments.Single(p)
		exps = []core.Expense{e}
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.card(ctx, p.CreditCardID); err != nil {
		return nil, err
	}
	return s.writeExpenses(ctx, exps)
}

// writeExpenses stores exps atomically and raises the goal and card alerts
// the write crossed. Alert failures never fail the write.
func (s *FinanceService) writeExpenses(ctx context.Context, exps []core.Expense) ([]core.Expense, error) {
	before, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	txs := make([]core.Transaction, len(exps))
	for i, e := range exps {
		txs[i] = e
	}
	stored, err := s.store.InsertTransactions(ctx, txs...)
	if err != nil {
		s.logger.LogError(ctx, "Failed to store expenses", err, log.OpCreate,
			log.NewFields().WithExpense(exps[0]).With(log.FieldCount, len(exps)))
		return nil, err
	}
	s.invalidate(ctx)

	out := core.ExpensesOf(stored)
	s.logger.InfoContext(ctx, "Expenses stored",
		log.NewFields().WithExpense(out[0]).With(log.FieldCount, len(out)).ToSlice()...)

	s.raiseSpendingAlerts(ctx, before, stored)
	return out, nil
}

func (s *FinanceService) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *FinanceService) Cards(ctx context.Context) ([]core.CreditCard, error) {
	return s.store.ListCards(ctx)
}

func (s *FinanceService) card(ctx context.Context, id string) (core.CreditCard, error) {
	cards, err := s.store.ListCards(ctx)
	if err != nil {
		return core.CreditCard{}, err
	}
	i := slices.IndexFunc(cards, func(c core.CreditCard) bool { return c.ID == id })
	if i < 0 {
		return core.CreditCard{}, fmt.Errorf("credit card %s: %w", id, core.ErrNotFound)
	}
	return cards[i], nil
}

// AddCard stores a card, picking the next palette color when none is given.
func (s *FinanceService) AddCard(ctx context.Context, c core.CreditCard) (core.CreditCard, error) {
	if err := c.Validate(); err != nil {
		return core.CreditCard{}, err
	}
	if c.Color == "" {
		cards, err := s.store.ListCards(ctx)
		if err != nil {
			return core.CreditCard{}, err
		}
		c.Color = core.CardColors[len(cards)%len(core.CardColors)]
	}
	return s.store.InsertCard(ctx, c)
}

// DeleteCard removes the card and its transactions.
func (s *FinanceService) DeleteCard(ctx context.Context, id string) error {
	if err := s.store.DeleteCard(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// CardUsage reports the card's spending in month; an empty month means the
// current one.
func (s *FinanceService) CardUsage(ctx context.Context, cardID string, month core.MonthKey) (core.CardUsage, error) {
	if month == "" {
		month = s.currentMonth(ctx)
	} else if err := month.Validate(); err != nil {
		return core.CardUsage{}, err
	}
	c, err := s.card(ctx, cardID)
	if err != nil {
		return core.CardUsage{}, err
	}
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return core.CardUsage{}, err
	}
	return aggregate.CardUsage(txs, c, month), nil
}

// FutureInstallments lists the card's installments from today on.
func (s *FinanceService) FutureInstallments(ctx context.Context, cardID string) ([]core.FutureInstallment, error) {
	if _, err := s.card(ctx, cardID); err != nil {
		return nil, err
	}
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	return installments.Future(txs, cardID, s.Today(ctx)), nil
}

// InstallmentsByMonth totals the card's installments for the next months.
func (s *FinanceService) InstallmentsByMonth(ctx context.Context, cardID string, monthsAhead int) ([]core.MonthInstallments, error) {
	if monthsAhead < 1 || monthsAhead > core.MaxInstallments {
		return nil, core.NewValidationError("months", fmt.Errorf("must be between 1 and %d", core.MaxInstallments))
	}
	if _, err := s.card(ctx, cardID); err != nil {
		return nil, err
	}
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	return installments.ByMonth(txs, cardID, s.Today(ctx), monthsAhead), nil
}

func (s *FinanceService) Goals(ctx context.Context) ([]core.MonthlyGoal, error) {
	return s.store.ListGoals(ctx)
}

func (s *FinanceService) SetGoal(ctx context.Context, g core.MonthlyGoal) (core.MonthlyGoal, error) {
	if err := g.Validate(); err != nil {
		return core.MonthlyGoal{}, err
	}
	stored, err := s.store.UpsertGoal(ctx, g)
	if err != nil {
		return core.MonthlyGoal{}, err
	}
	s.invalidate(ctx)
	return stored, nil
}

// Summary aggregates one month. Results are cached per user and month until
// the user's next write.
func (s *FinanceService) Summary(ctx context.Context, month core.MonthKey) (core.MonthSummary, error) {
	user, err := core.UserFromContext(ctx)
	if err != nil {
		return core.MonthSummary{}, err
	}
	if month == "" {
		month = s.currentMonth(ctx)
	} else if err := month.Validate(); err != nil {
		return core.MonthSummary{}, err
	}

	key := summaryKey(user, month)
	if cached, ok := s.summaries.Get(key); ok {
		return cached, nil
	}

	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return core.MonthSummary{}, err
	}
	goals, err := s.store.ListGoals(ctx)
	if err != nil {
		return core.MonthSummary{}, err
	}
	summary := aggregate.Summarize(txs, goals, month)
	s.summaries.Set(key, summary)
	return summary, nil
}

// FixedPayments lists the payments of month, ordered by due day.
func (s *FinanceService) FixedPayments(ctx context.Context, month core.MonthKey) ([]core.FixedPayment, error) {
	if month == "" {
		month = s.currentMonth(ctx)
	} else if err := month.Validate(); err != nil {
		return nil, err
	}
	all, err := s.store.ListFixedPayments(ctx)
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(all, func(p core.FixedPayment) bool { return p.Month != month })
	slices.SortStableFunc(out, func(a, b core.FixedPayment) int { return a.DueDay - b.DueDay })
	return out, nil
}

// AddFixedPayment stores a payment; without a month it belongs to the
// current one.
func (s *FinanceService) AddFixedPayment(ctx context.Context, p core.FixedPayment) (core.FixedPayment, error) {
	if p.Month == "" {
		p.Month = s.currentMonth(ctx)
	}
	if err := p.Validate(); err != nil {
		return core.FixedPayment{}, err
	}
	return s.store.InsertFixedPayment(ctx, p)
}

// TogglePaid flips the paid flag of a fixed payment.
func (s *FinanceService) TogglePaid(ctx context.Context, id string) (core.FixedPayment, error) {
	all, err := s.store.ListFixedPayments(ctx)
	if err != nil {
		return core.FixedPayment{}, err
	}
	i := slices.IndexFunc(all, func(p core.FixedPayment) bool { return p.ID == id })
	if i < 0 {
		return core.FixedPayment{}, fmt.Errorf("fixed payment %s: %w", id, core.ErrNotFound)
	}
	paid := !all[i].IsPaid
	return s.store.UpdateFixedPayment(ctx, id, core.FixedPaymentPatch{IsPaid: &paid})
}

func (s *FinanceService) DeleteFixedPayment(ctx context.Context, id string) error {
	return s.store.DeleteFixedPayment(ctx, id)
}

func (s *FinanceService) FixedPaymentTotals(ctx context.Context, month core.MonthKey) (core.FixedPaymentTotals, error) {
	if month == "" {
		month = s.currentMonth(ctx)
	} else if err := month.Validate(); err != nil {
		return core.FixedPaymentTotals{}, err
	}
	all, err := s.store.ListFixedPayments(ctx)
	if err != nil {
		return core.FixedPaymentTotals{}, err
	}
	return aggregate.FixedPaymentTotals(all, month), nil
}

// UrgentItems returns the payments and cards needing attention today, minus
// today's dismissals.
func (s *FinanceService) UrgentItems(ctx context.Context) ([]urgency.Item, error) {
	payments, err := s.store.ListFixedPayments(ctx)
	if err != nil {
		return nil, err
	}
	cards, err := s.store.ListCards(ctx)
	if err != nil {
		return nil, err
	}
	dismissals, err := s.store.GetDismissals(ctx)
	if err != nil {
		return nil, err
	}
	return urgency.Items(urgency.Input{
		Payments:   payments,
		Cards:      cards,
		Today:      s.Today(ctx),
		Dismissals: dismissals,
	}), nil
}

// Dismiss hides an urgent item until the end of today.
func (s *FinanceService) Dismiss(ctx context.Context, id string) (core.Dismissals, error) {
	if strings.TrimSpace(id) == "" {
		return core.Dismissals{}, core.NewValidationError("id", core.ErrEmptyName)
	}
	current, err := s.store.GetDismissals(ctx)
	if err != nil {
		return core.Dismissals{}, err
	}
	next := current.Add(s.Today(ctx), id)
	if err := s.store.SaveDismissals(ctx, next); err != nil {
		return core.Dismissals{}, err
	}
	return next, nil
}

// Notifications returns the newest notifications, defaulting to one page.
func (s *FinanceService) Notifications(ctx context.Context, limit int) ([]core.Notification, error) {
	switch {
	case limit <= 0:
		limit = defaultNotificationPage
	case limit > maxNotificationPage:
		limit = maxNotificationPage
	}
	return s.store.ListNotifications(ctx, limit)
}

func (s *FinanceService) MarkNotificationRead(ctx context.Context, id string) error {
	return s.store.MarkNotificationRead(ctx, id)
}

func (s *FinanceService) WebhookSettings(ctx context.Context) (core.WebhookSettings, error) {
	return s.store.GetWebhookSettings(ctx)
}

// SaveWebhookSettings requires an absolute http(s) URL when the hook is active.
func (s *FinanceService) SaveWebhookSettings(ctx context.Context, w core.WebhookSettings) error {
	w.URL = strings.TrimSpace(w.URL)
	if w.URL != "" || w.Active {
		u, err := url.Parse(w.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return core.NewValidationError("webhookUrl", fmt.Errorf("must be an absolute http(s) URL"))
		}
	}
	return s.store.SaveWebhookSettings(ctx, w)
}

func (s *FinanceService) Profile(ctx context.Context) (core.Profile, error) {
	return s.store.GetProfile(ctx)
}

// SaveProfile normalizes the WhatsApp number and checks the timezone.
func (s *FinanceService) SaveProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	user, err := core.UserFromContext(ctx)
	if err != nil {
		return core.Profile{}, err
	}
	p.UserID = user
	p.FullName = strings.TrimSpace(p.FullName)
	p.WhatsApp = core.NormalizeWhatsApp(p.WhatsApp)
	if p.Timezone == "" {
		p.Timezone = store.DefaultProfile(user).Timezone
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return core.Profile{}, core.NewValidationError("timezone", err)
	}
	if err := s.store.SaveProfile(ctx, p); err != nil {
		return core.Profile{}, err
	}
	return p, nil
}
