// Package memory is an in-process Record Store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"bolso/internal/core"
	"bolso/internal/store"
)

type userData struct {
	txs           []core.Transaction
	cards         []core.CreditCard
	goals         []core.MonthlyGoal
	payments      []core.FixedPayment
	notifications []core.Notification
	webhook       core.WebhookSettings
	webhookLogs   []core.WebhookLog
	dismissals    core.Dismissals
	profile       *core.Profile
}

type Store struct {
	mu    sync.Mutex
	users map[core.UserID]*userData
	now   func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{users: map[core.UserID]*userData{}, now: time.Now}
}

// data returns the caller's records, creating them on first use. The caller
// must hold s.mu.
func (s *Store) data(ctx context.Context) (*userData, error) {
	id, err := core.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	d, ok := s.users[id]
	if !ok {
		d = &userData{}
		s.users[id] = d
	}
	return d, nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(d.txs), nil
}

func (s *Store) InsertTransactions(ctx context.Context, txs ...core.Transaction) ([]core.Transaction, error) {
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Transaction, len(txs))
	for i, tx := range txs {
		out[i] = store.WithID(tx)
	}
	d.txs = append(d.txs, out...)
	return out, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return err
	}
	n := len(d.txs)
	d.txs = slices.DeleteFunc(d.txs, func(tx core.Transaction) bool { return tx.Base().ID == id })
	if len(d.txs) == n {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *Store) ListCards(ctx context.Context) ([]core.CreditCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(d.cards), nil
}

func (s *Store) InsertCard(ctx context.Context, c core.CreditCard) (core.CreditCard, error) {
	if err := c.Validate(); err != nil {
		return core.CreditCard{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return core.CreditCard{}, err
	}
	if c.ID == "" {
		c.ID = store.NewID()
	}
	d.cards = append(d.cards, c)
	return c, nil
}

func (s *Store) DeleteCard(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return err
	}
	n := len(d.cards)
	d.cards = slices.DeleteFunc(d.cards, func(c core.CreditCard) bool { return c.ID == id })
	if len(d.cards) == n {
		return fmt.Errorf("card %s: %w", id, core.ErrNotFound)
	}
	d.txs = slices.DeleteFunc(d.txs, func(tx core.Transaction) bool {
		e, ok := tx.(core.Expense)
		return ok && e.CreditCardID == id
	})
	return nil
}

func (s *Store) ListGoals(ctx context.Context) ([]core.MonthlyGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(d.goals), nil
}

func (s *Store) UpsertGoal(ctx context.Context, g core.MonthlyGoal) (core.MonthlyGoal, error) {
	if err := g.Validate(); err != nil {
		return core.MonthlyGoal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return core.MonthlyGoal{}, err
	}
	if i := slices.IndexFunc(d.goals, func(x core.MonthlyGoal) bool { return x.Month == g.Month }); i >= 0 {
		d.goals[i] = g
	} else {
		d.goals = append(d.goals, g)
	}
	return g, nil
}

func (s *Store) ListFixedPayments(ctx context.Context) ([]core.FixedPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(d.payments), nil
}

func (s *Store) InsertFixedPayment(ctx context.Context, p core.FixedPayment) (core.FixedPayment, error) {
	if err := p.Validate(); err != nil {
		return core.FixedPayment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return core.FixedPayment{}, err
	}
	if p.ID == "" {
		p.ID = store.NewID()
	}
	d.payments = append(d.payments, p)
	return p, nil
}

func (s *Store) UpdateFixedPayment(ctx context.Context, id string, patch core.FixedPaymentPatch) (core.FixedPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return core.FixedPayment{}, err
	}
	i := slices.IndexFunc(d.payments, func(p core.FixedPayment) bool { return p.ID == id })
	if i < 0 {
		return core.FixedPayment{}, fmt.Errorf("fixed payment %s: %w", id, core.ErrNotFound)
	}
	d.payments[i] = d.payments[i].Apply(patch)
	return d.payments[i], nil
}

func (s *Store) DeleteFixedPayment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return err
	}
	n := len(d.payments)
	d.payments = slices.DeleteFunc(d.payments, func(p core.FixedPayment) bool { return p.ID == id })
	if len(d.payments) == n {
		return fmt.Errorf("fixed payment %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, limit int) ([]core.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(d.notifications)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) InsertNotification(ctx context.Context, n core.Notification) (core.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return core.Notification{}, err
	}
	n.UserID, _ = core.UserFromContext(ctx)
	if n.ID == "" {
		n.ID = store.NewID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	d.notifications = append(d.notifications, n)
	return n, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return err
	}
	for i := range d.notifications {
		if d.notifications[i].ID == id {
			d.notifications[i].IsRead = true
			return nil
		}
	}
	return fmt.Errorf("notification %s: %w", id, core.ErrNotFound)
}

func (s *Store) HasNotification(ctx context.Context, typ core.NotificationType, relatedID string, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range d.notifications {
		if n.Type == typ && n.RelatedID == relatedID && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) GetWebhookSettings(ctx context.Context) (core.WebhookSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return core.WebhookSettings{}, err
	}
	return d.webhook, nil
}

func (s *Store) SaveWebhookSettings(ctx context.Context, w core.WebhookSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return err
	}
	d.webhook = w
	return nil
}

func (s *Store) InsertWebhookLog(ctx context.Context, l core.WebhookLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return err
	}
	l.UserID, _ = core.UserFromContext(ctx)
	if l.ID == "" {
		l.ID = store.NewID()
	}
	d.webhookLogs = append(d.webhookLogs, l)
	return nil
}

// WebhookLogs returns the caller's delivery log, oldest first.
func (s *Store) WebhookLogs(ctx context.Context) ([]core.WebhookLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(d.webhookLogs), nil
}

func (s *Store) GetDismissals(ctx context.Context) (core.Dismissals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return core.Dismissals{}, err
	}
	return core.Dismissals{Date: d.dismissals.Date, IDs: slices.Clone(d.dismissals.IDs)}, nil
}

func (s *Store) SaveDismissals(ctx context.Context, dm core.Dismissals) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return err
	}
	d.dismissals = core.Dismissals{Date: dm.Date, IDs: slices.Clone(dm.IDs)}
	return nil
}

func (s *Store) GetProfile(ctx context.Context) (core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return core.Profile{}, err
	}
	if d.profile == nil {
		id, _ := core.UserFromContext(ctx)
		return store.DefaultProfile(id), nil
	}
	return *d.profile, nil
}

func (s *Store) SaveProfile(ctx context.Context, p core.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.data(ctx)
	if err != nil {
		return err
	}
	p.UserID, _ = core.UserFromContext(ctx)
	d.profile = &p
	return nil
}

func (s *Store) ListUsers(context.Context) ([]core.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.UserID, 0, len(s.users))
	for id := range s.users {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store) Close() error { return nil }
