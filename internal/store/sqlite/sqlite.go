// Package sqlite is the Record Store on a local SQLite file
// (modernc.org/sqlite, schema managed by golang-migrate).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"bolso/internal/core"
	"bolso/internal/log"
	"bolso/internal/store"
)

type Store struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// New opens (creating if needed) the database at dbPath and migrates it.
func New(dbPath string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, logger: logger.WithComponent(log.ComponentStorage), now: time.Now}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database connection for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return core.NewRemoteError("ping sqlite", err)
	}
	return nil
}

func remote(op string, err error) error {
	return core.NewRemoteError(op, err)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func notFound(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return remote("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, core.ErrNotFound)
	}
	return nil
}

const txColumns = `id, kind, amount_cents, date, note, category, source, credit_card_id, installment_index, installment_count`

func (s *Store) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = ? ORDER BY date DESC, created_at DESC`, uid)
	if err != nil {
		return nil, remote("list transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, remote("scan transaction", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, remote("list transactions", err)
	}
	return out, nil
}

func scanTransaction(rows *sql.Rows) (core.Transaction, error) {
	var (
		id, kind, date, note     string
		amount                   int64
		category, source, cardID sql.NullString
		index, count             sql.NullInt64
	)
	if err := rows.Scan(&id, &kind, &amount, &date, &note, &category, &source, &cardID, &index, &count); err != nil {
		return nil, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return nil, err
	}
	base := core.TxBase{ID: id, Amount: core.Money{Cents: amount}, Date: d, Note: note}

	switch core.TransactionKind(kind) {
	case core.KindIncome:
		return core.Income{TxBase: base, Source: source.String}, nil
	case core.KindExpense:
		e := core.Expense{TxBase: base, Category: core.Category(category.String), CreditCardID: cardID.String}
		if count.Valid {
			e.Installment = &core.Installment{Index: int(index.Int64), Count: int(count.Int64)}
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown transaction kind %q", kind)
	}
}

func (s *Store) InsertTransactions(ctx context.Context, txs ...core.Transaction) ([]core.Transaction, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, err
		}
	}

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, remote("begin insert transactions", err)
	}
	defer dbtx.Rollback()

	stmt, err := dbtx.PrepareContext(ctx, `INSERT INTO transactions
		(id, user_id, kind, amount_cents, date, note, category, source, credit_card_id, installment_index, installment_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, remote("prepare insert transaction", err)
	}
	defer stmt.Close()

	now := s.now().UnixNano()
	out := make([]core.Transaction, len(txs))
	for i, tx := range txs {
		tx = store.WithID(tx)
		b := tx.Base()
		var (
			category, source, cardID sql.NullString
			index, count             sql.NullInt64
		)
		switch t := tx.(type) {
		case core.Expense:
			category = nullString(string(t.Category))
			cardID = nullString(t.CreditCardID)
			if t.Installment != nil {
				index = sql.NullInt64{Int64: int64(t.Installment.Index), Valid: true}
				count = sql.NullInt64{Int64: int64(t.Installment.Count), Valid: true}
			}
		case core.Income:
			source = nullString(t.Source)
		}
		// created_at keeps insertion order stable for records sharing a date.
		if _, err := stmt.ExecContext(ctx, b.ID, uid, string(tx.Kind()), b.Amount.Cents, b.Date.String(), b.Note,
			category, source, cardID, index, count, now+int64(i)); err != nil {
			return nil, remote("insert transaction", err)
		}
		out[i] = tx
	}

	if err := dbtx.Commit(); err != nil {
		return nil, remote("commit insert transactions", err)
	}
	s.logger.DebugContext(ctx, "Transactions stored",
		log.NewFields().WithUser(uid).With(log.FieldCount, len(out)).ToSlice()...)
	return out, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, uid)
	if err != nil {
		return remote("delete transaction", err)
	}
	return notFound(res, "transaction", id)
}

func (s *Store) ListCards(ctx context.Context) ([]core.CreditCard, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, limit_cents, closing_day, due_day, color FROM credit_cards WHERE user_id = ? ORDER BY created_at`, uid)
	if err != nil {
		return nil, remote("list cards", err)
	}
	defer rows.Close()

	var out []core.CreditCard
	for rows.Next() {
		var c core.CreditCard
		if err := rows.Scan(&c.ID, &c.Name, &c.Limit.Cents, &c.ClosingDay, &c.DueDay, &c.Color); err != nil {
			return nil, remote("scan card", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, remote("list cards", err)
	}
	return out, nil
}

func (s *Store) InsertCard(ctx context.Context, c core.CreditCard) (core.CreditCard, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return core.CreditCard{}, err
	}
	if err := c.Validate(); err != nil {
		return core.CreditCard{}, err
	}
	if c.ID == "" {
		c.ID = store.NewID()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO credit_cards (id, user_id, name, limit_cents, closing_day, due_day, color, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, uid, c.Name, c.Limit.Cents, c.ClosingDay, c.DueDay, c.Color, s.now().UnixNano())
	if err != nil {
		return core.CreditCard{}, remote("insert card", err)
	}
	return c, nil
}

// DeleteCard removes the card and its transactions in one database transaction.
func (s *Store) DeleteCard(ctx context.Context, id string) error {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return err
	}
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return remote("begin delete card", err)
	}
	defer dbtx.Rollback()

	res, err := dbtx.ExecContext(ctx, `DELETE FROM credit_cards WHERE id = ? AND user_id = ?`, id, uid)
	if err != nil {
		return remote("delete card", err)
	}
	if err := notFound(res, "card", id); err != nil {
		return err
	}
	res, err = dbtx.ExecContext(ctx, `DELETE FROM transactions WHERE credit_card_id = ? AND user_id = ?`, id, uid)
	if err != nil {
		return remote("delete card transactions", err)
	}
	if err := dbtx.Commit(); err != nil {
		return remote("commit delete card", err)
	}
	n, _ := res.RowsAffected()
	s.logger.InfoContext(ctx, "Card deleted",
		log.NewFields().WithUser(uid).With(log.FieldCardID, id).With("transactions_removed", n).ToSlice()...)
	return nil
}

func (s *Store) ListGoals(ctx context.Context) ([]core.MonthlyGoal, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT month, amount_cents FROM monthly_goals WHERE user_id = ? ORDER BY month`, uid)
	if err != nil {
		return nil, remote("list goals", err)
	}
	defer rows.Close()

	var out []core.MonthlyGoal
	for rows.Next() {
		var g core.MonthlyGoal
		if err := rows.Scan(&g.Month, &g.Amount.Cents); err != nil {
			return nil, remote("scan goal", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, remote("list goals", err)
	}
	return out, nil
}

func (s *Store) UpsertGoal(ctx context.Context, g core.MonthlyGoal) (core.MonthlyGoal, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return core.MonthlyGoal{}, err
	}
	if err := g.Validate(); err != nil {
		return core.MonthlyGoal{}, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO monthly_goals (user_id, month, amount_cents) VALUES (?, ?, ?)
		ON CONFLICT(user_id, month) DO UPDATE SET amount_cents = excluded.amount_cents`,
		uid, string(g.Month), g.Amount.Cents)
	if err != nil {
		return core.MonthlyGoal{}, remote("upsert goal", err)
	}
	return g, nil
}

const fixedPaymentColumns = `id, name, amount_cents, due_day, category, is_paid, month`

func scanFixedPayment(sc interface{ Scan(...any) error }) (core.FixedPayment, error) {
	var p core.FixedPayment
	var paid int
	if err := sc.Scan(&p.ID, &p.Name, &p.Amount.Cents, &p.DueDay, &p.Category, &paid, &p.Month); err != nil {
		return core.FixedPayment{}, err
	}
	p.IsPaid = paid != 0
	return p, nil
}

func (s *Store) ListFixedPayments(ctx context.Context) ([]core.FixedPayment, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fixedPaymentColumns+` FROM fixed_payments WHERE user_id = ? ORDER BY month, due_day`, uid)
	if err != nil {
		return nil, remote("list fixed payments", err)
	}
	defer rows.Close()

	var out []core.FixedPayment
	for rows.Next() {
		p, err := scanFixedPayment(rows)
		if err != nil {
			return nil, remote("scan fixed payment", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, remote("list fixed payments", err)
	}
	return out, nil
}

func (s *Store) InsertFixedPayment(ctx context.Context, p core.FixedPayment) (core.FixedPayment, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return core.FixedPayment{}, err
	}
	if err := p.Validate(); err != nil {
		return core.FixedPayment{}, err
	}
	if p.ID == "" {
		p.ID = store.NewID()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO fixed_payments
		(id, user_id, name, amount_cents, due_day, category, is_paid, month, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, uid, p.Name, p.Amount.Cents, p.DueDay, string(p.Category), boolInt(p.IsPaid), string(p.Month), s.now().UnixNano())
	if err != nil {
		return core.FixedPayment{}, remote("insert fixed payment", err)
	}
	return p, nil
}

func (s *Store) UpdateFixedPayment(ctx context.Context, id string, patch core.FixedPaymentPatch) (core.FixedPayment, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return core.FixedPayment{}, err
	}
	if patch.IsPaid != nil {
		res, err := s.db.ExecContext(ctx, `UPDATE fixed_payments SET is_paid = ? WHERE id = ? AND user_id = ?`,
			boolInt(*patch.IsPaid), id, uid)
		if err != nil {
			return core.FixedPayment{}, remote("update fixed payment", err)
		}
		if err := notFound(res, "fixed payment", id); err != nil {
			return core.FixedPayment{}, err
		}
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+fixedPaymentColumns+` FROM fixed_payments WHERE id = ? AND user_id = ?`, id, uid)
	p, err := scanFixedPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.FixedPayment{}, fmt.Errorf("fixed payment %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.FixedPayment{}, remote("read fixed payment", err)
	}
	return p, nil
}

func (s *Store) DeleteFixedPayment(ctx context.Context, id string) error {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM fixed_payments WHERE id = ? AND user_id = ?`, id, uid)
	if err != nil {
		return remote("delete fixed payment", err)
	}
	return notFound(res, "fixed payment", id)
}

func (s *Store) ListNotifications(ctx context.Context, limit int) ([]core.Notification, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, type, title, message, related_id, extra_data, is_read, created_at
		FROM notifications WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, uid, limit)
	if err != nil {
		return nil, remote("list notifications", err)
	}
	defer rows.Close()

	var out []core.Notification
	for rows.Next() {
		var (
			n       core.Notification
			extra   sql.NullString
			read    int
			created int64
		)
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &n.RelatedID, &extra, &read, &created); err != nil {
			return nil, remote("scan notification", err)
		}
		if extra.Valid && extra.String != "" {
			if err := json.Unmarshal([]byte(extra.String), &n.Extra); err != nil {
				s.logger.WarnContext(ctx, "Discarding malformed notification extra data", "id", n.ID, log.FieldError, err.Error())
			}
		}
		n.UserID = uid
		n.IsRead = read != 0
		n.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, remote("list notifications", err)
	}
	return out, nil
}

func (s *Store) InsertNotification(ctx context.Context, n core.Notification) (core.Notification, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return core.Notification{}, err
	}
	n.UserID = uid
	if n.ID == "" {
		n.ID = store.NewID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	var extra sql.NullString
	if len(n.Extra) > 0 {
		b, err := json.Marshal(n.Extra)
		if err != nil {
			return core.Notification{}, fmt.Errorf("marshal extra data: %w", err)
		}
		extra = sql.NullString{String: string(b), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO notifications
		(id, user_id, type, title, message, related_id, extra_data, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, uid, string(n.Type), n.Title, n.Message, n.RelatedID, extra, boolInt(n.IsRead), n.CreatedAt.UnixNano())
	if err != nil {
		return core.Notification{}, remote("insert notification", err)
	}
	return n, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, uid)
	if err != nil {
		return remote("mark notification read", err)
	}
	return notFound(res, "notification", id)
}

func (s *Store) HasNotification(ctx context.Context, typ core.NotificationType, relatedID string, since time.Time) (bool, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return false, err
	}
	var n int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications
		WHERE user_id = ? AND type = ? AND related_id = ? AND created_at >= ?`,
		uid, string(typ), relatedID, since.UnixNano()).Scan(&n)
	if err != nil {
		return false, remote("check notification", err)
	}
	return n > 0, nil
}

func (s *Store) GetWebhookSettings(ctx context.Context) (core.WebhookSettings, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return core.WebhookSettings{}, err
	}
	var w core.WebhookSettings
	var active int
	err = s.db.QueryRowContext(ctx, `SELECT url, secret, is_active FROM webhook_settings WHERE user_id = ?`, uid).
		Scan(&w.URL, &w.Secret, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return core.WebhookSettings{}, nil
	}
	if err != nil {
		return core.WebhookSettings{}, remote("get webhook settings", err)
	}
	w.Active = active != 0
	return w, nil
}

func (s *Store) SaveWebhookSettings(ctx context.Context, w core.WebhookSettings) error {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO webhook_settings (user_id, url, secret, is_active) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET url = excluded.url, secret = excluded.secret, is_active = excluded.is_active`,
		uid, w.URL, w.Secret, boolInt(w.Active))
	if err != nil {
		return remote("save webhook settings", err)
	}
	return nil
}

func (s *Store) InsertWebhookLog(ctx context.Context, l core.WebhookLog) error {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return err
	}
	if l.ID == "" {
		l.ID = store.NewID()
	}
	if l.SentAt.IsZero() {
		l.SentAt = s.now()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO webhook_logs
		(id, user_id, notification_id, url, payload, response_status, response_body, success, sent_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, uid, l.NotificationID, l.URL, l.Payload, l.Status, l.Body, boolInt(l.Success), l.SentAt.UnixNano())
	if err != nil {
		return remote("insert webhook log", err)
	}
	return nil
}

func (s *Store) GetDismissals(ctx context.Context) (core.Dismissals, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return core.Dismissals{}, err
	}
	var date, ids string
	err = s.db.QueryRowContext(ctx, `SELECT date, ids FROM dismissals WHERE user_id = ?`, uid).Scan(&date, &ids)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Dismissals{}, nil
	}
	if err != nil {
		return core.Dismissals{}, remote("get dismissals", err)
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Dismissals{}, nil
	}
	out := core.Dismissals{Date: d}
	if err := json.Unmarshal([]byte(ids), &out.IDs); err != nil {
		return core.Dismissals{}, nil
	}
	return out, nil
}

func (s *Store) SaveDismissals(ctx context.Context, d core.Dismissals) error {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return err
	}
	ids, err := json.Marshal(d.IDs)
	if err != nil {
		return fmt.Errorf("marshal dismissed ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO dismissals (user_id, date, ids) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET date = excluded.date, ids = excluded.ids`,
		uid, d.Date.String(), string(ids))
	if err != nil {
		return remote("save dismissals", err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context) (core.Profile, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return core.Profile{}, err
	}
	p := core.Profile{UserID: uid}
	var enabled int
	err = s.db.QueryRowContext(ctx,
		`SELECT full_name, whatsapp_number, notifications_enabled, timezone FROM profiles WHERE user_id = ?`, uid).
		Scan(&p.FullName, &p.WhatsApp, &enabled, &p.Timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return store.DefaultProfile(uid), nil
	}
	if err != nil {
		return core.Profile{}, remote("get profile", err)
	}
	p.NotificationsEnabled = enabled != 0
	return p, nil
}

func (s *Store) SaveProfile(ctx context.Context, p core.Profile) error {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO profiles (user_id, full_name, whatsapp_number, notifications_enabled, timezone)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET full_name = excluded.full_name, whatsapp_number = excluded.whatsapp_number,
			notifications_enabled = excluded.notifications_enabled, timezone = excluded.timezone`,
		uid, p.FullName, p.WhatsApp, boolInt(p.NotificationsEnabled), p.Timezone)
	if err != nil {
		return remote("save profile", err)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]core.UserID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM transactions
		UNION SELECT user_id FROM credit_cards
		UNION SELECT user_id FROM fixed_payments
		UNION SELECT user_id FROM profiles
		ORDER BY user_id`)
	if err != nil {
		return nil, remote("list users", err)
	}
	defer rows.Close()

	var out []core.UserID
	for rows.Next() {
		var id core.UserID
		if err := rows.Scan(&id); err != nil {
			return nil, remote("scan user", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, remote("list users", err)
	}
	return out, nil
}
