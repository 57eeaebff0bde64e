package mongo

import (
	"fmt"
	"time"

	"bolso/internal/core"
)

const (
	colTransactions    = "transactions"
	colCards           = "credit_cards"
	colGoals           = "monthly_goals"
	colFixedPayments   = "fixed_payments"
	colNotifications   = "notifications"
	colWebhookSettings = "webhook_settings"
	colWebhookLogs     = "webhook_logs"
	colDismissals      = "dismissals"
	colProfiles        = "profiles"
)

type txDoc struct {
	ID               string    `bson:"_id"`
	UserID           string    `bson:"user_id"`
	Kind             string    `bson:"kind"`
	AmountCents      int64     `bson:"amount_cents"`
	Date             string    `bson:"date"`
	Note             string    `bson:"note,omitempty"`
	Category         string    `bson:"category,omitempty"`
	Source           string    `bson:"source,omitempty"`
	CreditCardID     string    `bson:"credit_card_id,omitempty"`
	InstallmentIndex int       `bson:"installment_index,omitempty"`
	InstallmentCount int       `bson:"installment_count,omitempty"`
	CreatedAt        time.Time `bson:"created_at"`
}

func toTxDoc(uid core.UserID, tx core.Transaction, now time.Time) txDoc {
	b := tx.Base()
	doc := txDoc{
		ID:          b.ID,
		UserID:      string(uid),
		Kind:        string(tx.Kind()),
		AmountCents: b.Amount.Cents,
		Date:        b.Date.String(),
		Note:        b.Note,
		CreatedAt:   now,
	}
	switch t := tx.(type) {
	case core.Expense:
		doc.Category = string(t.Category)
		doc.CreditCardID = t.CreditCardID
		if t.Installment != nil {
			doc.InstallmentIndex = t.Installment.Index
			doc.InstallmentCount = t.Installment.Count
		}
	case core.Income:
		doc.Source = t.Source
	}
	return doc
}

func (d txDoc) transaction() (core.Transaction, error) {
	date, err := core.ParseDate(d.Date)
	if err != nil {
		return nil, err
	}
	base := core.TxBase{ID: d.ID, Amount: core.Money{Cents: d.AmountCents}, Date: date, Note: d.Note}
	switch core.TransactionKind(d.Kind) {
	case core.KindIncome:
		return core.Income{TxBase: base, Source: d.Source}, nil
	case core.KindExpense:
		e := core.Expense{TxBase: base, Category: core.Category(d.Category), CreditCardID: d.CreditCardID}
		if d.InstallmentCount > 0 {
			e.Installment = &core.Installment{Index: d.InstallmentIndex, Count: d.InstallmentCount}
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown transaction kind %q", d.Kind)
	}
}

type cardDoc struct {
	ID         string    `bson:"_id"`
	UserID     string    `bson:"user_id"`
	Name       string    `bson:"name"`
	LimitCents int64     `bson:"limit_cents"`
	ClosingDay int       `bson:"closing_day"`
	DueDay     int       `bson:"due_day"`
	Color      string    `bson:"color"`
	CreatedAt  time.Time `bson:"created_at"`
}

func toCardDoc(uid core.UserID, c core.CreditCard, now time.Time) cardDoc {
	return cardDoc{
		ID: c.ID, UserID: string(uid), Name: c.Name, LimitCents: c.Limit.Cents,
		ClosingDay: c.ClosingDay, DueDay: c.DueDay, Color: c.Color, CreatedAt: now,
	}
}

func (d cardDoc) card() core.CreditCard {
	return core.CreditCard{
		ID: d.ID, Name: d.Name, Limit: core.Money{Cents: d.LimitCents},
		ClosingDay: d.ClosingDay, DueDay: d.DueDay, Color: d.Color,
	}
}

type goalDoc struct {
	UserID      string `bson:"user_id"`
	Month       string `bson:"month"`
	AmountCents int64  `bson:"amount_cents"`
}

type fixedPaymentDoc struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id"`
	Name        string    `bson:"name"`
	AmountCents int64     `bson:"amount_cents"`
	DueDay      int       `bson:"due_day"`
	Category    string    `bson:"category"`
	IsPaid      bool      `bson:"is_paid"`
	Month       string    `bson:"month"`
	CreatedAt   time.Time `bson:"created_at"`
}

func toFixedPaymentDoc(uid core.UserID, p core.FixedPayment, now time.Time) fixedPaymentDoc {
	return fixedPaymentDoc{
		ID: p.ID, UserID: string(uid), Name: p.Name, AmountCents: p.Amount.Cents, DueDay: p.DueDay,
		Category: string(p.Category), IsPaid: p.IsPaid, Month: string(p.Month), CreatedAt: now,
	}
}

func (d fixedPaymentDoc) payment() core.FixedPayment {
	return core.FixedPayment{
		ID: d.ID, Name: d.Name, Amount: core.Money{Cents: d.AmountCents}, DueDay: d.DueDay,
		Category: core.Category(d.Category), IsPaid: d.IsPaid, Month: core.MonthKey(d.Month),
	}
}

type notificationDoc struct {
	ID        string         `bson:"_id"`
	UserID    string         `bson:"user_id"`
	Type      string         `bson:"type"`
	Title     string         `bson:"title"`
	Message   string         `bson:"message"`
	RelatedID string         `bson:"related_id"`
	Extra     map[string]any `bson:"extra_data,omitempty"`
	IsRead    bool           `bson:"is_read"`
	CreatedAt time.Time      `bson:"created_at"`
}

func toNotificationDoc(n core.Notification) notificationDoc {
	return notificationDoc{
		ID: n.ID, UserID: string(n.UserID), Type: string(n.Type), Title: n.Title, Message: n.Message,
		RelatedID: n.RelatedID, Extra: n.Extra, IsRead: n.IsRead, CreatedAt: n.CreatedAt.UTC(),
	}
}

func (d notificationDoc) notification() core.Notification {
	return core.Notification{
		ID: d.ID, UserID: core.UserID(d.UserID), Type: core.NotificationType(d.Type), Title: d.Title,
		Message: d.Message, RelatedID: d.RelatedID, Extra: d.Extra, IsRead: d.IsRead, CreatedAt: d.CreatedAt,
	}
}

type webhookDoc struct {
	UserID string `bson:"_id"`
	URL    string `bson:"url"`
	Secret string `bson:"secret"`
	Active bool   `bson:"is_active"`
}

type webhookLogDoc struct {
	ID             string    `bson:"_id"`
	UserID         string    `bson:"user_id"`
	NotificationID string    `bson:"notification_id"`
	URL            string    `bson:"url"`
	Payload        []byte    `bson:"payload"`
	Status         int       `bson:"response_status"`
	Body           string    `bson:"response_body"`
	Success        bool      `bson:"success"`
	SentAt         time.Time `bson:"sent_at"`
}

type dismissalDoc struct {
	UserID string   `bson:"_id"`
	Date   string   `bson:"date"`
	IDs    []string `bson:"ids"`
}

type profileDoc struct {
	UserID               string `bson:"_id"`
	FullName             string `bson:"full_name"`
	WhatsApp             string `bson:"whatsapp_number"`
	NotificationsEnabled bool   `bson:"notifications_enabled"`
	Timezone             string `bson:"timezone"`
}
