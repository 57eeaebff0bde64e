// Package mongo is the Record Store on MongoDB (go.mongodb.org/mongo-driver).
// Every document carries a user_id field and every query filters on it.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bolso/internal/core"
	"bolso/internal/log"
	"bolso/internal/store"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *log.Logger
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// Connect dials uri, pings the server and ensures the indexes exist.
func Connect(ctx context.Context, uri, database string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	s := &Store{
		client: client,
		db:     client.Database(database),
		logger: logger.WithComponent(log.ComponentStorage),
		now:    time.Now,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	s.logger.InfoContext(ctx, "Connected to MongoDB", "database", database)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colTransactions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "credit_card_id", Value: 1}}},
		},
		colCards:         {{Keys: bson.D{{Key: "user_id", Value: 1}}}},
		colGoals:         {{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "month", Value: 1}}, Options: options.Index().SetUnique(true)}},
		colFixedPayments: {{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "month", Value: 1}}}},
		colNotifications: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "type", Value: 1}, {Key: "related_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}
	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", col, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks the connection for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return core.NewRemoteError("ping mongo", err)
	}
	return nil
}

func (s *Store) col(name string) *mongo.Collection { return s.db.Collection(name) }

func remote(op string, err error) error { return core.NewRemoteError(op, err) }

func notFound(n int64, what, id string) error {
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, core.ErrNotFound)
	}
	return nil
}

// findAll decodes every document matching filter into T.
func findAll[T any](ctx context.Context, c *mongo.Collection, op string, filter any, opts ...*options.FindOptions) ([]T, error) {
	cur, err := c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, remote(op, err)
	}
	var out []T
	if err := cur.All(ctx, &out); err != nil {
		return nil, remote(op, err)
	}
	return out, nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := findAll[txDoc](ctx, s.col(colTransactions), "list transactions",
		bson.M{"user_id": string(uid)},
		options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	out := make([]core.Transaction, 0, len(docs))
	for _, d := range docs {
		tx, err := d.transaction()
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping malformed transaction document", "id", d.ID, log.FieldError, err.Error())
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

// InsertTransactions writes the batch with one InsertMany. If the server
// rejects part of it, the documents that did land are removed again.
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
	if len(txs) == 0 {
		return nil, nil
	}

	now := s.now()
	out := make([]core.Transaction, len(txs))
	docs := make([]any, len(txs))
	ids := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = store.WithID(tx)
		ids[i] = out[i].Base().ID
		docs[i] = toTxDoc(uid, out[i], now.Add(time.Duration(i)))
	}

	if _, err := s.col(colTransactions).InsertMany(ctx, docs); err != nil {
		if _, cerr := s.col(colTransactions).DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}, "user_id": string(uid)}); cerr != nil {
			s.logger.LogError(ctx, "Failed to roll back partial transaction batch", cerr, log.OpCreate,
				log.NewFields().WithUser(uid).With(log.FieldCount, len(ids)))
		}
		return nil, remote("insert transactions", err)
	}
	return out, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return err
	}
	res, err := s.col(colTransactions).DeleteOne(ctx, bson.M{"_id": id, "user_id": string(uid)})
	if err != nil {
		return remote("delete transaction", err)
	}
	return notFound(res.DeletedCount, "transaction", id)
}

func (s *Store) ListCards(ctx context.Context) ([]core.CreditCard, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := findAll[cardDoc](ctx, s.col(colCards), "list cards",
		bson.M{"user_id": string(uid)}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := make([]core.CreditCard, len(docs))
	for i, d := range docs {
		out[i] = d.card()
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
	if _, err := s.col(colCards).InsertOne(ctx, toCardDoc(uid, c, s.now())); err != nil {
		return core.CreditCard{}, remote("insert card", err)
	}
	return c, nil
}

// DeleteCard removes the card's expenses before the card itself, so a
// failure part way leaves the card listed and a retry completes the cascade.
func (s *Store) DeleteCard(ctx context.Context, id string) error {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": id, "user_id": string(uid)}
	removed, err := cascadeDelete(ctx, "card", id,
		func(ctx context.Context) (int64, error) {
			return s.col(colCards).CountDocuments(ctx, filter)
		},
		func(ctx context.Context) (int64, error) {
			res, err := s.col(colTransactions).DeleteMany(ctx, bson.M{"credit_card_id": id, "user_id": string(uid)})
			if err != nil {
				return 0, err
			}
			return res.DeletedCount, nil
		},
		func(ctx context.Context) (int64, error) {
			res, err := s.col(colCards).DeleteOne(ctx, filter)
			if err != nil {
				return 0, err
			}
			return res.DeletedCount, nil
		},
	)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Card deleted",
		log.NewFields().WithUser(uid).With(log.FieldCardID, id).With("transactions_removed", removed).ToSlice()...)
	return nil
}

type deleteStep func(ctx context.Context) (int64, error)

// cascadeDelete checks the parent exists, removes its dependents, then the
// parent. It returns the number of dependents removed.
func cascadeDelete(ctx context.Context, what, id string, exists, dependents, parent deleteStep) (int64, error) {
	n, err := exists(ctx)
	if err != nil {
		return 0, remote("find "+what, err)
	}
	if err := notFound(n, what, id); err != nil {
		return 0, err
	}
	removed, err := dependents(ctx)
	if err != nil {
		return 0, remote("delete "+what+" dependents", err)
	}
	if _, err := parent(ctx); err != nil {
		return removed, remote("delete "+what, err)
	}
	return removed, nil
}

func (s *Store) ListGoals(ctx context.Context) ([]core.MonthlyGoal, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := findAll[goalDoc](ctx, s.col(colGoals), "list goals",
		bson.M{"user_id": string(uid)}, options.Find().SetSort(bson.D{{Key: "month", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := make([]core.MonthlyGoal, len(docs))
	for i, d := range docs {
		out[i] = core.MonthlyGoal{Month: core.MonthKey(d.Month), Amount: core.Money{Cents: d.AmountCents}}
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
	_, err = s.col(colGoals).UpdateOne(ctx,
		bson.M{"user_id": string(uid), "month": string(g.Month)},
		bson.M{"$set": bson.M{"amount_cents": g.Amount.Cents}},
		options.Update().SetUpsert(true))
	if err != nil {
		return core.MonthlyGoal{}, remote("upsert goal", err)
	}
	return g, nil
}

func (s *Store) ListFixedPayments(ctx context.Context) ([]core.FixedPayment, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := findAll[fixedPaymentDoc](ctx, s.col(colFixedPayments), "list fixed payments",
		bson.M{"user_id": string(uid)}, options.Find().SetSort(bson.D{{Key: "month", Value: 1}, {Key: "due_day", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := make([]core.FixedPayment, len(docs))
	for i, d := range docs {
		out[i] = d.payment()
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
	if _, err := s.col(colFixedPayments).InsertOne(ctx, toFixedPaymentDoc(uid, p, s.now())); err != nil {
		return core.FixedPayment{}, remote("insert fixed payment", err)
	}
	return p, nil
}

func (s *Store) UpdateFixedPayment(ctx context.Context, id string, patch core.FixedPaymentPatch) (core.FixedPayment, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return core.FixedPayment{}, err
	}
	set := bson.M{}
	if patch.IsPaid != nil {
		set["is_paid"] = *patch.IsPaid
	}
	filter := bson.M{"_id": id, "user_id": string(uid)}

	var doc fixedPaymentDoc
	if len(set) == 0 {
		err = s.col(colFixedPayments).FindOne(ctx, filter).Decode(&doc)
	} else {
		err = s.col(colFixedPayments).FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.FixedPayment{}, fmt.Errorf("fixed payment %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.FixedPayment{}, remote("update fixed payment", err)
	}
	return doc.payment(), nil
}

func (s *Store) DeleteFixedPayment(ctx context.Context, id string) error {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return err
	}
	res, err := s.col(colFixedPayments).DeleteOne(ctx, bson.M{"_id": id, "user_id": string(uid)})
	if err != nil {
		return remote("delete fixed payment", err)
	}
	return notFound(res.DeletedCount, "fixed payment", id)
}

func (s *Store) ListNotifications(ctx context.Context, limit int) ([]core.Notification, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	docs, err := findAll[notificationDoc](ctx, s.col(colNotifications), "list notifications", bson.M{"user_id": string(uid)}, opts)
	if err != nil {
		return nil, err
	}
	out := make([]core.Notification, len(docs))
	for i, d := range docs {
		out[i] = d.notification()
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
	if _, err := s.col(colNotifications).InsertOne(ctx, toNotificationDoc(n)); err != nil {
		return core.Notification{}, remote("insert notification", err)
	}
	return n, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return err
	}
	res, err := s.col(colNotifications).UpdateOne(ctx, bson.M{"_id": id, "user_id": string(uid)},
		bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return remote("mark notification read", err)
	}
	return notFound(res.MatchedCount, "notification", id)
}

func (s *Store) HasNotification(ctx context.Context, typ core.NotificationType, relatedID string, since time.Time) (bool, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return false, err
	}
	n, err := s.col(colNotifications).CountDocuments(ctx, bson.M{
		"user_id":    string(uid),
		"type":       string(typ),
		"related_id": relatedID,
		"created_at": bson.M{"$gte": since.UTC()},
	}, options.Count().SetLimit(1))
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
	var doc webhookDoc
	err = s.col(colWebhookSettings).FindOne(ctx, bson.M{"_id": string(uid)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.WebhookSettings{}, nil
	}
	if err != nil {
		return core.WebhookSettings{}, remote("get webhook settings", err)
	}
	return core.WebhookSettings{URL: doc.URL, Secret: doc.Secret, Active: doc.Active}, nil
}

func (s *Store) SaveWebhookSettings(ctx context.Context, w core.WebhookSettings) error {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return err
	}
	doc := webhookDoc{UserID: string(uid), URL: w.URL, Secret: w.Secret, Active: w.Active}
	if _, err := s.col(colWebhookSettings).ReplaceOne(ctx, bson.M{"_id": doc.UserID}, doc, options.Replace().SetUpsert(true)); err != nil {
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
	doc := webhookLogDoc{
		ID: l.ID, UserID: string(uid), NotificationID: l.NotificationID, URL: l.URL, Payload: l.Payload,
		Status: l.Status, Body: l.Body, Success: l.Success, SentAt: l.SentAt.UTC(),
	}
	if _, err := s.col(colWebhookLogs).InsertOne(ctx, doc); err != nil {
		return remote("insert webhook log", err)
	}
	return nil
}

func (s *Store) GetDismissals(ctx context.Context) (core.Dismissals, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return core.Dismissals{}, err
	}
	var doc dismissalDoc
	err = s.col(colDismissals).FindOne(ctx, bson.M{"_id": string(uid)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Dismissals{}, nil
	}
	if err != nil {
		return core.Dismissals{}, remote("get dismissals", err)
	}
	d, err := core.ParseDate(doc.Date)
	if err != nil {
		return core.Dismissals{}, nil
	}
	return core.Dismissals{Date: d, IDs: doc.IDs}, nil
}

func (s *Store) SaveDismissals(ctx context.Context, d core.Dismissals) error {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return err
	}
	doc := dismissalDoc{UserID: string(uid), Date: d.Date.String(), IDs: d.IDs}
	if _, err := s.col(colDismissals).ReplaceOne(ctx, bson.M{"_id": doc.UserID}, doc, options.Replace().SetUpsert(true)); err != nil {
		return remote("save dismissals", err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context) (core.Profile, error) {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return core.Profile{}, err
	}
	var doc profileDoc
	err = s.col(colProfiles).FindOne(ctx, bson.M{"_id": string(uid)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.DefaultProfile(uid), nil
	}
	if err != nil {
		return core.Profile{}, remote("get profile", err)
	}
	return core.Profile{
		UserID: uid, FullName: doc.FullName, WhatsApp: doc.WhatsApp,
		NotificationsEnabled: doc.NotificationsEnabled, Timezone: doc.Timezone,
	}, nil
}

func (s *Store) SaveProfile(ctx context.Context, p core.Profile) error {
	uid, err := core.UserFromContext(ctx)
	if err != nil {
		return err
	}
	doc := profileDoc{
		UserID: string(uid), FullName: p.FullName, WhatsApp: p.WhatsApp,
		NotificationsEnabled: p.NotificationsEnabled, Timezone: p.Timezone,
	}
	if _, err := s.col(colProfiles).ReplaceOne(ctx, bson.M{"_id": doc.UserID}, doc, options.Replace().SetUpsert(true)); err != nil {
		return remote("save profile", err)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]core.UserID, error) {
	seen := map[core.UserID]struct{}{}
	for _, c := range []struct{ col, field string }{
		{colTransactions, "user_id"},
		{colCards, "user_id"},
		{colFixedPayments, "user_id"},
		{colProfiles, "_id"},
	} {
		vals, err := s.col(c.col).Distinct(ctx, c.field, bson.M{})
		if err != nil {
			return nil, remote("list users", err)
		}
		for _, v := range vals {
			if id, ok := v.(string); ok && id != "" {
				seen[core.UserID(id)] = struct{}{}
			}
		}
	}
	out := make([]core.UserID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
