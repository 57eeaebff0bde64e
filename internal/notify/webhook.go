package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"bolso/internal/core"
	"bolso/internal/log"
	"bolso/internal/store"
)

// SignatureHeader carries the HMAC of the body when the user set a secret.
const SignatureHeader = "X-Bolso-Signature"

const maxLoggedBody = 1024

// Payload is the JSON body POSTed to user webhooks.
type Payload struct {
	Event        core.NotificationType `json:"event"`
	Notification core.Notification     `json:"notification"`
	SentAt       time.Time             `json:"sentAt"`
}

// Webhook POSTs notifications to the URL in the user's webhook settings and
// records every attempt in the webhook log.
type Webhook struct {
	store  store.WebhookStore
	client *http.Client
	logger *log.Logger
	now    func() time.Time
}

func NewWebhook(s store.WebhookStore, timeout time.Duration, logger *log.Logger) *Webhook {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Webhook{
		store:  s,
		client: &http.Client{Timeout: timeout},
		logger: logger.WithComponent(log.ComponentNotification),
		now:    time.Now,
	}
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (w *Webhook) Dispatch(ctx context.Context, n core.Notification) error {
	settings, err := w.store.GetWebhookSettings(ctx)
	if err != nil {
		return err
	}
	if !settings.Active || settings.URL == "" {
		return nil
	}

	sentAt := w.now().UTC()
	body, err := json.Marshal(Payload{Event: n.Type, Notification: n, SentAt: sentAt})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	entry := core.WebhookLog{
		ID:             store.NewID(),
		UserID:         n.UserID,
		NotificationID: n.ID,
		URL:            settings.URL,
		Payload:        body,
		SentAt:         sentAt,
	}

	status, respBody, sendErr := w.post(ctx, settings, body)
	entry.Status = status
	entry.Body = respBody
	entry.Success = sendErr == nil

	if err := w.store.InsertWebhookLog(ctx, entry); err != nil {
		w.logger.WarnContext(ctx, "Failed to record webhook attempt",
			log.NewFields().WithNotification(n).WithError(err).
				With(log.FieldTransport, "webhook").With("notification_id", n.ID).ToSlice()...)
	}
	return sendErr
}

func (w *Webhook) post(ctx context.Context, settings core.WebhookSettings, body []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, settings.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err.Error(), core.NewValidationError("webhookUrl", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "bolso-webhook/1")
	if settings.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(settings.Secret, body))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, err.Error(), core.NewRemoteError("webhook post", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, string(raw), core.NewRemoteError("webhook post", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return resp.StatusCode, string(raw), nil
}
