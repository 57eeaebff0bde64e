package amqp

import (
	"encoding/json"
	"time"

	"bolso/internal/core"
)

// NotificationMessage carries a stored notification to the delivery worker.
// The notification is embedded whole so the worker needs no store lookup.
// Attempt and Settled travel with republished retries: Settled names the
// transports already done with this notification.
type NotificationMessage struct {
	Notification core.Notification `json:"notification"`
	Timestamp    time.Time         `json:"timestamp"`
	Attempt      int               `json:"attempt,omitempty"`
	Settled      []string          `json:"settled,omitempty"`
}

func NewNotificationMessage(n core.Notification) *NotificationMessage {
	return &NotificationMessage{
		Notification: n,
		Timestamp:    time.Now(),
	}
}

// IsSettled reports whether transport already handled the notification.
func (m *NotificationMessage) IsSettled(transport string) bool {
	for _, s := range m.Settled {
		if s == transport {
			return true
		}
	}
	return false
}

func (m *NotificationMessage) Settle(transport string) {
	if !m.IsSettled(transport) {
		m.Settled = append(m.Settled, transport)
	}
}

func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NotificationMessageFromJSON decodes a message and checks it names a user.
func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Notification.UserID == "" {
		return nil, core.NewValidationError("userId", core.ErrNotAuthenticated)
	}
	return &msg, nil
}
