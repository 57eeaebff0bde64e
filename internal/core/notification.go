package core

import (
	"regexp"
	"strings"
	"time"
	_ "time/tzdata" // profile timezones must resolve on hosts without zoneinfo
)

// NotificationType classifies alerts sent to the user.
type NotificationType string

const (
	NotifyDueDateMorning   NotificationType = "due_date_morning"
	NotifyDueDateFollowup  NotificationType = "due_date_followup"
	NotifyBudgetAlert      NotificationType = "budget_alert"
	NotifyGoalAchieved     NotificationType = "goal_achieved"
	NotifyGoalWarning      NotificationType = "goal_warning"
	NotifyPaymentReminder  NotificationType = "payment_reminder"
	NotifyCardLimitWarning NotificationType = "card_limit_warning"
	NotifyUnusualSpending  NotificationType = "unusual_spending"
	NotifyMonthlySummary   NotificationType = "monthly_summary"
)

type (
	// Notification is a stored alert; it doubles as the dispatch event.
	Notification struct {
		ID        string           `json:"id"`
		UserID    UserID           `json:"userId"`
		Type      NotificationType `json:"type"`
		Title     string           `json:"title"`
		Message   string           `json:"message"`
		RelatedID string           `json:"relatedId,omitempty"`
		Extra     map[string]any   `json:"extraData,omitempty"`
		IsRead    bool             `json:"isRead"`
		CreatedAt time.Time        `json:"createdAt"`
	}

	WebhookSettings struct {
		URL    string `json:"webhookUrl"`
		Secret string `json:"webhookSecret,omitempty"`
		Active bool   `json:"isActive"`
	}

	// WebhookLog records one delivery attempt.
	WebhookLog struct {
		ID             string    `json:"id"`
		UserID         UserID    `json:"userId"`
		NotificationID string    `json:"notificationId"`
		URL            string    `json:"webhookUrl"`
		Payload        []byte    `json:"payload"`
		Status         int       `json:"responseStatus"`
		Body           string    `json:"responseBody"`
		Success        bool      `json:"success"`
		SentAt         time.Time `json:"sentAt"`
	}

	Profile struct {
		UserID               UserID `json:"id"`
		FullName             string `json:"fullName"`
		WhatsApp             string `json:"whatsappNumber"`
		NotificationsEnabled bool   `json:"notificationsEnabled"`
		Timezone             string `json:"timezone"`
	}
)

var nonDigits = regexp.MustCompile(`\D`)

// NormalizeWhatsApp reduces a phone number to "+<digits>", assuming Brazil
// (55) when no country code is present.
func NormalizeWhatsApp(raw string) string {
	digits := nonDigits.ReplaceAllString(raw, "")
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return ""
	}
	if len(digits) <= 11 {
		digits = "55" + digits
	}
	return "+" + digits
}

// Location resolves the profile timezone, defaulting to São Paulo.
func (p Profile) Location() *time.Location {
	name := p.Timezone
	if name == "" {
		name = "America/Sao_Paulo"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
