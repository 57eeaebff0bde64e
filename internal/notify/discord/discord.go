// Package discord posts notifications to a Discord channel through a bot.
//
// The channel is an operator feed shared by every user, so each message is
// tagged with the user it belongs to. An allowlist limits whose
// notifications are mirrored.
package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"bolso/internal/core"
)

// Sender is the part of *discordgo.Session used here.
type Sender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Notifier struct {
	sender    Sender
	channelID string
	users     map[core.UserID]bool
}

// New opens a bot session for token. The session is only used for REST
// calls, so no gateway connection is opened.
func New(token, channelID string) (*Notifier, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return NewWithSender(session, channelID), nil
}

func NewWithSender(s Sender, channelID string) *Notifier {
	return &Notifier{sender: s, channelID: channelID}
}

// OnlyUsers restricts the feed to the given users. With no ids every
// user's notifications are posted.
func (d *Notifier) OnlyUsers(ids ...core.UserID) *Notifier {
	if len(ids) == 0 {
		d.users = nil
		return d
	}
	d.users = make(map[core.UserID]bool, len(ids))
	for _, id := range ids {
		d.users[id] = true
	}
	return d
}

func (d *Notifier) Dispatch(ctx context.Context, n core.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.users != nil && !d.users[n.UserID] {
		return nil
	}
	if _, err := d.sender.ChannelMessageSend(d.channelID, Format(n), discordgo.WithContext(ctx)); err != nil {
		return core.NewRemoteError("discord send", err)
	}
	return nil
}

// Format renders a notification as a Discord message.
func Format(n core.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s **%s**", icon(n.Type), n.Title)
	if n.UserID != "" {
		fmt.Fprintf(&b, " `%s`", n.UserID)
	}
	if n.Message != "" {
		b.WriteString("\n")
		b.WriteString(n.Message)
	}
	return b.String()
}

func icon(t core.NotificationType) string {
	switch t {
	case core.NotifyGoalAchieved:
		return "🚨"
	case core.NotifyGoalWarning, core.NotifyBudgetAlert, core.NotifyCardLimitWarning:
		return "⚠️"
	case core.NotifyPaymentReminder, core.NotifyDueDateMorning, core.NotifyDueDateFollowup:
		return "📅"
	default:
		return "🔔"
	}
}
