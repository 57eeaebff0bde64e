package discord

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"bolso/internal/core"
)

type fakeSender struct {
	channel string
	content string
	err     error
}

func (f *fakeSender) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.channel, f.content = channelID, content
	if f.err != nil {
		return nil, f.err
	}
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func TestNotifier_Dispatch(t *testing.T) {
	n := core.Notification{Type: core.NotifyCardLimitWarning, Title: "Limite do cartão", Message: "Nubank em 80%"}

	t.Run("sends to channel", func(t *testing.T) {
		sender := &fakeSender{}
		if err := NewWithSender(sender, "chan-1").Dispatch(context.Background(), n); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if sender.channel != "chan-1" {
			t.Errorf("channel = %q, want chan-1", sender.channel)
		}
		if !strings.Contains(sender.content, "**Limite do cartão**") || !strings.Contains(sender.content, "Nubank em 80%") {
			t.Errorf("content = %q", sender.content)
		}
	})

	t.Run("send failure is remote", func(t *testing.T) {
		sender := &fakeSender{err: errors.New("401 unauthorized")}
		err := NewWithSender(sender, "chan-1").Dispatch(context.Background(), n)
		if !errors.Is(err, core.ErrRemoteFailure) {
			t.Errorf("Dispatch() error = %v, want remote failure", err)
		}
	})
}

func TestNotifier_OnlyUsers(t *testing.T) {
	tests := []struct {
		name     string
		allowed  []core.UserID
		user     core.UserID
		wantSent bool
	}{
		{name: "no allowlist posts everyone", user: "user-1", wantSent: true},
		{name: "listed user is posted", allowed: []core.UserID{"ops", "user-1"}, user: "user-1", wantSent: true},
		{name: "other users stay out of the feed", allowed: []core.UserID{"ops"}, user: "user-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			n := core.Notification{Type: core.NotifyBudgetAlert, Title: "Orçamento", UserID: tt.user}
			if err := NewWithSender(sender, "chan-1").OnlyUsers(tt.allowed...).Dispatch(context.Background(), n); err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			if sent := sender.content != ""; sent != tt.wantSent {
				t.Errorf("sent = %v, want %v", sent, tt.wantSent)
			}
			if tt.wantSent && !strings.Contains(sender.content, string(tt.user)) {
				t.Errorf("content = %q, want the user tagged", sender.content)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		n    core.Notification
		want string
	}{
		{core.Notification{Type: core.NotifyGoalAchieved, Title: "Meta atingida"}, "🚨 **Meta atingida**"},
		{core.Notification{Type: core.NotifyPaymentReminder, Title: "Aluguel", Message: "Vence hoje!"}, "📅 **Aluguel**\nVence hoje!"},
		{core.Notification{Type: core.NotifyMonthlySummary, Title: "Resumo"}, "🔔 **Resumo**"},
		{core.Notification{Type: core.NotifyBudgetAlert, Title: "Orçamento", UserID: "user-7"}, "⚠️ **Orçamento** `user-7`"},
	}
	for _, tt := range tests {
		if got := Format(tt.n); got != tt.want {
			t.Errorf("Format() = %q, want %q", got, tt.want)
		}
	}
}
