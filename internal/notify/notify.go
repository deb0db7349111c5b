package notify

import (
	"context"

	"github.com/torfstack/sideload/internal/config"
)

// Notifier delivers a message to one recipient. Delivery is best effort:
// failures are logged and reported through the return value only.
type Notifier interface {
	Send(ctx context.Context, msg string) bool
}

// New builds the notifiers configured in cfg. Channels without credentials
// are left out; with none left the result drops every message.
func New(cfg config.Config) Notifier {
	var m Multi
	if cfg.Telegram.BotToken != "" {
		m = append(m, NewTelegram(cfg.Telegram.APIURL, cfg.Telegram.BotToken, cfg.Telegram.ChatID))
	}
	if cfg.Sendgrid.APIKey != "" {
		m = append(m, NewSendgrid(cfg.Sendgrid.APIKey, cfg.Sendgrid.From, cfg.Sendgrid.To))
	}
	switch len(m) {
	case 0:
		return Nop{}
	case 1:
		return m[0]
	}
	return m
}

type Multi []Notifier

// Send delivers to every notifier and reports whether any of them succeeded.
func (m Multi) Send(ctx context.Context, msg string) bool {
	ok := false
	for _, n := range m {
		if n.Send(ctx, msg) {
			ok = true
		}
	}
	return ok
}

type Nop struct{}

func (Nop) Send(context.Context, string) bool {
	return false
}
