// Package notify delivers farming alerts through the control bot, either to
// the user directly or to their configured group.
package notify

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v3"

	"github.com/aurafarm/farm-bot/internal/settings"
	"github.com/aurafarm/farm-bot/pkg/metrics"
)

// Sender is the outbound slice of the telebot API the notifier needs.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier routes alert texts to a group chat when the user configured one,
// falling back to a direct message.
type Notifier struct {
	bot      Sender
	settings settings.Service
	log      *slog.Logger
}

// New creates a Notifier on top of the control bot.
func New(bot Sender, settingsService settings.Service, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}

	return &Notifier{
		bot:      bot,
		settings: settingsService,
		log:      log,
	}
}

// Notify delivers the text. Delivery failures are logged, never returned; the
// farming loop must not stall on a blocked chat.
func (n *Notifier) Notify(ctx context.Context, userID int64, text string) {
	userSettings, err := n.settings.Get(ctx, userID)
	if err != nil {
		n.log.Warn("failed to load notification settings",
			slog.Int64("user_id", userID), slog.Any("error", err))
	}

	if userSettings != nil && userSettings.GroupNoti && userSettings.GroupID != 0 {
		if _, err := n.bot.Send(tele.ChatID(userSettings.GroupID), text); err == nil {
			metrics.RecordNotification("group")
			return
		} else {
			n.log.Warn("group notification failed, falling back to direct message",
				slog.Int64("user_id", userID),
				slog.Int64("group_id", userSettings.GroupID),
				slog.Any("error", err),
			)
		}
	}

	if _, err := n.bot.Send(tele.ChatID(userID), text); err != nil {
		n.log.Error("failed to notify user",
			slog.Int64("user_id", userID), slog.Any("error", err))
		return
	}
	metrics.RecordNotification("direct")
}
