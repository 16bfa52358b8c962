package keyboard

import (
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"
)

// Callback actions understood by the control bot.
const (
	ActionFarmOn      = "on"
	ActionFarmOff     = "off"
	ActionRatePearl   = "rate_pearl"
	ActionRateTicket  = "rate_ticket"
	ActionGroupOn     = "gcnoti_on"
	ActionGroupOff    = "gcnoti_off"
	ActionGroupChange = "gcnoti_change"
	ActionHelpUser    = "help_user"
	ActionHelpAdmin   = "help_owner"
)

// Builder creates the inline keyboards used by control-bot commands. Button
// payloads carry the target user id so admins can act on other users.
type Builder struct {
	log *slog.Logger
}

// NewBuilder returns a new Builder instance.
func NewBuilder(log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{log: log}
}

// FarmToggle builds the On/Off keyboard for /toggle.
func (b *Builder) FarmToggle(userID int64) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.InlineKeyboard = [][]telebot.InlineButton{
		{
			b.button("🟢 On", ActionFarmOn, userID),
			b.button("🔴 Off", ActionFarmOff, userID),
		},
	}
	return markup
}

// RateButtons builds the threshold selection keyboard for /rate.
func (b *Builder) RateButtons(userID int64) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.InlineKeyboard = [][]telebot.InlineButton{
		{
			b.button("💎 Pearl Price", ActionRatePearl, userID),
			b.button("🎫 Ticket Price", ActionRateTicket, userID),
		},
	}
	return markup
}

// GroupNoti builds the group-notification keyboard for /gcnoti.
func (b *Builder) GroupNoti(userID int64) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.InlineKeyboard = [][]telebot.InlineButton{
		{
			b.button("🟢 On", ActionGroupOn, userID),
			b.button("🔴 Off", ActionGroupOff, userID),
		},
		{
			b.button("🔄 Change Group", ActionGroupChange, userID),
		},
	}
	return markup
}

// HelpSections builds the section picker for /help.
func (b *Builder) HelpSections() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.InlineKeyboard = [][]telebot.InlineButton{
		{
			{Text: "User Cmds", Data: ActionHelpUser},
			{Text: "Owner Cmds", Data: ActionHelpAdmin},
		},
	}
	return markup
}

func (b *Builder) button(text, action string, userID int64) telebot.InlineButton {
	data, err := EncodeCallback(action, strconv.FormatInt(userID, 10))
	if err != nil {
		b.log.Error("failed to encode callback data", slog.String("action", action), slog.Any("error", err))
		data = action
	}

	return telebot.InlineButton{Text: text, Data: data}
}
