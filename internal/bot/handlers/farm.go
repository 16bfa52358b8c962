package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/aurafarm/farm-bot/internal/bot/keyboard"
	"github.com/aurafarm/farm-bot/internal/userbot"
)

// NewToggleHandler shows the farming On/Off keyboard.
func NewToggleHandler(manager *userbot.Manager, kb *keyboard.Builder) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		if manager.Runner(sender.ID) == nil {
			return c.Send("⚠️ Not logged in. Use /setup first.")
		}

		return c.Send("Toggle farming:", kb.FarmToggle(sender.ID))
	}
}

// NewToggleCallback flips farming for the target user. Enabling kicks an
// immediate explore so the loop does not wait for the next game message.
func NewToggleCallback(manager *userbot.Manager, checker PrivilegeChecker, log *slog.Logger) CallbackHandler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		action, targetID, ok := callbackTarget(c, checker)
		if !ok {
			return nil
		}

		runner := manager.Runner(targetID)
		if runner == nil {
			return c.Respond(&telebot.CallbackResponse{Text: "Not logged in"})
		}

		session := runner.Session()

		switch action {
		case keyboard.ActionFarmOn:
			session.SetEnabled(true)
			runner.KickExplore()
			log.Info("farming enabled", slog.Int64("user_id", targetID))

			if _, err := c.Bot().Send(telebot.ChatID(targetID), "🟢 Farming started"); err != nil {
				log.Error("failed to confirm toggle", slog.Int64("user_id", targetID), slog.Any("error", err))
			}
			return c.Respond(&telebot.CallbackResponse{Text: "Started"})

		case keyboard.ActionFarmOff:
			session.SetEnabled(false)
			log.Info("farming disabled", slog.Int64("user_id", targetID))

			if _, err := c.Bot().Send(telebot.ChatID(targetID), "🔴 Farming stopped"); err != nil {
				log.Error("failed to confirm toggle", slog.Int64("user_id", targetID), slog.Any("error", err))
			}
			return c.Respond(&telebot.CallbackResponse{Text: "Stopped"})
		}

		return c.Respond()
	}
}

// NewDebugHandler toggles verbose per-message logging for the caller's
// farming session.
func NewDebugHandler(manager *userbot.Manager) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		runner := manager.Runner(sender.ID)
		if runner == nil {
			return c.Send("⚠️ Not logged in. Use /setup first.")
		}

		session := runner.Session()
		if session.Debug() {
			session.SetDebug(false)
			return c.Send("🔴 Debug off")
		}

		session.SetDebug(true)
		return c.Send("🟢 Debug on")
	}
}
