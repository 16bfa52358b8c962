package handlers

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/aurafarm/farm-bot/internal/repository"
	"github.com/aurafarm/farm-bot/internal/state"
	"github.com/aurafarm/farm-bot/internal/userbot"
)

var phoneRe = regexp.MustCompile(`^\+\d{7,15}$`)

// NewSetupHandler starts the login conversation, restoring a stored session
// when one exists instead of asking for the phone again.
//
// baseCtx scopes spawned userbot clients; it must outlive the request.
func NewSetupHandler(baseCtx context.Context, manager *userbot.Manager, sessions repository.SessionRepository, fsm state.StateMachine, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		userID := sender.ID

		if manager.Running(userID) {
			return c.Send("✅ You are already logged in! Use /toggle to start farming.")
		}

		exists, err := sessions.Exists(context.Background(), userID)
		if err != nil {
			return err
		}

		if exists {
			if err := c.Send("🔄 Restoring your existing session..."); err != nil {
				return err
			}
			return manager.Start(baseCtx, userID, "")
		}

		if err := fsm.SetState(context.Background(), userID, state.StateAwaitingPhone, nil); err != nil {
			return err
		}

		return c.Send("📱 Send your phone number with country code (e.g. +15551234567):")
	}
}

// NewPhoneStateHandler consumes the phone number reply and launches the
// login flow.
func NewPhoneStateHandler(baseCtx context.Context, manager *userbot.Manager, fsm state.StateMachine, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		userID := sender.ID

		phone := strings.ReplaceAll(strings.TrimSpace(c.Text()), " ", "")
		if !phoneRe.MatchString(phone) {
			return c.Send("❌ Phone must start with + and country code. Try again:")
		}

		if err := manager.Start(baseCtx, userID, phone); err != nil {
			if clearErr := fsm.ClearState(context.Background(), userID); clearErr != nil {
				log.Error("failed to clear state after login error",
					slog.Int64("user_id", userID), slog.Any("error", clearErr))
			}
			return err
		}

		return c.Send("⏳ Connecting to Telegram...")
	}
}

// NewCodeStateHandler feeds the login code to the waiting auth flow. Codes
// arrive with spaces between the digits so Telegram does not flag the
// message; the spaces are stripped here.
func NewCodeStateHandler(prompts LoginPrompts, fsm state.StateMachine, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		userID := sender.ID

		code := strings.Join(strings.Fields(c.Text()), "")
		if code == "" {
			return c.Send("❌ Empty code. Try again:")
		}

		if !prompts.ResolveCode(userID, code) {
			if err := fsm.ClearState(context.Background(), userID); err != nil {
				log.Error("failed to clear stale code state",
					slog.Int64("user_id", userID), slog.Any("error", err))
			}
			return c.Send("⚠️ No login in progress. Use /setup to start.")
		}

		if err := fsm.SetState(context.Background(), userID, state.StateIdle, nil); err != nil {
			log.Error("failed to reset state after code",
				slog.Int64("user_id", userID), slog.Any("error", err))
		}

		return c.Send("⏳ Verifying code...")
	}
}

// NewPasswordStateHandler feeds the 2FA password to the waiting auth flow.
func NewPasswordStateHandler(prompts LoginPrompts, fsm state.StateMachine, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		userID := sender.ID

		password := strings.TrimSpace(c.Text())
		if !prompts.ResolvePassword(userID, password) {
			if err := fsm.ClearState(context.Background(), userID); err != nil {
				log.Error("failed to clear stale password state",
					slog.Int64("user_id", userID), slog.Any("error", err))
			}
			return c.Send("⚠️ No login in progress. Use /setup to start.")
		}

		if err := fsm.SetState(context.Background(), userID, state.StateIdle, nil); err != nil {
			log.Error("failed to reset state after password",
				slog.Int64("user_id", userID), slog.Any("error", err))
		}

		return c.Send("⏳ Verifying password...")
	}
}

// NewCancelHandler disconnects the user's client without deleting the stored
// session, and resets any pending conversation state.
func NewCancelHandler(manager *userbot.Manager, fsm state.StateMachine, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		userID := sender.ID

		running := manager.Running(userID)

		if err := fsm.ClearState(context.Background(), userID); err != nil {
			log.Error("failed to clear user state",
				slog.Int64("user_id", userID), slog.Any("error", err))
		}

		if !running {
			return c.Send("⚠️ No active farming or login session to cancel.")
		}

		manager.Stop(userID)
		return c.Send("⛔ Session cancelled. Use /setup to start again.")
	}
}

// NewDeleteHandler logs the user out of Telegram and deletes the stored
// session data.
func NewDeleteHandler(manager *userbot.Manager, sessions repository.SessionRepository, fsm state.StateMachine, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		userID := sender.ID

		ctx := context.Background()

		exists, err := sessions.Exists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists && !manager.Running(userID) {
			return c.Send("⚠️ No active session to delete.")
		}

		if err := fsm.ClearState(ctx, userID); err != nil {
			log.Error("failed to clear user state",
				slog.Int64("user_id", userID), slog.Any("error", err))
		}

		if err := manager.Logout(ctx, userID); err != nil {
			return err
		}

		return c.Send("🗑️ Session deleted! Use /setup to log in again with your phone number and OTP.")
	}
}
