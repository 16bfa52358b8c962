package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/aurafarm/farm-bot/internal/bot/keyboard"
	"github.com/aurafarm/farm-bot/internal/state"
)

// NewStartHandler greets the user and seeds an idle FSM state for newcomers.
func NewStartHandler(fsm state.StateMachine, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		ctx := context.Background()
		userID := sender.ID

		welcome := "✨ Welcome"
		if sender.FirstName != "" {
			welcome += " " + sender.FirstName
		}
		welcome += "!\n\n🤖 I am Aura Farming Bot.\n\n👉 Use /help to see all commands."

		_, err := fsm.GetState(ctx, userID)
		if errors.Is(err, state.ErrStateNotFound) {
			if setErr := fsm.SetState(ctx, userID, state.StateIdle, nil); setErr != nil {
				log.Error("failed to set initial user state",
					slog.Int64("user_id", userID), slog.Any("error", setErr))
			}
		} else if err != nil {
			return err
		}

		return c.Send(welcome)
	}
}

const userCommandsHelp = "🤖 User Commands:\n\n" +
	"Farming:\n" +
	"/toggle - Start or stop auto farming\n" +
	"/debug - Toggle verbose farm logging\n\n" +
	"Settings:\n" +
	"/rate - Change pearl/ticket price limits\n" +
	"/gcnoti - Group notifications\n" +
	"/setup - Log in to the game\n" +
	"/cancel - Cancel login or pause your session\n" +
	"/delete - Delete your session\n" +
	"/approval_status - Check approval status\n\n" +
	"Info:\n" +
	"/help - Show this help message\n" +
	"/ping - Check bot latency"

const adminCommandsHelp = "👑 Owner & Admin Commands:\n\n" +
	"User Management:\n" +
	"/approve <id> [duration] - Approve user\n" +
	"/unapprove <id> - Remove approval\n" +
	"/approvelist - List approved users\n" +
	"/stats - Database statistics\n\n" +
	"Admin Management (Owner Only):\n" +
	"/promote <id> - Promote user to admin\n" +
	"/demote <id> - Demote admin\n" +
	"/adminlist - List all admins\n\n" +
	"Duration formats:\n" +
	"1d - 1 day, 1w - 1 week, 1m - 1 month, p - permanent"

// NewHelpHandler sends the help menu with section buttons.
func NewHelpHandler(kb *keyboard.Builder) Handler {
	return func(c telebot.Context) error {
		return c.Send("📖 Aura Farming Bot - Help Menu\n\nChoose a section below:", kb.HelpSections())
	}
}

// NewHelpCallback swaps the help message body for the chosen section.
func NewHelpCallback() CallbackHandler {
	return func(c telebot.Context) error {
		action, _, err := callbackAction(c)
		if err != nil {
			return nil
		}

		text := userCommandsHelp
		if action == keyboard.ActionHelpAdmin {
			text = adminCommandsHelp
		}

		if err := c.Edit(text); err != nil {
			return err
		}
		return c.Respond()
	}
}

// NewPingHandler measures round-trip latency to the Bot API.
func NewPingHandler() Handler {
	return func(c telebot.Context) error {
		start := time.Now()

		msg, err := c.Bot().Send(c.Recipient(), "Pinging…")
		if err != nil {
			return err
		}

		elapsed := time.Since(start).Milliseconds()
		_, err = c.Bot().Edit(msg, fmt.Sprintf("PONG %d ms", elapsed))
		return err
	}
}
