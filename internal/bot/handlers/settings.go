package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/aurafarm/farm-bot/internal/bot/keyboard"
	"github.com/aurafarm/farm-bot/internal/settings"
	"github.com/aurafarm/farm-bot/internal/state"
)

// NewRateHandler shows current trade limits with buttons to change them.
func NewRateHandler(svc settings.Service, kb *keyboard.Builder) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		cfg, err := svc.Get(context.Background(), sender.ID)
		if err != nil {
			return err
		}

		msg := fmt.Sprintf("Current rates:\n💎 Pearl: %d\n🎫 Ticket: %d\nSelect to change:",
			cfg.PearlLimit, cfg.TicketLimit)
		return c.Send(msg, kb.RateButtons(sender.ID))
	}
}

// NewRateCallback asks for the new threshold for the chosen resource.
func NewRateCallback(svc settings.Service, fsm state.StateMachine, checker PrivilegeChecker, log *slog.Logger) CallbackHandler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		action, targetID, ok := callbackTarget(c, checker)
		if !ok {
			return nil
		}

		cfg, err := svc.Get(context.Background(), targetID)
		if err != nil {
			return err
		}

		var nextState state.State
		var prompt string

		switch action {
		case keyboard.ActionRatePearl:
			nextState = state.StateAwaitingPearlPrice
			prompt = fmt.Sprintf("Enter new max pearl price (current: %d):", cfg.PearlLimit)
		case keyboard.ActionRateTicket:
			nextState = state.StateAwaitingTicketPrice
			prompt = fmt.Sprintf("Enter new max ticket price (current: %d):", cfg.TicketLimit)
		default:
			return c.Respond()
		}

		if err := fsm.SetState(context.Background(), targetID, nextState, nil); err != nil {
			return err
		}

		if _, err := c.Bot().Send(telebot.ChatID(targetID), prompt); err != nil {
			log.Error("failed to prompt for price", slog.Int64("user_id", targetID), slog.Any("error", err))
		}
		return c.Respond()
	}
}

// NewPearlPriceStateHandler stores the pearl threshold reply.
func NewPearlPriceStateHandler(svc settings.Service, fsm state.StateMachine, log *slog.Logger) Handler {
	return newPriceStateHandler(svc, fsm, log, "pearl")
}

// NewTicketPriceStateHandler stores the ticket threshold reply.
func NewTicketPriceStateHandler(svc settings.Service, fsm state.StateMachine, log *slog.Logger) Handler {
	return newPriceStateHandler(svc, fsm, log, "ticket")
}

func newPriceStateHandler(svc settings.Service, fsm state.StateMachine, log *slog.Logger, resource string) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		userID := sender.ID

		defer func() {
			if err := fsm.SetState(context.Background(), userID, state.StateIdle, nil); err != nil {
				log.Error("failed to reset state after price reply",
					slog.Int64("user_id", userID), slog.Any("error", err))
			}
		}()

		price, err := strconv.Atoi(strings.TrimSpace(c.Text()))
		if err != nil {
			return c.Send("❌ Invalid number")
		}
		if price <= 0 {
			return c.Send("❌ Price must be positive")
		}

		ctx := context.Background()
		cfg, err := svc.Get(ctx, userID)
		if err != nil {
			return err
		}

		pearl, ticket := cfg.PearlLimit, cfg.TicketLimit
		if resource == "pearl" {
			pearl = price
		} else {
			ticket = price
		}

		if err := svc.SetLimits(ctx, userID, pearl, ticket); err != nil {
			return err
		}

		if resource == "pearl" {
			return c.Send(fmt.Sprintf("✅ Pearl price set to %d", price))
		}
		return c.Send(fmt.Sprintf("✅ Ticket price set to %d", price))
	}
}

// NewGroupNotiHandler shows the group notification menu, asking for a group
// id first when none is configured yet.
func NewGroupNotiHandler(svc settings.Service, fsm state.StateMachine, kb *keyboard.Builder) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		userID := sender.ID

		ctx := context.Background()
		cfg, err := svc.Get(ctx, userID)
		if err != nil {
			return err
		}

		if cfg.GroupID == 0 {
			if err := fsm.SetState(ctx, userID, state.StateAwaitingGroupID, nil); err != nil {
				return err
			}
			return c.Send("📋 Please send the group ID where you want notifications:")
		}

		status := "🔴 OFF"
		if cfg.GroupNoti {
			status = "🟢 ON"
		}

		msg := fmt.Sprintf("Do you want to send notifications to group %d?\nCurrent status: %s",
			cfg.GroupID, status)
		return c.Send(msg, kb.GroupNoti(userID))
	}
}

// NewGroupNotiCallback handles the on/off/change-group buttons.
func NewGroupNotiCallback(svc settings.Service, fsm state.StateMachine, checker PrivilegeChecker, log *slog.Logger) CallbackHandler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		action, targetID, ok := callbackTarget(c, checker)
		if !ok {
			return nil
		}

		ctx := context.Background()

		switch action {
		case keyboard.ActionGroupOn:
			if err := svc.SetGroupNoti(ctx, targetID, true); err != nil {
				return err
			}
			if _, err := c.Bot().Send(telebot.ChatID(targetID), "🟢 Group notifications ON"); err != nil {
				log.Error("failed to confirm gcnoti", slog.Int64("user_id", targetID), slog.Any("error", err))
			}

		case keyboard.ActionGroupOff:
			if err := svc.SetGroupNoti(ctx, targetID, false); err != nil {
				return err
			}
			if _, err := c.Bot().Send(telebot.ChatID(targetID), "🔴 Group notifications OFF"); err != nil {
				log.Error("failed to confirm gcnoti", slog.Int64("user_id", targetID), slog.Any("error", err))
			}

		case keyboard.ActionGroupChange:
			if err := fsm.SetState(ctx, targetID, state.StateAwaitingGroupID, nil); err != nil {
				return err
			}
			if _, err := c.Bot().Send(telebot.ChatID(targetID), "📋 Send me your new group's chat ID:"); err != nil {
				log.Error("failed to prompt for group id", slog.Int64("user_id", targetID), slog.Any("error", err))
			}
		}

		return c.Respond()
	}
}

// NewGroupIDStateHandler stores the group id reply and confirms delivery to
// the new group.
func NewGroupIDStateHandler(svc settings.Service, fsm state.StateMachine, kb *keyboard.Builder, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		userID := sender.ID

		groupID, err := strconv.ParseInt(strings.TrimSpace(c.Text()), 10, 64)
		if err != nil {
			return c.Send("❌ Invalid group ID. Please send a numeric group ID:")
		}

		ctx := context.Background()
		if err := svc.SetGroup(ctx, userID, groupID); err != nil {
			return err
		}

		if err := fsm.SetState(ctx, userID, state.StateIdle, nil); err != nil {
			log.Error("failed to reset state after group reply",
				slog.Int64("user_id", userID), slog.Any("error", err))
		}

		confirmation := fmt.Sprintf("✅ Group notifications have been set up for user %d. Future notifications will be sent here.", userID)
		if _, err := c.Bot().Send(telebot.ChatID(groupID), confirmation); err != nil {
			log.Error("could not send confirmation to group",
				slog.Int64("group_id", groupID), slog.Any("error", err))
		}

		msg := fmt.Sprintf("Do you want to send notifications to group %d?", groupID)
		return c.Send(msg, kb.GroupNoti(userID))
	}
}
