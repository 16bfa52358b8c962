package bot

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/aurafarm/farm-bot/internal/approval"
	"github.com/aurafarm/farm-bot/internal/bot/handlers"
	"github.com/aurafarm/farm-bot/internal/repository"
)

// Gate wraps handlers with access checks. The owner bypasses every gate,
// admins bypass the approval gate.
type Gate struct {
	approvals approval.Service
	admins    repository.AdminRepository
	ownerID   int64
	log       *slog.Logger
}

// NewGate builds the access gate used at command registration.
func NewGate(approvals approval.Service, admins repository.AdminRepository, ownerID int64, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}

	return &Gate{
		approvals: approvals,
		admins:    admins,
		ownerID:   ownerID,
		log:       log,
	}
}

// Approved restricts a handler to approved users, admins, and the owner.
func (g *Gate) Approved(next handlers.Handler) handlers.Handler {
	return func(c telebot.Context) error {
		userID, ok := senderID(c)
		if !ok {
			return nil
		}

		if g.IsPrivileged(context.Background(), userID) {
			return next(c)
		}

		approved, err := g.approvals.IsApproved(context.Background(), userID)
		if err != nil {
			return err
		}
		if !approved {
			return c.Send("🚫 Not approved or approval expired. Ask an admin for access.")
		}

		return next(c)
	}
}

// AdminOnly restricts a handler to admins and the owner.
func (g *Gate) AdminOnly(next handlers.Handler) handlers.Handler {
	return func(c telebot.Context) error {
		userID, ok := senderID(c)
		if !ok {
			return nil
		}

		if !g.IsPrivileged(context.Background(), userID) {
			return c.Send("🚫 This command is restricted to admins.")
		}

		return next(c)
	}
}

// OwnerOnly restricts a handler to the configured owner.
func (g *Gate) OwnerOnly(next handlers.Handler) handlers.Handler {
	return func(c telebot.Context) error {
		userID, ok := senderID(c)
		if !ok {
			return nil
		}

		if userID != g.ownerID {
			return c.Send("🚫 This command is restricted to the bot owner.")
		}

		return next(c)
	}
}

// IsPrivileged reports whether the user is the owner or an admin.
func (g *Gate) IsPrivileged(ctx context.Context, userID int64) bool {
	if userID == g.ownerID {
		return true
	}

	if g.admins == nil {
		return false
	}

	isAdmin, err := g.admins.IsAdmin(ctx, userID)
	if err != nil {
		g.log.Error("admin lookup failed", slog.Int64("user_id", userID), slog.Any("error", err))
		return false
	}

	return isAdmin
}

func senderID(c telebot.Context) (int64, bool) {
	if c == nil || c.Sender() == nil {
		return 0, false
	}
	return c.Sender().ID, true
}
