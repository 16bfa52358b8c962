package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/aurafarm/farm-bot/internal/approval"
	"github.com/aurafarm/farm-bot/internal/farm"
	"github.com/aurafarm/farm-bot/internal/repository"
)

// NewApproveHandler grants farming access: /approve <id> [1d|1w|1m|p].
func NewApproveHandler(approvals approval.Service, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		userID, ok := parseUserIDArg(c)
		if !ok {
			return c.Send("Usage: /approve <user_id> [duration]\nDurations: 1d, 1w, 1m, p (permanent)")
		}

		duration := approval.DurationPermanent
		if args := commandArgs(c); len(args) > 1 {
			duration = args[1]
		}

		grant, err := approvals.Approve(context.Background(), userID, duration)
		if err != nil {
			return err
		}

		log.Info("approval granted",
			slog.Int64("user_id", userID), slog.String("duration", duration))
		return c.Send(fmt.Sprintf("✅ Approved %d (%s)", userID, approval.FormatRemaining(grant, time.Now().UTC())))
	}
}

// NewUnapproveHandler revokes access: /unapprove <id>.
func NewUnapproveHandler(approvals approval.Service) Handler {
	return func(c telebot.Context) error {
		userID, ok := parseUserIDArg(c)
		if !ok {
			return c.Send("Usage: /unapprove <user_id>")
		}

		ctx := context.Background()
		if _, err := approvals.Status(ctx, userID); errors.Is(err, repository.ErrNotFound) {
			return c.Send(fmt.Sprintf("❌ User %d was not approved", userID))
		}

		if err := approvals.Unapprove(ctx, userID); err != nil {
			return err
		}

		return c.Send(fmt.Sprintf("❌ Unapproved %d", userID))
	}
}

// NewApproveListHandler lists every approval with its remaining time.
func NewApproveListHandler(approvals approval.Service) Handler {
	return func(c telebot.Context) error {
		grants, err := approvals.List(context.Background())
		if err != nil {
			return err
		}

		if len(grants) == 0 {
			return c.Send("No approved users")
		}

		now := time.Now().UTC()
		var b strings.Builder
		b.WriteString("Approved users:\n")
		for _, grant := range grants {
			fmt.Fprintf(&b, "• %d: %s\n", grant.UserID, approval.FormatRemaining(grant, now))
		}

		return c.Send(b.String())
	}
}

// NewApprovalStatusHandler reports the caller's own approval.
func NewApprovalStatusHandler(approvals approval.Service) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		grant, err := approvals.Status(context.Background(), sender.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.Send("❌ You are not approved")
			}
			return err
		}

		if grant.Permanent() {
			return c.Send("✅ Your approval is permanent")
		}

		remaining := approval.FormatRemaining(grant, time.Now().UTC())
		if remaining == "expired" {
			return c.Send("❌ Your approval has expired")
		}
		return c.Send(fmt.Sprintf("✅ Your approval expires in %s", remaining))
	}
}

// NewPromoteHandler adds an admin: /promote <id>.
func NewPromoteHandler(admins repository.AdminRepository, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		userID, ok := parseUserIDArg(c)
		if !ok {
			return c.Send("Usage: /promote <user_id>")
		}

		ctx := context.Background()

		isAdmin, err := admins.IsAdmin(ctx, userID)
		if err != nil {
			return err
		}
		if isAdmin {
			return c.Send(fmt.Sprintf("❌ User %d is already an admin", userID))
		}

		if err := admins.Add(ctx, userID); err != nil {
			return err
		}

		if _, err := c.Bot().Send(telebot.ChatID(userID), "🎉 You have been promoted to admin! You now have access to admin commands."); err != nil {
			log.Error("could not notify promoted user", slog.Int64("user_id", userID), slog.Any("error", err))
		}

		return c.Send(fmt.Sprintf("✅ Promoted %d to admin", userID))
	}
}

// NewDemoteHandler removes an admin: /demote <id>.
func NewDemoteHandler(admins repository.AdminRepository, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		userID, ok := parseUserIDArg(c)
		if !ok {
			return c.Send("Usage: /demote <user_id>")
		}

		ctx := context.Background()

		isAdmin, err := admins.IsAdmin(ctx, userID)
		if err != nil {
			return err
		}
		if !isAdmin {
			return c.Send(fmt.Sprintf("❌ User %d is not an admin", userID))
		}

		if err := admins.Remove(ctx, userID); err != nil {
			return err
		}

		if _, err := c.Bot().Send(telebot.ChatID(userID), "🔻 You have been demoted from admin role."); err != nil {
			log.Error("could not notify demoted user", slog.Int64("user_id", userID), slog.Any("error", err))
		}

		return c.Send(fmt.Sprintf("✅ Demoted %d from admin", userID))
	}
}

// NewAdminListHandler lists all admins.
func NewAdminListHandler(admins repository.AdminRepository) Handler {
	return func(c telebot.Context) error {
		ids, err := admins.List(context.Background())
		if err != nil {
			return err
		}

		if len(ids) == 0 {
			return c.Send("No admins found.")
		}

		var b strings.Builder
		b.WriteString("👑 Admins:\n")
		for _, id := range ids {
			fmt.Fprintf(&b, "• %d\n", id)
		}
		fmt.Fprintf(&b, "\nTotal: %d admin(s)", len(ids))

		return c.Send(b.String())
	}
}

// NewStatsHandler reports stored and live counts for operators.
func NewStatsHandler(
	approvals approval.Service,
	admins repository.AdminRepository,
	sessions repository.SessionRepository,
	registry *farm.Registry,
) Handler {
	return func(c telebot.Context) error {
		ctx := context.Background()

		grants, err := approvals.List(ctx)
		if err != nil {
			return err
		}

		adminIDs, err := admins.List(ctx)
		if err != nil {
			return err
		}

		stored, err := sessions.Count(ctx)
		if err != nil {
			return err
		}

		live := 0
		enabled := 0
		for _, s := range registry.Snapshot() {
			live++
			if s.Enabled() {
				enabled++
			}
		}

		msg := fmt.Sprintf(
			"📊 Database statistics:\n\n"+
				"👥 Approved users: %d\n"+
				"👑 Admins: %d\n"+
				"💾 Stored sessions: %d\n"+
				"🔌 Connected clients: %d\n"+
				"🌾 Farming enabled: %d",
			len(grants), len(adminIDs), stored, live, enabled,
		)
		return c.Send(msg)
	}
}
