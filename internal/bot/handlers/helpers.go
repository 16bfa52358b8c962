package handlers

import (
	"context"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/aurafarm/farm-bot/internal/bot/keyboard"
)

// LoginPrompts receives login secrets collected from user replies.
type LoginPrompts interface {
	ResolveCode(userID int64, code string) bool
	ResolvePassword(userID int64, password string) bool
}

// PrivilegeChecker reports whether a user may act on other users.
type PrivilegeChecker interface {
	IsPrivileged(ctx context.Context, userID int64) bool
}

// callbackAction decodes the pressed button into its action and payload.
func callbackAction(c telebot.Context) (string, string, error) {
	cb := c.Callback()
	if cb == nil {
		return "", "", keyboard.ErrNoCallback
	}

	return keyboard.DecodeCallback(strings.TrimPrefix(cb.Data, "\f"))
}

// callbackTarget decodes the action and target user id from a button press
// and verifies the presser may act on that user.
func callbackTarget(c telebot.Context, checker PrivilegeChecker) (string, int64, bool) {
	action, payload, err := callbackAction(c)
	if err != nil {
		return "", 0, false
	}

	targetID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return "", 0, false
	}

	sender := c.Sender()
	if sender == nil {
		return "", 0, false
	}

	if sender.ID != targetID && !checker.IsPrivileged(context.Background(), sender.ID) {
		_ = c.Respond(&telebot.CallbackResponse{Text: "Not allowed"})
		return "", 0, false
	}

	return action, targetID, true
}

// commandArgs splits a command's arguments.
func commandArgs(c telebot.Context) []string {
	return c.Args()
}

// parseUserIDArg extracts a numeric user id from the first command argument.
func parseUserIDArg(c telebot.Context) (int64, bool) {
	args := commandArgs(c)
	if len(args) < 1 {
		return 0, false
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
