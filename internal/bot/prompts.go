package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/aurafarm/farm-bot/internal/state"
)

type promptKind string

const (
	promptCode     promptKind = "code"
	promptPassword promptKind = "password"
)

type promptKey struct {
	userID int64
	kind   promptKind
}

// promptSender is the slice of telebot.Bot the hub needs.
type promptSender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// PromptHub relays login secrets from control-bot replies to the blocked
// authenticator goroutine. AskCode and AskPassword park the login flow on a
// channel; the matching FSM text handler feeds it via Resolve.
type PromptHub struct {
	fsm state.StateMachine
	log *slog.Logger

	mu      sync.Mutex
	bot     promptSender
	waiters map[promptKey]chan string
}

// NewPromptHub builds the hub used by the userbot manager's auth flow. The
// sender is bound later, once the control bot exists.
func NewPromptHub(fsm state.StateMachine, log *slog.Logger) *PromptHub {
	if log == nil {
		log = slog.Default()
	}

	return &PromptHub{
		fsm:     fsm,
		log:     log,
		waiters: make(map[promptKey]chan string),
	}
}

// Bind attaches the control bot used to deliver prompts.
func (h *PromptHub) Bind(bot promptSender) {
	h.mu.Lock()
	h.bot = bot
	h.mu.Unlock()
}

func (h *PromptHub) sender() promptSender {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bot
}

// AskCode prompts the user for the Telegram login code and blocks until the
// user replies or ctx is canceled.
func (h *PromptHub) AskCode(ctx context.Context, userID int64) (string, error) {
	prompt := "📲 Telegram sent you a login code. Reply with the digits separated by spaces (e.g. 1 2 3 4 5)."
	return h.ask(ctx, userID, promptCode, state.StateAwaitingCode, prompt)
}

// AskPassword prompts for the two-step verification password.
func (h *PromptHub) AskPassword(ctx context.Context, userID int64) (string, error) {
	prompt := "🔐 Your account has two-step verification. Reply with your password."
	return h.ask(ctx, userID, promptPassword, state.StateAwaitingPassword, prompt)
}

// Resolve hands a user's reply to the waiting login flow. It reports false
// when no login is waiting for that kind of secret.
func (h *PromptHub) Resolve(userID int64, kind promptKind, value string) bool {
	h.mu.Lock()
	key := promptKey{userID: userID, kind: kind}
	ch, ok := h.waiters[key]
	if ok {
		delete(h.waiters, key)
	}
	h.mu.Unlock()

	if !ok {
		return false
	}

	ch <- value
	return true
}

// ResolveCode feeds a login code reply to the waiting flow.
func (h *PromptHub) ResolveCode(userID int64, code string) bool {
	return h.Resolve(userID, promptCode, code)
}

// ResolvePassword feeds a 2FA password reply to the waiting flow.
func (h *PromptHub) ResolvePassword(userID int64, password string) bool {
	return h.Resolve(userID, promptPassword, password)
}

func (h *PromptHub) ask(ctx context.Context, userID int64, kind promptKind, st state.State, prompt string) (string, error) {
	sender := h.sender()
	if sender == nil {
		return "", errors.New("prompt hub has no control bot bound")
	}

	ch := make(chan string, 1)
	key := promptKey{userID: userID, kind: kind}

	h.mu.Lock()
	if _, exists := h.waiters[key]; exists {
		h.mu.Unlock()
		return "", errors.New("login prompt already pending")
	}
	h.waiters[key] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.waiters, key)
		h.mu.Unlock()
	}()

	if err := h.fsm.SetState(ctx, userID, st, nil); err != nil {
		h.log.Error("failed to set prompt state",
			slog.Int64("user_id", userID), slog.String("state", string(st)), slog.Any("error", err))
	}

	if _, err := sender.Send(telebot.ChatID(userID), prompt); err != nil {
		return "", err
	}

	select {
	case value := <-ch:
		return value, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
