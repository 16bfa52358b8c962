package bot

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/aurafarm/farm-bot/internal/state"
)

type stubSender struct {
	sent []string
}

func (s *stubSender) Send(_ telebot.Recipient, what interface{}, _ ...interface{}) (*telebot.Message, error) {
	if text, ok := what.(string); ok {
		s.sent = append(s.sent, text)
	}
	return &telebot.Message{}, nil
}

type stubFSM struct {
	states map[int64]state.State
}

func newStubFSM() *stubFSM {
	return &stubFSM{states: make(map[int64]state.State)}
}

func (f *stubFSM) GetState(_ context.Context, userID int64) (*state.UserState, error) {
	s, ok := f.states[userID]
	if !ok {
		return nil, state.ErrStateNotFound
	}
	return &state.UserState{UserID: userID, CurrentState: s}, nil
}

func (f *stubFSM) SetState(_ context.Context, userID int64, s state.State, _ map[string]interface{}) error {
	f.states[userID] = s
	return nil
}

func (f *stubFSM) TransitionTo(_ context.Context, userID int64, s state.State) error {
	f.states[userID] = s
	return nil
}

func (f *stubFSM) ClearState(_ context.Context, userID int64) error {
	delete(f.states, userID)
	return nil
}

func (f *stubFSM) GetAllStates(_ context.Context) ([]*state.UserState, error) {
	return nil, nil
}

func newTestHub() (*PromptHub, *stubSender, *stubFSM) {
	sender := &stubSender{}
	fsm := newStubFSM()
	hub := NewPromptHub(fsm, slog.New(slog.NewTextHandler(io.Discard, nil)))
	hub.Bind(sender)
	return hub, sender, fsm
}

func TestPromptHubDeliversCode(t *testing.T) {
	hub, sender, fsm := newTestHub()

	got := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		code, err := hub.AskCode(context.Background(), 42)
		errs <- err
		got <- code
	}()

	require.Eventually(t, func() bool {
		return hub.ResolveCode(42, "12345")
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, <-errs)
	assert.Equal(t, "12345", <-got)
	assert.Equal(t, state.StateAwaitingCode, fsm.states[42])
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "login code")
}

func TestPromptHubPasswordPrompt(t *testing.T) {
	hub, _, fsm := newTestHub()

	got := make(chan string, 1)
	go func() {
		password, _ := hub.AskPassword(context.Background(), 42)
		got <- password
	}()

	require.Eventually(t, func() bool {
		return hub.ResolvePassword(42, "hunter2")
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "hunter2", <-got)
	assert.Equal(t, state.StateAwaitingPassword, fsm.states[42])
}

func TestPromptHubResolveWithoutAsk(t *testing.T) {
	hub, _, _ := newTestHub()

	assert.False(t, hub.ResolveCode(42, "12345"))
	assert.False(t, hub.ResolvePassword(42, "pw"))
}

func TestPromptHubCanceledContext(t *testing.T) {
	hub, _, _ := newTestHub()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := hub.AskCode(ctx, 42)
	assert.ErrorIs(t, err, context.Canceled)

	// The waiter is gone, so a late reply is rejected.
	assert.False(t, hub.ResolveCode(42, "12345"))
}

func TestPromptHubRequiresBoundSender(t *testing.T) {
	hub := NewPromptHub(newStubFSM(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := hub.AskCode(context.Background(), 42)
	assert.Error(t, err)
}

func TestCommandNameStripsArgsAndMention(t *testing.T) {
	assert.Equal(t, "/approve", commandName("/approve 12345 1w"))
	assert.Equal(t, "/toggle", commandName("/toggle@aurafarmbot"))
	assert.Equal(t, "/ping", commandName("/ping"))
}
