package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"
	tele "gopkg.in/telebot.v3"

	"github.com/aurafarm/farm-bot/internal/domain"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	args := m.Called(to, what)
	msg, _ := args.Get(0).(*tele.Message)
	return msg, args.Error(1)
}

type stubSettings struct {
	settings *domain.UserSettings
	err      error
}

func (s *stubSettings) Get(context.Context, int64) (*domain.UserSettings, error) {
	return s.settings, s.err
}

func (s *stubSettings) SetLimits(context.Context, int64, int, int) error  { return nil }
func (s *stubSettings) SetGroup(context.Context, int64, int64) error      { return nil }
func (s *stubSettings) SetGroupNoti(context.Context, int64, bool) error   { return nil }
func (s *stubSettings) PriceLimits(context.Context, int64) (int, int)     { return 250, 500 }

func testNotifier(sender Sender, settings *stubSettings) *Notifier {
	return New(sender, settings, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNotifyDirectByDefault(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", tele.ChatID(42), "hello").Return(&tele.Message{}, nil).Once()

	n := testNotifier(sender, &stubSettings{settings: &domain.UserSettings{UserID: 42}})
	n.Notify(context.Background(), 42, "hello")

	sender.AssertExpectations(t)
}

func TestNotifyPrefersGroup(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", tele.ChatID(-100555), "loot!").Return(&tele.Message{}, nil).Once()

	n := testNotifier(sender, &stubSettings{settings: &domain.UserSettings{
		UserID: 42, GroupNoti: true, GroupID: -100555,
	}})
	n.Notify(context.Background(), 42, "loot!")

	sender.AssertExpectations(t)
	sender.AssertNotCalled(t, "Send", tele.ChatID(42), "loot!")
}

func TestNotifyFallsBackToDirectOnGroupFailure(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", tele.ChatID(-100555), "alert").Return(nil, errors.New("kicked")).Once()
	sender.On("Send", tele.ChatID(42), "alert").Return(&tele.Message{}, nil).Once()

	n := testNotifier(sender, &stubSettings{settings: &domain.UserSettings{
		UserID: 42, GroupNoti: true, GroupID: -100555,
	}})
	n.Notify(context.Background(), 42, "alert")

	sender.AssertExpectations(t)
}

func TestNotifySurvivesSettingsFailure(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", tele.ChatID(42), "ping").Return(&tele.Message{}, nil).Once()

	n := testNotifier(sender, &stubSettings{err: errors.New("redis down")})
	n.Notify(context.Background(), 42, "ping")

	sender.AssertExpectations(t)
}
