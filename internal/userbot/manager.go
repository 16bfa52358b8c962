package userbot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	apperrors "github.com/aurafarm/farm-bot/internal/errors"
	"github.com/aurafarm/farm-bot/internal/farm"
	"github.com/aurafarm/farm-bot/internal/repository"
	"github.com/aurafarm/farm-bot/pkg/config"
)

// Manager owns one MTProto client per logged-in user. Clients run until the
// user logs out, the connection dies, or the process shuts down.
type Manager struct {
	cfg      config.GameConfig
	sessions repository.SessionRepository
	engine   *farm.Engine
	prompts  Prompter
	notifier farm.Notifier
	log      *slog.Logger
	zap      *zap.Logger

	mu      sync.Mutex
	clients map[int64]*Client
}

// NewManager creates the userbot manager.
func NewManager(
	cfg config.GameConfig,
	sessions repository.SessionRepository,
	engine *farm.Engine,
	prompts Prompter,
	notifier farm.Notifier,
	log *slog.Logger,
	zapLog *zap.Logger,
) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if zapLog == nil {
		zapLog = zap.NewNop()
	}

	return &Manager{
		cfg:      cfg,
		sessions: sessions,
		engine:   engine,
		prompts:  prompts,
		notifier: notifier,
		log:      log,
		zap:      zapLog,
		clients:  make(map[int64]*Client),
	}
}

// Client tracks one user's running MTProto connection.
type Client struct {
	userID int64
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	api    *tg.Client
	runner *farm.Runner
}

func (c *Client) setReady(api *tg.Client, runner *farm.Runner) {
	c.mu.Lock()
	c.api = api
	c.runner = runner
	c.mu.Unlock()
}

// Runner returns the farming runner, or nil while login is still in flight.
func (c *Client) Runner() *farm.Runner {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runner
}

func (c *Client) apiSnapshot() *tg.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.api
}

// Start connects a user's client and begins the login flow. The phone may be
// empty when a stored session is being restored; the authenticator is only
// consulted when the session is missing or invalid.
func (m *Manager) Start(ctx context.Context, userID int64, phone string) error {
	m.mu.Lock()
	if _, ok := m.clients[userID]; ok {
		m.mu.Unlock()
		return apperrors.NewLoginError("a session for this account is already running", nil)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := &Client{
		userID: userID,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.clients[userID] = c
	m.mu.Unlock()

	go m.run(runCtx, c, phone)
	return nil
}

// Restore starts clients for every user with a stored session blob.
func (m *Manager) Restore(ctx context.Context) {
	ids, err := m.sessions.UserIDs(ctx)
	if err != nil {
		m.log.Error("failed to list stored sessions", slog.Any("error", err))
		return
	}

	for _, id := range ids {
		if err := m.Start(ctx, id, ""); err != nil {
			m.log.Error("failed to restore session",
				slog.Int64("user_id", id), slog.Any("error", err))
		}
	}

	if len(ids) > 0 {
		m.log.Info("restoring stored sessions", slog.Int("count", len(ids)))
	}
}

// Running reports whether the user has a live client.
func (m *Manager) Running(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.clients[userID]
	return ok
}

// Runner returns the user's farming runner, or nil when the user has no live
// connected client.
func (m *Manager) Runner(userID int64) *farm.Runner {
	m.mu.Lock()
	c, ok := m.clients[userID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return c.Runner()
}

// Stop tears the user's client down without revoking the stored session. The
// disconnect is fire and forget.
func (m *Manager) Stop(userID int64) {
	m.mu.Lock()
	c, ok := m.clients[userID]
	m.mu.Unlock()
	if ok {
		c.cancel()
	}
}

// Logout revokes the Telegram authorization, drops the stored session blob
// and tears the client down. The remote logout is best effort; a dead
// connection must not block the command.
func (m *Manager) Logout(ctx context.Context, userID int64) error {
	m.mu.Lock()
	c, ok := m.clients[userID]
	m.mu.Unlock()

	if ok {
		go func() {
			logoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if api := c.apiSnapshot(); api != nil {
				if _, err := api.AuthLogOut(logoutCtx); err != nil {
					m.log.Warn("remote logout failed",
						slog.Int64("user_id", userID), slog.Any("error", err))
				}
			}
			c.cancel()
		}()
	}

	if err := m.sessions.Delete(ctx, userID); err != nil {
		return apperrors.NewDatabaseError(err)
	}
	return nil
}

// Shutdown stops every client and waits for them to wind down or for ctx to
// expire.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.Unlock()

	for _, c := range clients {
		c.cancel()
	}
	for _, c := range clients {
		select {
		case <-c.done:
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) remove(userID int64) {
	m.mu.Lock()
	delete(m.clients, userID)
	m.mu.Unlock()
}

func (m *Manager) notify(ctx context.Context, userID int64, text string) {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(ctx, userID, text)
}

func (m *Manager) run(ctx context.Context, c *Client, phone string) {
	defer close(c.done)
	defer m.remove(c.userID)

	log := m.log.With(slog.Int64("user_id", c.userID))

	dispatcher := tg.NewUpdateDispatcher()
	client := telegram.NewClient(m.cfg.APIID, m.cfg.APIHash, telegram.Options{
		SessionStorage: newSessionStorage(c.userID, m.sessions),
		UpdateHandler:  dispatcher,
		Logger:         m.zap.With(zap.Int64("user_id", c.userID)),
	})

	err := client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(promptAuthenticator{
			userID:  c.userID,
			phone:   phone,
			prompts: m.prompts,
		}, auth.SendCodeOptions{})

		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return apperrors.NewLoginError("authorization failed", err)
		}

		api := tg.NewClient(client)
		channel := newGameChannel(api)

		peer, err := resolveGamePeer(ctx, api, m.cfg.BotUsername)
		if err != nil {
			return apperrors.NewTelegramError("resolve game bot", err)
		}
		channel.setPeer(peer)

		runner := m.engine.StartRunner(ctx, c.userID, channel)
		defer runner.Close()
		c.setReady(api, runner)

		dispatcher.OnNewMessage(func(_ context.Context, _ tg.Entities, u *tg.UpdateNewMessage) error {
			if msg, ok := u.Message.(*tg.Message); ok && fromGameBot(msg, m.cfg.BotID) {
				runner.Enqueue(adaptMessage(msg, false))
			}
			return nil
		})
		dispatcher.OnEditMessage(func(_ context.Context, _ tg.Entities, u *tg.UpdateEditMessage) error {
			if msg, ok := u.Message.(*tg.Message); ok && fromGameBot(msg, m.cfg.BotID) {
				runner.Enqueue(adaptMessage(msg, true))
			}
			return nil
		})

		log.Info("userbot connected")
		m.notify(ctx, c.userID, "✅ Logged in! Send /toggle to start farming.")

		return telegram.RunUntilCanceled(ctx, client)
	})

	if err != nil && ctx.Err() == nil {
		log.Error("userbot stopped", slog.Any("error", err))
		m.notify(context.Background(), c.userID,
			"⚠️ Your game session disconnected. Use /setup to log in again.")
		return
	}
	log.Info("userbot shut down")
}
