package health

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"
	telebot "gopkg.in/telebot.v3"
)

// Checkable reports the health of a single component.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

type namedCheck struct {
	name  string
	check Checkable
}

// Checker probes registered components for the keep-alive endpoint.
// Components run in registration order.
type Checker struct {
	log    *slog.Logger
	checks []namedCheck
}

func NewChecker(log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{log: log}
}

func (c *Checker) AddCheck(name string, check Checkable) {
	if name == "" || check == nil {
		return
	}
	c.checks = append(c.checks, namedCheck{name: name, check: check})
}

// Check probes every component and reports "OK" or the failure text per name.
func (c *Checker) Check(ctx context.Context) map[string]string {
	results := make(map[string]string, len(c.checks))
	for _, nc := range c.checks {
		if err := nc.check.HealthCheck(ctx); err != nil {
			c.log.Error("health check failed",
				slog.String("component", nc.name), slog.Any("error", err))
			results[nc.name] = err.Error()
			continue
		}
		results[nc.name] = "OK"
	}
	return results
}

// Healthy reports whether every component passed.
func (c *Checker) Healthy(ctx context.Context) bool {
	for _, nc := range c.checks {
		if nc.check.HealthCheck(ctx) != nil {
			return false
		}
	}
	return true
}

// DBChecker verifies connectivity to PostgreSQL.
type DBChecker struct {
	db *sql.DB
}

func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

func (c *DBChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.db == nil {
		return sql.ErrConnDone
	}
	return c.db.PingContext(ctx)
}

// Pinger abstracts the subset of redis.Client used for health checks.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisChecker verifies connectivity to Redis.
type RedisChecker struct {
	pinger Pinger
}

func NewRedisChecker(pinger Pinger) *RedisChecker {
	return &RedisChecker{pinger: pinger}
}

func (c *RedisChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.pinger == nil {
		return redis.ErrClosed
	}
	return c.pinger.Ping(ctx).Err()
}

// TelegramChecker verifies the control bot finished its getMe handshake.
type TelegramChecker struct {
	bot *telebot.Bot
}

func NewTelegramChecker(bot *telebot.Bot) *TelegramChecker {
	return &TelegramChecker{bot: bot}
}

func (c *TelegramChecker) HealthCheck(_ context.Context) error {
	if c == nil || c.bot == nil || c.bot.Me == nil {
		return errors.New("telegram bot is not initialized")
	}
	return nil
}
