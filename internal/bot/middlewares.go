package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/aurafarm/farm-bot/internal/bot/handlers"
	"github.com/aurafarm/farm-bot/internal/bot/keyboard"
	apperrors "github.com/aurafarm/farm-bot/internal/errors"
	"github.com/aurafarm/farm-bot/internal/ratelimit"
	"github.com/aurafarm/farm-bot/pkg/metrics"
)

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *apperrors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler",
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
					)

					userMsg := "⚠️ Something went wrong. Please try again later."
					if errHandler != nil {
						appErr := apperrors.NewStateError(fmt.Sprintf("panic recovered: %v", r))
						if msg, _ := errHandler.Handle(context.Background(), appErr); msg != "" {
							userMsg = msg
						}
					}

					if c != nil {
						if sendErr := c.Send(userMsg); sendErr != nil {
							log.Error("failed to notify user about panic", slog.Any("error", sendErr))
						}
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging for handler failures.
func ErrorHandlingMiddleware(errHandler *apperrors.Handler) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			userMsg := "⚠️ Something went wrong. Please try again later."
			if errHandler != nil {
				if msg, _ := errHandler.Handle(context.Background(), err); msg != "" {
					userMsg = msg
				}
			}

			if c != nil {
				_ = c.Send(userMsg)
			}

			return nil
		}
	}
}

// LoggingMiddleware logs basic telemetry about incoming updates.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			userID := int64(0)
			if c != nil && c.Sender() != nil {
				userID = c.Sender().ID
			}

			action := ""
			if c != nil {
				if cb := c.Callback(); cb != nil {
					action = cb.Data
				} else {
					action = c.Text()
				}
			}

			err := next(c)
			log.Info("handled update",
				slog.Int64("user_id", userID),
				slog.String("action", action),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)

			return err
		}
	}
}

// MetricsMiddleware measures execution time and status for bot handlers.
func MetricsMiddleware(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RecordCommand(extractCommandName(c), status, time.Since(start))

		return err
	}
}

// RateLimitMiddleware enforces a per-user limit on incoming updates.
func RateLimitMiddleware(limiter ratelimit.Limiter, limit int, window time.Duration, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			if limiter == nil || c == nil || c.Sender() == nil {
				return next(c)
			}

			userID := c.Sender().ID
			key := fmt.Sprintf("user:%d", userID)

			result, err := limiter.Check(context.Background(), key, limit, window)
			if err != nil && result == nil {
				log.Warn("rate limiter error", slog.Int64("user_id", userID), slog.Any("error", err))
				return next(c)
			}

			if result != nil && !result.Allowed {
				log.Warn("rate limit exceeded", slog.Int64("user_id", userID))
				return c.Send("⏳ Too many requests. Try again in a moment.")
			}

			return next(c)
		}
	}
}

func extractCommandName(c telebot.Context) string {
	if c == nil {
		return "unknown"
	}

	if cb := c.Callback(); cb != nil && cb.Data != "" {
		data := strings.TrimPrefix(cb.Data, "\f")
		if action, _, err := keyboard.DecodeCallback(data); err == nil {
			return action
		}
		return data
	}

	if text := c.Text(); text != "" {
		return commandName(text)
	}

	return "unknown"
}
