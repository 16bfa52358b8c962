package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/aurafarm/farm-bot/pkg/logger"
)

const fallbackUserMessage = "Something went wrong. Please try again later"

// Handler turns errors into a user-facing message while logging the full
// detail and forwarding severe ones to Sentry.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, sentryEnabled: sentryEnabled}
}

// Handle logs err and returns the message to show the user plus whether the
// failed operation may be retried.
func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var appErr *AppError
	if !errors.As(err, &appErr) || appErr == nil {
		h.log.LogAttrs(ctx, slog.LevelError, "unclassified error",
			h.withCorrelation(ctx,
				slog.String("error", err.Error()))...)
		if h.sentryEnabled {
			h.report(err)
		}
		return fallbackUserMessage, false
	}

	h.log.LogAttrs(ctx, slog.LevelError, "application error",
		h.withCorrelation(ctx,
			slog.String("code", appErr.Code),
			slog.String("message", appErr.Message),
			slog.String("severity", string(appErr.Severity)),
			slog.Bool("retryable", appErr.Retryable))...)

	if h.sentryEnabled && (appErr.Severity == SeverityCritical || appErr.Severity == SeverityHigh) {
		h.report(err)
	}

	msg := appErr.UserMessage
	if msg == "" {
		msg = fallbackUserMessage
	}
	return msg, appErr.Retryable
}

func (h *Handler) withCorrelation(ctx context.Context, attrs ...slog.Attr) []slog.Attr {
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}
	return attrs
}

func (h *Handler) report(err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		var appErr *AppError
		if errors.As(err, &appErr) && appErr != nil {
			if appErr.Code != "" {
				scope.SetTag("code", appErr.Code)
			}
			if appErr.Severity != "" {
				scope.SetTag("severity", string(appErr.Severity))
			}
		}
		sentry.CaptureException(err)
	})
}
