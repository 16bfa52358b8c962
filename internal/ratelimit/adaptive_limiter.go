package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	limiterChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "farmbot_ratelimit_checks_total",
		Help: "Rate limit checks by backend and result.",
	}, []string{"backend", "result"})

	limiterRedisErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "farmbot_ratelimit_redis_errors_total",
		Help: "Redis errors encountered by the rate limiter.",
	})
)

// AdaptiveLimiter delegates to a primary (Redis) limiter and falls back to a
// stricter in-memory limiter when the primary fails.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	log      *slog.Logger
}

// NewAdaptiveLimiter composes the primary and fallback limiters.
func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) Limiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{primary: primary, fallback: fallback, log: log}
}

// Check evaluates the limit on the primary backend. When the primary errors,
// the fallback runs with half the limit.
func (a *AdaptiveLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	result, err := a.primary.Check(ctx, key, limit, window)
	if err == nil {
		limiterChecks.WithLabelValues("redis", resultLabel(result.Allowed)).Inc()
		if !result.Allowed {
			return result, ErrLimitExceeded
		}
		return result, nil
	}

	limiterRedisErrors.Inc()
	a.log.Warn("redis limiter failed, falling back to in-memory",
		slog.String("key", key), slog.Any("error", err))

	fallbackLimit := limit / 2
	if fallbackLimit <= 0 {
		fallbackLimit = 1
	}

	result, err = a.fallback.Check(ctx, key, fallbackLimit, window)
	if err != nil {
		return result, err
	}

	limiterChecks.WithLabelValues("fallback", resultLabel(result.Allowed)).Inc()
	if !result.Allowed {
		return result, ErrLimitExceeded
	}
	return result, nil
}

func resultLabel(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "rejected"
}
