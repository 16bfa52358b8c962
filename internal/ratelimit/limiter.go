package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrLimitExceeded reports that the key used up its window.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// Result describes one rate-limit decision.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter decides whether a keyed request fits inside a sliding window of
// the given size.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
