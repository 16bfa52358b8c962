package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is the in-process fallback used when Redis is unreachable.
// State is per instance, so limits reset on restart.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter returns an in-memory sliding-window limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string][]time.Time)}
}

// Check enforces the limit for the key, admitting the request when it fits.
func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := time.Now()
	windowStart := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	reqs := trimBefore(m.buckets[key], windowStart)

	allowed := len(reqs) < limit
	if allowed {
		reqs = append(reqs, now)
	}
	m.buckets[key] = reqs

	remaining := limit - len(reqs)
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{Allowed: allowed, Remaining: remaining, ResetAt: now.Add(window)}
	if !allowed {
		return result, ErrLimitExceeded
	}
	return result, nil
}

// Cleanup drops buckets whose newest entry is older than maxAge.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, reqs := range m.buckets {
		if len(reqs) == 0 || reqs[len(reqs)-1].Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}

func trimBefore(reqs []time.Time, windowStart time.Time) []time.Time {
	first := 0
	for first < len(reqs) && reqs[first].Before(windowStart) {
		first++
	}
	if first == 0 {
		return reqs
	}

	copy(reqs, reqs[first:])
	return reqs[:len(reqs)-first]
}
