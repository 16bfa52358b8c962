package farm

import (
	"context"
	"sync"
	"time"

	"github.com/aurafarm/farm-bot/pkg/metrics"
)

// Session holds the farming state for one logged-in user. All flag access is
// guarded; handler goroutines for other users touch their own sessions only,
// but toggles arrive from the control bot concurrently.
type Session struct {
	UserID int64

	mu                 sync.Mutex
	enabled            bool
	debug              bool
	inCombatOrCapture  bool
	captchaActive      bool
	lastProcessedMsgID int
	lastContinueMsgID  int
	lastExploreAt      time.Time
	exploreAck         chan struct{}
}

// NewSession creates a session with farming disabled.
func NewSession(userID int64) *Session {
	return &Session{UserID: userID}
}

// Enabled reports whether farming actions may fire.
func (s *Session) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetEnabled flips the farming toggle.
func (s *Session) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
}

// Debug reports whether verbose per-message logging is on for this user.
func (s *Session) Debug() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debug
}

// SetDebug flips per-user verbose logging.
func (s *Session) SetDebug(debug bool) {
	s.mu.Lock()
	s.debug = debug
	s.mu.Unlock()
}

// InCombat reports whether a combat or capture is in progress.
func (s *Session) InCombat() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inCombatOrCapture
}

// SetInCombat records the combat flag derived from the latest message.
func (s *Session) SetInCombat(inCombat bool) {
	s.mu.Lock()
	s.inCombatOrCapture = inCombat
	s.mu.Unlock()
}

// CaptchaActive reports whether an unresolved CAPTCHA is outstanding.
func (s *Session) CaptchaActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captchaActive
}

// SetCaptchaActive records the CAPTCHA flag derived from the latest message.
func (s *Session) SetCaptchaActive(active bool) {
	s.mu.Lock()
	s.captchaActive = active
	s.mu.Unlock()
}

// MarkProcessed records msgID as acted upon. When preventRepeat is set and the
// id matches the last processed one, it reports false so the caller skips the
// duplicate delivery of an edited message.
func (s *Session) MarkProcessed(msgID int, preventRepeat bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if preventRepeat && msgID == s.lastProcessedMsgID {
		return false
	}
	s.lastProcessedMsgID = msgID
	return true
}

// MarkContinue records msgID as having already triggered a continue-explore.
// It reports false when this id already fired, which happens when the edited
// variant of the same loot message is redelivered.
func (s *Session) MarkContinue(msgID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msgID == s.lastContinueMsgID {
		return false
	}
	s.lastContinueMsgID = msgID
	return true
}

// ArmAck resets the explore acknowledgement slot. Must be called immediately
// before the explore command is sent.
func (s *Session) ArmAck() {
	s.mu.Lock()
	s.exploreAck = make(chan struct{})
	s.mu.Unlock()
}

// SignalAck marks the outstanding explore as acknowledged. Safe to call when
// no wait is armed and idempotent for repeated responses.
func (s *Session) SignalAck() {
	s.mu.Lock()
	ack := s.exploreAck
	s.exploreAck = nil
	s.mu.Unlock()

	if ack != nil {
		close(ack)
	}
}

// WaitAck blocks until the explore is acknowledged, the timeout elapses, or
// ctx is canceled. It reports whether the acknowledgement arrived.
func (s *Session) WaitAck(ctx context.Context, timeout time.Duration) bool {
	s.mu.Lock()
	ack := s.exploreAck
	s.mu.Unlock()

	if ack == nil {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ack:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// AllowExplore enforces the minimum spacing between explore commands and, when
// allowed, records now as the last send time.
func (s *Session) AllowExplore(now time.Time, cooldown time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastExploreAt) <= cooldown {
		return false
	}
	s.lastExploreAt = now
	return true
}

// Registry owns the farming sessions keyed by user id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int64]*Session)}
}

// Get returns the session for the user, or nil when none exists.
func (r *Registry) Get(userID int64) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[userID]
}

// GetOrCreate returns the session for the user, creating it on first use.
func (r *Registry) GetOrCreate(userID int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[userID]; ok {
		return s
	}
	s := NewSession(userID)
	r.sessions[userID] = s
	r.publishGauges()
	return s
}

// Remove drops the session from memory on logout. Durable per-user settings
// are untouched.
func (r *Registry) Remove(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
	r.publishGauges()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns a copy of the live sessions for safe iteration.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// publishGauges is called with r.mu held.
func (r *Registry) publishGauges() {
	metrics.SetFarmingSessions(len(r.sessions))

	enabled := 0
	for _, s := range r.sessions {
		if s.Enabled() {
			enabled++
		}
	}
	metrics.SetFarmingEnabled(enabled)
}
