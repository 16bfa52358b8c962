package farm

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/aurafarm/farm-bot/pkg/metrics"
)

// Pacing bundles the timing knobs of the farming loop. Jitter is applied
// before every outgoing action so the automation never acts on a fixed
// interval.
type Pacing struct {
	JitterMin       time.Duration
	JitterMax       time.Duration
	ExploreCooldown time.Duration
	AckTimeout      time.Duration
}

// DefaultPacing matches the game's tolerated cadence.
func DefaultPacing() Pacing {
	return Pacing{
		JitterMin:       200 * time.Millisecond,
		JitterMax:       350 * time.Millisecond,
		ExploreCooldown: time.Second,
		AckTimeout:      5 * time.Second,
	}
}

// Engine owns the session registry and the shared collaborators, and spawns
// one Runner per authenticated user channel.
type Engine struct {
	registry *Registry
	notifier Notifier
	settings SettingsSource
	log      *slog.Logger

	mu     sync.RWMutex
	pacing Pacing
}

// NewEngine builds the farming engine.
func NewEngine(registry *Registry, notifier Notifier, settings SettingsSource, log *slog.Logger, pacing Pacing) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if registry == nil {
		registry = NewRegistry()
	}

	return &Engine{
		registry: registry,
		notifier: notifier,
		settings: settings,
		log:      log,
		pacing:   pacing,
	}
}

// Registry exposes the session registry for the control surface.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// SetPacing replaces the pacing knobs. Used by config hot reload.
func (e *Engine) SetPacing(p Pacing) {
	e.mu.Lock()
	e.pacing = p
	e.mu.Unlock()
}

func (e *Engine) pacingSnapshot() Pacing {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pacing
}

func (e *Engine) notify(ctx context.Context, userID int64, text string) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(ctx, userID, text)
}

func (e *Engine) priceLimits(ctx context.Context, userID int64) (int, int) {
	if e.settings == nil {
		return 250, 500
	}
	return e.settings.PriceLimits(ctx, userID)
}

// Runner is the single consumer of one user's ordered game message stream.
// Messages for the same user are handled one at a time; runners for different
// users interleave freely.
type Runner struct {
	engine  *Engine
	session *Session
	channel Channel
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan Message
	done   chan struct{}
}

// StartRunner creates the user's session (farming disabled) and starts its
// consumer goroutine.
func (e *Engine) StartRunner(ctx context.Context, userID int64, channel Channel) *Runner {
	session := e.registry.GetOrCreate(userID)

	runnerCtx, cancel := context.WithCancel(ctx)
	r := &Runner{
		engine:  e,
		session: session,
		channel: channel,
		log:     e.log.With(slog.Int64("user_id", userID)),
		ctx:     runnerCtx,
		cancel:  cancel,
		queue:   make(chan Message, 128),
		done:    make(chan struct{}),
	}

	go r.loop()

	return r
}

// Session returns the runner's farming session.
func (r *Runner) Session() *Session {
	return r.session
}

// Enqueue hands a game message to the runner. The queue is bounded; if a user
// floods faster than handlers drain, the newest message is dropped rather
// than blocking the update pump.
func (r *Runner) Enqueue(msg Message) {
	select {
	case r.queue <- msg:
	default:
		r.log.Warn("runner queue full, dropping message", slog.Int("message_id", msg.ID))
	}
}

// Close stops the consumer and removes the session from memory. It does not
// wait for an in-flight handler to finish.
func (r *Runner) Close() {
	r.cancel()
	r.engine.registry.Remove(r.session.UserID)
}

// KickExplore starts one explore cycle, used when the user switches farming
// on.
func (r *Runner) KickExplore() {
	r.spawnExplore(r.ctx)
}

// spawnExplore runs one explore cycle off the consumer goroutine. The cycle
// blocks in WaitAck until the game answers, and that answer arrives as a
// queued message which only the consumer can classify, so the cycle must
// never run on the consumer itself.
func (r *Runner) spawnExplore(ctx context.Context) {
	go r.SendExploreWithTimeout(ctx, true)
}

func (r *Runner) loop() {
	defer close(r.done)

	for {
		select {
		case <-r.ctx.Done():
			return
		case msg := <-r.queue:
			r.handle(r.ctx, msg)
		}
	}
}

// handle runs the ordered predicate chain for one message. A fault in one
// user's handler must never reach the other runners.
func (r *Runner) handle(ctx context.Context, msg Message) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in game message handler",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	s := r.session
	text := strings.ToLower(msg.Text)

	category := Classify(msg.Text)
	metrics.RecordClassification(string(category))
	if s.Debug() {
		r.log.Info("game message",
			slog.Int("message_id", msg.ID),
			slog.Bool("edited", msg.Edited),
			slog.String("category", string(category)),
			slog.String("text", msg.Text),
		)
	}

	if IsEssenceFound(text) {
		s.SetEnabled(false)
		r.engine.notify(ctx, s.UserID, "🧪 Farming paused - Essences found!\n\n"+msg.Text)
		return
	}

	if IsSpecialRarity(text) {
		// A special rarity pauses farming no matter what else is going on,
		// including an outstanding captcha.
		s.SetEnabled(false)
		r.engine.notify(ctx, s.UserID, "🐾 Farming paused - a special rarity pet appeared!\n\n"+msg.Text)
		return
	}

	captchaWasActive := s.CaptchaActive()

	s.SetInCombat(IsCombatState(text))

	if IsCaptcha(text) {
		if r.handleFight(ctx, msg, text, captchaWasActive) {
			return
		}
		s.SetCaptchaActive(true)
		s.SignalAck()
		metrics.RecordCaptcha()
		r.engine.notify(ctx, s.UserID, "❗ CAPTCHA detected!\n\n"+msg.Text)
		return
	}
	s.SetCaptchaActive(false)

	if captchaWasActive {
		// The challenge was outstanding when this message arrived; whatever
		// resolved it was manual. Flags are updated, actions wait for the
		// next message.
		return
	}

	if IsExploreAck(text) {
		s.SignalAck()
		r.handleEngageButtons(ctx, msg, true)
	}

	if IsContinueExploring(text) && s.Enabled() && !s.InCombat() && !s.CaptchaActive() {
		r.spawnExplore(ctx)
	}

	if s.InCombat() {
		r.handleCombat(ctx, msg, text)
	} else if IsAlsoFound(text) {
		if s.MarkContinue(msg.ID) && s.Enabled() && !s.CaptchaActive() {
			r.spawnExplore(ctx)
		}
	}

	r.handleTrade(ctx, msg, text)
	r.handlePet(ctx, msg, text)
}

// SendExploreWithTimeout sends one explore command and waits for any game
// response to acknowledge it. On timeout it retries once with a bare explore;
// on a send failure it retries the whole sequence once when retryOnFail is
// set.
func (r *Runner) SendExploreWithTimeout(ctx context.Context, retryOnFail bool) {
	s := r.session
	if s.InCombat() || s.CaptchaActive() {
		r.log.Debug("skipping explore, combat or captcha active")
		return
	}

	p := r.engine.pacingSnapshot()
	if !r.jitterSleep(ctx) {
		return
	}
	if !s.Enabled() {
		return
	}

	s.ArmAck()

	sent, err := r.safeExplore(ctx)
	if err != nil {
		r.log.Error("failed to send explore", slog.Any("error", err))
		if retryOnFail {
			if !r.sleepRange(ctx, 300*time.Millisecond, 600*time.Millisecond) {
				return
			}
			r.SendExploreWithTimeout(ctx, false)
		}
		return
	}
	if !sent {
		return
	}

	if s.WaitAck(ctx, p.AckTimeout) {
		return
	}

	r.log.Warn("no response after explore, retrying once")
	if !s.Enabled() {
		return
	}
	if !r.sleepRange(ctx, 500*time.Millisecond, time.Second) {
		return
	}
	if _, err := r.safeExplore(ctx); err != nil {
		r.log.Error("explore retry failed", slog.Any("error", err))
	}
}

// safeExplore sends the explore command unless one went out within the
// cooldown window. It reports whether a command was actually sent.
func (r *Runner) safeExplore(ctx context.Context) (bool, error) {
	p := r.engine.pacingSnapshot()
	if !r.session.AllowExplore(time.Now(), p.ExploreCooldown) {
		return false, nil
	}

	if err := r.channel.Send(ctx, "/explore"); err != nil {
		return false, err
	}

	metrics.RecordExplore()
	r.log.Info("sent explore")
	return true, nil
}

// jitterSleep waits the configured jitter window. It reports false when ctx
// was canceled mid-sleep.
func (r *Runner) jitterSleep(ctx context.Context) bool {
	p := r.engine.pacingSnapshot()
	return r.sleepRange(ctx, p.JitterMin, p.JitterMax)
}

func (r *Runner) sleepRange(ctx context.Context, min, max time.Duration) bool {
	return sleepCtx(ctx, jitterDuration(min, max))
}

func jitterDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
