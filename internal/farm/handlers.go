package farm

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/aurafarm/farm-bot/pkg/metrics"
)

// handleEngageButtons clicks the first engage style button on an encounter
// message. Edited redeliveries of an already handled message are ignored when
// preventRepeat is set.
func (r *Runner) handleEngageButtons(ctx context.Context, msg Message, preventRepeat bool) {
	s := r.session
	if !s.Enabled() {
		return
	}
	if !s.MarkProcessed(msg.ID, preventRepeat) {
		r.log.Debug("already engaged on this message", slog.Int("message_id", msg.ID))
		return
	}
	if len(msg.Buttons) == 0 {
		return
	}

	for _, row := range msg.Buttons {
		for _, btn := range row {
			if !IsEngageLabel(btn.Label) {
				continue
			}
			if !r.jitterSleep(ctx) {
				return
			}
			if err := r.channel.Click(ctx, msg.ID, btn.Data); err != nil {
				r.log.Error("failed to click engage button", slog.Any("error", err))
				return
			}
			metrics.RecordClick("engage")
			r.log.Info("clicked engage button", slog.String("label", btn.Label))
			return
		}
	}
}

// handleCombat clicks through an active fight. Attack confirmations and loot
// drops keep the primary action going; a stalled battle status falls through
// to the secondary row.
func (r *Runner) handleCombat(ctx context.Context, msg Message, text string) {
	s := r.session
	if !s.Enabled() || s.CaptchaActive() {
		return
	}

	row, col := -1, -1
	switch {
	case strings.Contains(text, "dealt") || strings.Contains(text, "blocked"):
		row, col = 0, 0
	case HasLootItem(text):
		row, col = 1, 0
	case strings.Contains(text, "battle status") || strings.Contains(text, "dizzy"):
		row, col = 1, 1
	default:
		return
	}

	btn, ok := msg.ButtonAt(row, col)
	if !ok {
		return
	}
	if !r.jitterSleep(ctx) {
		return
	}
	if err := r.channel.Click(ctx, msg.ID, btn.Data); err != nil {
		r.log.Error("failed to click combat button",
			slog.Int("row", row), slog.Int("col", col), slog.Any("error", err))
		return
	}
	metrics.RecordClick("combat")
}

// handleTrade walks the trader flow: open the offer list, then accept the
// offer when its price is within the user's limits, otherwise move on.
func (r *Runner) handleTrade(ctx context.Context, msg Message, text string) {
	s := r.session
	if !s.Enabled() {
		return
	}

	if strings.Contains(text, "successfully traded with trader") {
		if !r.jitterSleep(ctx) {
			return
		}
		if _, err := r.safeExplore(ctx); err != nil {
			r.log.Error("failed to explore after trade", slog.Any("error", err))
		}
		return
	}

	if strings.Contains(text, "trader") {
		for _, row := range msg.Buttons {
			for _, btn := range row {
				if !strings.Contains(strings.ToLower(btn.Label), "check out offers") {
					continue
				}
				if !r.sleepRange(ctx, 700*time.Millisecond, 900*time.Millisecond) {
					return
				}
				if err := r.channel.Click(ctx, msg.ID, btn.Data); err != nil {
					r.log.Error("failed to open trader offers", slog.Any("error", err))
					return
				}
				metrics.RecordClick("trade")
				return
			}
		}
	}

	if !containsAny(text, offerPhrases) {
		return
	}

	pearlPrice, ticketPrice := ParseOfferPrices(text)
	pearlLimit, ticketLimit := r.engine.priceLimits(ctx, s.UserID)

	accept := (pearlPrice > 0 && pearlPrice <= pearlLimit) ||
		(ticketPrice > 0 && ticketPrice <= ticketLimit)

	if accept {
		btn, ok := msg.ButtonAt(0, 0)
		if !ok {
			return
		}
		if !r.jitterSleep(ctx) {
			return
		}
		if err := r.channel.Click(ctx, msg.ID, btn.Data); err != nil {
			r.log.Error("failed to accept trade offer", slog.Any("error", err))
			return
		}
		metrics.RecordTrade("accepted")
		r.log.Info("accepted trade offer",
			slog.Int("pearl_price", pearlPrice), slog.Int("ticket_price", ticketPrice))
		return
	}

	if !r.jitterSleep(ctx) {
		return
	}
	if _, err := r.safeExplore(ctx); err != nil {
		r.log.Error("failed to explore past trade offer", slog.Any("error", err))
		return
	}
	metrics.RecordTrade("declined")
	r.log.Info("declined trade offer",
		slog.Int("pearl_price", pearlPrice), slog.Int("ticket_price", ticketPrice))
}

// handleFight answers the mandatory pre-explore duel, the one challenge the
// loop resolves on its own. The fresh prompt notifies and sends a fight
// command; the edited victory version of the same message clears the
// challenge flag and resumes exploring. Reports whether it consumed the
// message.
func (r *Runner) handleFight(ctx context.Context, msg Message, text string, challengeWasOutstanding bool) bool {
	if !strings.Contains(text, "defeat before you can continue") {
		return false
	}

	s := r.session

	if msg.Edited {
		s.SetCaptchaActive(false)
		s.SignalAck()
		if !s.Enabled() {
			return true
		}
		if !r.jitterSleep(ctx) {
			return true
		}
		if _, err := r.safeExplore(ctx); err != nil {
			r.log.Error("failed to explore after duel", slog.Any("error", err))
		}
		return true
	}

	s.SetCaptchaActive(true)
	s.SignalAck()
	metrics.RecordCaptcha()
	r.engine.notify(ctx, s.UserID, "⚔️ Duel challenge!\n\n"+msg.Text)

	if challengeWasOutstanding || !s.Enabled() {
		return true
	}
	if !r.jitterSleep(ctx) {
		return true
	}
	if err := r.channel.Send(ctx, "/fight"); err != nil {
		r.log.Error("failed to send fight", slog.Any("error", err))
		return true
	}
	metrics.RecordClick("fight")
	return true
}

// handlePet reacts to pet encounters. Common finds are captured and low
// rarities are walked away from. Special rarities never reach here, the
// dispatch loop pauses farming on those before any handler runs.
func (r *Runner) handlePet(ctx context.Context, msg Message, text string) {
	s := r.session

	if !s.Enabled() {
		return
	}

	switch {
	case IsCapturePrompt(text):
		btn, ok := msg.ButtonAt(0, 1)
		if !ok {
			return
		}
		if !sleepCtx(ctx, 500*time.Millisecond) {
			return
		}
		if err := r.channel.Click(ctx, msg.ID, btn.Data); err != nil {
			r.log.Error("failed to click capture button", slog.Any("error", err))
			return
		}
		metrics.RecordClick("pet")

	case IsDiscardRarity(text):
		for _, row := range msg.Buttons {
			for _, btn := range row {
				if !strings.Contains(strings.ToLower(btn.Label), "walk away") {
					continue
				}
				if !sleepCtx(ctx, 500*time.Millisecond) {
					return
				}
				if err := r.channel.Click(ctx, msg.ID, btn.Data); err != nil {
					r.log.Error("failed to walk away from pet", slog.Any("error", err))
					return
				}
				metrics.RecordClick("pet")
				if !sleepCtx(ctx, 500*time.Millisecond) {
					return
				}
				if _, err := r.safeExplore(ctx); err != nil {
					r.log.Error("failed to explore after pet", slog.Any("error", err))
				}
				return
			}
		}
	}
}
