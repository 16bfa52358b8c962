// Package metrics exposes Prometheus instrumentation for the farm bot.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of control bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of control bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	messagesClassifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_messages_classified_total",
			Help: "Game messages seen by the dispatcher labeled by classifier category",
		},
		[]string{"category"},
	)
	exploresSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "explores_sent_total",
			Help: "Explore commands actually sent to the game bot",
		},
	)
	buttonsClickedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buttons_clicked_total",
			Help: "Inline game buttons clicked labeled by handler kind",
		},
		[]string{"kind"},
	)
	captchasDetectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "captchas_detected_total",
			Help: "CAPTCHA challenges detected across all users",
		},
	)
	tradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trades_total",
			Help: "Trade offers handled labeled by outcome",
		},
		[]string{"outcome"},
	)
	notificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Notifications delivered labeled by target (dm or group)",
		},
		[]string{"target"},
	)
	farmingSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "farming_sessions",
			Help: "Current number of logged-in farming sessions",
		},
	)
	farmingEnabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "farming_enabled_sessions",
			Help: "Current number of sessions with farming enabled",
		},
	)
)

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botCommandsTotal.WithLabelValues(command, status).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordClassification counts a classifier category hit.
func RecordClassification(category string) {
	if category == "" {
		category = "unrecognized"
	}
	messagesClassifiedTotal.WithLabelValues(category).Inc()
}

// RecordExplore counts an explore command sent to the game bot.
func RecordExplore() {
	exploresSentTotal.Inc()
}

// RecordClick counts a button click by handler kind (engage, combat, trade, pet).
func RecordClick(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	buttonsClickedTotal.WithLabelValues(kind).Inc()
}

// RecordCaptcha counts a detected CAPTCHA challenge.
func RecordCaptcha() {
	captchasDetectedTotal.Inc()
}

// RecordTrade counts a trade outcome (accepted, declined).
func RecordTrade(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	tradesTotal.WithLabelValues(outcome).Inc()
}

// RecordNotification counts a delivered notification by target.
func RecordNotification(target string) {
	if target == "" {
		target = "dm"
	}
	notificationsSentTotal.WithLabelValues(target).Inc()
}

// SetFarmingSessions updates the logged-in session gauge.
func SetFarmingSessions(n int) {
	farmingSessions.Set(float64(n))
}

// SetFarmingEnabled updates the enabled-session gauge.
func SetFarmingEnabled(n int) {
	farmingEnabled.Set(float64(n))
}
