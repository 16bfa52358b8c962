// Package farm implements the per-user game automation core: classifying the
// game bot's messages, reacting with commands and button clicks, and keeping
// the explore loop running.
package farm

import "context"

// Button is one inline button attached to a game message. Data is the opaque
// callback payload the channel needs to click it.
type Button struct {
	Label string
	Data  []byte
}

// Message is a single game bot message delivered to the dispatcher. Edits of
// an existing message arrive as a second Message with the same ID and
// Edited set.
type Message struct {
	ID      int
	Text    string
	Buttons [][]Button
	Edited  bool
}

// ButtonAt returns the button at the given row and column, if present.
func (m Message) ButtonAt(row, col int) (Button, bool) {
	if row < 0 || row >= len(m.Buttons) {
		return Button{}, false
	}
	if col < 0 || col >= len(m.Buttons[row]) {
		return Button{}, false
	}
	return m.Buttons[row][col], true
}

// Channel is an authenticated messaging channel to the game bot for one user.
// The core never opens or authenticates it.
type Channel interface {
	// Send delivers a chat command such as "/explore" to the game bot.
	Send(ctx context.Context, command string) error
	// Click presses the inline button with the given callback payload on the
	// identified message.
	Click(ctx context.Context, messageID int, data []byte) error
}

// Notifier delivers out-of-band alerts (CAPTCHA, special rewards) to the user.
// Whether the text lands in a DM or a shared group is the implementation's call.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string)
}

// SettingsSource supplies the per-user trade price limits.
type SettingsSource interface {
	PriceLimits(ctx context.Context, userID int64) (pearlLimit, ticketLimit int)
}
