package state

import "time"

// State represents a finite-state machine state.
type State string

const (
	// StateIdle indicates that the bot is waiting for the next user command.
	StateIdle State = "idle"
	// StateAwaitingPhone indicates that the user is entering their phone number.
	StateAwaitingPhone State = "awaiting_phone"
	// StateAwaitingCode indicates that the user is entering the Telegram login code.
	StateAwaitingCode State = "awaiting_code"
	// StateAwaitingPassword indicates that the user is entering their 2FA password.
	StateAwaitingPassword State = "awaiting_password"
	// StateAwaitingGroupID indicates that the user is entering a notification group id.
	StateAwaitingGroupID State = "awaiting_group_id"
	// StateAwaitingPearlPrice indicates that the user is entering the pearl price limit.
	StateAwaitingPearlPrice State = "awaiting_pearl_price"
	// StateAwaitingTicketPrice indicates that the user is entering the ticket price limit.
	StateAwaitingTicketPrice State = "awaiting_ticket_price"
	// StateError indicates that the bot is in an error state and requires recovery.
	StateError State = "error"
)

// UserState captures the current FSM state for a Telegram user.
type UserState struct {
	UserID       int64                  `json:"user_id"`
	CurrentState State                  `json:"current_state"`
	Context      map[string]interface{} `json:"context"`
	UpdatedAt    time.Time              `json:"updated_at"`
}
