package domain

import "time"

// Approval grants a user access to the farming service until ExpiresAt.
// A nil expiry means the approval is permanent.
type Approval struct {
	UserID    int64
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Permanent reports whether the approval never expires.
func (a Approval) Permanent() bool {
	return a.ExpiresAt == nil
}

// Expired reports whether the approval has lapsed at the given instant.
func (a Approval) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}

// UserSettings stores per-user farming preferences.
type UserSettings struct {
	UserID      int64
	PearlLimit  int
	TicketLimit int
	GroupNoti   bool
	GroupID     int64
}

// DefaultSettings returns the settings applied before a user customizes anything.
func DefaultSettings(userID int64, pearlLimit, ticketLimit int) *UserSettings {
	return &UserSettings{
		UserID:      userID,
		PearlLimit:  pearlLimit,
		TicketLimit: ticketLimit,
	}
}
