package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a user's membership in one game session. The turn order is a
// singly-linked structure: Next holds the arena index of the following
// participant inside the session's ring, or NoNext before the ring is closed.
// Indices are used instead of pointers so the cycle has no ownership issues
// and can be persisted as-is.
type Participant struct {
	UserID      uuid.UUID  `json:"user_id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Active      bool       `json:"active"`
	KilledAt    *time.Time `json:"killed_at,omitempty"`
	Next        int        `json:"next"`

	Connected bool `json:"connected"`
}

// NoNext marks a participant with no outgoing link (the last joined, before
// the ring closes).
const NoNext = -1

// Alive reports whether the participant has not been eliminated.
func (p *Participant) Alive() bool { return p.KilledAt == nil }
