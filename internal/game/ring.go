package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/kernel-games/popcorn/internal/models"
)

// Ring is the circular turn order for one session. Participants live in an
// arena slice and link to each other by index, so the cycle involves no
// pointer ownership. Before Close the links form a simple chain ending at the
// last joined participant (Next == models.NoNext); Close links the last
// participant back to the first, completing the cycle.
type Ring struct {
	Participants []*models.Participant
	closed       bool
}

// NewRing returns an empty, open ring.
func NewRing() *Ring {
	return &Ring{}
}

// Closed reports whether the ring has been completed by Close.
func (r *Ring) Closed() bool { return r.closed }

// Find returns the participant for the given user, or nil.
func (r *Ring) Find(userID uuid.UUID) *models.Participant {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// FindByEmail returns the participant with the given email, or nil.
func (r *Ring) FindByEmail(email string) *models.Participant {
	for _, p := range r.Participants {
		if p.Email == email {
			return p
		}
	}
	return nil
}

// Join appends the user as the new last participant, linking the previous
// last to it. Fails with ErrAlreadyJoined if the user is already present and
// ErrAlreadyStarted once the ring is closed.
func (r *Ring) Join(user *models.User) (*models.Participant, error) {
	if r.closed {
		return nil, ErrAlreadyStarted
	}
	if r.Find(user.ID) != nil {
		return nil, ErrAlreadyJoined
	}
	p := &models.Participant{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Next:        models.NoNext,
	}
	if n := len(r.Participants); n > 0 {
		r.Participants[n-1].Next = n
	}
	r.Participants = append(r.Participants, p)
	return p, nil
}

// Close completes the cycle by linking the last joined participant back to
// the first. The earliest joiner still alive becomes the active participant
// (a participant can be kicked during the lobby). Called exactly once, at
// session start.
func (r *Ring) Close() error {
	if r.closed {
		return ErrAlreadyStarted
	}
	if len(r.Participants) == 0 {
		return ErrNoAlivePlayers
	}
	r.Participants[len(r.Participants)-1].Next = 0
	for _, p := range r.Participants {
		if p.Alive() {
			p.Active = true
			r.closed = true
			return nil
		}
	}
	return ErrNoAlivePlayers
}

// Active returns the currently active participant, or nil if none (only
// possible before Close or after the session is dead).
func (r *Ring) Active() *models.Participant {
	for _, p := range r.Participants {
		if p.Active {
			return p
		}
	}
	return nil
}

// AliveCount returns the number of non-eliminated participants.
func (r *Ring) AliveCount() int {
	n := 0
	for _, p := range r.Participants {
		if p.Alive() {
			n++
		}
	}
	return n
}

// Advance deactivates the current participant and activates the next alive
// one, skipping over eliminated participants. Fails with ErrNoAlivePlayers if
// every participant is dead.
func (r *Ring) Advance() (*models.Participant, error) {
	cur := r.Active()
	if cur == nil || !r.closed {
		return nil, ErrInvalidStateTransition
	}
	cur.Active = false

	// Walk the cycle at most once. The ring is dense, so len(Participants)
	// hops always brings us back to the start.
	idx := cur.Next
	for i := 0; i < len(r.Participants); i++ {
		p := r.Participants[idx]
		if p.Alive() {
			p.Active = true
			return p, nil
		}
		idx = p.Next
	}
	return nil, ErrNoAlivePlayers
}

// Eliminate marks the participant dead and, if it was the active one,
// advances the turn to the next alive participant. The participant stays in
// the arena so the cycle's links remain intact. Returns ErrNoAlivePlayers
// when the elimination leaves nobody alive.
func (r *Ring) Eliminate(p *models.Participant) error {
	if p.KilledAt == nil {
		now := time.Now()
		p.KilledAt = &now
	}
	if p.Active {
		if _, err := r.Advance(); err != nil {
			return err
		}
	}
	return nil
}
