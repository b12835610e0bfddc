package game

import (
	"github.com/google/uuid"

	"github.com/kernel-games/popcorn/internal/models"
)

// Hands tracks each participant's drawn-but-unplayed cards for one session.
type Hands struct {
	byUser map[uuid.UUID][]*models.Card
}

// NewHands returns an empty hand collection.
func NewHands() *Hands {
	return &Hands{byUser: make(map[uuid.UUID][]*models.Card)}
}

// Add places a drawn card into the user's hand.
func (h *Hands) Add(userID uuid.UUID, card *models.Card) {
	h.byUser[userID] = append(h.byUser[userID], card)
}

// Remove takes the card out of the user's hand, returning it. Fails with
// ErrCardNotFound if the user does not hold it.
func (h *Hands) Remove(userID, cardID uuid.UUID) (*models.Card, error) {
	cards := h.byUser[userID]
	for i, c := range cards {
		if c.ID == cardID {
			h.byUser[userID] = append(cards[:i], cards[i+1:]...)
			return c, nil
		}
	}
	return nil, ErrCardNotFound
}

// ListFor returns the user's current hand. The returned slice is a copy.
func (h *Hands) ListFor(userID uuid.UUID) []*models.Card {
	cards := h.byUser[userID]
	out := make([]*models.Card, len(cards))
	copy(out, cards)
	return out
}

// Snapshot returns a detached copy of every hand keyed by user, for
// persistence. Map and slices are fresh; the cards themselves are immutable.
func (h *Hands) Snapshot() map[uuid.UUID][]*models.Card {
	out := make(map[uuid.UUID][]*models.Card, len(h.byUser))
	for id, cards := range h.byUser {
		out[id] = append([]*models.Card(nil), cards...)
	}
	return out
}
