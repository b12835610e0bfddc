package game

import (
	"math/rand"

	"github.com/kernel-games/popcorn/internal/catalog"
	"github.com/kernel-games/popcorn/internal/models"
)

// DeckCard is one slot in a session's deck: a catalog card reference with a
// draw-order placement and a played flag. Placements are dense from 1..N and
// never change after the deck is built.
type DeckCard struct {
	Card      *models.Card `json:"card"`
	Placement int          `json:"placement"`
	Played    bool         `json:"played"`
}

// Deck is the per-session ordered card queue. Cards are drawn from the lowest
// unplayed placement (FIFO); since draws always flip the played flag in
// placement order, a cursor gives O(1) pops.
type Deck struct {
	cards []*DeckCard
	next  int
}

// NewDeck populates size slots with cards chosen uniformly at random from the
// catalog (repeats allowed). Fails with ErrEmptyCatalog if no cards exist.
func NewDeck(cat *catalog.Catalog, size int, rng *rand.Rand) (*Deck, error) {
	if cat.Len() == 0 {
		return nil, ErrEmptyCatalog
	}
	d := &Deck{cards: make([]*DeckCard, size)}
	for i := 0; i < size; i++ {
		d.cards[i] = &DeckCard{
			Card:      cat.RandomCard(rng),
			Placement: i + 1,
		}
	}
	return d, nil
}

// CardsLeft returns the count of unplayed entries.
func (d *Deck) CardsLeft() int { return len(d.cards) - d.next }

// Cards exposes the live entry list. Callers must hold the session lock and
// must not retain the slice.
func (d *Deck) Cards() []*DeckCard { return d.cards }

// Snapshot returns detached copies of every entry for persistence. The card
// pointers inside are immutable catalog entries, safe to share.
func (d *Deck) Snapshot() []DeckCard {
	out := make([]DeckCard, len(d.cards))
	for i, dc := range d.cards {
		out[i] = *dc
	}
	return out
}

// Draw pops the earliest unplayed card with probability chance/100, marking
// it played. Returns nil when the roll fails or the deck is exhausted.
func (d *Deck) Draw(chance int, rng *rand.Rand) *models.Card {
	if d.CardsLeft() == 0 {
		return nil
	}
	if rng.Intn(100) >= chance {
		return nil
	}
	dc := d.cards[d.next]
	dc.Played = true
	d.next++
	return dc.Card
}
