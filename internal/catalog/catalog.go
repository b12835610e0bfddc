// Package catalog holds the shared read-only table of card definitions.
package catalog

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/kernel-games/popcorn/internal/models"
)

// Catalog is an immutable card table shared by all game sessions. Build it
// once at startup and never mutate it afterwards; it is safe for concurrent
// reads.
type Catalog struct {
	cards []*models.Card
	byID  map[uuid.UUID]*models.Card
}

// New builds a catalog from the given card definitions.
func New(cards []*models.Card) *Catalog {
	c := &Catalog{
		cards: cards,
		byID:  make(map[uuid.UUID]*models.Card, len(cards)),
	}
	for _, card := range cards {
		c.byID[card.ID] = card
	}
	return c
}

// Len returns the number of card definitions.
func (c *Catalog) Len() int { return len(c.cards) }

// Cards returns the underlying definitions. Callers must not mutate them.
func (c *Catalog) Cards() []*models.Card { return c.cards }

// Get looks up a card by ID.
func (c *Catalog) Get(id uuid.UUID) (*models.Card, bool) {
	card, ok := c.byID[id]
	return card, ok
}

// RandomCard picks one card uniformly at random, or nil if the catalog is
// empty. Rarity weights are intentionally ignored for now.
func (c *Catalog) RandomCard(rng *rand.Rand) *models.Card {
	if len(c.cards) == 0 {
		return nil
	}
	return c.cards[rng.Intn(len(c.cards))]
}

// DefaultCards returns the built-in card set, used to seed an empty cards
// table at provisioning time. IDs are generated fresh on each call.
func DefaultCards() []*models.Card {
	defs := []models.Card{
		{
			Name:        "Pass the Kernel",
			Description: "Ends your turn without you having to press the kernel.",
			Rarity:      40,
			Effect:      models.EffectSkip,
		},
		{
			Name:        "Pinch of Lucky Salt",
			Description: "Applies salt that increases your chance to draw a card with every click.",
			Rarity:      70,
			Effect:      models.EffectLuckyTurn,
		},
		{
			Name:        "Lucky Butter Waterfall",
			Description: "Applies butter that guarantees that you can draw a card with every click.",
			Rarity:      20,
			Effect:      models.EffectSuperLuckyTurn,
		},
		{
			Name:        "Burnt Rough Estimator",
			Description: "Roughly estimates till when the next burnt popcorn is.",
			Rarity:      70,
			Effect:      models.EffectBurntRoughEstimator,
		},
		{
			Name:        "Burnt Good Estimator",
			Description: "Estimates till when the next burnt popcorn is.",
			Rarity:      30,
			Effect:      models.EffectBurntGoodEstimator,
		},
		{
			Name:        "Burnt Tracker",
			Description: "Gives you exactly how many clicks till the next burnt popcorn.",
			Rarity:      5,
			Effect:      models.EffectBurntTracker,
		},
		{
			Name:        "Shake the Kernels",
			Description: "Shakes up the burnt popcorn.",
			Rarity:      80,
			Effect:      models.EffectShuffle,
		},
		{
			Name:        "Delay the Burnt",
			Description: "Pushes the next burnt popcorn back a few clicks.",
			Rarity:      20,
			Effect:      models.EffectDelayTheBurnt,
		},
		{
			Name:        "Extended Delay the Burnt",
			Description: "Pushes the next burnt popcorn back as far as the kernels allow.",
			Rarity:      10,
			Effect:      models.EffectExtendedDelayTheBurnt,
		},
	}

	cards := make([]*models.Card, len(defs))
	for i := range defs {
		card := defs[i]
		card.ID = uuid.New()
		cards[i] = &card
	}
	return cards
}
