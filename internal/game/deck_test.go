// internal/game/deck_test.go
package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernel-games/popcorn/internal/catalog"
	"github.com/kernel-games/popcorn/internal/models"
)

func TestNewDeckRequiresCards(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := NewDeck(catalog.New(nil), 100, rng)
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestNewDeckPlacementsAreDense(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d, err := NewDeck(catalog.New(catalog.DefaultCards()), 25, rng)
	require.NoError(t, err)

	require.Len(t, d.Cards(), 25)
	assert.Equal(t, 25, d.CardsLeft())
	for i, dc := range d.Cards() {
		assert.Equal(t, i+1, dc.Placement)
		assert.False(t, dc.Played)
		assert.NotNil(t, dc.Card)
	}
}

func TestDeckDrawIsFIFO(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	d, err := NewDeck(catalog.New(catalog.DefaultCards()), 10, rng)
	require.NoError(t, err)

	// Chance 100 always succeeds (rng.Intn(100) < 100), so ten draws empty
	// the deck in placement order.
	for i := 0; i < 10; i++ {
		card := d.Draw(100, rng)
		require.NotNil(t, card, "draw %d", i+1)
		assert.Same(t, d.Cards()[i].Card, card)
		assert.True(t, d.Cards()[i].Played)
		assert.Equal(t, 10-i-1, d.CardsLeft())
	}

	assert.Nil(t, d.Draw(100, rng), "exhausted deck never yields a card")
	assert.Equal(t, 0, d.CardsLeft())
}

func TestDeckDrawRespectsChance(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	d, err := NewDeck(catalog.New(catalog.DefaultCards()), 10, rng)
	require.NoError(t, err)

	// Chance 0 never succeeds and leaves the deck untouched.
	for i := 0; i < 50; i++ {
		assert.Nil(t, d.Draw(0, rng))
	}
	assert.Equal(t, 10, d.CardsLeft())
}

func TestDeckDrawsOnlyCatalogCards(t *testing.T) {
	cat := catalog.New(catalog.DefaultCards())
	rng := rand.New(rand.NewSource(3))
	d, err := NewDeck(cat, 50, rng)
	require.NoError(t, err)

	for card := d.Draw(100, rng); card != nil; card = d.Draw(100, rng) {
		got, ok := cat.Get(card.ID)
		require.True(t, ok)
		assert.Same(t, got, card)
		_, err := models.ParseEffect(string(card.Effect))
		assert.NoError(t, err)
	}
}
