package game

import (
	"fmt"

	"github.com/kernel-games/popcorn/internal/models"
)

// resolveEffect applies the card effect to the session and returns the
// human-readable result message. Effects never fail: when a condition for the
// effect is not met the message describes the no-op and the state is left
// untouched. Assumes the session lock is held.
func (g *PopcornGame) resolveEffect(effect models.Effect) string {
	switch effect {
	case models.EffectSkip:
		// Same as ending the turn; the active participant is known alive.
		g.ring.Advance()
		return "You passed the Kernel!"

	case models.EffectLuckyTurn:
		g.ChanceToDraw = clampChance(g.ChanceToDraw + 5)
		return "A pinch of salt settles over the kernels... Lucky Turn!"

	case models.EffectSuperLuckyTurn:
		g.ChanceToDraw = 100
		return "Butter floods the bag... Super Lucky Turn!"

	case models.EffectBurntRoughEstimator:
		if g.UntilNextPop <= 10 {
			return "Less than 10 clicks until the next burnt kernel."
		}
		return "More than 10 clicks until the next burnt kernel."

	case models.EffectBurntGoodEstimator:
		switch u := g.UntilNextPop; {
		case u <= 5:
			return "Less than 5 clicks until the next burnt kernel."
		case u <= 10:
			return "Less than 10 clicks until the next burnt kernel."
		case u <= 15:
			return "Less than 15 clicks until the next burnt kernel."
		case u <= 20:
			return "Less than 20 clicks until the next burnt kernel."
		default:
			return "More than 20 clicks until the next burnt kernel."
		}

	case models.EffectBurntTracker:
		return fmt.Sprintf("There are %d clicks until the next burnt kernel.", g.UntilNextPop)

	case models.EffectShuffle:
		r := g.deck.CardsLeft()
		if r < 1 {
			r = 1
		}
		g.UntilNextPop = 1 + g.rng.Intn(r)
		return "The kernels have been shaked up!"

	case models.EffectDelayTheBurnt:
		if g.deck.CardsLeft() > 5 {
			g.UntilNextPop += 5
			return "The burnt kernel has been delayed by 5 clicks!"
		}
		return "Too few kernels remain to delay the burnt one."

	case models.EffectExtendedDelayTheBurnt:
		switch r := g.deck.CardsLeft(); {
		case r > 20:
			g.UntilNextPop += 20
			return "The burnt kernel has been delayed by 20 clicks!"
		case r > 15:
			g.UntilNextPop += 15
			return "The burnt kernel has been delayed by 15 clicks!"
		case r > 10:
			g.UntilNextPop += 10
			return "The burnt kernel has been delayed by 10 clicks!"
		case r > 5:
			g.UntilNextPop += 5
			return "The burnt kernel has been delayed by 5 clicks!"
		default:
			return "Too few kernels remain to delay the burnt one."
		}

	default:
		return "Nothing happens."
	}
}

// clampChance keeps the draw probability within its 1-100 invariant.
func clampChance(p int) int {
	if p < 1 {
		return 1
	}
	if p > 100 {
		return 100
	}
	return p
}
