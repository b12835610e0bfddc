package models

import (
	"fmt"

	"github.com/google/uuid"
)

// Effect is the closed set of card effect kinds. Cards reference an effect by
// this identifier; the game engine resolves it through a static switch, so an
// unknown identifier is caught at load time rather than at play time.
type Effect string

const (
	EffectSkip                  Effect = "skip"
	EffectLuckyTurn             Effect = "lucky_turn"
	EffectSuperLuckyTurn        Effect = "super_lucky_turn"
	EffectBurntRoughEstimator   Effect = "burnt_rough_estimator"
	EffectBurntGoodEstimator    Effect = "burnt_good_estimator"
	EffectBurntTracker          Effect = "burnt_tracker"
	EffectShuffle               Effect = "shuffle"
	EffectDelayTheBurnt         Effect = "delay_the_burnt"
	EffectExtendedDelayTheBurnt Effect = "extended_delay_the_burnt"
)

// ParseEffect validates an effect identifier read from storage or a card file.
func ParseEffect(s string) (Effect, error) {
	switch e := Effect(s); e {
	case EffectSkip, EffectLuckyTurn, EffectSuperLuckyTurn,
		EffectBurntRoughEstimator, EffectBurntGoodEstimator, EffectBurntTracker,
		EffectShuffle, EffectDelayTheBurnt, EffectExtendedDelayTheBurnt:
		return e, nil
	default:
		return "", fmt.Errorf("unknown card effect %q", s)
	}
}

// Card is an immutable catalog entry. Rarity is a 1-99 weight reserved for
// weighted draws; the current draw is uniform.
type Card struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Rarity      int       `json:"rarity"`
	Effect      Effect    `json:"effect"`
	Image       string    `json:"image"`
}
