package game

import "github.com/google/uuid"

// GameEventType is an enum-like type for events broadcast to session
// subscribers.
type GameEventType string

const (
	EventStatus       GameEventType = "status"
	EventStart        GameEventType = "start"
	EventCardResolved GameEventType = "card_resolved"
	EventOk           GameEventType = "ok"
	EventKick         GameEventType = "kick"
	EventWin          GameEventType = "win"
	EventSync         GameEventType = "sync"
)

// GameSnapshot is the client-facing view of the countdown state.
type GameSnapshot struct {
	PopsLeft       int        `json:"pops_left"`
	UntilNextPop   int        `json:"until_next_pop"`
	LastCardPlayed *uuid.UUID `json:"last_card_played"`
	ChanceToDraw   int        `json:"chance_to_draw"`
	CardsLeft      int        `json:"cards_left"`
}

// GameEvent is a tagged payload handed to the session broadcaster. Game holds
// a snapshot where applicable and ActiveEmail identifies the participant
// whose turn it is.
type GameEvent struct {
	Type        GameEventType `json:"type"`
	Game        *GameSnapshot `json:"game,omitempty"`
	ActiveEmail string        `json:"active_email,omitempty"`
	Msg         string        `json:"msg,omitempty"`
}
