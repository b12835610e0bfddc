package game

import "errors"

var (
	// ErrInvalidStateTransition is returned when an action is attempted in a
	// session state that does not permit it (e.g. click before start).
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrAlreadyJoined is returned when a user attempts to join a session
	// they are already part of.
	ErrAlreadyJoined = errors.New("already joined")

	// ErrAlreadyStarted is returned when start is called on a running or
	// finished session.
	ErrAlreadyStarted = errors.New("game already started")

	// ErrNoAlivePlayers is returned by turn advancement when every
	// participant has been eliminated. It is fatal for the session.
	ErrNoAlivePlayers = errors.New("no alive players remain")

	// ErrCardNotInHand is returned when a player plays a card they do not
	// hold in this session.
	ErrCardNotInHand = errors.New("card not in hand")

	// ErrCardNotFound is returned by hand removal when the card is absent.
	ErrCardNotFound = errors.New("card not found")

	// ErrEmptyCatalog is returned at deck build time when no card
	// definitions exist.
	ErrEmptyCatalog = errors.New("card catalog is empty")

	// ErrParticipantNotFound is returned when an action references a user
	// who is not part of the session.
	ErrParticipantNotFound = errors.New("participant not found")
)
