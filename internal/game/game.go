package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kernel-games/popcorn/internal/cache"
	"github.com/kernel-games/popcorn/internal/catalog"
	"github.com/kernel-games/popcorn/internal/models"
)

// State identifies where a session is in its lifecycle.
type State string

const (
	StateLobby    State = "lobby"
	StateActive   State = "active"
	StateFinished State = "finished"
)

// Deck size bounds for session creation, plus the default game balance.
const (
	MinDeckSize         = 100
	MaxDeckSize         = 1000
	DefaultPops         = 3
	DefaultChanceToDraw = 75
)

// PersistedState is the full durable snapshot of one session, handed to
// PersistFn after every mutation. Every field is a detached copy (the card
// pointers reference immutable catalog entries), so receivers may serialize
// it outside the session lock while later actions mutate the live state. The
// writer stores it transactionally so a crash leaves the stored state either
// fully before or fully after the action.
type PersistedState struct {
	GameID         uuid.UUID                    `json:"game_id"`
	Status         State                        `json:"status"`
	PopsLeft       int                          `json:"pops_left"`
	UntilNextPop   int                          `json:"until_next_pop"`
	ChanceToDraw   int                          `json:"chance_to_draw"`
	LastCardPlayed *uuid.UUID                   `json:"last_card_played"`
	StartedAt      *time.Time                   `json:"started_at"`
	FinishedAt     *time.Time                   `json:"finished_at"`
	Participants   []models.Participant         `json:"participants"`
	Deck           []DeckCard                   `json:"deck"`
	Hands          map[uuid.UUID][]*models.Card `json:"hands"`
}

// PopcornGame holds the entire authoritative state for a single session in
// memory. Every mutating method serializes on Mu, so concurrent actions from
// multiple connections apply as a sequence of atomic transitions.
type PopcornGame struct {
	ID             uuid.UUID
	PopsLeft       int
	UntilNextPop   int
	ChanceToDraw   int
	LastCardPlayed *models.Card
	CreatedAt      time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time

	ring  *Ring
	deck  *Deck
	hands *Hands
	rng   *rand.Rand

	actionIndex int
	Mu          sync.Mutex

	// BroadcastFn fans an event out to all session subscribers. It is
	// invoked with the session lock held and must not call back into the
	// game.
	BroadcastFn func(ev GameEvent)

	// BroadcastToPlayerFn sends an event to a single subscriber. Same
	// locking contract as BroadcastFn.
	BroadcastToPlayerFn func(userID uuid.UUID, ev GameEvent)

	// PersistFn receives a durable snapshot after each mutation. If nil,
	// persistence is skipped (tests).
	PersistFn func(st PersistedState)
}

// NewPopcornGame creates a session with a freshly built deck and the creator
// joined as the first participant. Fails with ErrEmptyCatalog when no cards
// exist.
func NewPopcornGame(cat *catalog.Catalog, creator *models.User, deckSize, pops, chance int) (*PopcornGame, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return NewPopcornGameWithRand(cat, creator, deckSize, pops, chance, rng)
}

// NewPopcornGameWithRand is NewPopcornGame with an injected random source so
// deck composition, draws, and pop bounds are reproducible.
func NewPopcornGameWithRand(cat *catalog.Catalog, creator *models.User, deckSize, pops, chance int, rng *rand.Rand) (*PopcornGame, error) {
	deck, err := NewDeck(cat, deckSize, rng)
	if err != nil {
		return nil, err
	}
	g := &PopcornGame{
		ID:           uuid.New(),
		PopsLeft:     pops,
		ChanceToDraw: clampChance(chance),
		CreatedAt:    time.Now(),
		ring:         NewRing(),
		deck:         deck,
		hands:        NewHands(),
		rng:          rng,
	}
	g.UntilNextPop = g.freshPopBound()
	if _, err := g.ring.Join(creator); err != nil {
		return nil, err
	}
	return g, nil
}

// State returns the session's lifecycle state.
func (g *PopcornGame) State() State {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.state()
}

func (g *PopcornGame) state() State {
	switch {
	case g.FinishedAt != nil:
		return StateFinished
	case g.StartedAt != nil:
		return StateActive
	default:
		return StateLobby
	}
}

// Join adds the user as the new last participant. Only valid in the lobby.
func (g *PopcornGame) Join(user *models.User) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.state() != StateLobby {
		return ErrInvalidStateTransition
	}
	p, err := g.ring.Join(user)
	if err != nil {
		return err
	}
	g.logAction(user.ID, "join", nil)
	g.fire(GameEvent{Type: EventOk, Msg: fmt.Sprintf("%s joined the game", p.Email)})
	g.persistLocked()
	return nil
}

// Start closes the turn ring, making the first joiner active, and moves the
// session from lobby to active.
func (g *PopcornGame) Start() error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.state() != StateLobby {
		return ErrAlreadyStarted
	}
	if err := g.ring.Close(); err != nil {
		return err
	}
	now := time.Now()
	g.StartedAt = &now
	g.logAction(uuid.Nil, "start", nil)
	g.fire(GameEvent{Type: EventStart, Game: g.snapshotLocked(), ActiveEmail: g.activeEmailLocked()})
	g.persistLocked()
	return nil
}

// Click applies one click to the kernel on behalf of the active participant.
// Returns whether a pop occurred. On a pop the active participant is
// eliminated, the countdown is reseeded, and the session finishes if the pop
// budget is spent or at most one participant remains alive. On a non-pop
// click a bonus card may be drawn into the active participant's hand.
func (g *PopcornGame) Click() (bool, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.state() != StateActive {
		return false, ErrInvalidStateTransition
	}
	active := g.ring.Active()
	g.UntilNextPop--

	if g.UntilNextPop > 0 {
		if card := g.deck.Draw(g.ChanceToDraw, g.rng); card != nil {
			g.hands.Add(active.UserID, card)
			g.fireTo(active.UserID, GameEvent{Type: EventOk, Msg: fmt.Sprintf("You drew %s!", card.Name)})
		}
		g.logAction(active.UserID, "click", nil)
		g.fire(GameEvent{Type: EventOk})
		g.persistLocked()
		return false, nil
	}

	// Pop: the kernel burns whoever is holding it.
	g.PopsLeft--
	elimErr := g.ring.Eliminate(active)
	g.UntilNextPop = g.freshPopBound()

	g.logAction(active.UserID, "pop", map[string]interface{}{"pops_left": g.PopsLeft})
	g.fireTo(active.UserID, GameEvent{Type: EventKick, Msg: "You Lose!"})

	if g.PopsLeft <= 0 || g.ring.AliveCount() <= 1 || errors.Is(elimErr, ErrNoAlivePlayers) {
		g.finishLocked()
	} else {
		g.fire(GameEvent{Type: EventSync, Game: g.snapshotLocked(), ActiveEmail: g.activeEmailLocked()})
	}
	g.persistLocked()
	return true, nil
}

// PlayCard removes the card from the player's hand and resolves its effect
// against the session, returning the result message.
func (g *PopcornGame) PlayCard(userID, cardID uuid.UUID) (string, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.state() != StateActive {
		return "", ErrInvalidStateTransition
	}
	if g.ring.Find(userID) == nil {
		return "", ErrParticipantNotFound
	}
	card, err := g.hands.Remove(userID, cardID)
	if err != nil {
		return "", ErrCardNotInHand
	}
	msg := g.resolveEffect(card.Effect)
	g.LastCardPlayed = card

	g.logAction(userID, "play_card", map[string]interface{}{"card": card.ID.String(), "effect": string(card.Effect)})
	g.fire(GameEvent{Type: EventCardResolved, Game: g.snapshotLocked(), ActiveEmail: g.activeEmailLocked(), Msg: msg})
	g.persistLocked()
	return msg, nil
}

// EndTurn passes the kernel to the next alive participant.
func (g *PopcornGame) EndTurn() error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.state() != StateActive {
		return ErrInvalidStateTransition
	}
	next, err := g.ring.Advance()
	if err != nil {
		return err
	}
	g.logAction(next.UserID, "end_turn", nil)
	g.fire(GameEvent{Type: EventStart, Game: g.snapshotLocked(), ActiveEmail: next.Email})
	g.persistLocked()
	return nil
}

// Kick eliminates the target participant regardless of whose turn it is, in
// the lobby or mid-game. If the target held the kernel the turn advances in
// the same call. A lobby kick never finishes the session; it just keeps the
// target from playing once the ring closes.
func (g *PopcornGame) Kick(userID uuid.UUID) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.state() == StateFinished {
		return ErrInvalidStateTransition
	}
	p := g.ring.Find(userID)
	if p == nil {
		return ErrParticipantNotFound
	}
	elimErr := g.ring.Eliminate(p)

	g.logAction(userID, "kick", nil)
	g.fireTo(userID, GameEvent{Type: EventKick, Msg: "You Lose!"})

	if g.state() == StateActive && (g.ring.AliveCount() <= 1 || errors.Is(elimErr, ErrNoAlivePlayers)) {
		g.finishLocked()
	} else {
		g.fire(GameEvent{Type: EventSync, Game: g.snapshotLocked(), ActiveEmail: g.activeEmailLocked()})
	}
	g.persistLocked()
	return nil
}

// finishLocked transitions the session to its terminal state and announces
// the outcome.
func (g *PopcornGame) finishLocked() {
	now := time.Now()
	g.FinishedAt = &now

	msg := "The bag is spent! Everyone still standing survives."
	winner := ""
	if g.ring.AliveCount() == 1 {
		for _, p := range g.ring.Participants {
			if p.Alive() {
				winner = p.Email
				msg = fmt.Sprintf("%s wins the bag!", p.Email)
				break
			}
		}
	}
	g.logAction(uuid.Nil, "game_end", nil)
	g.fire(GameEvent{Type: EventWin, Game: g.snapshotLocked(), ActiveEmail: winner, Msg: msg})
}

// freshPopBound draws a new clicks-until-pop bound, scaled to the cards left
// in the deck (minimum 1, same distribution the shuffle effect uses).
func (g *PopcornGame) freshPopBound() int {
	r := g.deck.CardsLeft()
	if r < 1 {
		r = 1
	}
	return 1 + g.rng.Intn(r)
}

// Snapshot returns the client-facing countdown state.
func (g *PopcornGame) Snapshot() *GameSnapshot {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.snapshotLocked()
}

func (g *PopcornGame) snapshotLocked() *GameSnapshot {
	snap := &GameSnapshot{
		PopsLeft:     g.PopsLeft,
		UntilNextPop: g.UntilNextPop,
		ChanceToDraw: g.ChanceToDraw,
		CardsLeft:    g.deck.CardsLeft(),
	}
	if g.LastCardPlayed != nil {
		id := g.LastCardPlayed.ID
		snap.LastCardPlayed = &id
	}
	return snap
}

// StatusEvent builds the status reply for a single requesting client.
func (g *PopcornGame) StatusEvent() GameEvent {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return GameEvent{Type: EventStatus, Game: g.snapshotLocked(), ActiveEmail: g.activeEmailLocked()}
}

// Sync broadcasts the current state snapshot to all subscribers. Fired under
// the session lock like every other event.
func (g *PopcornGame) Sync() {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	g.fire(GameEvent{Type: EventSync, Game: g.snapshotLocked(), ActiveEmail: g.activeEmailLocked()})
}

// ActiveEmail returns the email of the participant holding the kernel, or ""
// before start.
func (g *PopcornGame) ActiveEmail() string {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.activeEmailLocked()
}

func (g *PopcornGame) activeEmailLocked() string {
	if p := g.ring.Active(); p != nil {
		return p.Email
	}
	return ""
}

// ListHand returns the user's current hand.
func (g *PopcornGame) ListHand(userID uuid.UUID) []*models.Card {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.hands.ListFor(userID)
}

// Participant returns the session participant for the user, or nil.
func (g *PopcornGame) Participant(userID uuid.UUID) *models.Participant {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.ring.Find(userID)
}

// ParticipantByEmail returns the participant with the given email, or nil.
func (g *PopcornGame) ParticipantByEmail(email string) *models.Participant {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.ring.FindByEmail(email)
}

// SetConnected flips the participant's connection flag, if they are part of
// the session.
func (g *PopcornGame) SetConnected(userID uuid.UUID, connected bool) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if p := g.ring.Find(userID); p != nil {
		p.Connected = connected
	}
}

// PlayerCount returns the number of joined participants.
func (g *PopcornGame) PlayerCount() int {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return len(g.ring.Participants)
}

// persistLocked hands a detached copy of the current state to PersistFn.
// Sharing the live deck, hands, or participant structures would let an async
// writer observe torn state, so everything mutable is copied here.
func (g *PopcornGame) persistLocked() {
	if g.PersistFn == nil {
		return
	}
	parts := make([]models.Participant, len(g.ring.Participants))
	for i, p := range g.ring.Participants {
		parts[i] = *p
	}
	st := PersistedState{
		GameID:       g.ID,
		Status:       g.state(),
		PopsLeft:     g.PopsLeft,
		UntilNextPop: g.UntilNextPop,
		ChanceToDraw: g.ChanceToDraw,
		StartedAt:    g.StartedAt,
		FinishedAt:   g.FinishedAt,
		Participants: parts,
		Deck:         g.deck.Snapshot(),
		Hands:        g.hands.Snapshot(),
	}
	if g.LastCardPlayed != nil {
		id := g.LastCardPlayed.ID
		st.LastCardPlayed = &id
	}
	g.PersistFn(st)
}

// fire sends an event to all subscribers if a broadcaster is installed.
func (g *PopcornGame) fire(ev GameEvent) {
	if g.BroadcastFn != nil {
		g.BroadcastFn(ev)
	}
}

// fireTo sends an event to one subscriber if a broadcaster is installed.
func (g *PopcornGame) fireTo(userID uuid.UUID, ev GameEvent) {
	if g.BroadcastToPlayerFn != nil {
		g.BroadcastToPlayerFn(userID, ev)
	}
}

// logAction pushes an action record onto the historian queue when Redis is
// connected.
func (g *PopcornGame) logAction(actor uuid.UUID, actionType string, payload map[string]interface{}) {
	g.actionIndex++
	if cache.Rdb == nil {
		return
	}
	rec := cache.GameActionRecord{
		GameID:        g.ID,
		ActionIndex:   g.actionIndex,
		ActorUserID:   actor,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = cache.PublishGameAction(ctx, rec)
	}()
}
