// internal/game/game_test.go
package game

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernel-games/popcorn/internal/catalog"
	"github.com/kernel-games/popcorn/internal/models"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu           sync.Mutex
	allEvents    []GameEvent               // Events sent to everyone
	playerEvents map[uuid.UUID][]GameEvent // Events sent to specific players
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{
		playerEvents: make(map[uuid.UUID][]GameEvent),
	}
}

func (mb *mockBroadcaster) broadcastFn(ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) broadcastToPlayerFn(playerID uuid.UUID, ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerEvents[playerID] = append(mb.playerEvents[playerID], ev)
}

func (mb *mockBroadcaster) getLastEvent() *GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if len(mb.allEvents) == 0 {
		return nil
	}
	return &mb.allEvents[len(mb.allEvents)-1]
}

func (mb *mockBroadcaster) getLastPlayerEvent(playerID uuid.UUID) *GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	events, ok := mb.playerEvents[playerID]
	if !ok || len(events) == 0 {
		return nil
	}
	return &events[len(events)-1]
}

func testUser(email string) *models.User {
	return &models.User{
		ID:          uuid.New(),
		Email:       email,
		DisplayName: email,
	}
}

// newTestGame builds a session with the given participants joined (the first
// is the creator), a deterministic rng, and a mock broadcaster attached.
func newTestGame(t *testing.T, deckSize, pops, chance int, users ...*models.User) (*PopcornGame, *mockBroadcaster) {
	t.Helper()
	require.NotEmpty(t, users)

	cat := catalog.New(catalog.DefaultCards())
	rng := rand.New(rand.NewSource(42))

	g, err := NewPopcornGameWithRand(cat, users[0], deckSize, pops, chance, rng)
	require.NoError(t, err)

	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToPlayerFn = mb.broadcastToPlayerFn

	for _, u := range users[1:] {
		require.NoError(t, g.Join(u))
	}
	return g, mb
}

func TestNewGameStartsInLobby(t *testing.T) {
	g, _ := newTestGame(t, 100, 3, 75, testUser("a@x.io"))

	assert.Equal(t, StateLobby, g.State())
	assert.Equal(t, 3, g.PopsLeft)
	assert.Equal(t, 75, g.ChanceToDraw)
	assert.Equal(t, 1, g.PlayerCount())
	assert.GreaterOrEqual(t, g.UntilNextPop, 1)
	assert.LessOrEqual(t, g.UntilNextPop, 100)
	assert.Empty(t, g.ActiveEmail(), "nobody is active before start")
}

func TestJoinRules(t *testing.T) {
	a, b := testUser("a@x.io"), testUser("b@x.io")
	g, _ := newTestGame(t, 100, 3, 75, a, b)

	assert.ErrorIs(t, g.Join(a), ErrAlreadyJoined)

	require.NoError(t, g.Start())
	assert.ErrorIs(t, g.Join(testUser("late@x.io")), ErrInvalidStateTransition)
}

func TestStartActivatesFirstJoiner(t *testing.T) {
	a, b, c := testUser("a@x.io"), testUser("b@x.io"), testUser("c@x.io")
	g, mb := newTestGame(t, 100, 3, 75, a, b, c)

	require.NoError(t, g.Start())
	assert.Equal(t, StateActive, g.State())
	assert.Equal(t, "a@x.io", g.ActiveEmail())
	assert.ErrorIs(t, g.Start(), ErrAlreadyStarted)

	ev := mb.getLastEvent()
	require.NotNil(t, ev)
	assert.Equal(t, EventStart, ev.Type)
	assert.Equal(t, "a@x.io", ev.ActiveEmail)
}

func TestEndTurnRotation(t *testing.T) {
	a, b, c := testUser("a@x.io"), testUser("b@x.io"), testUser("c@x.io")
	g, _ := newTestGame(t, 100, 3, 75, a, b, c)
	require.NoError(t, g.Start())

	require.NoError(t, g.EndTurn())
	assert.Equal(t, "b@x.io", g.ActiveEmail())
	require.NoError(t, g.EndTurn())
	assert.Equal(t, "c@x.io", g.ActiveEmail())
	require.NoError(t, g.EndTurn())
	assert.Equal(t, "a@x.io", g.ActiveEmail(), "turn order wraps around")
}

func TestClickCountdownToPop(t *testing.T) {
	a, b, c := testUser("a@x.io"), testUser("b@x.io"), testUser("c@x.io")
	g, mb := newTestGame(t, 100, 3, 75, a, b, c)
	require.NoError(t, g.Start())
	g.UntilNextPop = 5

	for i := 0; i < 4; i++ {
		popped, err := g.Click()
		require.NoError(t, err)
		assert.False(t, popped, "click %d should not pop", i+1)
		assert.Equal(t, "a@x.io", g.ActiveEmail())
	}

	popped, err := g.Click()
	require.NoError(t, err)
	assert.True(t, popped, "fifth click hits the burnt kernel")

	assert.Equal(t, 2, g.PopsLeft)
	assert.Equal(t, StateActive, g.State(), "two pops and two alive remain")
	assert.Equal(t, "b@x.io", g.ActiveEmail(), "kernel passes to the next alive player")
	assert.GreaterOrEqual(t, g.UntilNextPop, 1, "countdown reseeds after a pop")

	pa := g.Participant(a.ID)
	require.NotNil(t, pa)
	assert.False(t, pa.Alive())

	ev := mb.getLastPlayerEvent(a.ID)
	require.NotNil(t, ev)
	assert.Equal(t, EventKick, ev.Type)
	assert.Equal(t, "You Lose!", ev.Msg)
}

func TestClickDrawsIntoHand(t *testing.T) {
	a, b := testUser("a@x.io"), testUser("b@x.io")
	g, mb := newTestGame(t, 100, 3, 100, a, b)
	require.NoError(t, g.Start())
	g.UntilNextPop = 50

	popped, err := g.Click()
	require.NoError(t, err)
	require.False(t, popped)

	hand := g.ListHand(a.ID)
	require.Len(t, hand, 1, "chance 100 always draws on a non-pop click")

	ev := mb.getLastPlayerEvent(a.ID)
	require.NotNil(t, ev)
	assert.Equal(t, EventOk, ev.Type)
	assert.Contains(t, ev.Msg, hand[0].Name)
}

func TestLastPopFinishesGame(t *testing.T) {
	a, b, c := testUser("a@x.io"), testUser("b@x.io"), testUser("c@x.io")
	g, mb := newTestGame(t, 100, 1, 75, a, b, c)
	require.NoError(t, g.Start())
	g.UntilNextPop = 1

	popped, err := g.Click()
	require.NoError(t, err)
	require.True(t, popped)

	assert.Equal(t, 0, g.PopsLeft)
	assert.Equal(t, StateFinished, g.State())

	ev := mb.getLastEvent()
	require.NotNil(t, ev)
	assert.Equal(t, EventWin, ev.Type)
	assert.Equal(t, "The bag is spent! Everyone still standing survives.", ev.Msg)
}

func TestPopLeavingOneAliveFinishesGame(t *testing.T) {
	a, b := testUser("a@x.io"), testUser("b@x.io")
	g, mb := newTestGame(t, 100, 3, 75, a, b)
	require.NoError(t, g.Start())
	g.UntilNextPop = 1

	popped, err := g.Click()
	require.NoError(t, err)
	require.True(t, popped)

	assert.Equal(t, StateFinished, g.State())

	ev := mb.getLastEvent()
	require.NotNil(t, ev)
	assert.Equal(t, EventWin, ev.Type)
	assert.Equal(t, "b@x.io wins the bag!", ev.Msg)
	assert.Equal(t, "b@x.io", ev.ActiveEmail)
}

func TestKick(t *testing.T) {
	a, b, c := testUser("a@x.io"), testUser("b@x.io"), testUser("c@x.io")
	g, mb := newTestGame(t, 100, 3, 75, a, b, c)
	require.NoError(t, g.Start())

	// Kicking the active participant advances the turn in the same call.
	require.NoError(t, g.Kick(a.ID))
	assert.Equal(t, "b@x.io", g.ActiveEmail())
	assert.Equal(t, StateActive, g.State())
	assert.False(t, g.Participant(a.ID).Alive())

	ev := mb.getLastPlayerEvent(a.ID)
	require.NotNil(t, ev)
	assert.Equal(t, EventKick, ev.Type)

	assert.ErrorIs(t, g.Kick(uuid.New()), ErrParticipantNotFound)

	// Kicking down to one alive ends the session.
	require.NoError(t, g.Kick(c.ID))
	assert.Equal(t, StateFinished, g.State())
	assert.Equal(t, "b@x.io wins the bag!", mb.getLastEvent().Msg)
}

func TestPlayCardRules(t *testing.T) {
	a, b := testUser("a@x.io"), testUser("b@x.io")
	g, _ := newTestGame(t, 100, 3, 75, a, b)
	require.NoError(t, g.Start())

	_, err := g.PlayCard(uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrParticipantNotFound)

	_, err = g.PlayCard(a.ID, uuid.New())
	assert.ErrorIs(t, err, ErrCardNotInHand)
}

func TestPlayCardResolvesAndRecords(t *testing.T) {
	a, b := testUser("a@x.io"), testUser("b@x.io")
	g, mb := newTestGame(t, 100, 3, 75, a, b)
	require.NoError(t, g.Start())

	card := cardWithEffect(t, models.EffectSkip)
	g.hands.Add(a.ID, card)

	msg, err := g.PlayCard(a.ID, card.ID)
	require.NoError(t, err)
	assert.Equal(t, "You passed the Kernel!", msg)
	assert.Equal(t, "b@x.io", g.ActiveEmail())
	require.NotNil(t, g.LastCardPlayed)
	assert.Equal(t, card.ID, g.LastCardPlayed.ID)
	assert.Empty(t, g.ListHand(a.ID), "played card leaves the hand")

	ev := mb.getLastEvent()
	require.NotNil(t, ev)
	assert.Equal(t, EventCardResolved, ev.Type)
	assert.Equal(t, msg, ev.Msg)
	require.NotNil(t, ev.Game)
	require.NotNil(t, ev.Game.LastCardPlayed)
	assert.Equal(t, card.ID, *ev.Game.LastCardPlayed)
}

func TestActionsRejectedOutsideActiveState(t *testing.T) {
	a, b := testUser("a@x.io"), testUser("b@x.io")
	g, _ := newTestGame(t, 100, 3, 75, a, b)

	_, err := g.Click()
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.ErrorIs(t, g.EndTurn(), ErrInvalidStateTransition)
	_, err = g.PlayCard(a.ID, uuid.New())
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	require.NoError(t, g.Start())
	g.UntilNextPop = 1
	_, err = g.Click()
	require.NoError(t, err)
	require.Equal(t, StateFinished, g.State())

	_, err = g.Click()
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.ErrorIs(t, g.EndTurn(), ErrInvalidStateTransition)
	assert.ErrorIs(t, g.Kick(b.ID), ErrInvalidStateTransition)
}

func TestKickInLobby(t *testing.T) {
	a, b, c := testUser("a@x.io"), testUser("b@x.io"), testUser("c@x.io")
	g, _ := newTestGame(t, 100, 3, 75, a, b, c)

	// Moderation works before start and never ends a lobby session.
	require.NoError(t, g.Kick(b.ID))
	assert.Equal(t, StateLobby, g.State())
	assert.False(t, g.Participant(b.ID).Alive())

	require.NoError(t, g.Start())
	assert.Equal(t, "a@x.io", g.ActiveEmail())
	require.NoError(t, g.EndTurn())
	assert.Equal(t, "c@x.io", g.ActiveEmail(), "lobby-kicked participant loses their turn slot")
}

func TestKickFirstJoinerInLobby(t *testing.T) {
	a, b := testUser("a@x.io"), testUser("b@x.io")
	g, _ := newTestGame(t, 100, 3, 75, a, b)

	require.NoError(t, g.Kick(a.ID))
	require.NoError(t, g.Start())
	assert.Equal(t, "b@x.io", g.ActiveEmail(), "start activates the earliest alive joiner")
}

func TestSyncBroadcastsSnapshot(t *testing.T) {
	a, b := testUser("a@x.io"), testUser("b@x.io")
	g, mb := newTestGame(t, 100, 3, 75, a, b)
	require.NoError(t, g.Start())

	g.Sync()

	ev := mb.getLastEvent()
	require.NotNil(t, ev)
	assert.Equal(t, EventSync, ev.Type)
	require.NotNil(t, ev.Game)
	assert.Equal(t, 3, ev.Game.PopsLeft)
	assert.Equal(t, "a@x.io", ev.ActiveEmail)
}

func TestCountdownInvariantsOverManyClicks(t *testing.T) {
	users := make([]*models.User, 5)
	for i := range users {
		users[i] = testUser(fmt.Sprintf("p%d@x.io", i))
	}
	g, _ := newTestGame(t, 200, 4, 75, users...)
	require.NoError(t, g.Start())

	prevPops := g.PopsLeft
	for g.State() == StateActive {
		_, err := g.Click()
		require.NoError(t, err)

		assert.GreaterOrEqual(t, g.UntilNextPop, 0, "countdown never goes negative")
		assert.LessOrEqual(t, g.PopsLeft, prevPops, "pop budget only decreases")
		prevPops = g.PopsLeft
	}

	assert.Equal(t, StateFinished, g.State())
	assert.True(t, g.PopsLeft == 0 || g.ring.AliveCount() <= 1)
}

func TestPersistFnReceivesSnapshots(t *testing.T) {
	a, b := testUser("a@x.io"), testUser("b@x.io")
	g, _ := newTestGame(t, 100, 3, 75, a, b)

	var states []PersistedState
	g.PersistFn = func(st PersistedState) { states = append(states, st) }

	require.NoError(t, g.Start())
	_, err := g.Click()
	require.NoError(t, err)

	require.Len(t, states, 2)
	assert.Equal(t, g.ID, states[0].GameID)
	assert.Equal(t, StateActive, states[0].Status)
	assert.Len(t, states[1].Participants, 2)
	assert.Len(t, states[1].Deck, 100)
}

func TestPersistSnapshotDetachedFromLiveState(t *testing.T) {
	a, b := testUser("a@x.io"), testUser("b@x.io")
	g, _ := newTestGame(t, 100, 3, 100, a, b)

	var states []PersistedState
	g.PersistFn = func(st PersistedState) { states = append(states, st) }

	require.NoError(t, g.Start())
	g.UntilNextPop = 10

	// Chance 100 guarantees a draw, flipping the live deck's first entry and
	// growing a's hand.
	_, err := g.Click()
	require.NoError(t, err)
	require.Len(t, g.ListHand(a.ID), 1)

	// Eliminate a so the live participant state diverges too.
	g.UntilNextPop = 1
	_, err = g.Click()
	require.NoError(t, err)
	require.False(t, g.Participant(a.ID).Alive())

	require.GreaterOrEqual(t, len(states), 3)

	// The snapshot taken at start must still describe the session as it was
	// then, untouched by the later draws and the elimination.
	atStart := states[0]
	assert.False(t, atStart.Deck[0].Played)
	assert.Empty(t, atStart.Hands[a.ID])
	for _, p := range atStart.Participants {
		assert.Nil(t, p.KilledAt)
	}

	// And the one after the first click captured exactly that moment.
	afterDraw := states[1]
	assert.True(t, afterDraw.Deck[0].Played)
	assert.Len(t, afterDraw.Hands[a.ID], 1)
	for _, p := range afterDraw.Participants {
		assert.Nil(t, p.KilledAt)
	}
}

func TestGameStore(t *testing.T) {
	store := NewGameStore()
	g, _ := newTestGame(t, 100, 3, 75, testUser("a@x.io"))

	store.AddGame(g)
	got, ok := store.GetGame(g.ID)
	require.True(t, ok)
	assert.Same(t, g, got)
	assert.Len(t, store.ListGames(), 1)

	store.DeleteGame(g.ID)
	_, ok = store.GetGame(g.ID)
	assert.False(t, ok)
	assert.Empty(t, store.ListGames())
}

// cardWithEffect pulls a card with the given effect out of the default set.
func cardWithEffect(t *testing.T, effect models.Effect) *models.Card {
	t.Helper()
	for _, c := range catalog.DefaultCards() {
		if c.Effect == effect {
			return c
		}
	}
	t.Fatalf("no default card with effect %s", effect)
	return nil
}
