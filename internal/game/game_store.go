package game

import (
	"sync"

	"github.com/google/uuid"
)

// GameStore is the in-memory registry of live sessions.
type GameStore struct {
	mu    sync.Mutex
	games map[uuid.UUID]*PopcornGame
}

func NewGameStore() *GameStore {
	return &GameStore{
		games: make(map[uuid.UUID]*PopcornGame),
	}
}

func (s *GameStore) AddGame(g *PopcornGame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[g.ID] = g
}

func (s *GameStore) GetGame(id uuid.UUID) (*PopcornGame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, exists := s.games[id]
	return g, exists
}

func (s *GameStore) DeleteGame(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
}

// ListGames returns every registered session.
func (s *GameStore) ListGames() []*PopcornGame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*PopcornGame, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, g)
	}
	return out
}
