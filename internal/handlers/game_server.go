package handlers

import (
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/kernel-games/popcorn/internal/catalog"
	"github.com/kernel-games/popcorn/internal/game"
)

// GameServer holds the in-memory session registry, the shared card catalog,
// and the per-session websocket subscriber lists.
type GameServer struct {
	GameStore *game.GameStore
	Catalog   *catalog.Catalog

	mu    sync.Mutex
	conns map[uuid.UUID]*sessionConns
}

func NewGameServer(cat *catalog.Catalog) *GameServer {
	return &GameServer{
		GameStore: game.NewGameStore(),
		Catalog:   cat,
		conns:     make(map[uuid.UUID]*sessionConns),
	}
}

// sessionConns tracks the live websocket connections subscribed to one
// session. It has its own lock so broadcasts never touch the game mutex.
type sessionConns struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*websocket.Conn
}

func (gs *GameServer) sessionConnsFor(gameID uuid.UUID) *sessionConns {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	sc, ok := gs.conns[gameID]
	if !ok {
		sc = &sessionConns{conns: make(map[uuid.UUID]*websocket.Conn)}
		gs.conns[gameID] = sc
	}
	return sc
}

func (sc *sessionConns) set(userID uuid.UUID, c *websocket.Conn) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.conns[userID] = c
}

func (sc *sessionConns) remove(userID uuid.UUID, c *websocket.Conn) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	// Only drop the entry if it still belongs to this connection; the user
	// may have reconnected in the meantime.
	if sc.conns[userID] == c {
		delete(sc.conns, userID)
	}
}

func (sc *sessionConns) get(userID uuid.UUID) *websocket.Conn {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.conns[userID]
}

func (sc *sessionConns) snapshot() []*websocket.Conn {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	out := make([]*websocket.Conn, 0, len(sc.conns))
	for _, c := range sc.conns {
		out = append(out, c)
	}
	return out
}
