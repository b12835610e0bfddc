package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kernel-games/popcorn/internal/database"
	"github.com/kernel-games/popcorn/internal/game"
)

// GameMessage is the structure of incoming websocket messages for a session.
type GameMessage struct {
	Type string `json:"type"`

	// Card carries the catalog card id for play_card.
	Card string `json:"card,omitempty"`

	// Email identifies the kick target.
	Email string `json:"email,omitempty"`
}

// GameWSHandler upgrades the HTTP connection to a websocket subscribed to one
// session. It authenticates the user (provisioning a guest if needed),
// registers the connection for broadcasts, and runs the read loop dispatching
// game actions.
func GameWSHandler(logger *logrus.Logger, gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Extract game ID from URL path: /game/ws/{game_id}
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/game/ws/"), "/")
		if len(pathParts) < 1 || pathParts[0] == "" {
			http.Error(w, "Missing game_id in path (/game/ws/{game_id})", http.StatusBadRequest)
			return
		}
		gameID, err := uuid.Parse(pathParts[0])
		if err != nil {
			http.Error(w, "Invalid game_id format", http.StatusBadRequest)
			return
		}

		g, ok := gs.GameStore.GetGame(gameID)
		if !ok {
			http.Error(w, "Game not found", http.StatusNotFound)
			return
		}
		if g.State() == game.StateFinished {
			http.Error(w, "Game has already ended", http.StatusGone)
			return
		}

		userID, err := EnsureGuestUser(w, r)
		if err != nil {
			logger.Warnf("User authentication failed for game %s: %v", gameID, err)
			http.Error(w, "Authentication failed", http.StatusForbidden)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"popcorn"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for game %s: %v", gameID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")
		logger.Infof("WebSocket connection established for game %s from %s (user %s)", gameID, r.RemoteAddr, userID)

		sc := gs.sessionConnsFor(gameID)
		sc.set(userID, c)
		g.SetConnected(userID, true)

		// Install broadcast functions once per game instance. They only
		// touch the connection registry, never the game state, so the
		// engine may invoke them while holding its own lock.
		g.Mu.Lock()
		if g.BroadcastFn == nil {
			g.BroadcastFn = createBroadcastFunc(sc, gameID, logger)
		}
		if g.BroadcastToPlayerFn == nil {
			g.BroadcastToPlayerFn = createBroadcastToPlayerFunc(sc, gameID, logger)
		}
		g.Mu.Unlock()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		readGameMessages(ctx, c, g, userID, logger)

		logger.Infof("Player %s WebSocket read loop exited for game %s.", userID, gameID)
		g.SetConnected(userID, false)
		sc.remove(userID, c)
	}
}

// createBroadcastFunc returns a function suitable for PopcornGame.BroadcastFn.
// It marshals the event and sends it asynchronously to all subscribers.
func createBroadcastFunc(sc *sessionConns, gameID uuid.UUID, logger *logrus.Logger) func(ev game.GameEvent) {
	return func(ev game.GameEvent) {
		msgBytes, err := json.Marshal(ev)
		if err != nil {
			logger.Errorf("Failed to marshal broadcast event (%s) for game %s: %v", ev.Type, gameID, err)
			return
		}

		conns := sc.snapshot()
		go func() {
			for _, conn := range conns {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				err := conn.Write(ctx, websocket.MessageText, msgBytes)
				cancel()
				if err != nil {
					logger.Warnf("Failed to write broadcast message in game %s: %v", gameID, err)
				}
			}
		}()
	}
}

// createBroadcastToPlayerFunc returns a function suitable for
// PopcornGame.BroadcastToPlayerFn.
func createBroadcastToPlayerFunc(sc *sessionConns, gameID uuid.UUID, logger *logrus.Logger) func(userID uuid.UUID, ev game.GameEvent) {
	return func(userID uuid.UUID, ev game.GameEvent) {
		conn := sc.get(userID)
		if conn == nil {
			return
		}
		msgBytes, err := json.Marshal(ev)
		if err != nil {
			logger.Errorf("Failed to marshal private event (%s) for player %s in game %s: %v", ev.Type, userID, gameID, err)
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := conn.Write(ctx, websocket.MessageText, msgBytes); err != nil {
				logger.Warnf("Failed to write private message to player %s in game %s: %v", userID, gameID, err)
			}
		}()
	}
}

// readGameMessages reads messages from the client, validates them, and routes
// them to the game engine. Exits on read error or context cancellation.
func readGameMessages(ctx context.Context, c *websocket.Conn, g *game.PopcornGame, userID uuid.UUID, logger *logrus.Logger) {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Infof("WebSocket closed normally for user %s in game %s.", userID, g.ID)
			} else if strings.Contains(err.Error(), "context canceled") {
				logger.Infof("WebSocket context canceled for user %s in game %s.", userID, g.ID)
			} else {
				logger.Warnf("Error reading from WebSocket for user %s in game %s: %v", userID, g.ID, err)
			}
			return
		}

		if msgType != websocket.MessageText {
			logger.Warnf("Received non-text message type %d from user %s in game %s. Ignoring.", msgType, userID, g.ID)
			continue
		}

		var msg GameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("Invalid JSON received from user %s in game %s: %v", userID, g.ID, err)
			sendWsError(ctx, c, "Invalid JSON format.")
			continue
		}

		logger.Debugf("Received action '%s' from user %s in game %s.", msg.Type, userID, g.ID)
		handleGameMessage(ctx, c, g, userID, msg, logger)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// handleGameMessage dispatches one inbound action. Rejections are reported to
// the acting client only; the engine broadcasts state changes itself.
func handleGameMessage(ctx context.Context, c *websocket.Conn, g *game.PopcornGame, userID uuid.UUID, msg GameMessage, logger *logrus.Logger) {
	switch msg.Type {
	case "status":
		sendWsMessage(ctx, c, g.StatusEvent())

	case "join":
		user, err := database.GetUserByID(ctx, userID)
		if err != nil {
			sendWsError(ctx, c, "unknown user")
			return
		}
		if err := g.Join(user); err != nil {
			sendWsError(ctx, c, err.Error())
			return
		}
		sendWsMessage(ctx, c, game.GameEvent{Type: game.EventOk, Msg: "Successfully joined"})

	case "start":
		if err := g.Start(); err != nil {
			sendWsError(ctx, c, err.Error())
		}

	case "click":
		if _, err := g.Click(); err != nil {
			sendWsError(ctx, c, err.Error())
		}

	case "play_card":
		cardID, err := uuid.Parse(msg.Card)
		if err != nil {
			sendWsError(ctx, c, "invalid card id")
			return
		}
		if _, err := g.PlayCard(userID, cardID); err != nil {
			sendWsError(ctx, c, err.Error())
		}

	case "end_turn":
		if err := g.EndTurn(); err != nil {
			sendWsError(ctx, c, err.Error())
		}

	case "kick":
		target := g.ParticipantByEmail(msg.Email)
		if target == nil {
			sendWsError(ctx, c, "no such participant")
			return
		}
		if err := g.Kick(target.UserID); err != nil {
			sendWsError(ctx, c, err.Error())
		}

	case "sync":
		g.Sync()

	case "hand":
		sendWsMessage(ctx, c, map[string]interface{}{
			"type":  "hand",
			"cards": g.ListHand(userID),
		})

	default:
		logger.Warnf("Unknown action type '%s' from user %s in game %s.", msg.Type, userID, g.ID)
		sendWsError(ctx, c, fmt.Sprintf("Unknown action type: %s", msg.Type))
	}
}

// sendWsMessage marshals a message and sends it to the websocket client with
// a write timeout. The caller's context is the parent, so a closed connection
// handler also abandons the write.
func sendWsMessage(ctx context.Context, c *websocket.Conn, message interface{}) {
	if c == nil {
		log.Println("Error: Attempted to send WebSocket message on nil connection.")
		return
	}
	msgBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling WebSocket message: %v", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.Write(writeCtx, websocket.MessageText, msgBytes); err != nil {
		status := websocket.CloseStatus(err)
		if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
			log.Printf("Error writing WebSocket message: %v", err)
		}
	}
}

// sendWsError sends a structured error message to the client.
func sendWsError(ctx context.Context, c *websocket.Conn, errorMsg string) {
	sendWsMessage(ctx, c, map[string]interface{}{
		"type":    "error",
		"message": errorMsg,
	})
}
