package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kernel-games/popcorn/internal/auth"
	"github.com/kernel-games/popcorn/internal/database"
	"github.com/kernel-games/popcorn/internal/game"
)

type createGameRequest struct {
	DeckSize     int `json:"deck_size"`
	Pops         int `json:"pops"`
	ChanceToDraw int `json:"chance_to_draw"`
}

// validateCreateGame applies defaults and bounds to a session creation
// request. Deck size is bounded 100-1000.
func validateCreateGame(req *createGameRequest) error {
	if req.DeckSize == 0 {
		req.DeckSize = game.MinDeckSize
	}
	if req.DeckSize < game.MinDeckSize || req.DeckSize > game.MaxDeckSize {
		return errors.New("deck_size must be between 100 and 1000")
	}
	if req.Pops == 0 {
		req.Pops = game.DefaultPops
	}
	if req.Pops < 1 {
		return errors.New("pops must be at least 1")
	}
	if req.ChanceToDraw == 0 {
		req.ChanceToDraw = game.DefaultChanceToDraw
	}
	if req.ChanceToDraw < 1 || req.ChanceToDraw > 100 {
		return errors.New("chance_to_draw must be between 1 and 100")
	}
	return nil
}

// CreateGameHandler provisions a new session: builds the deck from the
// catalog and joins the creator as the first participant.
func CreateGameHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie := r.Header.Get("Cookie")
		if !strings.Contains(cookie, "auth_token=") {
			http.Error(w, "missing auth_token", http.StatusUnauthorized)
			return
		}
		userIDStr, err := auth.AuthenticateJWT(extractTokenFromCookie(cookie))
		if err != nil {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			http.Error(w, "invalid user id format in token", http.StatusBadRequest)
			return
		}

		var req createGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			http.Error(w, "bad game request payload", http.StatusBadRequest)
			return
		}
		if err := validateCreateGame(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		creator, err := database.GetUserByID(r.Context(), userID)
		if err != nil {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}

		g, err := game.NewPopcornGame(gs.Catalog, creator, req.DeckSize, req.Pops, req.ChanceToDraw)
		if err != nil {
			if errors.Is(err, game.ErrEmptyCatalog) {
				http.Error(w, "no cards provisioned", http.StatusServiceUnavailable)
				return
			}
			http.Error(w, "failed to create game", http.StatusInternalServerError)
			return
		}
		if database.DB != nil {
			g.PersistFn = func(st game.PersistedState) {
				go database.UpsertGameState(st)
			}
		}
		gs.GameStore.AddGame(g)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"game_id": g.ID,
		})
	}
}

type gameListEntry struct {
	GameID      uuid.UUID `json:"game_id"`
	PlayerCount int       `json:"player_count"`
}

// ListGamesHandler returns the sessions still accepting joins.
func ListGamesHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := []gameListEntry{}
		for _, g := range gs.GameStore.ListGames() {
			if g.State() != game.StateLobby {
				continue
			}
			entries = append(entries, gameListEntry{
				GameID:      g.ID,
				PlayerCount: g.PlayerCount(),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	}
}
