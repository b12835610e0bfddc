package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"

	"github.com/kernel-games/popcorn/internal/game"
)

// SaveGameState upserts the session's full durable snapshot in one
// transaction: the scalar countdown columns plus the ring/deck/hand state as
// JSON. A crash mid-action therefore leaves the row either fully before or
// fully after the mutation.
func SaveGameState(ctx context.Context, st game.PersistedState) error {
	stateJSON, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal game state: %w", err)
	}

	q := `
		INSERT INTO games (
			id, status, pops_left, until_next_pop, chance_to_draw,
			last_card_played, started_at, finished_at, state, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (id)
		DO UPDATE SET
			status = EXCLUDED.status,
			pops_left = EXCLUDED.pops_left,
			until_next_pop = EXCLUDED.until_next_pop,
			chance_to_draw = EXCLUDED.chance_to_draw,
			last_card_played = EXCLUDED.last_card_played,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			state = EXCLUDED.state,
			updated_at = NOW()
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q,
			st.GameID, string(st.Status), st.PopsLeft, st.UntilNextPop, st.ChanceToDraw,
			st.LastCardPlayed, st.StartedAt, st.FinishedAt, stateJSON,
		)
		return e
	})
}

// UpsertGameState is the fire-and-forget variant wired into the game engine's
// PersistFn.
func UpsertGameState(st game.PersistedState) {
	ctx := context.Background()
	if err := SaveGameState(ctx, st); err != nil {
		log.Printf("failed to persist state for game %v: %v", st.GameID, err)
	}
}
