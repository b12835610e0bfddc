package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kernel-games/popcorn/internal/models"
)

// InsertCards bulk-loads card definitions into the cards table in a single
// transaction. Used once at provisioning time.
func InsertCards(ctx context.Context, cards []*models.Card) error {
	q := `INSERT INTO cards (id, name, description, rarity, effect, image)
	      VALUES ($1, $2, $3, $4, $5, $6)`

	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, c := range cards {
			if _, e := tx.Exec(ctx, q,
				c.ID, c.Name, c.Description, c.Rarity, string(c.Effect), c.Image,
			); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert cards: %w", err)
	}
	return nil
}

// LoadCards reads every card definition, validating effect identifiers so a
// bad row is caught at startup rather than at play time.
func LoadCards(ctx context.Context) ([]*models.Card, error) {
	q := `SELECT id, name, description, rarity, effect, image FROM cards ORDER BY name`
	rows, err := DB.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []*models.Card
	for rows.Next() {
		var c models.Card
		var effect string
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Rarity, &effect, &c.Image); err != nil {
			return nil, err
		}
		c.Effect, err = models.ParseEffect(effect)
		if err != nil {
			return nil, fmt.Errorf("card %s: %w", c.ID, err)
		}
		cards = append(cards, &c)
	}
	return cards, rows.Err()
}
