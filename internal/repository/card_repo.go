package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"flashdeck-backend/internal/models"
)

type CardRepo struct {
	pool *pgxpool.Pool
}

func NewCardRepo(pool *pgxpool.Pool) *CardRepo {
	return &CardRepo{pool: pool}
}

func (r *CardRepo) Insert(ctx context.Context, c *models.Card) error {
	c.ID = uuid.New()

	query := `INSERT INTO cards (id, deck_id, front, back)
		VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		c.ID, c.DeckID, c.Front, c.Back,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

// InsertBatch inserts all cards inside one transaction. Used by AI
// generation: either the full batch lands or none of it does.
func (r *CardRepo) InsertBatch(ctx context.Context, deckID uuid.UUID, cards []models.Card) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := range cards {
		cards[i].ID = uuid.New()
		cards[i].DeckID = deckID

		err := tx.QueryRow(ctx,
			`INSERT INTO cards (id, deck_id, front, back)
			 VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`,
			cards[i].ID, deckID, cards[i].Front, cards[i].Back,
		).Scan(&cards[i].CreatedAt, &cards[i].UpdatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *CardRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	c := &models.Card{}
	query := `SELECT id, deck_id, front, back, created_at, updated_at
		FROM cards WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.DeckID, &c.Front, &c.Back, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CardRepo) ListByDeck(ctx context.Context, deckID uuid.UUID) ([]models.Card, error) {
	query := `SELECT id, deck_id, front, back, created_at, updated_at
		FROM cards WHERE deck_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, deckID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := []models.Card{}
	for rows.Next() {
		c := models.Card{}
		err := rows.Scan(&c.ID, &c.DeckID, &c.Front, &c.Back, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (r *CardRepo) Update(ctx context.Context, c *models.Card) error {
	query := `UPDATE cards SET front = $1, back = $2, updated_at = NOW()
		WHERE id = $3 RETURNING updated_at`

	return r.pool.QueryRow(ctx, query, c.Front, c.Back, c.ID).Scan(&c.UpdatedAt)
}

func (r *CardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM cards WHERE id = $1", id)
	return err
}
