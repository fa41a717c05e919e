package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"flashdeck-backend/internal/models"
)

type DeckRepo struct {
	pool *pgxpool.Pool
}

func NewDeckRepo(pool *pgxpool.Pool) *DeckRepo {
	return &DeckRepo{pool: pool}
}

func (r *DeckRepo) Insert(ctx context.Context, d *models.Deck) error {
	d.ID = uuid.New()

	query := `INSERT INTO decks (id, user_id, name, description)
		VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		d.ID, d.UserID, d.Name, d.Description,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *DeckRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Deck, error) {
	d := &models.Deck{}
	query := `SELECT id, user_id, name, description, created_at, updated_at
		FROM decks WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.UserID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListByUser returns a user's decks with aggregated card counts, most
// recently updated first.
func (r *DeckRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.DeckWithCount, error) {
	query := `SELECT d.id, d.user_id, d.name, d.description, d.created_at, d.updated_at,
			COUNT(c.id) AS card_count
		FROM decks d
		LEFT JOIN cards c ON c.deck_id = d.id
		WHERE d.user_id = $1
		GROUP BY d.id
		ORDER BY d.updated_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	decks := []models.DeckWithCount{}
	for rows.Next() {
		d := models.DeckWithCount{}
		err := rows.Scan(&d.ID, &d.UserID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt, &d.CardCount)
		if err != nil {
			return nil, err
		}
		decks = append(decks, d)
	}
	return decks, rows.Err()
}

func (r *DeckRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM decks WHERE user_id = $1", userID).Scan(&count)
	return count, err
}

func (r *DeckRepo) Update(ctx context.Context, d *models.Deck) error {
	query := `UPDATE decks SET name = $1, description = $2, updated_at = NOW()
		WHERE id = $3 RETURNING updated_at`

	return r.pool.QueryRow(ctx, query, d.Name, d.Description, d.ID).Scan(&d.UpdatedAt)
}

// Delete removes the deck; the cards foreign key cascades, so all of the
// deck's cards go with it in the same statement.
func (r *DeckRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM decks WHERE id = $1", id)
	return err
}
