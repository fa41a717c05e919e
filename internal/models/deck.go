package models

import (
	"time"

	"github.com/google/uuid"
)

// Deck is a named, user-owned collection of flashcards. UserID never changes
// after creation; deleting a deck cascades to its cards.
type Deck struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DeckWithCount is the dashboard listing row: a deck plus its card count.
type DeckWithCount struct {
	Deck
	CardCount int `json:"card_count"`
}

type DeckRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
