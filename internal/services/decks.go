package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"flashdeck-backend/internal/middleware"
	"flashdeck-backend/internal/models"
)

// FreeDeckLimit is the deck cap for users without the unlimited_decks
// entitlement. The count-then-insert check is not transactional; two
// concurrent creates can slip one extra deck through, which is accepted.
const FreeDeckLimit = 3

const (
	maxNameLen = 255
	maxTextLen = 1000
)

type deckRepository interface {
	Insert(ctx context.Context, d *models.Deck) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Deck, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.DeckWithCount, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	Update(ctx context.Context, d *models.Deck) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type cardRepository interface {
	Insert(ctx context.Context, c *models.Card) error
	InsertBatch(ctx context.Context, deckID uuid.UUID, cards []models.Card) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Card, error)
	ListByDeck(ctx context.Context, deckID uuid.UUID) ([]models.Card, error)
	Update(ctx context.Context, c *models.Card) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// DeckService runs the mutation pipeline for decks and cards:
// authenticate -> validate -> ownership -> write -> cache invalidation.
type DeckService struct {
	decks deckRepository
	cards cardRepository
	cache ViewCache
}

func NewDeckService(decks deckRepository, cards cardRepository, cache ViewCache) *DeckService {
	return &DeckService{decks: decks, cards: cards, cache: cache}
}

// assertOwnedDeck loads the deck and confirms ownership. Absence and
// ownership failure collapse into the same NotFoundError; infrastructure
// errors pass through.
func assertOwnedDeck(ctx context.Context, decks deckRepository, deckID, userID uuid.UUID) (*models.Deck, error) {
	deck, err := decks.GetByID(ctx, deckID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Deck not found or access denied"}
		}
		return nil, err
	}
	if deck.UserID != userID {
		return nil, &NotFoundError{Message: "Deck not found or access denied"}
	}
	return deck, nil
}

// assertCardInDeck confirms the card exists and belongs to the given deck.
func (s *DeckService) assertCardInDeck(ctx context.Context, cardID, deckID uuid.UUID) (*models.Card, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Card not found or does not belong to this deck"}
		}
		return nil, err
	}
	if card.DeckID != deckID {
		return nil, &NotFoundError{Message: "Card not found or does not belong to this deck"}
	}
	return card, nil
}

func requireAuth(auth *middleware.AuthContext) error {
	if auth == nil || auth.UserID == uuid.Nil {
		return &UnauthorizedError{Message: "Authentication required"}
	}
	return nil
}

// validateDeckFields trims and checks the deck name/description
// constraints, reporting the first failing field.
func validateDeckFields(name, description string) (string, *string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, fieldError("name", "Deck name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return "", nil, fieldError("name", "Deck name must be less than 255 characters")
	}

	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) > maxTextLen {
		return "", nil, fieldError("description", "Description must be less than 1000 characters")
	}
	if description == "" {
		return name, nil, nil
	}
	return name, &description, nil
}

func validateCardFields(front, back string) (string, string, error) {
	front = strings.TrimSpace(front)
	if front == "" {
		return "", "", fieldError("front", "Card front cannot be empty")
	}
	if utf8.RuneCountInString(front) > maxTextLen {
		return "", "", fieldError("front", "Card front must be less than 1000 characters")
	}

	back = strings.TrimSpace(back)
	if back == "" {
		return "", "", fieldError("back", "Card back cannot be empty")
	}
	if utf8.RuneCountInString(back) > maxTextLen {
		return "", "", fieldError("back", "Card back must be less than 1000 characters")
	}
	return front, back, nil
}

// ListDecks returns the user's decks with card counts, via the dashboard
// cache when warm.
func (s *DeckService) ListDecks(ctx context.Context, auth *middleware.AuthContext) ([]models.DeckWithCount, error) {
	if err := requireAuth(auth); err != nil {
		return nil, err
	}

	if decks, ok := s.cache.GetDeckList(ctx, auth.UserID); ok {
		return decks, nil
	}

	decks, err := s.decks.ListByUser(ctx, auth.UserID)
	if err != nil {
		return nil, err
	}

	s.cache.SetDeckList(ctx, auth.UserID, decks)
	return decks, nil
}

// GetDeck returns the deck with its cards. Cache hits still enforce
// ownership.
func (s *DeckService) GetDeck(ctx context.Context, auth *middleware.AuthContext, deckID uuid.UUID) (*models.Deck, []models.Card, error) {
	if err := requireAuth(auth); err != nil {
		return nil, nil, err
	}

	if view, ok := s.cache.GetDeckView(ctx, deckID); ok {
		if view.Deck.UserID != auth.UserID {
			return nil, nil, &NotFoundError{Message: "Deck not found or access denied"}
		}
		return &view.Deck, view.Cards, nil
	}

	deck, err := assertOwnedDeck(ctx, s.decks, deckID, auth.UserID)
	if err != nil {
		return nil, nil, err
	}

	cards, err := s.cards.ListByDeck(ctx, deckID)
	if err != nil {
		return nil, nil, err
	}

	s.cache.SetDeckView(ctx, deckID, &DeckView{Deck: *deck, Cards: cards})
	return deck, cards, nil
}

// StudyDeck is GetDeck plus the study-page precondition: a session never
// starts on an empty deck.
func (s *DeckService) StudyDeck(ctx context.Context, auth *middleware.AuthContext, deckID uuid.UUID) (*models.Deck, []models.Card, error) {
	deck, cards, err := s.GetDeck(ctx, auth, deckID)
	if err != nil {
		return nil, nil, err
	}
	if len(cards) == 0 {
		return nil, nil, fieldError("deck", "This deck has no cards to study. Add cards before starting a session.")
	}
	return deck, cards, nil
}

func (s *DeckService) CreateDeck(ctx context.Context, auth *middleware.AuthContext, name, description string) (*models.Deck, error) {
	if err := requireAuth(auth); err != nil {
		return nil, err
	}

	trimmedName, trimmedDesc, err := validateDeckFields(name, description)
	if err != nil {
		return nil, err
	}

	// Free users are capped; the unlimited_decks feature or the pro plan
	// lifts the cap.
	hasUnlimited := auth.Has(middleware.Entitlement{Feature: middleware.FeatureUnlimitedDecks}) ||
		auth.Has(middleware.Entitlement{Plan: middleware.PlanPro})
	if !hasUnlimited {
		count, err := s.decks.CountByUser(ctx, auth.UserID)
		if err != nil {
			return nil, err
		}
		if count >= FreeDeckLimit {
			return nil, &LimitReachedError{
				Message: "You've reached the free plan limit of 3 decks. Upgrade to Pro for unlimited decks.",
			}
		}
	}

	deck := &models.Deck{
		UserID:      auth.UserID,
		Name:        trimmedName,
		Description: trimmedDesc,
	}
	if err := s.decks.Insert(ctx, deck); err != nil {
		return nil, err
	}

	s.cache.InvalidateDeckList(ctx, auth.UserID)
	return deck, nil
}

func (s *DeckService) EditDeck(ctx context.Context, auth *middleware.AuthContext, deckID uuid.UUID, name, description string) (*models.Deck, error) {
	if err := requireAuth(auth); err != nil {
		return nil, err
	}

	trimmedName, trimmedDesc, err := validateDeckFields(name, description)
	if err != nil {
		return nil, err
	}

	deck, err := assertOwnedDeck(ctx, s.decks, deckID, auth.UserID)
	if err != nil {
		return nil, err
	}

	deck.Name = trimmedName
	deck.Description = trimmedDesc
	if err := s.decks.Update(ctx, deck); err != nil {
		return nil, err
	}

	s.cache.InvalidateDeckView(ctx, deckID)
	s.cache.InvalidateDeckList(ctx, auth.UserID)
	return deck, nil
}

func (s *DeckService) DeleteDeck(ctx context.Context, auth *middleware.AuthContext, deckID uuid.UUID) error {
	if err := requireAuth(auth); err != nil {
		return err
	}

	if _, err := assertOwnedDeck(ctx, s.decks, deckID, auth.UserID); err != nil {
		return err
	}

	// Cards cascade away with the deck in one persistence-layer operation.
	if err := s.decks.Delete(ctx, deckID); err != nil {
		return err
	}

	s.cache.InvalidateDeckView(ctx, deckID)
	s.cache.InvalidateDeckList(ctx, auth.UserID)
	return nil
}

func (s *DeckService) AddCard(ctx context.Context, auth *middleware.AuthContext, deckID uuid.UUID, front, back string) (*models.Card, error) {
	if err := requireAuth(auth); err != nil {
		return nil, err
	}

	trimmedFront, trimmedBack, err := validateCardFields(front, back)
	if err != nil {
		return nil, err
	}

	if _, err := assertOwnedDeck(ctx, s.decks, deckID, auth.UserID); err != nil {
		return nil, err
	}

	card := &models.Card{
		DeckID: deckID,
		Front:  trimmedFront,
		Back:   trimmedBack,
	}
	if err := s.cards.Insert(ctx, card); err != nil {
		return nil, err
	}

	s.cache.InvalidateDeckView(ctx, deckID)
	s.cache.InvalidateDeckList(ctx, auth.UserID)
	return card, nil
}

func (s *DeckService) EditCard(ctx context.Context, auth *middleware.AuthContext, deckID, cardID uuid.UUID, front, back string) (*models.Card, error) {
	if err := requireAuth(auth); err != nil {
		return nil, err
	}

	trimmedFront, trimmedBack, err := validateCardFields(front, back)
	if err != nil {
		return nil, err
	}

	if _, err := assertOwnedDeck(ctx, s.decks, deckID, auth.UserID); err != nil {
		return nil, err
	}

	card, err := s.assertCardInDeck(ctx, cardID, deckID)
	if err != nil {
		return nil, err
	}

	card.Front = trimmedFront
	card.Back = trimmedBack
	if err := s.cards.Update(ctx, card); err != nil {
		return nil, err
	}

	s.cache.InvalidateDeckView(ctx, deckID)
	return card, nil
}

func (s *DeckService) DeleteCard(ctx context.Context, auth *middleware.AuthContext, deckID, cardID uuid.UUID) error {
	if err := requireAuth(auth); err != nil {
		return err
	}

	if _, err := assertOwnedDeck(ctx, s.decks, deckID, auth.UserID); err != nil {
		return err
	}

	if _, err := s.assertCardInDeck(ctx, cardID, deckID); err != nil {
		return err
	}

	if err := s.cards.Delete(ctx, cardID); err != nil {
		return err
	}

	s.cache.InvalidateDeckView(ctx, deckID)
	s.cache.InvalidateDeckList(ctx, auth.UserID)
	return nil
}
