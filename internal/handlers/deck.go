package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"flashdeck-backend/internal/middleware"
	"flashdeck-backend/internal/models"
)

type DeckHandler struct {
	deckService deckService
}

type deckService interface {
	ListDecks(ctx context.Context, auth *middleware.AuthContext) ([]models.DeckWithCount, error)
	GetDeck(ctx context.Context, auth *middleware.AuthContext, deckID uuid.UUID) (*models.Deck, []models.Card, error)
	StudyDeck(ctx context.Context, auth *middleware.AuthContext, deckID uuid.UUID) (*models.Deck, []models.Card, error)
	CreateDeck(ctx context.Context, auth *middleware.AuthContext, name, description string) (*models.Deck, error)
	EditDeck(ctx context.Context, auth *middleware.AuthContext, deckID uuid.UUID, name, description string) (*models.Deck, error)
	DeleteDeck(ctx context.Context, auth *middleware.AuthContext, deckID uuid.UUID) error
	AddCard(ctx context.Context, auth *middleware.AuthContext, deckID uuid.UUID, front, back string) (*models.Card, error)
	EditCard(ctx context.Context, auth *middleware.AuthContext, deckID, cardID uuid.UUID, front, back string) (*models.Card, error)
	DeleteCard(ctx context.Context, auth *middleware.AuthContext, deckID, cardID uuid.UUID) error
}

func NewDeckHandler(deckService deckService) *DeckHandler {
	return &DeckHandler{deckService: deckService}
}

// parseIDParam reads a uuid chi URL parameter; uuid.Nil means it was absent
// or malformed and a response has already been written.
func parseIDParam(w http.ResponseWriter, r *http.Request, name string) uuid.UUID {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid "+name, r))
		return uuid.Nil
	}
	return id
}

func (h *DeckHandler) List(w http.ResponseWriter, r *http.Request) {
	decks, err := h.deckService.ListDecks(r.Context(), middleware.GetAuth(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if decks == nil {
		decks = []models.DeckWithCount{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"decks":   decks,
	})
}

func (h *DeckHandler) Get(w http.ResponseWriter, r *http.Request) {
	deckID := parseIDParam(w, r, "id")
	if deckID == uuid.Nil {
		return
	}

	deck, cards, err := h.deckService.GetDeck(r.Context(), middleware.GetAuth(r.Context()), deckID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if cards == nil {
		cards = []models.Card{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"deck":    deck,
		"cards":   cards,
	})
}

func (h *DeckHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.DeckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	deck, err := h.deckService.CreateDeck(r.Context(), middleware.GetAuth(r.Context()), req.Name, req.Description)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"deck":    deck,
	})
}

func (h *DeckHandler) Update(w http.ResponseWriter, r *http.Request) {
	deckID := parseIDParam(w, r, "id")
	if deckID == uuid.Nil {
		return
	}

	var req models.DeckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	deck, err := h.deckService.EditDeck(r.Context(), middleware.GetAuth(r.Context()), deckID, req.Name, req.Description)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"deck":    deck,
	})
}

func (h *DeckHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deckID := parseIDParam(w, r, "id")
	if deckID == uuid.Nil {
		return
	}

	if err := h.deckService.DeleteDeck(r.Context(), middleware.GetAuth(r.Context()), deckID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Deck deleted",
	})
}
