package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"flashdeck-backend/internal/middleware"
)

type GenerateHandler struct {
	generationService generationService
}

type generationService interface {
	GenerateCards(ctx context.Context, auth *middleware.AuthContext, deckID uuid.UUID) (int, error)
}

func NewGenerateHandler(generationService generationService) *GenerateHandler {
	return &GenerateHandler{generationService: generationService}
}

// Generate fills the deck with AI-generated cards based on its description.
// Synchronous: the response carries the final card count.
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	deckID := parseIDParam(w, r, "id")
	if deckID == uuid.Nil {
		return
	}

	count, err := h.generationService.GenerateCards(r.Context(), middleware.GetAuth(r.Context()), deckID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":    true,
		"card_count": count,
	})
}
