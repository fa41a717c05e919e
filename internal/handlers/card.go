package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"flashdeck-backend/internal/middleware"
	"flashdeck-backend/internal/models"
)

// CardHandler serves the nested card routes under a deck. It shares the
// deck service so every card operation rides the same ownership pipeline.
type CardHandler struct {
	deckService deckService
}

func NewCardHandler(deckService deckService) *CardHandler {
	return &CardHandler{deckService: deckService}
}

func (h *CardHandler) Create(w http.ResponseWriter, r *http.Request) {
	deckID := parseIDParam(w, r, "id")
	if deckID == uuid.Nil {
		return
	}

	var req models.CardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	card, err := h.deckService.AddCard(r.Context(), middleware.GetAuth(r.Context()), deckID, req.Front, req.Back)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"card":    card,
	})
}

func (h *CardHandler) Update(w http.ResponseWriter, r *http.Request) {
	deckID := parseIDParam(w, r, "id")
	if deckID == uuid.Nil {
		return
	}
	cardID := parseIDParam(w, r, "cardID")
	if cardID == uuid.Nil {
		return
	}

	var req models.CardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	card, err := h.deckService.EditCard(r.Context(), middleware.GetAuth(r.Context()), deckID, cardID, req.Front, req.Back)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"card":    card,
	})
}

func (h *CardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deckID := parseIDParam(w, r, "id")
	if deckID == uuid.Nil {
		return
	}
	cardID := parseIDParam(w, r, "cardID")
	if cardID == uuid.Nil {
		return
	}

	if err := h.deckService.DeleteCard(r.Context(), middleware.GetAuth(r.Context()), deckID, cardID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Card deleted",
	})
}
