package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"flashdeck-backend/internal/middleware"
	"flashdeck-backend/internal/study"
)

// StudyHandler exposes the study session lifecycle: start over a deck,
// inspect, apply events, end. Sessions live in the manager's memory and
// belong to the user who started them.
type StudyHandler struct {
	deckService deckService
	sessions    *study.Manager
}

func NewStudyHandler(deckService deckService, sessions *study.Manager) *StudyHandler {
	return &StudyHandler{deckService: deckService, sessions: sessions}
}

type startSessionRequest struct {
	DeckID uuid.UUID `json:"deck_id"`
}

type sessionEventRequest struct {
	Type    string `json:"type"`
	Verdict string `json:"verdict,omitempty"`
}

// parseEvent maps the wire event to a reducer event. Unknown types and a
// missing or unknown verdict on answer are rejected before the reducer
// sees them.
func parseEvent(req sessionEventRequest) (study.Event, bool) {
	switch req.Type {
	case "flip":
		return study.Flip{}, true
	case "next":
		return study.Next{}, true
	case "previous":
		return study.Previous{}, true
	case "answer":
		verdict := study.Verdict(req.Verdict)
		if verdict != study.VerdictCorrect && verdict != study.VerdictWrong {
			return nil, false
		}
		return study.Answer{Verdict: verdict}, true
	case "reset":
		return study.Reset{}, true
	default:
		return nil, false
	}
}

func (h *StudyHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeckID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "deck_id is required", r))
		return
	}

	auth := middleware.GetAuth(r.Context())
	_, cards, err := h.deckService.StudyDeck(r.Context(), auth, req.DeckID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	session, err := h.sessions.Start(auth.UserID, req.DeckID, cards)
	if err != nil {
		// StudyDeck already rejected empty decks; this is the backstop
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"session": session.Snapshot(),
	})
}

func (h *StudyHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := parseIDParam(w, r, "id")
	if sessionID == uuid.Nil {
		return
	}

	auth := middleware.GetAuth(r.Context())
	session, err := h.sessions.Get(sessionID, auth.UserID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Study session not found", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"session": session.Snapshot(),
	})
}

func (h *StudyHandler) PostEvent(w http.ResponseWriter, r *http.Request) {
	sessionID := parseIDParam(w, r, "id")
	if sessionID == uuid.Nil {
		return
	}

	var req sessionEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	ev, ok := parseEvent(req)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Unknown event type or verdict", r))
		return
	}

	auth := middleware.GetAuth(r.Context())
	session, err := h.sessions.Get(sessionID, auth.UserID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Study session not found", r))
		return
	}

	// Guarded-off transitions are no-ops, not failures; accepted tells the
	// client whether anything changed.
	_, accepted := session.Apply(ev)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"accepted": accepted,
		"session":  session.Snapshot(),
	})
}

func (h *StudyHandler) End(w http.ResponseWriter, r *http.Request) {
	sessionID := parseIDParam(w, r, "id")
	if sessionID == uuid.Nil {
		return
	}

	auth := middleware.GetAuth(r.Context())
	if err := h.sessions.End(sessionID, auth.UserID); err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Study session not found", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Study session ended",
	})
}
