package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"flashdeck-backend/internal/middleware"
	"flashdeck-backend/internal/models"
	"flashdeck-backend/internal/services"
	"flashdeck-backend/internal/study"
)

type stubDeckService struct {
	decks []models.DeckWithCount
	deck  *models.Deck
	card  *models.Card
	cards []models.Card
	err   error

	createdName string
	deleted     bool
}

func (s *stubDeckService) ListDecks(ctx context.Context, auth *middleware.AuthContext) ([]models.DeckWithCount, error) {
	return s.decks, s.err
}

func (s *stubDeckService) GetDeck(ctx context.Context, auth *middleware.AuthContext, deckID uuid.UUID) (*models.Deck, []models.Card, error) {
	return s.deck, s.cards, s.err
}

func (s *stubDeckService) StudyDeck(ctx context.Context, auth *middleware.AuthContext, deckID uuid.UUID) (*models.Deck, []models.Card, error) {
	return s.deck, s.cards, s.err
}

func (s *stubDeckService) CreateDeck(ctx context.Context, auth *middleware.AuthContext, name, description string) (*models.Deck, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.createdName = name
	return s.deck, nil
}

func (s *stubDeckService) EditDeck(ctx context.Context, auth *middleware.AuthContext, deckID uuid.UUID, name, description string) (*models.Deck, error) {
	return s.deck, s.err
}

func (s *stubDeckService) DeleteDeck(ctx context.Context, auth *middleware.AuthContext, deckID uuid.UUID) error {
	if s.err == nil {
		s.deleted = true
	}
	return s.err
}

func (s *stubDeckService) AddCard(ctx context.Context, auth *middleware.AuthContext, deckID uuid.UUID, front, back string) (*models.Card, error) {
	return s.card, s.err
}

func (s *stubDeckService) EditCard(ctx context.Context, auth *middleware.AuthContext, deckID, cardID uuid.UUID, front, back string) (*models.Card, error) {
	return s.card, s.err
}

func (s *stubDeckService) DeleteCard(ctx context.Context, auth *middleware.AuthContext, deckID, cardID uuid.UUID) error {
	return s.err
}

func authedRequest(method, target string, body []byte, auth *middleware.AuthContext, params map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	req = req.WithContext(context.WithValue(req.Context(), middleware.AuthKey, auth))

	return req
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

func TestDeckHandler_Create_LimitReached(t *testing.T) {
	svc := &stubDeckService{err: &services.LimitReachedError{
		Message: "You've reached the free plan limit of 3 decks. Upgrade to Pro for unlimited decks.",
	}}
	h := NewDeckHandler(svc)

	payload, _ := json.Marshal(models.DeckRequest{Name: "One more"})
	auth := &middleware.AuthContext{UserID: uuid.New(), Plan: middleware.PlanFree}
	req := authedRequest(http.MethodPost, "/api/v1/decks", payload, auth, nil)

	rr := httptest.NewRecorder()
	h.Create(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rr.Code)
	}
	body := decodeBody(t, rr)
	if body["limit_reached"] != true {
		t.Errorf("expected limit_reached flag, got %v", body)
	}
	if body["success"] != false {
		t.Errorf("expected success false, got %v", body["success"])
	}
}

func TestDeckHandler_Create_ValidationErrorNamesField(t *testing.T) {
	svc := &stubDeckService{err: &services.ValidationError{
		Fields: map[string]string{"name": "Deck name is required"},
	}}
	h := NewDeckHandler(svc)

	payload, _ := json.Marshal(models.DeckRequest{Name: ""})
	auth := &middleware.AuthContext{UserID: uuid.New(), Plan: middleware.PlanFree}
	req := authedRequest(http.MethodPost, "/api/v1/decks", payload, auth, nil)

	rr := httptest.NewRecorder()
	h.Create(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}

	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error.Fields["name"] == "" {
		t.Errorf("expected field error for name, got %v", resp.Error.Fields)
	}
}

func TestDeckHandler_Get_NotFoundForNonOwner(t *testing.T) {
	svc := &stubDeckService{err: &services.NotFoundError{Message: "Deck not found or access denied"}}
	h := NewDeckHandler(svc)

	deckID := uuid.New()
	auth := &middleware.AuthContext{UserID: uuid.New(), Plan: middleware.PlanFree}
	req := authedRequest(http.MethodGet, "/api/v1/decks/"+deckID.String(), nil, auth,
		map[string]string{"id": deckID.String()})

	rr := httptest.NewRecorder()
	h.Get(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestDeckHandler_Get_RejectsMalformedID(t *testing.T) {
	svc := &stubDeckService{}
	h := NewDeckHandler(svc)

	auth := &middleware.AuthContext{UserID: uuid.New(), Plan: middleware.PlanFree}
	req := authedRequest(http.MethodGet, "/api/v1/decks/not-a-uuid", nil, auth,
		map[string]string{"id": "not-a-uuid"})

	rr := httptest.NewRecorder()
	h.Get(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestGenerateHandler_UpgradeRequired(t *testing.T) {
	svc := &stubGenerationService{err: &services.UpgradeRequiredError{
		Message: "AI card generation requires a Pro subscription",
	}}
	h := NewGenerateHandler(svc)

	deckID := uuid.New()
	auth := &middleware.AuthContext{UserID: uuid.New(), Plan: middleware.PlanFree}
	req := authedRequest(http.MethodPost, "/api/v1/decks/"+deckID.String()+"/generate", nil, auth,
		map[string]string{"id": deckID.String()})

	rr := httptest.NewRecorder()
	h.Generate(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rr.Code)
	}
	body := decodeBody(t, rr)
	if body["requires_upgrade"] != true {
		t.Errorf("expected requires_upgrade flag, got %v", body)
	}
}

type stubGenerationService struct {
	count int
	err   error
}

func (s *stubGenerationService) GenerateCards(ctx context.Context, auth *middleware.AuthContext, deckID uuid.UUID) (int, error) {
	return s.count, s.err
}

func TestGenerateHandler_Success(t *testing.T) {
	svc := &stubGenerationService{count: 20}
	h := NewGenerateHandler(svc)

	deckID := uuid.New()
	auth := &middleware.AuthContext{UserID: uuid.New(), Plan: middleware.PlanPro}
	req := authedRequest(http.MethodPost, "/api/v1/decks/"+deckID.String()+"/generate", nil, auth,
		map[string]string{"id": deckID.String()})

	rr := httptest.NewRecorder()
	h.Generate(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	body := decodeBody(t, rr)
	if body["card_count"] != float64(20) {
		t.Errorf("expected card_count 20, got %v", body["card_count"])
	}
}

func TestGenerateHandler_UpstreamRateLimit(t *testing.T) {
	svc := &stubGenerationService{err: &services.UpstreamError{
		Kind:    services.UpstreamRateLimit,
		Message: "Rate limit exceeded. Please try again in a few moments.",
	}}
	h := NewGenerateHandler(svc)

	deckID := uuid.New()
	auth := &middleware.AuthContext{UserID: uuid.New(), Plan: middleware.PlanPro}
	req := authedRequest(http.MethodPost, "/api/v1/decks/"+deckID.String()+"/generate", nil, auth,
		map[string]string{"id": deckID.String()})

	rr := httptest.NewRecorder()
	h.Generate(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, rr.Code)
	}
}

func studyTestCards(n int) []models.Card {
	deckID := uuid.New()
	cards := make([]models.Card, n)
	for i := range cards {
		cards[i] = models.Card{ID: uuid.New(), DeckID: deckID, Front: "q", Back: "a"}
	}
	return cards
}

func TestStudyHandler_FullSessionFlow(t *testing.T) {
	cards := studyTestCards(2)
	svc := &stubDeckService{cards: cards}
	manager := study.NewManager(0, time.Hour)
	h := NewStudyHandler(svc, manager)

	auth := &middleware.AuthContext{UserID: uuid.New(), Plan: middleware.PlanFree}

	// Start
	payload, _ := json.Marshal(map[string]string{"deck_id": cards[0].DeckID.String()})
	req := authedRequest(http.MethodPost, "/api/v1/study/sessions", payload, auth, nil)
	rr := httptest.NewRecorder()
	h.Start(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("start: expected %d, got %d", http.StatusCreated, rr.Code)
	}
	var startResp struct {
		Session study.Snapshot `json:"session"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&startResp); err != nil {
		t.Fatalf("failed to decode start response: %v", err)
	}
	sessionID := startResp.Session.ID.String()

	postEvent := func(body map[string]string) (int, map[string]interface{}) {
		payload, _ := json.Marshal(body)
		req := authedRequest(http.MethodPost, "/api/v1/study/sessions/"+sessionID+"/events", payload, auth,
			map[string]string{"id": sessionID})
		rr := httptest.NewRecorder()
		h.PostEvent(rr, req)
		return rr.Code, decodeBody(t, rr)
	}

	// Answer before flip is rejected by the reducer, not an HTTP error
	code, body := postEvent(map[string]string{"type": "answer", "verdict": "correct"})
	if code != http.StatusOK || body["accepted"] != false {
		t.Fatalf("pre-flip answer: code=%d accepted=%v", code, body["accepted"])
	}

	code, body = postEvent(map[string]string{"type": "flip"})
	if code != http.StatusOK || body["accepted"] != true {
		t.Fatalf("flip: code=%d accepted=%v", code, body["accepted"])
	}

	// Zero auto-advance delay: the accepted answer lands on card 2
	_, body = postEvent(map[string]string{"type": "answer", "verdict": "correct"})
	session := body["session"].(map[string]interface{})
	if session["current_index"] != float64(1) {
		t.Fatalf("expected auto-advance to index 1, got %v", session["current_index"])
	}

	postEvent(map[string]string{"type": "flip"})
	_, body = postEvent(map[string]string{"type": "answer", "verdict": "wrong"})
	session = body["session"].(map[string]interface{})
	if session["complete"] != true {
		t.Fatalf("expected complete session, got %v", session)
	}
	if session["score_percent"] != float64(50) {
		t.Errorf("expected score 50, got %v", session["score_percent"])
	}

	// Reset from complete works and restores the initial state
	_, body = postEvent(map[string]string{"type": "reset"})
	session = body["session"].(map[string]interface{})
	if body["accepted"] != true || session["current_index"] != float64(0) || session["complete"] != false {
		t.Fatalf("reset: %v", body)
	}

	// End
	req = authedRequest(http.MethodDelete, "/api/v1/study/sessions/"+sessionID, nil, auth,
		map[string]string{"id": sessionID})
	rr = httptest.NewRecorder()
	h.End(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("end: expected %d, got %d", http.StatusOK, rr.Code)
	}
}

func TestStudyHandler_RejectsUnknownEvent(t *testing.T) {
	cards := studyTestCards(1)
	svc := &stubDeckService{cards: cards}
	manager := study.NewManager(0, time.Hour)
	h := NewStudyHandler(svc, manager)

	auth := &middleware.AuthContext{UserID: uuid.New(), Plan: middleware.PlanFree}
	session, err := manager.Start(auth.UserID, cards[0].DeckID, cards)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []map[string]string{
		{"type": "shuffle"},
		{"type": "answer", "verdict": "maybe"},
		{"type": "answer"},
		{"type": ""},
	}

	for _, body := range tests {
		payload, _ := json.Marshal(body)
		req := authedRequest(http.MethodPost, "/api/v1/study/sessions/"+session.ID.String()+"/events", payload, auth,
			map[string]string{"id": session.ID.String()})
		rr := httptest.NewRecorder()
		h.PostEvent(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("event %v: expected %d, got %d", body, http.StatusBadRequest, rr.Code)
		}
	}
}

func TestStudyHandler_SessionHiddenFromOtherUsers(t *testing.T) {
	cards := studyTestCards(1)
	svc := &stubDeckService{cards: cards}
	manager := study.NewManager(0, time.Hour)
	h := NewStudyHandler(svc, manager)

	owner := uuid.New()
	session, err := manager.Start(owner, cards[0].DeckID, cards)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stranger := &middleware.AuthContext{UserID: uuid.New(), Plan: middleware.PlanFree}
	req := authedRequest(http.MethodGet, "/api/v1/study/sessions/"+session.ID.String(), nil, stranger,
		map[string]string{"id": session.ID.String()})

	rr := httptest.NewRecorder()
	h.Get(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected %d for another user's session, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestCardHandler_Update_NotFoundForForeignCard(t *testing.T) {
	svc := &stubDeckService{err: &services.NotFoundError{Message: "Card not found or does not belong to this deck"}}
	h := NewCardHandler(svc)

	deckID := uuid.New()
	cardID := uuid.New()
	auth := &middleware.AuthContext{UserID: uuid.New(), Plan: middleware.PlanFree}

	payload, _ := json.Marshal(models.CardRequest{Front: "f", Back: "b"})
	req := authedRequest(http.MethodPut, "/api/v1/decks/"+deckID.String()+"/cards/"+cardID.String(), payload, auth,
		map[string]string{"id": deckID.String(), "cardID": cardID.String()})

	rr := httptest.NewRecorder()
	h.Update(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}
