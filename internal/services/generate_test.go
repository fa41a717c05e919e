package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

type stubGenerator struct {
	cards []GeneratedCard
	err   error

	prompt string
	calls  int
}

func (g *stubGenerator) GenerateCards(ctx context.Context, prompt string) ([]GeneratedCard, error) {
	g.calls++
	g.prompt = prompt
	return g.cards, g.err
}

func twentyCards() []GeneratedCard {
	cards := make([]GeneratedCard, GeneratedCardCount)
	for i := range cards {
		cards[i] = GeneratedCard{Front: "Question", Back: "Answer"}
	}
	return cards
}

func newGenerationHarness(gen *stubGenerator) (*GenerationService, *DeckService, *fakeCardRepo) {
	decks := newFakeDeckRepo()
	cards := newFakeCardRepo()
	deckSvc := NewDeckService(decks, cards, noopCache{})
	genSvc := NewGenerationService(gen, decks, cards, noopCache{}, 2)
	return genSvc, deckSvc, cards
}

func TestGenerateCards_InsertsBatchForProUser(t *testing.T) {
	gen := &stubGenerator{cards: twentyCards()}
	genSvc, deckSvc, cardRepo := newGenerationHarness(gen)
	auth := proAuth()
	ctx := context.Background()

	deck, err := deckSvc.CreateDeck(ctx, auth, "Photosynthesis", "Light reactions and the Calvin cycle")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count, err := genSvc.GenerateCards(ctx, auth, deck.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != GeneratedCardCount {
		t.Errorf("expected %d cards inserted, got %d", GeneratedCardCount, count)
	}

	stored, _ := cardRepo.ListByDeck(ctx, deck.ID)
	if len(stored) != GeneratedCardCount {
		t.Errorf("expected %d cards in repo, got %d", GeneratedCardCount, len(stored))
	}
}

func TestGenerateCards_RequiresEntitlement(t *testing.T) {
	gen := &stubGenerator{cards: twentyCards()}
	genSvc, deckSvc, _ := newGenerationHarness(gen)
	ctx := context.Background()

	auth := freeAuth()
	deck, err := deckSvc.CreateDeck(ctx, auth, "Biology", "Cell structure")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = genSvc.GenerateCards(ctx, auth, deck.ID)
	if _, ok := err.(*UpgradeRequiredError); !ok {
		t.Fatalf("expected UpgradeRequiredError for free plan, got %T (%v)", err, err)
	}
	if gen.calls != 0 {
		t.Error("generator must not be called when the entitlement check fails")
	}
}

func TestGenerateCards_RequiresDescription(t *testing.T) {
	gen := &stubGenerator{cards: twentyCards()}
	genSvc, deckSvc, _ := newGenerationHarness(gen)
	auth := proAuth()
	ctx := context.Background()

	deck, err := deckSvc.CreateDeck(ctx, auth, "No Context", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = genSvc.GenerateCards(ctx, auth, deck.ID)
	valErr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError for missing description, got %T (%v)", err, err)
	}
	if _, present := valErr.Fields["description"]; !present {
		t.Errorf("expected failing field description, got %v", valErr.Fields)
	}
	if gen.calls != 0 {
		t.Error("generator must not be called without a description")
	}
}

func TestGenerateCards_OwnershipEnforced(t *testing.T) {
	gen := &stubGenerator{cards: twentyCards()}
	genSvc, deckSvc, _ := newGenerationHarness(gen)
	ctx := context.Background()

	owner := proAuth()
	deck, err := deckSvc.CreateDeck(ctx, owner, "Owned", "Some description")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stranger := proAuth()
	_, err = genSvc.GenerateCards(ctx, stranger, deck.ID)
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected NotFoundError for non-owner, got %T (%v)", err, err)
	}
}

func TestGenerateCards_EmptyResultIsUpstreamError(t *testing.T) {
	gen := &stubGenerator{cards: nil}
	genSvc, deckSvc, cardRepo := newGenerationHarness(gen)
	auth := proAuth()
	ctx := context.Background()

	deck, err := deckSvc.CreateDeck(ctx, auth, "History", "The French Revolution")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = genSvc.GenerateCards(ctx, auth, deck.ID)
	ue, ok := err.(*UpstreamError)
	if !ok {
		t.Fatalf("expected UpstreamError for empty result, got %T (%v)", err, err)
	}
	if ue.Kind != UpstreamGeneric {
		t.Errorf("expected generic kind, got %q", ue.Kind)
	}

	stored, _ := cardRepo.ListByDeck(ctx, deck.ID)
	if len(stored) != 0 {
		t.Errorf("no cards should be inserted on failure, found %d", len(stored))
	}
}

func TestGenerateCards_BatchFailureInsertsNothing(t *testing.T) {
	gen := &stubGenerator{cards: twentyCards()}
	genSvc, deckSvc, cardRepo := newGenerationHarness(gen)
	auth := proAuth()
	ctx := context.Background()

	deck, err := deckSvc.CreateDeck(ctx, auth, "Chemistry", "Periodic trends")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cardRepo.batchErr = errors.New("connection reset")
	if _, err := genSvc.GenerateCards(ctx, auth, deck.ID); err == nil {
		t.Fatal("expected insert failure to surface")
	}

	stored, _ := cardRepo.ListByDeck(ctx, deck.ID)
	if len(stored) != 0 {
		t.Errorf("partial insert after batch failure: %d cards", len(stored))
	}
}

func TestGenerateCards_SkipsBlankPairs(t *testing.T) {
	cards := twentyCards()
	cards[3] = GeneratedCard{Front: "  ", Back: "orphan"}
	cards[7] = GeneratedCard{Front: "orphan", Back: ""}
	gen := &stubGenerator{cards: cards}

	genSvc, deckSvc, _ := newGenerationHarness(gen)
	auth := proAuth()
	ctx := context.Background()

	deck, err := deckSvc.CreateDeck(ctx, auth, "Physics", "Kinematics basics")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count, err := genSvc.GenerateCards(ctx, auth, deck.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != GeneratedCardCount-2 {
		t.Errorf("expected %d cards after dropping blanks, got %d", GeneratedCardCount-2, count)
	}
}

func TestGenerateCards_TruncatesOnRuneBoundaries(t *testing.T) {
	cards := twentyCards()
	// 1002 characters; a byte-based cut at 1000 would land inside 日.
	cards[0] = GeneratedCard{Front: strings.Repeat("x", 999) + "日本語", Back: "Answer"}
	gen := &stubGenerator{cards: cards}

	genSvc, deckSvc, cardRepo := newGenerationHarness(gen)
	auth := proAuth()
	ctx := context.Background()

	deck, err := deckSvc.CreateDeck(ctx, auth, "Kanji", "Common characters")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := genSvc.GenerateCards(ctx, auth, deck.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := cardRepo.ListByDeck(ctx, deck.ID)
	found := false
	for _, c := range stored {
		if !utf8.ValidString(c.Front) {
			t.Errorf("stored front is not valid UTF-8: %q", c.Front)
		}
		if n := utf8.RuneCountInString(c.Front); n > 1000 {
			t.Errorf("stored front is %d characters, want at most 1000", n)
		}
		if strings.HasSuffix(c.Front, "x日") {
			found = true
		}
	}
	if !found {
		t.Error("expected the long front truncated to 1000 characters ending in 日")
	}
}

func TestGenerateCards_RepoFailurePassesThrough(t *testing.T) {
	gen := &stubGenerator{cards: twentyCards()}
	decks := newFakeDeckRepo()
	cards := newFakeCardRepo()
	deckSvc := NewDeckService(decks, cards, noopCache{})
	genSvc := NewGenerationService(gen, decks, cards, noopCache{}, 2)
	auth := proAuth()
	ctx := context.Background()

	deck, err := deckSvc.CreateDeck(ctx, auth, "Chemistry", "Periodic trends")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	boom := errors.New("connection refused")
	decks.getErr = boom
	_, err = genSvc.GenerateCards(ctx, auth, deck.ID)
	if _, ok := err.(*NotFoundError); ok {
		t.Fatal("infrastructure failure must not be reported as not found")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected the repository error to surface, got %v", err)
	}
	if gen.calls != 0 {
		t.Error("generator must not be called when the deck lookup fails")
	}
}

func TestIsLanguageLearning(t *testing.T) {
	tests := []struct {
		name        string
		deckName    string
		description string
		want        bool
	}{
		{"french deck", "French Basics", "everyday phrases", true},
		{"vocabulary keyword", "Unit 3", "vocabulary practice", true},
		{"case insensitive", "SPANISH", "", true},
		{"keyword in description only", "Unit 5", "learn to speak Italian", true},
		{"science deck", "Photosynthesis", "light reactions", false},
		{"history deck", "WW2", "European theatre", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isLanguageLearning(tt.deckName, tt.description); got != tt.want {
				t.Errorf("isLanguageLearning(%q, %q) = %v, want %v", tt.deckName, tt.description, got, tt.want)
			}
		})
	}
}

func TestBuildGenerationPrompt_PicksTemplate(t *testing.T) {
	lang := buildGenerationPrompt("French Basics", "everyday phrases")
	if !strings.Contains(lang, "LANGUAGE LEARNING") {
		t.Error("language deck should use the language template")
	}
	if !strings.Contains(lang, "French Basics") || !strings.Contains(lang, "everyday phrases") {
		t.Error("prompt should embed the deck name and description")
	}

	edu := buildGenerationPrompt("Photosynthesis", "light reactions")
	if !strings.Contains(edu, "EDUCATIONAL") {
		t.Error("non-language deck should use the educational template")
	}
	if strings.Contains(edu, "LANGUAGE LEARNING") {
		t.Error("educational prompt must not carry language instructions")
	}
}

func TestClassifyUpstreamError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"invalid key", errors.New("API key not valid. Please pass a valid API key."), UpstreamCredential},
		{"unauthenticated", errors.New("rpc error: code = Unauthenticated"), UpstreamCredential},
		{"quota", errors.New("googleapi: Error 429: quota exceeded"), UpstreamRateLimit},
		{"resource exhausted grpc", errors.New("rpc error: code = ResourceExhausted"), UpstreamRateLimit},
		{"resource exhausted spaced", errors.New("resource exhausted: too many concurrent requests"), UpstreamRateLimit},
		{"anything else", errors.New("connection refused"), UpstreamGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ue := classifyUpstreamError(tt.err)
			if ue.Kind != tt.want {
				t.Errorf("classifyUpstreamError(%v) kind = %q, want %q", tt.err, ue.Kind, tt.want)
			}
		})
	}
}

func TestClassifyUpstreamError_PassesThroughTyped(t *testing.T) {
	in := &UpstreamError{Kind: UpstreamRateLimit, Message: "slow down"}
	if out := classifyUpstreamError(in); out != in {
		t.Error("typed upstream errors should pass through unchanged")
	}
}
