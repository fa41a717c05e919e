package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"flashdeck-backend/internal/middleware"
	"flashdeck-backend/internal/models"
)

// GeneratedCardCount is how many front/back pairs one generation run asks
// the model for.
const GeneratedCardCount = 20

// GeneratedCard is one front/back pair as returned by the generator.
type GeneratedCard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

type cardGenerator interface {
	GenerateCards(ctx context.Context, prompt string) ([]GeneratedCard, error)
}

// GenerationService builds a prompt from deck metadata, asks the model for
// a structured batch of cards, and inserts them atomically.
type GenerationService struct {
	generator cardGenerator
	decks     deckRepository
	cards     cardRepository
	cache     ViewCache
	rateChan  chan struct{}
}

func NewGenerationService(generator cardGenerator, decks deckRepository, cards cardRepository, cache ViewCache, concurrentReqs int) *GenerationService {
	if concurrentReqs < 1 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GenerationService{
		generator: generator,
		decks:     decks,
		cards:     cards,
		cache:     cache,
		rateChan:  rateChan,
	}
}

// acquireRate blocks until a concurrency slot is available
func (s *GenerationService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return &UpstreamError{Kind: UpstreamRateLimit, Message: "Timed out waiting for a generation slot. Please try again."}
	}
}

func (s *GenerationService) releaseRate() {
	s.rateChan <- struct{}{}
}

// GenerateCards runs the full generation pipeline for a deck. The deck must
// be owned by the caller, carry the ai_generated_cards entitlement, and
// have a description to use as generation context. Returns the number of
// cards inserted.
func (s *GenerationService) GenerateCards(ctx context.Context, auth *middleware.AuthContext, deckID uuid.UUID) (int, error) {
	if err := requireAuth(auth); err != nil {
		return 0, err
	}

	if !auth.Has(middleware.Entitlement{Feature: middleware.FeatureAIGeneratedCards}) {
		return 0, &UpgradeRequiredError{Message: "AI card generation requires a Pro subscription"}
	}

	deck, err := assertOwnedDeck(ctx, s.decks, deckID, auth.UserID)
	if err != nil {
		return 0, err
	}

	if deck.Description == nil || strings.TrimSpace(*deck.Description) == "" {
		return 0, fieldError("description",
			"A deck description is required to generate cards with AI. Please add a description to your deck first.")
	}

	prompt := buildGenerationPrompt(deck.Name, *deck.Description)

	if err := s.acquireRate(ctx); err != nil {
		return 0, err
	}
	defer s.releaseRate()

	generated, err := s.generator.GenerateCards(ctx, prompt)
	if err != nil {
		return 0, classifyUpstreamError(err)
	}

	batch := make([]models.Card, 0, len(generated))
	for _, g := range generated {
		front := strings.TrimSpace(g.Front)
		back := strings.TrimSpace(g.Back)
		if front == "" || back == "" {
			continue
		}
		batch = append(batch, models.Card{
			Front: truncateRunes(front, maxTextLen),
			Back:  truncateRunes(back, maxTextLen),
		})
	}

	if len(batch) == 0 {
		return 0, &UpstreamError{Kind: UpstreamGeneric, Message: "No cards were generated. Please try again."}
	}

	// Single transaction: the whole batch or nothing
	if err := s.cards.InsertBatch(ctx, deckID, batch); err != nil {
		return 0, err
	}

	s.cache.InvalidateDeckView(ctx, deckID)
	s.cache.InvalidateDeckList(ctx, auth.UserID)

	return len(batch), nil
}

// truncateRunes cuts s to at most n characters, never splitting a rune.
// The column limits count characters, not bytes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// languagePatterns is the fixed vocabulary used to classify a deck as
// language learning. Substring match, case-insensitive; a heuristic, not a
// guarantee.
var languagePatterns = []string{
	"language", "vocabulary", "words", "translation", "french", "spanish",
	"german", "italian", "chinese", "japanese", "korean", "arabic", "russian",
	"english", "portuguese", "dutch", "swedish", "hindi", "turkish", "polish",
	"learn to speak", "learn language",
}

func isLanguageLearning(name, description string) bool {
	combined := strings.ToLower(name + " " + description)
	for _, pattern := range languagePatterns {
		if strings.Contains(combined, pattern) {
			return true
		}
	}
	return false
}

func buildGenerationPrompt(name, description string) string {
	if isLanguageLearning(name, description) {
		return buildLanguagePrompt(name, description)
	}
	return buildEducationalPrompt(name, description)
}

func buildLanguagePrompt(name, description string) string {
	var b strings.Builder

	b.WriteString("CRITICAL: Return ONLY a valid JSON array. No preamble, no markdown, no backticks.\n\n")
	fmt.Fprintf(&b, "Generate exactly %d vocabulary flashcards for language learning about: %s\n\n", GeneratedCardCount, name)
	fmt.Fprintf(&b, "Additional context: %s\n\n", description)

	b.WriteString(`Requirements for LANGUAGE LEARNING cards:
- Front: English word or short phrase
- Back: Direct translation in the target language (no lengthy explanations)
- Keep it simple and focused on vocabulary
- If helpful, you may include the word type (noun, verb, adjective) in parentheses
- Example format:
  * Front: "Hello"
  * Back: "Bonjour"
  OR
  * Front: "Cat"
  * Back: "Gato (noun)"

JSON schema per card:
{"front": "string", "back": "string"}

Create cards that help users learn the target language from English.`)

	return b.String()
}

func buildEducationalPrompt(name, description string) string {
	var b strings.Builder

	b.WriteString("CRITICAL: Return ONLY a valid JSON array. No preamble, no markdown, no backticks.\n\n")
	fmt.Fprintf(&b, "Generate exactly %d educational flashcards about: %s\n\n", GeneratedCardCount, name)
	fmt.Fprintf(&b, "Additional context: %s\n\n", description)

	b.WriteString(`Requirements for EDUCATIONAL cards:
- Front: Clear, focused questions that test understanding (e.g., "What is...", "How does...", "Why does...")
- Back: Concise but informative answers (2-4 sentences)
- Coverage: Cover different aspects and key concepts of the topic
- Format: Use simple, clear language appropriate for studying
- Variety: Include different types of questions:
  * Definitions: "What is X?"
  * Explanations: "How does X work?"
  * Applications: "When would you use X?"
  * Comparisons: "What's the difference between X and Y?"
  * Examples: "Give an example of X"

JSON schema per card:
{"front": "string", "back": "string"}

Create cards that promote deep understanding and retention.`)

	return b.String()
}

// classifyUpstreamError sorts provider failures into the credential /
// rate-limit / generic taxonomy, passing the message through.
func classifyUpstreamError(err error) *UpstreamError {
	if ue, ok := err.(*UpstreamError); ok {
		return ue
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	// gRPC status names come through without spaces ("ResourceExhausted"),
	// REST messages with them. Match on the space-stripped form.
	flat := strings.ReplaceAll(lower, " ", "")

	switch {
	case strings.Contains(lower, "api key") || strings.Contains(lower, "credential") ||
		strings.Contains(msg, "401") || strings.Contains(lower, "unauthenticated"):
		return &UpstreamError{Kind: UpstreamCredential, Message: "Generation API key is missing or invalid. Please check the server configuration."}
	case strings.Contains(lower, "rate limit") || strings.Contains(msg, "429") ||
		strings.Contains(lower, "quota") || strings.Contains(flat, "resourceexhausted"):
		return &UpstreamError{Kind: UpstreamRateLimit, Message: "Rate limit exceeded. Please try again in a few moments."}
	default:
		return &UpstreamError{Kind: UpstreamGeneric, Message: fmt.Sprintf("AI generation error: %s", msg)}
	}
}
