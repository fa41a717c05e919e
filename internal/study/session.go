package study

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"flashdeck-backend/internal/models"
)

// ErrEmptyDeck is returned when a session is requested over zero cards.
// Callers reject empty decks before reaching here; this is the backstop.
var ErrEmptyDeck = errors.New("study session requires at least one card")

// Session owns one user's in-flight run through a deck. The card order is
// snapshotted at creation and never changes for the session's lifetime,
// even if the deck is edited underneath it. All methods are safe for
// concurrent use.
type Session struct {
	ID     uuid.UUID
	UserID uuid.UUID
	DeckID uuid.UUID

	mu         sync.Mutex
	cards      []models.Card
	ids        []uuid.UUID
	state      State
	advance    time.Duration
	timer      *time.Timer
	gen        uint64 // invalidates a scheduled advance that lost the race
	closed     bool
	lastActive time.Time
}

// Snapshot is the session view handlers serialize. Counts are precomputed
// so callers never touch the live maps.
type Snapshot struct {
	ID           uuid.UUID          `json:"id"`
	DeckID       uuid.UUID          `json:"deck_id"`
	Cards        []models.Card      `json:"cards"`
	CurrentIndex int                `json:"current_index"`
	IsFlipped    bool               `json:"is_flipped"`
	Awaiting     bool               `json:"awaiting_answer"`
	Complete     bool               `json:"complete"`
	StudiedCount int                `json:"studied_count"`
	CorrectCount int                `json:"correct_count"`
	WrongCount   int                `json:"wrong_count"`
	Progress     int                `json:"progress_percent"`
	Score        int                `json:"score_percent"`
	Answers      map[string]Verdict `json:"answers"`
}

func NewSession(userID, deckID uuid.UUID, cards []models.Card, advance time.Duration) (*Session, error) {
	if len(cards) == 0 {
		return nil, ErrEmptyDeck
	}

	snapshot := make([]models.Card, len(cards))
	copy(snapshot, cards)
	ids := make([]uuid.UUID, len(snapshot))
	for i, c := range snapshot {
		ids[i] = c.ID
	}

	return &Session{
		ID:         uuid.New(),
		UserID:     userID,
		DeckID:     deckID,
		cards:      snapshot,
		ids:        ids,
		state:      NewState(),
		advance:    advance,
		lastActive: time.Now(),
	}, nil
}

// Apply runs one event through the reducer. Any event cancels a pending
// auto-advance first; an accepted answer on a non-final card schedules a
// new one. Returns the resulting state and whether the event was accepted.
func (s *Session) Apply(ev Event) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.state, false
	}
	s.lastActive = time.Now()
	s.cancelAdvanceLocked()

	next, accepted := Reduce(s.state, ev, s.ids)
	if !accepted {
		return s.state, false
	}
	s.state = next

	if _, isAnswer := ev.(Answer); isAnswer && !next.Complete {
		s.scheduleAdvanceLocked()
	}

	return s.state, true
}

// scheduleAdvanceLocked arranges the post-answer Next. Zero delay applies
// it inline; otherwise a timer fires it, guarded by the generation counter
// so a reset or later event in the gap makes it a no-op.
func (s *Session) scheduleAdvanceLocked() {
	if s.advance <= 0 {
		if next, ok := Reduce(s.state, Next{}, s.ids); ok {
			s.state = next
		}
		return
	}

	gen := s.gen
	s.timer = time.AfterFunc(s.advance, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || s.gen != gen {
			return
		}
		if next, ok := Reduce(s.state, Next{}, s.ids); ok {
			s.state = next
		}
	})
}

func (s *Session) cancelAdvanceLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Close tears the session down. A pending auto-advance is cancelled; every
// later Apply is rejected.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cancelAdvanceLocked()
}

func (s *Session) idle(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActive) > ttl
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	answers := make(map[string]Verdict, len(s.state.Answers))
	for id, v := range s.state.Answers {
		answers[id.String()] = v
	}

	n := len(s.cards)
	return Snapshot{
		ID:           s.ID,
		DeckID:       s.DeckID,
		Cards:        s.cards,
		CurrentIndex: s.state.Index,
		IsFlipped:    s.state.Flipped,
		Awaiting:     s.state.Awaiting,
		Complete:     s.state.Complete,
		StudiedCount: s.state.StudiedCount(),
		CorrectCount: s.state.CorrectCount(),
		WrongCount:   s.state.WrongCount(),
		Progress:     s.state.Progress(n),
		Score:        s.state.Score(n),
		Answers:      answers,
	}
}
