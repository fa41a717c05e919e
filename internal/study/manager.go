package study

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"flashdeck-backend/internal/models"
)

// ErrSessionNotFound covers both an unknown session id and a session owned
// by someone else.
var ErrSessionNotFound = errors.New("study session not found")

// Manager tracks live sessions by id and sweeps out the abandoned ones.
// Sessions are in-memory only; a restart loses them and the client starts
// over.
type Manager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	advance  time.Duration
	ttl      time.Duration
}

func NewManager(advance, ttl time.Duration) *Manager {
	m := &Manager{
		sessions: make(map[uuid.UUID]*Session),
		advance:  advance,
		ttl:      ttl,
	}

	go m.cleanupLoop()

	return m
}

// Start opens a session over the given card snapshot. An existing session
// by the same user on the same deck is closed and replaced.
func (m *Manager) Start(userID, deckID uuid.UUID, cards []models.Card) (*Session, error) {
	session, err := NewSession(userID, deckID, cards, m.advance)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, existing := range m.sessions {
		if existing.UserID == userID && existing.DeckID == deckID {
			existing.Close()
			delete(m.sessions, id)
		}
	}
	m.sessions[session.ID] = session

	return session, nil
}

// Get returns the session if it exists and belongs to the user.
func (m *Manager) Get(sessionID, userID uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok || session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// End closes and removes the session.
func (m *Manager) End(sessionID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok || session.UserID != userID {
		return ErrSessionNotFound
	}

	session.Close()
	delete(m.sessions, sessionID)
	return nil
}

// cleanupLoop drops sessions idle past the TTL
func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()

		m.mu.Lock()
		for id, session := range m.sessions {
			if session.idle(now, m.ttl) {
				session.Close()
				delete(m.sessions, id)
			}
		}
		m.mu.Unlock()
	}
}
