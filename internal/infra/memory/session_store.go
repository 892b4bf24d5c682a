package memory

import (
	"context"
	"sync"

	"timed-quiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore.
// Sessions are copied on the way in and out so callers only change stored
// state through Update.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.QuizSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.QuizSession),
	}
}

func (s *SessionStore) GetActive(_ context.Context, userID int64) (*domain.QuizSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if session.UserID == userID && session.Status == domain.StatusActive {
			return session.Clone(), nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (*domain.QuizSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *SessionStore) Create(_ context.Context, session *domain.QuizSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.Version = 1
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *SessionStore) Update(_ context.Context, session *domain.QuizSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[session.ID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if stored.Version != session.Version {
		return domain.ErrSessionConflict
	}
	session.Version++
	s.sessions[session.ID] = session.Clone()
	return nil
}

// Delete is only used for cleanup; normal operation never removes sessions.
func (s *SessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
