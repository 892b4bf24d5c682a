package memory

import (
	"context"
	"sync"

	"timed-quiz-service/internal/domain"
)

// ResultStore holds one QuizResult per user.
type ResultStore struct {
	mu      sync.RWMutex
	results map[int64]domain.QuizResult
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[int64]domain.QuizResult)}
}

func (s *ResultStore) UpsertResult(_ context.Context, result domain.QuizResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.UserID] = result
	return nil
}

func (s *ResultStore) GetResult(_ context.Context, userID int64) (domain.QuizResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[userID]
	if !ok {
		return domain.QuizResult{}, domain.ErrResultNotFound
	}
	return r, nil
}
