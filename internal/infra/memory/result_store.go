package memory

import (
	"context"
	"sync"

	"quiz-attempt-service/internal/domain"
)

// ResultStore keeps scored attempts in process.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]domain.QuizResults
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]domain.QuizResults)}
}

func (s *ResultStore) SaveResult(_ context.Context, result domain.QuizResults) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.AttemptID] = result.Clone()
	return nil
}

func (s *ResultStore) GetResult(_ context.Context, attemptID string) (domain.QuizResults, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[attemptID]
	if !ok {
		return domain.QuizResults{}, domain.ErrResultNotFound
	}
	return res.Clone(), nil
}
