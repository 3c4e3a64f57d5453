package redis

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-attempt-service/internal/app"
)

// AttemptStore is a Redis-aware implementation of app.AttemptRepository.
// Notes:
//   - Attempts, with their deadline goroutines, live in the local map; an attempt is
//     owned by the instance that started it.
//   - Redis holds a liveness marker per attempt that expires shortly after the quiz
//     time limit, so other instances and operators can see which attempts are open.
type AttemptStore struct {
	client *redis.Client
	grace  time.Duration

	mu       sync.RWMutex
	attempts map[string]*app.Attempt
}

func NewAttemptStore(client *redis.Client, grace time.Duration) *AttemptStore {
	return &AttemptStore{
		client:   client,
		grace:    grace,
		attempts: make(map[string]*app.Attempt),
	}
}

func (s *AttemptStore) Put(attempt *app.Attempt) {
	s.mu.Lock()
	s.attempts[attempt.ID()] = attempt
	s.mu.Unlock()

	ttl := attempt.TimeLimit() + s.grace
	if ttl <= 0 {
		ttl = s.grace
	}
	// best-effort liveness marker
	if err := s.client.Set(context.Background(), s.key(attempt.ID()), attempt.QuizID(), ttl).Err(); err != nil {
		log.Printf("mark attempt %s live: %v", attempt.ID(), err)
	}
}

func (s *AttemptStore) Get(attemptID string) (*app.Attempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	return attempt, ok
}

func (s *AttemptStore) Delete(attemptID string) {
	s.mu.Lock()
	delete(s.attempts, attemptID)
	s.mu.Unlock()
	_ = s.client.Del(context.Background(), s.key(attemptID)).Err()
}

// Live reports whether any instance holds attemptID open.
func (s *AttemptStore) Live(ctx context.Context, attemptID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(attemptID)).Result()
	return n > 0, err
}

func (s *AttemptStore) key(attemptID string) string {
	return "quiz:attempt:" + attemptID
}
