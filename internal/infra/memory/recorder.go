package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiz-attempt-service/internal/domain"
)

// AttemptRecord is what the recorder remembers about an open attempt.
type AttemptRecord struct {
	QuizID    string
	UserID    string
	StartedAt time.Time
}

// RecorderStats are running totals since the recorder was created.
type RecorderStats struct {
	Started   int
	Completed int
	Passed    int
	Open      int
}

// Recorder is an in-process app.AttemptRecorder. It only holds attempts that are still
// open; completed ones are folded into the totals and records older than maxAge are
// dropped as abandoned.
type Recorder struct {
	now    func() time.Time
	maxAge time.Duration

	mu      sync.Mutex
	records map[string]AttemptRecord
	stats   RecorderStats
}

func NewRecorder(maxAge time.Duration) *Recorder {
	return NewRecorderWithClock(maxAge, time.Now)
}

// NewRecorderWithClock allows deterministic pruning in tests.
func NewRecorderWithClock(maxAge time.Duration, now func() time.Time) *Recorder {
	return &Recorder{now: now, maxAge: maxAge, records: make(map[string]AttemptRecord)}
}

func (r *Recorder) RecordStart(_ context.Context, quizID, userID string) (string, error) {
	id := uuid.NewString()
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(now)
	r.records[id] = AttemptRecord{QuizID: quizID, UserID: userID, StartedAt: now}
	r.stats.Started++
	return id, nil
}

func (r *Recorder) RecordCompletion(_ context.Context, result domain.QuizResults) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[result.AttemptID]; !ok {
		return domain.ErrAttemptNotFound
	}
	delete(r.records, result.AttemptID)
	r.stats.Completed++
	if result.Passed {
		r.stats.Passed++
	}
	return nil
}

func (r *Recorder) pruneLocked(now time.Time) {
	if r.maxAge <= 0 {
		return
	}
	cutoff := now.Add(-r.maxAge)
	for id, rec := range r.records {
		if rec.StartedAt.Before(cutoff) {
			delete(r.records, id)
		}
	}
}

// Record returns the open attempt recorded under attemptID.
func (r *Recorder) Record(attemptID string) (AttemptRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[attemptID]
	return rec, ok
}

func (r *Recorder) Stats() RecorderStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.stats
	st.Open = len(r.records)
	return st
}
