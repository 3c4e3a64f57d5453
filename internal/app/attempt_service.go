package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"quiz-attempt-service/internal/domain"
)

// AttemptRepository tracks live attempts (in-memory, Redis, etc).
type AttemptRepository interface {
	Put(attempt *Attempt)
	Get(attemptID string) (*Attempt, bool)
	Delete(attemptID string)
}

// LivenessChecker is implemented by attempt repositories that can see attempts held by
// other instances.
type LivenessChecker interface {
	Live(ctx context.Context, attemptID string) (bool, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ResultRepository stores scored attempts. SaveResult must be idempotent per attempt id.
type ResultRepository interface {
	SaveResult(ctx context.Context, result domain.QuizResults) error
	GetResult(ctx context.Context, attemptID string) (domain.QuizResults, error)
}

// AttemptRecorder is the best-effort analytics side channel. Its failures never block scoring.
type AttemptRecorder interface {
	RecordStart(ctx context.Context, quizID, userID string) (string, error)
	RecordCompletion(ctx context.Context, result domain.QuizResults) error
}

// AttemptService contains the attempt use cases.
type AttemptService struct {
	attempts AttemptRepository
	quizzes  QuizRepository
	results  ResultRepository
	recorder AttemptRecorder
	clock    Clock
	tick     time.Duration
	locale   string
	newID    func() string
	retries  int
	backoff  time.Duration
}

// ServiceOption customizes an AttemptService.
type ServiceOption func(*AttemptService)

func WithRecorder(r AttemptRecorder) ServiceOption {
	return func(s *AttemptService) { s.recorder = r }
}

// WithClock is used by tests to drive deadlines deterministically.
func WithClock(c Clock) ServiceOption {
	return func(s *AttemptService) { s.clock = c }
}

func WithTickInterval(d time.Duration) ServiceOption {
	return func(s *AttemptService) { s.tick = d }
}

// WithLocale selects which explanation translation results carry.
func WithLocale(locale string) ServiceOption {
	return func(s *AttemptService) { s.locale = locale }
}

// WithSaveRetry bounds how often a result saved after expiry is retried.
func WithSaveRetry(retries int, backoff time.Duration) ServiceOption {
	return func(s *AttemptService) {
		s.retries = retries
		s.backoff = backoff
	}
}

func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *AttemptService) { s.newID = fn }
}

func NewAttemptService(attempts AttemptRepository, quizzes QuizRepository, results ResultRepository, opts ...ServiceOption) *AttemptService {
	s := &AttemptService{
		attempts: attempts,
		quizzes:  quizzes,
		results:  results,
		clock:    SystemClock(),
		tick:     MaxTickInterval,
		newID:    uuid.NewString,
		retries:  3,
		backoff:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the quiz and begins a timed attempt for userID.
func (s *AttemptService) Start(ctx context.Context, quizID, userID string) (*Attempt, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if len(quiz.Questions) == 0 {
		return nil, domain.ErrEmptyQuiz
	}

	attempt, err := NewAttempt(quiz, AttemptOptions{
		ID:           s.attemptID(ctx, quizID, userID),
		UserID:       userID,
		Locale:       s.locale,
		Clock:        s.clock,
		TickInterval: s.tick,
		Sink:         s.persist,
		SaveRetries:  s.retries,
		RetryBackoff: s.backoff,
	})
	if err != nil {
		return nil, err
	}
	s.attempts.Put(attempt)
	if err := attempt.Start(); err != nil {
		s.attempts.Delete(attempt.ID())
		return nil, err
	}
	return attempt, nil
}

// attemptID asks the recorder for an id and falls back to a local one.
func (s *AttemptService) attemptID(ctx context.Context, quizID, userID string) string {
	if s.recorder == nil {
		return s.newID()
	}
	id, err := s.recorder.RecordStart(ctx, quizID, userID)
	if err != nil || id == "" {
		log.Printf("record attempt start for quiz %s: %v", quizID, err)
		return s.newID()
	}
	return id
}

func (s *AttemptService) persist(ctx context.Context, result domain.QuizResults) error {
	if err := s.results.SaveResult(ctx, result); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	if s.recorder != nil {
		if err := s.recorder.RecordCompletion(ctx, result); err != nil {
			log.Printf("record attempt completion %s: %v", result.AttemptID, err)
		}
	}
	s.attempts.Delete(result.AttemptID)
	return nil
}

// Get returns a live attempt.
func (s *AttemptService) Get(attemptID string) (*Attempt, error) {
	attempt, ok := s.attempts.Get(attemptID)
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

// Locate is Get for callers that can wait on the repository. A miss on an attempt another
// instance still holds returns ErrAttemptElsewhere.
func (s *AttemptService) Locate(ctx context.Context, attemptID string) (*Attempt, error) {
	attempt, err := s.Get(attemptID)
	if err == nil {
		return attempt, nil
	}
	checker, ok := s.attempts.(LivenessChecker)
	if !ok {
		return nil, err
	}
	live, lerr := checker.Live(ctx, attemptID)
	if lerr != nil {
		log.Printf("check attempt %s liveness: %v", attemptID, lerr)
		return nil, err
	}
	if live {
		return nil, domain.ErrAttemptElsewhere
	}
	return nil, err
}

// Select toggles or replaces the selection for a question.
func (s *AttemptService) Select(attemptID, questionID, answerID string) (domain.AttemptSnapshot, error) {
	attempt, err := s.Get(attemptID)
	if err != nil {
		return domain.AttemptSnapshot{}, err
	}
	return attempt.Select(questionID, answerID)
}

// Navigate moves to a question index, clamped to the quiz.
func (s *AttemptService) Navigate(attemptID string, index int) (domain.AttemptSnapshot, error) {
	attempt, err := s.Get(attemptID)
	if err != nil {
		return domain.AttemptSnapshot{}, err
	}
	return attempt.GoTo(index)
}

// Submit scores and persists an attempt. Finished attempts return their stored result, and
// an attempt whose save failed is saved again.
func (s *AttemptService) Submit(ctx context.Context, attemptID string, confirmed bool) (domain.QuizResults, error) {
	attempt, err := s.Get(attemptID)
	if err == nil {
		return attempt.Submit(ctx, confirmed)
	}
	res, rerr := s.results.GetResult(ctx, attemptID)
	switch {
	case rerr == nil:
		return res, nil
	case !errors.Is(rerr, domain.ErrResultNotFound):
		return domain.QuizResults{}, fmt.Errorf("load result %s: %w", attemptID, rerr)
	}
	if _, lerr := s.Locate(ctx, attemptID); errors.Is(lerr, domain.ErrAttemptElsewhere) {
		return domain.QuizResults{}, lerr
	}
	return domain.QuizResults{}, err
}

// Abandon drops an unsubmitted attempt and stops its deadline.
func (s *AttemptService) Abandon(_ context.Context, attemptID string) {
	attempt, ok := s.attempts.Get(attemptID)
	if !ok {
		return
	}
	attempt.Abandon()
	// A submitting attempt stays reachable so a failed save can be retried.
	if attempt.State() != domain.AttemptSubmitting {
		s.attempts.Delete(attemptID)
	}
}

// Result looks up a persisted result.
func (s *AttemptService) Result(ctx context.Context, attemptID string) (domain.QuizResults, error) {
	return s.results.GetResult(ctx, attemptID)
}
