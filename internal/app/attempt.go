package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"quiz-attempt-service/internal/domain"
)

// ResultSink persists a scored attempt. An error keeps the attempt in submitting so the
// caller can retry.
type ResultSink func(ctx context.Context, result domain.QuizResults) error

// AttemptOptions configures a new Attempt.
type AttemptOptions struct {
	ID           string
	UserID       string
	Locale       string
	Clock        Clock
	TickInterval time.Duration
	Sink         ResultSink
	Scorer       Scorer
	// SaveRetries bounds how often a failed save after expiry is retried, RetryBackoff
	// apart. Zero disables retries; Submit still retries by hand.
	SaveRetries  int
	RetryBackoff time.Duration
}

// Attempt is the state machine for one candidate's pass through a quiz.
// User actions and deadline expiry both funnel through submitGuard, so scoring runs once.
type Attempt struct {
	id       string
	userID   string
	locale   string
	quiz     domain.Quiz
	clock    Clock
	sink     ResultSink
	scorer   Scorer
	deadline *DeadlineController
	retries  int
	backoff  time.Duration
	// done closes once the attempt reaches a terminal state.
	done chan struct{}

	submitGuard atomic.Bool

	mu          sync.Mutex
	state       domain.AttemptState
	reason      domain.SubmitReason
	startedAt   time.Time
	deadlineAt  time.Time
	current     int
	answers     domain.UserAnswers
	result      *domain.QuizResults
	persisting  bool
	abandoned   bool
	subscribers map[chan domain.AttemptEvent]struct{}
}

// NewAttempt builds a not-started attempt. The quiz must have at least one question.
func NewAttempt(quiz domain.Quiz, opts AttemptOptions) (*Attempt, error) {
	if len(quiz.Questions) == 0 {
		return nil, domain.ErrEmptyQuiz
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Scorer == nil {
		opts.Scorer = Score
	}

	a := &Attempt{
		id:          opts.ID,
		userID:      opts.UserID,
		locale:      opts.Locale,
		quiz:        quiz.Clone(),
		clock:       opts.Clock,
		retries:     opts.SaveRetries,
		backoff:     opts.RetryBackoff,
		done:        make(chan struct{}),
		sink:        opts.Sink,
		scorer:      opts.Scorer,
		state:       domain.AttemptNotStarted,
		answers:     make(domain.UserAnswers),
		subscribers: make(map[chan domain.AttemptEvent]struct{}),
	}
	a.deadline = NewDeadlineController(opts.Clock, opts.TickInterval, a.expire)
	return a, nil
}

func (a *Attempt) ID() string     { return a.id }
func (a *Attempt) UserID() string { return a.userID }

// Quiz returns a copy of the quiz content the attempt is scored against.
func (a *Attempt) Quiz() domain.Quiz { return a.quiz.Clone() }

// TimeLimit is the quiz time limit, zero when untimed.
func (a *Attempt) TimeLimit() time.Duration { return a.quiz.TimeLimit() }

// QuizID identifies the quiz being attempted.
func (a *Attempt) QuizID() string { return a.quiz.ID }

// Done is closed once the attempt is completed or expired.
func (a *Attempt) Done() <-chan struct{} { return a.done }

func (a *Attempt) State() domain.AttemptState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Start records the start time and arms the deadline. Quizzes without a time limit never expire.
func (a *Attempt) Start() error {
	a.mu.Lock()
	if a.state != domain.AttemptNotStarted {
		a.mu.Unlock()
		return domain.ErrAlreadyStarted
	}
	a.state = domain.AttemptInProgress
	a.startedAt = a.clock.Now()
	if limit := a.quiz.TimeLimit(); limit > 0 {
		a.deadlineAt = a.startedAt.Add(limit)
	}
	deadlineAt := a.deadlineAt
	a.broadcastLocked(domain.AttemptEvent{Type: domain.EventState})
	a.mu.Unlock()

	if !deadlineAt.IsZero() {
		a.deadline.Start(deadlineAt)
	}
	return nil
}

// Select applies a click on answerID for questionID. After submission it is a no-op.
func (a *Attempt) Select(questionID, answerID string) (domain.AttemptSnapshot, error) {
	question, _, ok := a.quiz.Question(questionID)
	if !ok {
		return domain.AttemptSnapshot{}, domain.ErrQuestionNotFound
	}
	if !question.HasAnswer(answerID) {
		return domain.AttemptSnapshot{}, domain.ErrOptionNotFound
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.mutableLocked(); err != nil {
		return a.snapshotLocked(), err
	}
	if !a.submitGuard.Load() {
		a.answers[questionID] = ResolveSelection(question, a.answers[questionID], answerID)
		a.broadcastLocked(domain.AttemptEvent{Type: domain.EventState})
	}
	return a.snapshotLocked(), nil
}

// GoTo moves to index, clamped to the question range.
func (a *Attempt) GoTo(index int) (domain.AttemptSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.mutableLocked(); err != nil {
		return a.snapshotLocked(), err
	}
	if a.submitGuard.Load() {
		return a.snapshotLocked(), nil
	}
	last := len(a.quiz.Questions) - 1
	switch {
	case index < 0:
		index = 0
	case index > last:
		index = last
	}
	if index != a.current {
		a.current = index
		a.broadcastLocked(domain.AttemptEvent{Type: domain.EventState})
	}
	return a.snapshotLocked(), nil
}

// Next moves forward one question, stopping at the last.
func (a *Attempt) Next() (domain.AttemptSnapshot, error) {
	return a.GoTo(a.currentIndex() + 1)
}

// Prev moves back one question, stopping at the first.
func (a *Attempt) Prev() (domain.AttemptSnapshot, error) {
	return a.GoTo(a.currentIndex() - 1)
}

func (a *Attempt) currentIndex() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// mutableLocked rejects actions before Start. Closed attempts pass through as no-ops.
func (a *Attempt) mutableLocked() error {
	if a.state == domain.AttemptNotStarted {
		return domain.ErrAttemptNotStarted
	}
	return nil
}

// Unanswered lists question ids without a selection, in quiz order.
func (a *Attempt) Unanswered() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unansweredLocked()
}

func (a *Attempt) unansweredLocked() []string {
	var ids []string
	for _, q := range a.quiz.Questions {
		if a.answers[q.ID].Len() == 0 {
			ids = append(ids, q.ID)
		}
	}
	return ids
}

// Submit scores the attempt. Unless confirmed, it refuses while questions are unanswered.
// Calling it again after a failed persist retries the save without rescoring.
func (a *Attempt) Submit(ctx context.Context, confirmed bool) (domain.QuizResults, error) {
	a.mu.Lock()
	switch {
	case a.state == domain.AttemptNotStarted:
		a.mu.Unlock()
		return domain.QuizResults{}, domain.ErrAttemptNotStarted
	case a.abandoned:
		a.mu.Unlock()
		return domain.QuizResults{}, domain.ErrAttemptClosed
	case a.state == domain.AttemptInProgress && !confirmed && len(a.unansweredLocked()) > 0:
		a.mu.Unlock()
		return domain.QuizResults{}, domain.ErrConfirmationRequired
	}
	a.mu.Unlock()
	return a.finalize(ctx, domain.SubmitManual)
}

// expire submits on behalf of the deadline. Nobody is waiting on the save, so a failure
// is retried here a bounded number of times.
func (a *Attempt) expire() {
	_, err := a.finalize(context.Background(), domain.SubmitExpired)
	for i := 0; err != nil && i < a.retries && a.backoff > 0; i++ {
		if errors.Is(err, domain.ErrAttemptClosed) {
			return
		}
		log.Printf("attempt %s: expiry submission: %v; retry %d/%d in %s", a.id, err, i+1, a.retries, a.backoff)
		if !a.waitRetry() {
			return
		}
		_, err = a.finalize(context.Background(), domain.SubmitExpired)
	}
	if err != nil {
		log.Printf("attempt %s: expiry submission: %v", a.id, err)
	}
}

// waitRetry sleeps one backoff period. It reports false if the attempt finished meanwhile.
func (a *Attempt) waitRetry() bool {
	ticker := a.clock.NewTicker(a.backoff)
	defer ticker.Stop()
	select {
	case <-ticker.C():
		return true
	case <-a.done:
		return false
	}
}

func (a *Attempt) finalize(ctx context.Context, reason domain.SubmitReason) (domain.QuizResults, error) {
	if a.submitGuard.CompareAndSwap(false, true) {
		a.mu.Lock()
		a.state = domain.AttemptSubmitting
		a.reason = reason
		res := a.scorer(a.quiz, a.answers.Clone(), ScoreOptions{
			AttemptID:  a.id,
			UserID:     a.userID,
			Locale:     a.locale,
			Reason:     reason,
			StartedAt:  a.startedAt,
			FinishedAt: a.clock.Now(),
		})
		a.result = &res
		a.persisting = true
		a.broadcastLocked(domain.AttemptEvent{Type: domain.EventState})
		a.mu.Unlock()

		a.deadline.Cancel()
		return a.persist(ctx, res.Clone())
	}

	a.mu.Lock()
	switch {
	case a.state.Terminal():
		res := a.result.Clone()
		a.mu.Unlock()
		return res, nil
	case a.abandoned:
		a.mu.Unlock()
		return domain.QuizResults{}, domain.ErrAttemptClosed
	case a.result == nil || a.persisting:
		a.mu.Unlock()
		return domain.QuizResults{}, domain.ErrSubmissionInProgress
	}
	res := a.result.Clone()
	a.persisting = true
	a.mu.Unlock()
	return a.persist(ctx, res)
}

func (a *Attempt) persist(ctx context.Context, res domain.QuizResults) (domain.QuizResults, error) {
	var err error
	if a.sink != nil {
		err = a.sink(ctx, res)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.persisting = false
	if err != nil {
		a.broadcastLocked(domain.AttemptEvent{Type: domain.EventResult, Error: err.Error()})
		return a.result.Clone(), fmt.Errorf("persist result: %w", err)
	}
	if a.reason == domain.SubmitExpired {
		a.state = domain.AttemptExpired
	} else {
		a.state = domain.AttemptCompleted
	}
	close(a.done)
	a.broadcastLocked(domain.AttemptEvent{Type: domain.EventResult})
	return a.result.Clone(), nil
}

// Result returns the scored result once one exists, even if it is not yet persisted.
func (a *Attempt) Result() (domain.QuizResults, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.result == nil {
		return domain.QuizResults{}, false
	}
	return a.result.Clone(), true
}

// Abandon cancels the deadline and closes subscriptions. An attempt that has not begun
// submitting will never be scored afterwards.
func (a *Attempt) Abandon() {
	a.deadline.Cancel()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.submitGuard.CompareAndSwap(false, true) {
		a.abandoned = true
	}
	for ch := range a.subscribers {
		delete(a.subscribers, ch)
		close(ch)
	}
}

// Snapshot returns the current client-facing view.
func (a *Attempt) Snapshot() domain.AttemptSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Attempt) snapshotLocked() domain.AttemptSnapshot {
	answers := make(map[string][]string, len(a.answers))
	answered := 0
	for _, q := range a.quiz.Questions {
		sel := a.answers[q.ID]
		if sel.Len() == 0 {
			continue
		}
		answered++
		answers[q.ID] = sel.OrderedBy(q)
	}
	return domain.AttemptSnapshot{
		AttemptID:    a.id,
		QuizID:       a.quiz.ID,
		UserID:       a.userID,
		State:        a.state,
		CurrentIndex: a.current,
		Answers:      answers,
		Answered:     answered,
		Total:        len(a.quiz.Questions),
		StartedAt:    a.startedAt,
		Deadline:     a.deadlineAt,

		RemainingSeconds: int(a.deadline.Remaining().Round(time.Second) / time.Second),
	}
}

// Subscribe returns a channel of attempt events, starting with the current snapshot.
// The caller must invoke the returned cancel function to avoid leaks.
func (a *Attempt) Subscribe() (<-chan domain.AttemptEvent, func()) {
	ch := make(chan domain.AttemptEvent, 8)

	a.mu.Lock()
	initial := domain.AttemptEvent{Type: domain.EventState, Snapshot: a.snapshotLocked()}
	if a.state.Terminal() {
		initial = domain.AttemptEvent{Type: domain.EventResult, Snapshot: initial.Snapshot, Result: a.resultCopyLocked()}
	}
	if a.abandoned {
		close(ch)
		a.mu.Unlock()
		return ch, func() {}
	}
	a.subscribers[ch] = struct{}{}
	ch <- initial
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		if _, ok := a.subscribers[ch]; ok {
			delete(a.subscribers, ch)
			close(ch)
		}
		a.mu.Unlock()
	}
	return ch, cancel
}

func (a *Attempt) resultCopyLocked() *domain.QuizResults {
	if a.result == nil {
		return nil
	}
	res := a.result.Clone()
	return &res
}

// broadcastLocked fills in the snapshot and, for result events, a private copy of the result
// per subscriber.
func (a *Attempt) broadcastLocked(ev domain.AttemptEvent) {
	ev.Snapshot = a.snapshotLocked()
	for ch := range a.subscribers {
		if ev.Type == domain.EventResult {
			ev.Result = a.resultCopyLocked()
		}
		select {
		case ch <- ev:
		default:
			// Drop the oldest event so the latest state always lands.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
