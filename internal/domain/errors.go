package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrEmptyQuiz is returned when a quiz has no questions and cannot be attempted.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrAttemptNotFound is returned when an attempt id is unknown.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrResultNotFound is returned when no stored result exists for an attempt.
	ErrResultNotFound = errors.New("result not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted answer ID does not belong to its question.
	ErrOptionNotFound = errors.New("option not found")
	// ErrAttemptNotStarted is returned when acting on an attempt that was never started.
	ErrAttemptNotStarted = errors.New("attempt not started")
	// ErrAlreadyStarted is returned when Start is called twice on one attempt.
	ErrAlreadyStarted = errors.New("attempt already started")
	// ErrAttemptElsewhere means the attempt is open but owned by another instance.
	ErrAttemptElsewhere = errors.New("attempt is held by another instance")
	// ErrAttemptClosed is returned when the attempt is already submitting or finished.
	ErrAttemptClosed = errors.New("attempt is closed")
	// ErrConfirmationRequired asks the caller to confirm submitting with unanswered questions.
	ErrConfirmationRequired = errors.New("unanswered questions; confirmation required")
	// ErrSubmissionInProgress is returned while another submission is persisting.
	ErrSubmissionInProgress = errors.New("submission in progress")
)
