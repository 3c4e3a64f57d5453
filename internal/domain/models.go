package domain

import (
	"sort"
	"time"
)

// QuestionType determines how selections are resolved and matched.
type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionTrueFalse    QuestionType = "true_false"
	QuestionMultiSelect  QuestionType = "multi_select"
)

// AnswerTranslation holds localized copy for an answer option.
type AnswerTranslation struct {
	Text        string `json:"text,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// Answer represents a possible option for a question.
type Answer struct {
	ID           string                       `json:"id"`
	Text         string                       `json:"text"`
	Correct      bool                         `json:"correct"`
	Order        int                          `json:"order"`
	Explanation  string                       `json:"explanation,omitempty"`
	Translations map[string]AnswerTranslation `json:"translations,omitempty"`
}

// Question models a quiz question and its ordered options.
type Question struct {
	ID      string       `json:"id"`
	Type    QuestionType `json:"type"`
	Prompt  string       `json:"prompt"`
	Answers []Answer     `json:"answers"`
	Points  int          `json:"points"` // defaults to 1 if zero
}

// PointValue returns the configured points, defaulting to 1.
func (q Question) PointValue() int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// HasAnswer reports whether answerID is one of the question's options.
func (q Question) HasAnswer(answerID string) bool {
	for _, a := range q.Answers {
		if a.ID == answerID {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices or maps with q.
func (q Question) Clone() Question {
	out := q
	if q.Answers != nil {
		out.Answers = make([]Answer, len(q.Answers))
		for i, a := range q.Answers {
			out.Answers[i] = a.clone()
		}
	}
	return out
}

func (a Answer) clone() Answer {
	if a.Translations == nil {
		return a
	}
	tr := make(map[string]AnswerTranslation, len(a.Translations))
	for locale, t := range a.Translations {
		tr[locale] = t
	}
	a.Translations = tr
	return a
}

// CorrectIDs returns the ids flagged correct, in option order.
func (q Question) CorrectIDs() []string {
	ids := make([]string, 0, 1)
	for _, a := range q.Answers {
		if a.Correct {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// Quiz is an ordered collection of questions with a time limit and pass mark.
type Quiz struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Questions         []Question `json:"questions"`
	TimeLimitMinutes  int        `json:"timeLimitMinutes"`
	PassingPercentage int        `json:"passingPercentage"`
}

// Question looks up a question by id.
func (q Quiz) Question(questionID string) (Question, int, bool) {
	for i := range q.Questions {
		if q.Questions[i].ID == questionID {
			return q.Questions[i], i, true
		}
	}
	return Question{}, -1, false
}

// Clone returns a deep copy, so the caller may modify it without touching shared content.
func (q Quiz) Clone() Quiz {
	out := q
	if q.Questions != nil {
		out.Questions = make([]Question, len(q.Questions))
		for i, question := range q.Questions {
			out.Questions[i] = question.Clone()
		}
	}
	return out
}

// TimeLimit converts TimeLimitMinutes to a duration.
func (q Quiz) TimeLimit() time.Duration {
	return time.Duration(q.TimeLimitMinutes) * time.Minute
}

// Normalized returns a copy with answers sorted by Order and a default question type.
func (q Quiz) Normalized() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		question = question.Clone()
		if question.Type == "" {
			question.Type = QuestionSingleChoice
		}
		answers := question.Answers
		sort.SliceStable(answers, func(a, b int) bool { return answers[a].Order < answers[b].Order })
		out.Questions[i] = question
	}
	return out
}

// CandidateView strips correctness flags and explanations so the quiz can be sent to a client.
func (q Quiz) CandidateView() Quiz {
	view := q
	view.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		answers := make([]Answer, len(question.Answers))
		for j, a := range question.Answers {
			answers[j] = Answer{ID: a.ID, Text: a.Text, Order: a.Order}
			if len(a.Translations) > 0 {
				answers[j].Translations = make(map[string]AnswerTranslation, len(a.Translations))
				for locale, tr := range a.Translations {
					answers[j].Translations[locale] = AnswerTranslation{Text: tr.Text}
				}
			}
		}
		question.Answers = answers
		view.Questions[i] = question
	}
	return view
}

// UserAnswers maps a question id to the selected answer ids.
type UserAnswers map[string]Selection

// Clone returns a deep copy.
func (u UserAnswers) Clone() UserAnswers {
	out := make(UserAnswers, len(u))
	for questionID, sel := range u {
		out[questionID] = sel.Clone()
	}
	return out
}

// AttemptState is the lifecycle state of one attempt.
type AttemptState string

const (
	AttemptNotStarted AttemptState = "not_started"
	AttemptInProgress AttemptState = "in_progress"
	AttemptSubmitting AttemptState = "submitting"
	AttemptCompleted  AttemptState = "completed"
	AttemptExpired    AttemptState = "expired"
)

// Terminal reports whether no further transitions are possible.
func (s AttemptState) Terminal() bool {
	return s == AttemptCompleted || s == AttemptExpired
}

// SubmitReason records what closed an attempt.
type SubmitReason string

const (
	SubmitManual  SubmitReason = "manual"
	SubmitExpired SubmitReason = "expired"
)

// QuestionResult is the per-question detail of a scored attempt.
type QuestionResult struct {
	Question    Question `json:"question"`
	SelectedIDs []string `json:"selectedIds"`
	CorrectIDs  []string `json:"correctIds"`
	Correct     bool     `json:"correct"`
	Explanation string   `json:"explanation"`
}

// QuizResults is the immutable outcome of a scored attempt.
type QuizResults struct {
	AttemptID         string           `json:"attemptId"`
	UserID            string           `json:"userId"`
	QuizID            string           `json:"quizId"`
	QuizTitle         string           `json:"quizTitle"`
	TotalQuestions    int              `json:"totalQuestions"`
	CorrectAnswers    int              `json:"correctAnswers"`
	IncorrectAnswers  int              `json:"incorrectAnswers"`
	EarnedPoints      int              `json:"earnedPoints"`
	TotalPoints       int              `json:"totalPoints"`
	ScorePercentage   int              `json:"scorePercentage"`
	PassingPercentage int              `json:"passingPercentage"`
	Passed            bool             `json:"passed"`
	Reason            SubmitReason     `json:"reason"`
	StartedAt         time.Time        `json:"startedAt"`
	FinishedAt        time.Time        `json:"finishedAt"`
	ElapsedMinutes    int              `json:"elapsedMinutes"`
	Questions         []QuestionResult `json:"questions"`
}

// Clone returns a deep copy of the result.
func (r QuizResults) Clone() QuizResults {
	out := r
	if r.Questions != nil {
		out.Questions = make([]QuestionResult, len(r.Questions))
		for i, qr := range r.Questions {
			qr.Question = qr.Question.Clone()
			qr.SelectedIDs = cloneStrings(qr.SelectedIDs)
			qr.CorrectIDs = cloneStrings(qr.CorrectIDs)
			out.Questions[i] = qr
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append(make([]string, 0, len(in)), in...)
}

// AttemptSnapshot is a read-only view of an attempt for clients.
type AttemptSnapshot struct {
	AttemptID    string              `json:"attemptId"`
	QuizID       string              `json:"quizId"`
	UserID       string              `json:"userId"`
	State        AttemptState        `json:"state"`
	CurrentIndex int                 `json:"currentIndex"`
	Answers      map[string][]string `json:"answers"`
	Answered     int                 `json:"answered"`
	Total        int                 `json:"total"`
	StartedAt    time.Time           `json:"startedAt"`
	Deadline     time.Time           `json:"deadline"`
	// RemainingSeconds drives the client countdown; zero when untimed or closed.
	RemainingSeconds int `json:"remainingSeconds"`
}

// EventType tags attempt events pushed to subscribers.
type EventType string

const (
	EventState  EventType = "state"
	EventResult EventType = "result"
)

// AttemptEvent is delivered to attempt subscribers.
type AttemptEvent struct {
	Type     EventType       `json:"type"`
	Snapshot AttemptSnapshot `json:"snapshot"`
	Result   *QuizResults    `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}
