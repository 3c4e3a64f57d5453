package app

import (
	"math"
	"time"

	"quiz-attempt-service/internal/domain"
)

// ScoreOptions carries the attempt metadata copied into a result.
type ScoreOptions struct {
	AttemptID  string
	UserID     string
	Locale     string
	Reason     domain.SubmitReason
	StartedAt  time.Time
	FinishedAt time.Time
}

// Scorer matches Score; attempts take one so tests can observe invocations.
type Scorer func(quiz domain.Quiz, answers domain.UserAnswers, opts ScoreOptions) domain.QuizResults

// Score grades every question by exact set match. It performs no I/O and panics on a quiz
// without questions.
func Score(quiz domain.Quiz, answers domain.UserAnswers, opts ScoreOptions) domain.QuizResults {
	total := len(quiz.Questions)
	if total == 0 {
		panic("score: quiz " + quiz.ID + " has no questions")
	}

	res := domain.QuizResults{
		AttemptID:         opts.AttemptID,
		UserID:            opts.UserID,
		QuizID:            quiz.ID,
		QuizTitle:         quiz.Title,
		TotalQuestions:    total,
		PassingPercentage: quiz.PassingPercentage,
		Reason:            opts.Reason,
		StartedAt:         opts.StartedAt,
		FinishedAt:        opts.FinishedAt,
		ElapsedMinutes:    elapsedMinutes(opts.StartedAt, opts.FinishedAt),
		Questions:         make([]domain.QuestionResult, 0, total),
	}

	for _, q := range quiz.Questions {
		correctIDs := q.CorrectIDs()
		selected := answers[q.ID]
		isCorrect := selected.Equal(domain.NewSelection(correctIDs...))

		points := q.PointValue()
		res.TotalPoints += points
		if isCorrect {
			res.CorrectAnswers++
			res.EarnedPoints += points
		} else {
			res.IncorrectAnswers++
		}

		res.Questions = append(res.Questions, domain.QuestionResult{
			Question:    q.Clone(),
			SelectedIDs: selected.OrderedBy(q),
			CorrectIDs:  correctIDs,
			Correct:     isCorrect,
			Explanation: explanationFor(q, opts.Locale),
		})
	}

	res.ScorePercentage = percentage(res.CorrectAnswers, total)
	res.Passed = res.ScorePercentage >= quiz.PassingPercentage
	return res
}

// percentage rounds half up in integer arithmetic.
func percentage(correct, total int) int {
	return (correct*200 + total) / (2 * total)
}

func elapsedMinutes(start, end time.Time) int {
	if start.IsZero() || end.Before(start) {
		return 0
	}
	return int(math.Round(end.Sub(start).Minutes()))
}

// explanationFor picks the first correct answer with an explanation, preferring the locale.
func explanationFor(q domain.Question, locale string) string {
	for _, a := range q.Answers {
		if !a.Correct {
			continue
		}
		if locale != "" {
			if tr, ok := a.Translations[locale]; ok && tr.Explanation != "" {
				return tr.Explanation
			}
		}
		if a.Explanation != "" {
			return a.Explanation
		}
	}
	return ""
}
