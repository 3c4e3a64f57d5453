package app

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"quiz-attempt-service/internal/domain"
)

func twoQuestionQuiz() domain.Quiz {
	return domain.Quiz{
		ID:                "quiz-1",
		Title:             "Cloud Fundamentals",
		TimeLimitMinutes:  1,
		PassingPercentage: 50,
		Questions: []domain.Question{
			{
				ID:   "q1",
				Type: domain.QuestionSingleChoice,
				Answers: []domain.Answer{
					{ID: "a1", Text: "Region", Order: 0},
					{ID: "a2", Text: "Zone", Correct: true, Order: 1, Explanation: "Zones are isolated."},
				},
			},
			{
				ID:   "q2",
				Type: domain.QuestionMultiSelect,
				Answers: []domain.Answer{
					{ID: "a1", Text: "S3", Correct: true, Order: 0},
					{ID: "a2", Text: "EC2", Order: 1},
					{ID: "a3", Text: "Glacier", Correct: true, Order: 2},
				},
				Points: 2,
			},
		},
	}
}

func TestScorePartialMultiSelectIsIncorrect(t *testing.T) {
	answers := domain.UserAnswers{
		"q1": domain.NewSelection("a2"),
		"q2": domain.NewSelection("a1"),
	}
	res := Score(twoQuestionQuiz(), answers, ScoreOptions{})

	if res.CorrectAnswers != 1 || res.IncorrectAnswers != 1 {
		t.Fatalf("expected 1 correct / 1 incorrect, got %d / %d", res.CorrectAnswers, res.IncorrectAnswers)
	}
	if res.ScorePercentage != 50 || !res.Passed {
		t.Fatalf("expected 50%% pass, got %d%% passed=%v", res.ScorePercentage, res.Passed)
	}
	if res.EarnedPoints != 1 || res.TotalPoints != 3 {
		t.Fatalf("expected 1/3 points, got %d/%d", res.EarnedPoints, res.TotalPoints)
	}
	if res.Questions[0].Explanation != "Zones are isolated." {
		t.Fatalf("unexpected explanation %q", res.Questions[0].Explanation)
	}
	if got := res.Questions[1].CorrectIDs; len(got) != 2 || got[0] != "a1" || got[1] != "a3" {
		t.Fatalf("unexpected correct ids %v", got)
	}
}

func TestScoreNoAnswers(t *testing.T) {
	res := Score(twoQuestionQuiz(), nil, ScoreOptions{Reason: domain.SubmitExpired})
	if res.CorrectAnswers != 0 || res.IncorrectAnswers != 2 {
		t.Fatalf("expected both incorrect, got %+v", res)
	}
	if res.ScorePercentage != 0 || res.Passed {
		t.Fatalf("expected 0%% fail, got %d%% passed=%v", res.ScorePercentage, res.Passed)
	}
	if len(res.Questions[0].SelectedIDs) != 0 {
		t.Fatalf("expected empty selection, got %v", res.Questions[0].SelectedIDs)
	}
}

func TestScoreOrderIndependence(t *testing.T) {
	quiz := domain.Quiz{ID: "quiz-m", PassingPercentage: 100, Questions: []domain.Question{{
		ID:   "q1",
		Type: domain.QuestionMultiSelect,
		Answers: []domain.Answer{
			{ID: "a", Correct: true}, {ID: "b", Correct: true}, {ID: "c", Correct: true}, {ID: "d"},
		},
	}}}
	perms := [][]string{
		{"a", "b", "c"}, {"a", "c", "b"}, {"b", "a", "c"},
		{"b", "c", "a"}, {"c", "a", "b"}, {"c", "b", "a"},
	}
	for _, perm := range perms {
		res := Score(quiz, domain.UserAnswers{"q1": domain.NewSelection(perm...)}, ScoreOptions{})
		if !res.Questions[0].Correct {
			t.Fatalf("permutation %v scored incorrect", perm)
		}
	}
}

func TestScorePassingBoundary(t *testing.T) {
	quiz := domain.Quiz{ID: "quiz-10"}
	answers := domain.UserAnswers{}
	for i := 0; i < 10; i++ {
		qid := fmt.Sprintf("q%d", i)
		quiz.Questions = append(quiz.Questions, domain.Question{
			ID:      qid,
			Type:    domain.QuestionTrueFalse,
			Answers: []domain.Answer{{ID: "t", Correct: true}, {ID: "f"}},
		})
		if i < 7 {
			answers[qid] = domain.NewSelection("t")
		} else {
			answers[qid] = domain.NewSelection("f")
		}
	}

	tests := []struct {
		name    string
		passing int
		passed  bool
	}{
		{name: "meets threshold", passing: 70, passed: true},
		{name: "one below threshold", passing: 71, passed: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			quiz.PassingPercentage = tc.passing
			res := Score(quiz, answers, ScoreOptions{})
			if res.ScorePercentage != 70 {
				t.Fatalf("expected 70%%, got %d", res.ScorePercentage)
			}
			if res.Passed != tc.passed {
				t.Fatalf("expected passed=%v, got %v", tc.passed, res.Passed)
			}
		})
	}
}

func TestPercentageRoundsHalfUp(t *testing.T) {
	tests := []struct {
		correct, total, want int
	}{
		{1, 8, 13},  // 12.5
		{2, 3, 67},  // 66.67
		{1, 3, 33},  // 33.33
		{1, 200, 1}, // 0.5
		{0, 5, 0},
		{5, 5, 100},
	}
	for _, tc := range tests {
		if got := percentage(tc.correct, tc.total); got != tc.want {
			t.Fatalf("percentage(%d,%d) = %d, want %d", tc.correct, tc.total, got, tc.want)
		}
	}
}

func TestScoreQuestionWithoutCorrectAnswer(t *testing.T) {
	quiz := domain.Quiz{ID: "quiz-x", Questions: []domain.Question{{
		ID: "q1", Type: domain.QuestionSingleChoice, Answers: []domain.Answer{{ID: "a1"}, {ID: "a2"}},
	}}}

	empty := Score(quiz, nil, ScoreOptions{})
	if !empty.Questions[0].Correct {
		t.Fatalf("expected empty-vs-empty to match by set equality")
	}
	picked := Score(quiz, domain.UserAnswers{"q1": domain.NewSelection("a1")}, ScoreOptions{})
	if picked.Questions[0].Correct {
		t.Fatalf("expected any selection to be incorrect")
	}
}

func TestScoreExplanationPrefersLocale(t *testing.T) {
	q := domain.Question{ID: "q1", Answers: []domain.Answer{
		{ID: "a1"},
		{ID: "a2", Correct: true, Explanation: "base", Translations: map[string]domain.AnswerTranslation{
			"de": {Explanation: "lokal"},
			"fr": {Text: "oui"},
		}},
	}}
	tests := []struct {
		locale, want string
	}{
		{"de", "lokal"},
		{"fr", "base"},
		{"", "base"},
	}
	for _, tc := range tests {
		if got := explanationFor(q, tc.locale); got != tc.want {
			t.Fatalf("locale %q: got %q want %q", tc.locale, got, tc.want)
		}
	}
	if got := explanationFor(domain.Question{Answers: []domain.Answer{{ID: "a", Correct: true}}}, "de"); got != "" {
		t.Fatalf("expected empty explanation, got %q", got)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	opts := ScoreOptions{AttemptID: "att-1", StartedAt: start, FinishedAt: start.Add(90 * time.Second)}
	answers := domain.UserAnswers{"q2": domain.NewSelection("a3", "a1")}

	first, _ := json.Marshal(Score(twoQuestionQuiz(), answers, opts))
	second, _ := json.Marshal(Score(twoQuestionQuiz(), answers.Clone(), opts))
	if string(first) != string(second) {
		t.Fatalf("expected identical results\n%s\n%s", first, second)
	}

	res := Score(twoQuestionQuiz(), answers, opts)
	if res.ElapsedMinutes != 2 {
		t.Fatalf("expected 90s to round to 2 minutes, got %d", res.ElapsedMinutes)
	}
}

func TestScorePanicsOnEmptyQuiz(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for empty quiz")
		}
	}()
	Score(domain.Quiz{ID: "empty"}, nil, ScoreOptions{})
}
