package app

import (
	"fmt"

	"quiz-attempt-service/internal/domain"
)

// ResolveSelection returns the selection that results from clicking answerID on question.
// Multi-select questions toggle the clicked id; every other type replaces the selection.
// The current selection is never modified. answerID must belong to question.
func ResolveSelection(question domain.Question, current domain.Selection, answerID string) domain.Selection {
	if !question.HasAnswer(answerID) {
		panic(fmt.Sprintf("resolve selection: answer %q does not belong to question %q", answerID, question.ID))
	}

	if question.Type != domain.QuestionMultiSelect {
		return domain.NewSelection(answerID)
	}

	next := current.Clone()
	if next.Has(answerID) {
		delete(next, answerID)
	} else {
		next[answerID] = struct{}{}
	}
	return next
}
