package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quiz-attempt-service/internal/domain"
)

func TestRecorderWritesAttemptHash(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	rec := NewRecorder(newClient(mr), time.Hour)
	ctx := context.Background()

	first, err := rec.RecordStart(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("record start: %v", err)
	}
	second, _ := rec.RecordStart(ctx, "quiz-1", "u2")
	if first != "att-1" || second != "att-2" {
		t.Fatalf("expected sequential ids, got %s and %s", first, second)
	}
	if got := mr.HGet("quiz:attempt:att-1:record", "userId"); got != "u1" {
		t.Fatalf("expected userId u1, got %q", got)
	}

	err = rec.RecordCompletion(ctx, domain.QuizResults{
		AttemptID:       first,
		ScorePercentage: 50,
		Passed:          true,
		Reason:          domain.SubmitExpired,
		FinishedAt:      time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("record completion: %v", err)
	}
	if got := mr.HGet("quiz:attempt:att-1:record", "status"); got != "expired" {
		t.Fatalf("expected expired status, got %q", got)
	}
	if got := mr.HGet("quiz:attempt:att-1:record", "score"); got != "50" {
		t.Fatalf("expected score 50, got %q", got)
	}
}
