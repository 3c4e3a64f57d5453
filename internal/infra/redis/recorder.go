package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-attempt-service/internal/domain"
)

// Recorder writes attempt analytics to Redis.
// Ids come from:   INCR quiz:attempts:seq
// Records live in: HSET quiz:attempt:{id}:record quizId userId startedAt ...
type Recorder struct {
	client    *redis.Client
	retention time.Duration
	now       func() time.Time
}

func NewRecorder(client *redis.Client, retention time.Duration) *Recorder {
	return &Recorder{client: client, retention: retention, now: time.Now}
}

func (r *Recorder) RecordStart(ctx context.Context, quizID, userID string) (string, error) {
	seq, err := r.client.Incr(ctx, "quiz:attempts:seq").Result()
	if err != nil {
		return "", err
	}
	id := "att-" + strconv.FormatInt(seq, 10)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.recordKey(id), map[string]interface{}{
		"quizId":    quizID,
		"userId":    userID,
		"startedAt": r.now().UTC().Format(time.RFC3339),
		"status":    string(domain.AttemptInProgress),
	})
	if r.retention > 0 {
		pipe.Expire(ctx, r.recordKey(id), r.retention)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (r *Recorder) RecordCompletion(ctx context.Context, result domain.QuizResults) error {
	status := domain.AttemptCompleted
	if result.Reason == domain.SubmitExpired {
		status = domain.AttemptExpired
	}
	return r.client.HSet(ctx, r.recordKey(result.AttemptID), map[string]interface{}{
		"finishedAt": result.FinishedAt.UTC().Format(time.RFC3339),
		"score":      result.ScorePercentage,
		"passed":     strconv.FormatBool(result.Passed),
		"status":     string(status),
	}).Err()
}

func (r *Recorder) recordKey(attemptID string) string {
	return "quiz:attempt:" + attemptID + ":record"
}
