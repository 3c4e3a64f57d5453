// Package sqlstore persists scored attempts through bun, for any dialect the service runs
// on (Postgres in production, SQLite for single-node installs).
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quiz-attempt-service/internal/domain"
)

// resultRow mirrors the quiz_results table. The full result is kept as JSONB;
// the scalar columns exist for reporting queries.
type resultRow struct {
	bun.BaseModel `bun:"table:quiz_results"`

	AttemptID       string          `bun:"attempt_id,pk"`
	QuizID          string          `bun:"quiz_id,notnull"`
	UserID          string          `bun:"user_id,notnull"`
	ScorePercentage int             `bun:"score_percentage,notnull"`
	Passed          bool            `bun:"passed,notnull"`
	Reason          string          `bun:"reason,notnull"`
	FinishedAt      time.Time       `bun:"finished_at,notnull"`
	Data            json.RawMessage `bun:"data,type:jsonb,notnull"`
}

// ResultStore persists scored attempts through bun.
type ResultStore struct {
	db *bun.DB
}

func NewResultStore(db *bun.DB) *ResultStore {
	return &ResultStore{db: db}
}

// SaveResult upserts by attempt id so a retried submission overwrites rather than fails.
func (s *ResultStore) SaveResult(ctx context.Context, result domain.QuizResults) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	row := &resultRow{
		AttemptID:       result.AttemptID,
		QuizID:          result.QuizID,
		UserID:          result.UserID,
		ScorePercentage: result.ScorePercentage,
		Passed:          result.Passed,
		Reason:          string(result.Reason),
		FinishedAt:      result.FinishedAt,
		Data:            data,
	}
	_, err = s.db.NewInsert().
		Model(row).
		On("CONFLICT (attempt_id) DO UPDATE").
		Set("score_percentage = EXCLUDED.score_percentage").
		Set("passed = EXCLUDED.passed").
		Set("reason = EXCLUDED.reason").
		Set("finished_at = EXCLUDED.finished_at").
		Set("data = EXCLUDED.data").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// CreateSchema creates the results table when it is missing. Postgres deployments use the
// migrations instead.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*resultRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create quiz_results: %w", err)
	}
	_, err := db.NewCreateIndex().
		Model((*resultRow)(nil)).
		Index("quiz_results_quiz_user_idx").
		Column("quiz_id", "user_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create quiz_results index: %w", err)
	}
	return nil
}

func (s *ResultStore) GetResult(ctx context.Context, attemptID string) (domain.QuizResults, error) {
	row := new(resultRow)
	err := s.db.NewSelect().Model(row).Where("attempt_id = ?", attemptID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.QuizResults{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.QuizResults{}, fmt.Errorf("select result: %w", err)
	}
	var res domain.QuizResults
	if err := json.Unmarshal(row.Data, &res); err != nil {
		return domain.QuizResults{}, fmt.Errorf("unmarshal result: %w", err)
	}
	return res, nil
}
