package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"timed-quiz-service/internal/domain"
)

type resultModel struct {
	bun.BaseModel `bun:"table:quiz_results,alias:r"`

	ID             int64     `bun:"id,pk,autoincrement"`
	UserID         int64     `bun:"user_id,notnull,unique"`
	QuizScore      int       `bun:"quiz_score,notnull"`
	TotalQuestions int       `bun:"total_questions,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// ResultStore keeps one row per user in quiz_results and overwrites it on
// every completed quiz.
type ResultStore struct {
	db *bun.DB
}

func NewResultStore(db *bun.DB) *ResultStore {
	return &ResultStore{db: db}
}

func (s *ResultStore) UpsertResult(ctx context.Context, result domain.QuizResult) error {
	m := resultModel{
		UserID:         result.UserID,
		QuizScore:      result.Score,
		TotalQuestions: result.TotalQuestions,
		UpdatedAt:      result.UpdatedAt,
	}
	_, err := s.db.NewInsert().
		Model(&m).
		On("CONFLICT (user_id) DO UPDATE").
		Set("quiz_score = EXCLUDED.quiz_score").
		Set("total_questions = EXCLUDED.total_questions").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert result: %w", err)
	}
	return nil
}

func (s *ResultStore) GetResult(ctx context.Context, userID int64) (domain.QuizResult, error) {
	var m resultModel
	err := s.db.NewSelect().Model(&m).Where("user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.QuizResult{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.QuizResult{}, fmt.Errorf("get result: %w", err)
	}
	return domain.QuizResult{
		UserID:         m.UserID,
		Score:          m.QuizScore,
		TotalQuestions: m.TotalQuestions,
		UpdatedAt:      m.UpdatedAt.UTC(),
	}, nil
}
