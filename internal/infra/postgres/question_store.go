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

type questionModel struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Question  string    `bun:"question,notnull"`
	Answer    string    `bun:"answer,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (m questionModel) domain() domain.Question {
	return domain.Question{ID: m.ID, Prompt: m.Question, Answer: m.Answer, CreatedAt: m.CreatedAt.UTC()}
}

// QuestionStore is the question bank in Postgres, accessed through bun.
type QuestionStore struct {
	db *bun.DB
}

func NewQuestionStore(db *bun.DB) *QuestionStore {
	return &QuestionStore{db: db}
}

func (s *QuestionStore) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	var models []questionModel
	if err := s.db.NewSelect().Model(&models).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	out := make([]domain.Question, 0, len(models))
	for _, m := range models {
		out = append(out, m.domain())
	}
	return out, nil
}

func (s *QuestionStore) GetQuestion(ctx context.Context, id int64) (domain.Question, error) {
	var m questionModel
	err := s.db.NewSelect().Model(&m).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("get question: %w", err)
	}
	return m.domain(), nil
}

func (s *QuestionStore) CreateQuestion(ctx context.Context, q *domain.Question) error {
	m := questionModel{Question: q.Prompt, Answer: q.Answer, CreatedAt: q.CreatedAt}
	if _, err := s.db.NewInsert().Model(&m).Returning("id, created_at").Exec(ctx); err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	q.ID = m.ID
	q.CreatedAt = m.CreatedAt.UTC()
	return nil
}

func (s *QuestionStore) UpdateQuestion(ctx context.Context, q domain.Question) error {
	m := questionModel{ID: q.ID, Question: q.Prompt, Answer: q.Answer}
	res, err := s.db.NewUpdate().Model(&m).Column("question", "answer").WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	return expectRow(res, domain.ErrQuestionNotFound)
}

func (s *QuestionStore) DeleteQuestion(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().Model((*questionModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return expectRow(res, domain.ErrQuestionNotFound)
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
