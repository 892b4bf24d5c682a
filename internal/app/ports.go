package app

import (
	"context"

	"timed-quiz-service/internal/domain"
)

// SessionStore persists quiz sessions (in-memory, Redis, Postgres).
//
// Get and GetActive return domain.ErrSessionNotFound on a miss. Update must
// compare the stored Version with session.Version, fail with
// domain.ErrSessionConflict when they differ, and bump session.Version on success.
type SessionStore interface {
	GetActive(ctx context.Context, userID int64) (*domain.QuizSession, error)
	Get(ctx context.Context, sessionID string) (*domain.QuizSession, error)
	Create(ctx context.Context, session *domain.QuizSession) error
	Update(ctx context.Context, session *domain.QuizSession) error
	Delete(ctx context.Context, sessionID string) error
}

// QuestionRepository reads the question bank (usually through a cache).
type QuestionRepository interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionStore is the writable question bank.
type QuestionStore interface {
	QuestionRepository
	GetQuestion(ctx context.Context, id int64) (domain.Question, error)
	CreateQuestion(ctx context.Context, q *domain.Question) error
	UpdateQuestion(ctx context.Context, q domain.Question) error
	DeleteQuestion(ctx context.Context, id int64) error
}

// QuestionCacheInvalidator is implemented by caches that must drop their
// contents after the question bank changes.
type QuestionCacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// ResultStore keeps one result per user with overwrite semantics.
type ResultStore interface {
	UpsertResult(ctx context.Context, result domain.QuizResult) error
	GetResult(ctx context.Context, userID int64) (domain.QuizResult, error)
}

// UserStore persists registered users.
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id int64) (domain.User, error)
	GetUserByUserName(ctx context.Context, userName string) (domain.User, error)
}

// EventPublisher announces session lifecycle changes.
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, event domain.SessionEvent) error
}

type nopPublisher struct{}

func (nopPublisher) PublishSessionEvent(context.Context, domain.SessionEvent) error { return nil }
