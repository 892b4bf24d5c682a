package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"timed-quiz-service/internal/domain"
)

const uniqueViolation = "23505"

type userModel struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement"`
	FirstName    string    `bun:"first_name,notnull"`
	LastName     string    `bun:"last_name,notnull"`
	UserName     string    `bun:"user_name,notnull,unique"`
	PasswordHash string    `bun:"password_hash,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (m userModel) domain() domain.User {
	return domain.User{
		ID:           m.ID,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		UserName:     m.UserName,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

// UserStore persists registered users in Postgres.
type UserStore struct {
	db *bun.DB
}

func NewUserStore(db *bun.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateUser(ctx context.Context, user *domain.User) error {
	m := userModel{
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		UserName:     user.UserName,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
	}
	_, err := s.db.NewInsert().Model(&m).Returning("id, created_at").Exec(ctx)
	if err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	user.ID = m.ID
	user.CreatedAt = m.CreatedAt.UTC()
	return nil
}

func (s *UserStore) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	return s.getBy(ctx, "id = ?", id)
}

func (s *UserStore) GetUserByUserName(ctx context.Context, userName string) (domain.User, error) {
	return s.getBy(ctx, "user_name = ?", userName)
}

func (s *UserStore) getBy(ctx context.Context, where string, arg interface{}) (domain.User, error) {
	var m userModel
	err := s.db.NewSelect().Model(&m).Where(where, arg).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return m.domain(), nil
}
