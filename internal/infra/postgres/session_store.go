package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"timed-quiz-service/internal/domain"
)

// SessionStore keeps quiz sessions in the quiz_sessions table. The version
// column implements the optimistic check required by app.SessionStore.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

const sessionColumns = `id, user_id, start_time, end_time, time_limit_minutes, status, score, total_questions, version`

func (s *SessionStore) GetActive(ctx context.Context, userID int64) (*domain.QuizSession, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM quiz_sessions
		 WHERE user_id=$1 AND status='active'
		 ORDER BY start_time DESC LIMIT 1`, userID)
	return scanSession(row)
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*domain.QuizSession, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM quiz_sessions WHERE id=$1`, sessionID)
	return scanSession(row)
}

func (s *SessionStore) Create(ctx context.Context, session *domain.QuizSession) error {
	session.Version = 1
	_, err := s.pool.Exec(ctx,
		`INSERT INTO quiz_sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		session.ID, session.UserID, session.StartTime, session.EndTime, session.TimeLimitMinutes,
		string(session.Status), session.Score, session.TotalQuestions, session.Version)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SessionStore) Update(ctx context.Context, session *domain.QuizSession) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE quiz_sessions
		 SET end_time=$3, time_limit_minutes=$4, status=$5, score=$6, total_questions=$7, version=version+1
		 WHERE id=$1 AND version=$2`,
		session.ID, session.Version, session.EndTime, session.TimeLimitMinutes,
		string(session.Status), session.Score, session.TotalQuestions)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM quiz_sessions WHERE id=$1)`, session.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check session: %w", err)
		}
		if !exists {
			return domain.ErrSessionNotFound
		}
		return domain.ErrSessionConflict
	}
	session.Version++
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM quiz_sessions WHERE id=$1`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func scanSession(row pgx.Row) (*domain.QuizSession, error) {
	var (
		session domain.QuizSession
		status  string
		endTime *time.Time
	)
	err := row.Scan(&session.ID, &session.UserID, &session.StartTime, &endTime, &session.TimeLimitMinutes,
		&status, &session.Score, &session.TotalQuestions, &session.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	session.StartTime = session.StartTime.UTC()
	if endTime != nil {
		end := endTime.UTC()
		session.EndTime = &end
	}
	session.Status = domain.SessionStatus(status)
	return &session, nil
}
