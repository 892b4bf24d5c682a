package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"timed-quiz-service/internal/domain"
)

// SessionStore keeps quiz sessions in Redis so several service instances
// share them. Layout:
//
//	quiz:session:{id}            JSON session record
//	quiz:user:{userID}:active    ID of the user's active session
//
// Records carry no TTL; finished sessions are kept as history.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

type sessionRecord struct {
	ID               string               `json:"id"`
	UserID           int64                `json:"user_id"`
	StartTime        time.Time            `json:"start_time"`
	EndTime          *time.Time           `json:"end_time,omitempty"`
	TimeLimitMinutes float64              `json:"time_limit_minutes"`
	Status           domain.SessionStatus `json:"status"`
	Score            int                  `json:"score"`
	TotalQuestions   int                  `json:"total_questions"`
	Version          int64                `json:"version"`
}

func toRecord(s *domain.QuizSession) sessionRecord {
	return sessionRecord{
		ID:               s.ID,
		UserID:           s.UserID,
		StartTime:        s.StartTime,
		EndTime:          s.EndTime,
		TimeLimitMinutes: s.TimeLimitMinutes,
		Status:           s.Status,
		Score:            s.Score,
		TotalQuestions:   s.TotalQuestions,
		Version:          s.Version,
	}
}

func (r sessionRecord) session() *domain.QuizSession {
	return &domain.QuizSession{
		ID:               r.ID,
		UserID:           r.UserID,
		StartTime:        r.StartTime.UTC(),
		EndTime:          r.EndTime,
		TimeLimitMinutes: r.TimeLimitMinutes,
		Status:           r.Status,
		Score:            r.Score,
		TotalQuestions:   r.TotalQuestions,
		Version:          r.Version,
	}
}

func (s *SessionStore) GetActive(ctx context.Context, userID int64) (*domain.QuizSession, error) {
	id, err := s.client.Get(ctx, activeKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get active pointer: %w", err)
	}
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// stale pointer left by a partially applied write
	if session.Status != domain.StatusActive || session.UserID != userID {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*domain.QuizSession, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	return decodeSession(raw)
}

func (s *SessionStore) Create(ctx context.Context, session *domain.QuizSession) error {
	session.Version = 1
	raw, err := json.Marshal(toRecord(session))
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), raw, 0)
		if session.Status == domain.StatusActive {
			pipe.Set(ctx, activeKey(session.UserID), session.ID, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis create session: %w", err)
	}
	return nil
}

// Update writes session if the stored version still matches session.Version.
// The check and the write run under WATCH so a concurrent writer makes the
// transaction fail with domain.ErrSessionConflict.
func (s *SessionStore) Update(ctx context.Context, session *domain.QuizSession) error {
	key := sessionKey(session.ID)
	pointer := activeKey(session.UserID)

	next := session.Clone()
	next.Version = session.Version + 1
	raw, err := json.Marshal(toRecord(next))
	if err != nil {
		return err
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		stored, err := decodeSession(current)
		if err != nil {
			return err
		}
		if stored.Version != session.Version {
			return domain.ErrSessionConflict
		}
		activeID, err := tx.Get(ctx, pointer).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			if next.Status.Terminal() && activeID == session.ID {
				pipe.Del(ctx, pointer)
			}
			return nil
		})
		return err
	}, key, pointer)

	switch {
	case err == nil:
		session.Version = next.Version
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return domain.ErrSessionConflict
	case errors.Is(err, domain.ErrSessionConflict), errors.Is(err, domain.ErrSessionNotFound):
		return err
	default:
		return fmt.Errorf("redis update session: %w", err)
	}
}

// Delete removes a session record and, if it points at it, the active pointer.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	session, err := s.Get(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	pointer := activeKey(session.UserID)
	activeID, err := s.client.Get(ctx, pointer).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis get active pointer: %w", err)
	}
	keys := []string{sessionKey(sessionID)}
	if activeID == sessionID {
		keys = append(keys, pointer)
	}
	return s.client.Del(ctx, keys...).Err()
}

func decodeSession(raw []byte) (*domain.QuizSession, error) {
	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return rec.session(), nil
}

func sessionKey(sessionID string) string {
	return "quiz:session:" + sessionID
}

func activeKey(userID int64) string {
	return "quiz:user:" + strconv.FormatInt(userID, 10) + ":active"
}
