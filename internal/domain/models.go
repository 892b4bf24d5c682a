package domain

import "time"

// Question is a trivia prompt with its canonical answer.
type Question struct {
	ID        int64     `json:"id"`
	Prompt    string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// Answers maps a submitted question ID (as sent by the client) to the answer text.
type Answers map[string]string

// QuizResult is the latest score for a user; each completed quiz overwrites it.
type QuizResult struct {
	UserID         int64     `json:"user_id"`
	Score          int       `json:"quiz_score"`
	TotalQuestions int       `json:"total_questions"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// User is a registered quiz taker.
type User struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	UserName     string    `json:"user_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// SessionEventType names a session lifecycle transition.
type SessionEventType string

const (
	EventSessionStarted   SessionEventType = "session.started"
	EventSessionCompleted SessionEventType = "session.completed"
	EventSessionTimeout   SessionEventType = "session.timeout"
	EventSessionAbandoned SessionEventType = "session.abandoned"
	EventSessionExtended  SessionEventType = "session.extended"
)

// SessionEvent is published after a session change has been persisted.
type SessionEvent struct {
	Type             SessionEventType `json:"type"`
	SessionID        string           `json:"session_id"`
	UserID           int64            `json:"user_id"`
	Status           SessionStatus    `json:"status"`
	Score            int              `json:"score"`
	TotalQuestions   int              `json:"total_questions"`
	TimeLimitMinutes float64          `json:"time_limit_minutes"`
	OccurredAt       time.Time        `json:"occurred_at"`
}

// NewSessionEvent captures the current state of s.
func NewSessionEvent(typ SessionEventType, s *QuizSession, now time.Time) SessionEvent {
	return SessionEvent{
		Type:             typ,
		SessionID:        s.ID,
		UserID:           s.UserID,
		Status:           s.Status,
		Score:            s.Score,
		TotalQuestions:   s.TotalQuestions,
		TimeLimitMinutes: s.TimeLimitMinutes,
		OccurredAt:       now.UTC(),
	}
}
