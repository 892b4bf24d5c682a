package domain

import (
	"math"
	"time"
)

// SessionStatus is the lifecycle state of a timed quiz attempt.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusTimeout   SessionStatus = "timeout"
	StatusAbandoned SessionStatus = "abandoned"
)

// Terminal reports whether no further transitions are allowed.
func (s SessionStatus) Terminal() bool {
	return s != StatusActive
}

// Valid reports whether s is one of the known statuses.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusTimeout, StatusAbandoned:
		return true
	}
	return false
}

const (
	DefaultTimeLimitMinutes = 30
	MinTimeLimitMinutes     = 1
	MaxTimeLimitMinutes     = 180

	DefaultExtensionMinutes = 5
	MinExtensionMinutes     = 1
	MaxExtensionMinutes     = 30
)

// QuizSession is one timed attempt at the quiz.
//
// EndTime is nil while the session is active and is set exactly once, together
// with Status, when the session moves into a terminal state. Version is bumped
// by the store on every successful update and is used for optimistic locking.
type QuizSession struct {
	ID               string
	UserID           int64
	StartTime        time.Time
	EndTime          *time.Time
	TimeLimitMinutes float64
	Status           SessionStatus
	Score            int
	TotalQuestions   int
	Version          int64
}

// NewQuizSession creates an active session starting at now.
func NewQuizSession(id string, userID int64, timeLimitMinutes float64, now time.Time) *QuizSession {
	return &QuizSession{
		ID:               id,
		UserID:           userID,
		StartTime:        now.UTC(),
		TimeLimitMinutes: timeLimitMinutes,
		Status:           StatusActive,
	}
}

// Clone returns a deep copy so stores can hand out sessions without sharing state.
func (s *QuizSession) Clone() *QuizSession {
	if s == nil {
		return nil
	}
	c := *s
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	return &c
}

// ExpiryTime is StartTime plus the (possibly fractional) time limit.
func (s *QuizSession) ExpiryTime() time.Time {
	return s.StartTime.Add(time.Duration(math.Round(s.TimeLimitMinutes * float64(time.Minute))))
}

// TimeRemainingSeconds is zero for finished or expired sessions.
func (s *QuizSession) TimeRemainingSeconds(now time.Time) int {
	if s.Status != StatusActive {
		return 0
	}
	expiry := s.ExpiryTime()
	if !now.Before(expiry) {
		return 0
	}
	return int(expiry.Sub(now) / time.Second)
}

// TimeElapsedSeconds counts from StartTime regardless of status.
func (s *QuizSession) TimeElapsedSeconds(now time.Time) int {
	return int(now.Sub(s.StartTime) / time.Second)
}

// IsExpired is a pure wall-clock check. A session can be expired here while
// its stored status is still active; the timeout transition happens only when
// the service validates it.
func (s *QuizSession) IsExpired(now time.Time) bool {
	if s.Status != StatusActive {
		return true
	}
	return !now.Before(s.ExpiryTime())
}

// ProgressPercentage is elapsed time over the limit, clamped to [0, 100].
func (s *QuizSession) ProgressPercentage(now time.Time) float64 {
	total := s.TimeLimitMinutes * 60
	if total <= 0 {
		return 100
	}
	progress := float64(s.TimeElapsedSeconds(now)) / total * 100
	return math.Min(100, math.Max(0, progress))
}

// Complete records a normal submission.
func (s *QuizSession) Complete(now time.Time, score, totalQuestions int) error {
	return s.finish(now, StatusCompleted, score, totalQuestions)
}

// Timeout records a session that ran out of time, with whatever score was earned.
func (s *QuizSession) Timeout(now time.Time, score, totalQuestions int) error {
	return s.finish(now, StatusTimeout, score, totalQuestions)
}

// Abandon ends the session without recording a score.
func (s *QuizSession) Abandon(now time.Time) error {
	if s.Status != StatusActive {
		return ErrSessionNotActive
	}
	end := now.UTC()
	s.EndTime = &end
	s.Status = StatusAbandoned
	return nil
}

// Extend adds minutes to the time limit of an active session.
func (s *QuizSession) Extend(minutes int) error {
	if s.Status != StatusActive {
		return ErrSessionNotActive
	}
	s.TimeLimitMinutes += float64(minutes)
	return nil
}

func (s *QuizSession) finish(now time.Time, status SessionStatus, score, totalQuestions int) error {
	if s.Status != StatusActive {
		return ErrSessionNotActive
	}
	if score < 0 {
		score = 0
	}
	if totalQuestions < 0 {
		totalQuestions = 0
	}
	end := now.UTC()
	s.EndTime = &end
	s.Status = status
	s.Score = score
	s.TotalQuestions = totalQuestions
	return nil
}

// SessionSnapshot is the JSON representation handed to callers.
type SessionSnapshot struct {
	ID                   string        `json:"id"`
	UserID               int64         `json:"user_id"`
	StartTime            time.Time     `json:"start_time"`
	EndTime              *time.Time    `json:"end_time"`
	TimeLimitMinutes     float64       `json:"time_limit_minutes"`
	Status               SessionStatus `json:"status"`
	Score                int           `json:"score"`
	TotalQuestions       int           `json:"total_questions"`
	TimeRemainingSeconds int           `json:"time_remaining_seconds"`
	TimeElapsedSeconds   int           `json:"time_elapsed_seconds"`
	IsExpired            bool          `json:"is_expired"`
	ProgressPercentage   float64       `json:"progress_percentage"`
	ExpiryTime           time.Time     `json:"expiry_time"`
}

// Snapshot evaluates all derived fields against now.
func (s *QuizSession) Snapshot(now time.Time) SessionSnapshot {
	var end *time.Time
	if s.EndTime != nil {
		e := s.EndTime.UTC()
		end = &e
	}
	return SessionSnapshot{
		ID:                   s.ID,
		UserID:               s.UserID,
		StartTime:            s.StartTime.UTC(),
		EndTime:              end,
		TimeLimitMinutes:     s.TimeLimitMinutes,
		Status:               s.Status,
		Score:                s.Score,
		TotalQuestions:       s.TotalQuestions,
		TimeRemainingSeconds: s.TimeRemainingSeconds(now),
		TimeElapsedSeconds:   s.TimeElapsedSeconds(now),
		IsExpired:            s.IsExpired(now),
		ProgressPercentage:   s.ProgressPercentage(now),
		ExpiryTime:           s.ExpiryTime().UTC(),
	}
}
