package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"timed-quiz-service/internal/domain"
)

const (
	msgNoSession    = "No active quiz session"
	msgExpired      = "Quiz time has expired"
	msgValid        = "Session is valid"
	msgAlreadyEnded = "Quiz session has already ended (%s)"
)

// SessionCheck is the outcome of a timing validation. An invalid session is
// a normal result, not an error.
type SessionCheck struct {
	Valid   bool
	Message string
}

// SessionReport is returned by status and heartbeat calls. ServerTime lets
// clients re-sync their countdown.
type SessionReport struct {
	Valid                bool                   `json:"is_valid"`
	Expired              bool                   `json:"expired"`
	Message              string                 `json:"message"`
	TimeRemainingSeconds int                    `json:"time_remaining"`
	ServerTime           time.Time              `json:"server_time"`
	Session              domain.SessionSnapshot `json:"session"`
}

// SubmitResult summarizes a quiz submission. When the time limit had passed,
// Expired is set, Score holds the partial score and Submit also returns
// domain.ErrSessionExpired.
type SubmitResult struct {
	Score          int                     `json:"score"`
	TotalQuestions int                     `json:"total_questions"`
	Expired        bool                    `json:"expired"`
	Session        *domain.SessionSnapshot `json:"session,omitempty"`
}

// SessionService drives the quiz session lifecycle: start, heartbeat,
// extend, abandon and submit.
type SessionService struct {
	sessions  SessionStore
	questions QuestionRepository
	results   ResultStore
	events    EventPublisher
	log       logrus.FieldLogger
	now       func() time.Time
	newID     func() string
}

// Option customizes a SessionService.
type Option func(*SessionService)

// WithClock replaces the wall clock; tests use it to move time deterministically.
func WithClock(now func() time.Time) Option {
	return func(s *SessionService) { s.now = now }
}

// WithEventPublisher sets where lifecycle events are sent.
func WithEventPublisher(p EventPublisher) Option {
	return func(s *SessionService) {
		if p != nil {
			s.events = p
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *SessionService) {
		if l != nil {
			s.log = l
		}
	}
}

func NewSessionService(sessions SessionStore, questions QuestionRepository, results ResultStore, opts ...Option) *SessionService {
	s := &SessionService{
		sessions:  sessions,
		questions: questions,
		results:   results,
		events:    nopPublisher{},
		log:       discardLogger(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionService) clock() time.Time {
	return s.now().UTC()
}

// Now exposes the service clock so transports report the same server time.
func (s *SessionService) Now() time.Time {
	return s.clock()
}

// GetActiveSession returns the user's active session, or nil if there is none.
func (s *SessionService) GetActiveSession(ctx context.Context, userID int64) (*domain.QuizSession, error) {
	if userID <= 0 {
		return nil, domain.ErrUnauthenticated
	}
	session, err := s.sessions.GetActive(ctx, userID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active session: %w", err)
	}
	return session, nil
}

// StartSession validates the requested limit and starts a fresh session.
func (s *SessionService) StartSession(ctx context.Context, userID int64, timeLimitMinutes int) (*domain.QuizSession, error) {
	if timeLimitMinutes < domain.MinTimeLimitMinutes || timeLimitMinutes > domain.MaxTimeLimitMinutes {
		return nil, domain.NewValidationError("time_limit_minutes",
			fmt.Sprintf("Time limit must be between %d and %d minutes", domain.MinTimeLimitMinutes, domain.MaxTimeLimitMinutes))
	}
	return s.CreateNewSession(ctx, userID, float64(timeLimitMinutes))
}

// CreateNewSession abandons the user's active session, if any, and creates a
// new active one. This is what keeps a user at one active session.
func (s *SessionService) CreateNewSession(ctx context.Context, userID int64, timeLimitMinutes float64) (*domain.QuizSession, error) {
	if userID <= 0 {
		return nil, domain.ErrUnauthenticated
	}
	if timeLimitMinutes <= 0 {
		return nil, domain.NewValidationError("time_limit_minutes", "Time limit must be positive")
	}

	previous, err := s.GetActiveSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	if previous != nil {
		if err := previous.Abandon(now); err != nil {
			return nil, err
		}
		if err := s.sessions.Update(ctx, previous); err != nil {
			return nil, fmt.Errorf("abandon previous session: %w", err)
		}
		s.log.WithFields(logrus.Fields{"user_id": userID, "session_id": previous.ID}).Info("abandoned previous session")
		s.publish(ctx, domain.EventSessionAbandoned, previous, now)
	}

	session := domain.NewQuizSession(s.newID(), userID, timeLimitMinutes, now)
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"user_id":            userID,
		"session_id":         session.ID,
		"time_limit_minutes": timeLimitMinutes,
	}).Info("quiz session started")
	s.publish(ctx, domain.EventSessionStarted, session, now)
	return session, nil
}

// ValidateSessionTime checks a session against the clock. An expired session
// that is still active is moved to timeout with a zero score and persisted.
func (s *SessionService) ValidateSessionTime(ctx context.Context, session *domain.QuizSession) (SessionCheck, error) {
	return s.ValidateSessionTimeWithScore(ctx, session, 0, 0)
}

// ValidateSessionTimeWithScore is ValidateSessionTime with the score to record
// if the lazy timeout fires.
func (s *SessionService) ValidateSessionTimeWithScore(ctx context.Context, session *domain.QuizSession, score, totalQuestions int) (SessionCheck, error) {
	return s.validate(ctx, session, score, totalQuestions, true)
}

func (s *SessionService) validate(ctx context.Context, session *domain.QuizSession, score, totalQuestions int, retry bool) (SessionCheck, error) {
	if session == nil {
		return SessionCheck{Valid: false, Message: msgNoSession}, nil
	}
	now := s.clock()
	if !session.IsExpired(now) {
		return SessionCheck{Valid: true, Message: msgValid}, nil
	}
	if session.Status.Terminal() {
		return SessionCheck{Valid: false, Message: fmt.Sprintf(msgAlreadyEnded, session.Status)}, nil
	}

	if err := session.Timeout(now, score, totalQuestions); err != nil {
		return SessionCheck{}, err
	}
	err := s.sessions.Update(ctx, session)
	if errors.Is(err, domain.ErrSessionConflict) && retry {
		// Another request changed the session first; judge what is stored now.
		stored, getErr := s.sessions.Get(ctx, session.ID)
		if getErr != nil {
			return SessionCheck{}, fmt.Errorf("reload session: %w", getErr)
		}
		*session = *stored
		return s.validate(ctx, session, score, totalQuestions, false)
	}
	if err != nil {
		return SessionCheck{}, fmt.Errorf("timeout session: %w", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": session.UserID, "session_id": session.ID, "score": session.Score}).Info("quiz session timed out")
	s.publish(ctx, domain.EventSessionTimeout, session, now)
	return SessionCheck{Valid: false, Message: msgExpired}, nil
}

// Status reports the user's active session, timing it out if needed.
// It returns domain.ErrSessionNotFound when there is no active session.
func (s *SessionService) Status(ctx context.Context, userID int64) (SessionReport, error) {
	return s.report(ctx, userID)
}

// Heartbeat is called periodically by clients; the only mutation it can
// cause is the lazy timeout.
func (s *SessionService) Heartbeat(ctx context.Context, userID int64) (SessionReport, error) {
	return s.report(ctx, userID)
}

func (s *SessionService) report(ctx context.Context, userID int64) (SessionReport, error) {
	session, err := s.GetActiveSession(ctx, userID)
	if err != nil {
		return SessionReport{}, err
	}
	if session == nil {
		return SessionReport{}, domain.ErrSessionNotFound
	}
	check, err := s.ValidateSessionTime(ctx, session)
	if err != nil {
		return SessionReport{}, err
	}
	now := s.clock()
	return SessionReport{
		Valid:                check.Valid,
		Expired:              !check.Valid,
		Message:              check.Message,
		TimeRemainingSeconds: session.TimeRemainingSeconds(now),
		ServerTime:           now,
		Session:              session.Snapshot(now),
	}, nil
}

// Extend adds 1..30 minutes to the user's active session. An expired session
// is timed out instead and domain.ErrSessionExpired is returned.
func (s *SessionService) Extend(ctx context.Context, userID int64, additionalMinutes int) (*domain.QuizSession, error) {
	if additionalMinutes < domain.MinExtensionMinutes || additionalMinutes > domain.MaxExtensionMinutes {
		return nil, domain.NewValidationError("additional_minutes",
			fmt.Sprintf("Additional time must be between %d and %d minutes", domain.MinExtensionMinutes, domain.MaxExtensionMinutes))
	}
	session, err := s.GetActiveSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	check, err := s.ValidateSessionTime(ctx, session)
	if err != nil {
		return nil, err
	}
	if !check.Valid {
		return session, domain.ErrSessionExpired
	}

	if err := session.Extend(additionalMinutes); err != nil {
		return nil, err
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("extend session: %w", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "session_id": session.ID, "additional_minutes": additionalMinutes}).Info("quiz session extended")
	s.publish(ctx, domain.EventSessionExtended, session, s.clock())
	return session, nil
}

// Abandon ends the user's active session without a score.
func (s *SessionService) Abandon(ctx context.Context, userID int64) (*domain.QuizSession, error) {
	session, err := s.GetActiveSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	now := s.clock()
	if err := session.Abandon(now); err != nil {
		return nil, err
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("abandon session: %w", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "session_id": session.ID}).Info("quiz session abandoned")
	s.publish(ctx, domain.EventSessionAbandoned, session, now)
	return session, nil
}

// Submit scores answers against the question bank for the user's active
// session. Without an active session the submission is scored untimed.
func (s *SessionService) Submit(ctx context.Context, userID int64, answers domain.Answers) (SubmitResult, error) {
	if userID <= 0 {
		return SubmitResult{}, domain.ErrUnauthenticated
	}
	questions, err := s.questions.ListQuestions(ctx)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("load questions: %w", err)
	}
	session, err := s.GetActiveSession(ctx, userID)
	if err != nil {
		return SubmitResult{}, err
	}
	return s.SubmitSession(ctx, userID, session, answers, questions)
}

// SubmitSession scores answers for an explicit (possibly nil) session.
//
// If the session has run out of time, the partial score is recorded through
// the timeout transition and domain.ErrSessionExpired is returned together
// with the populated result. The user's QuizResult is only written for a
// normal completion.
func (s *SessionService) SubmitSession(ctx context.Context, userID int64, session *domain.QuizSession, answers domain.Answers, questions []domain.Question) (SubmitResult, error) {
	if userID <= 0 {
		return SubmitResult{}, domain.ErrUnauthenticated
	}
	score := CalculateScore(answers, questions)
	result := SubmitResult{Score: score, TotalQuestions: len(questions)}

	if session != nil {
		if session.UserID != userID {
			return SubmitResult{}, domain.ErrSessionNotFound
		}
		check, err := s.ValidateSessionTimeWithScore(ctx, session, score, len(questions))
		if err != nil {
			return SubmitResult{}, err
		}
		if !check.Valid {
			snap := session.Snapshot(s.clock())
			result.Session = &snap
			if session.Status == domain.StatusTimeout {
				result.Expired = true
				return result, domain.ErrSessionExpired
			}
			return result, domain.ErrSessionNotActive
		}

		// The result goes first: if it cannot be stored the session stays
		// active and the user can resubmit.
		if err := s.storeResult(ctx, userID, score, len(questions)); err != nil {
			return SubmitResult{}, err
		}
		now := s.clock()
		if err := session.Complete(now, score, len(questions)); err != nil {
			return SubmitResult{}, err
		}
		if err := s.sessions.Update(ctx, session); err != nil {
			return SubmitResult{}, fmt.Errorf("complete session: %w", err)
		}
		s.log.WithFields(logrus.Fields{"user_id": userID, "session_id": session.ID, "score": score}).Info("quiz session completed")
		s.publish(ctx, domain.EventSessionCompleted, session, now)
		snap := session.Snapshot(now)
		result.Session = &snap
		return result, nil
	}

	if err := s.storeResult(ctx, userID, score, len(questions)); err != nil {
		return SubmitResult{}, err
	}
	return result, nil
}

// Result returns the user's latest recorded score.
func (s *SessionService) Result(ctx context.Context, userID int64) (domain.QuizResult, error) {
	if userID <= 0 {
		return domain.QuizResult{}, domain.ErrUnauthenticated
	}
	return s.results.GetResult(ctx, userID)
}

func (s *SessionService) storeResult(ctx context.Context, userID int64, score, totalQuestions int) error {
	err := s.results.UpsertResult(ctx, domain.QuizResult{
		UserID:         userID,
		Score:          score,
		TotalQuestions: totalQuestions,
		UpdatedAt:      s.clock(),
	})
	if err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

func (s *SessionService) publish(ctx context.Context, typ domain.SessionEventType, session *domain.QuizSession, now time.Time) {
	if err := s.events.PublishSessionEvent(ctx, domain.NewSessionEvent(typ, session, now)); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"session_id": session.ID, "event": typ}).Warn("publish session event failed")
	}
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
