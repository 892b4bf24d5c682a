package domain

import "errors"

var (
	// ErrUnauthenticated is returned when an operation requires a user and none was supplied.
	ErrUnauthenticated = errors.New("user must be authenticated")
	// ErrSessionNotFound is returned when a user has no active quiz session.
	ErrSessionNotFound = errors.New("no active quiz session")
	// ErrSessionNotActive is returned when a transition is attempted on a finished session.
	ErrSessionNotActive = errors.New("quiz session is not active")
	// ErrSessionExpired reports a submission or extension that arrived after the time limit.
	ErrSessionExpired = errors.New("quiz time has expired")
	// ErrSessionConflict means the session was changed by another request since it was read.
	ErrSessionConflict = errors.New("quiz session was modified concurrently")
	// ErrQuestionNotFound indicates a question ID that does not exist.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrResultNotFound is returned when a user has not completed a quiz yet.
	ErrResultNotFound = errors.New("quiz result not found")
	// ErrUserNotFound is returned when a user lookup misses.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned on registration with an existing user name.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidCredentials is returned when a login does not match a stored user.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// ValidationError rejects input before any state is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
