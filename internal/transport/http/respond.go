package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"timed-quiz-service/internal/domain"
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type messageBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

// writeError maps domain errors onto HTTP statuses. Anything unknown is
// logged and reported as a generic 500.
func writeError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeErrorCode(w, http.StatusBadRequest, "validation_error", verr.Message)
	case errors.Is(err, domain.ErrUnauthenticated):
		writeErrorCode(w, http.StatusUnauthorized, "unauthenticated", "Authentication required")
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeErrorCode(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
	case errors.Is(err, domain.ErrSessionNotFound):
		writeErrorCode(w, http.StatusNotFound, "not_found", "No active quiz session")
	case errors.Is(err, domain.ErrQuestionNotFound):
		writeErrorCode(w, http.StatusNotFound, "not_found", "Question not found")
	case errors.Is(err, domain.ErrResultNotFound):
		writeErrorCode(w, http.StatusNotFound, "not_found", "No quiz result yet")
	case errors.Is(err, domain.ErrUserNotFound):
		writeErrorCode(w, http.StatusNotFound, "not_found", "User not found")
	case errors.Is(err, domain.ErrSessionExpired):
		writeErrorCode(w, http.StatusConflict, "session_expired", "Quiz time has expired")
	case errors.Is(err, domain.ErrSessionNotActive):
		writeErrorCode(w, http.StatusConflict, "session_not_active", "Quiz session has already ended")
	case errors.Is(err, domain.ErrSessionConflict):
		writeErrorCode(w, http.StatusConflict, "conflict", "Quiz session was changed by another request, please retry")
	case errors.Is(err, domain.ErrUsernameTaken):
		writeErrorCode(w, http.StatusConflict, "username_taken", "Username already exists")
	default:
		log.WithError(err).Error("request failed")
		writeErrorCode(w, http.StatusInternalServerError, "internal_error", "An internal server error occurred")
	}
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
