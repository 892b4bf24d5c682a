package http

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// RecoverAndLog turns a handler panic into a 500 response.
func RecoverAndLog(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.WithFields(logrus.Fields{"panic": rec, "path": r.URL.Path}).Error("panic occurred in HTTP handler")
					writeErrorCode(w, http.StatusInternalServerError, "internal_error", "An internal server error occurred")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
