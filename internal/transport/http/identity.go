package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"timed-quiz-service/internal/domain"
)

// UserIDHeader carries the authenticated user ID set by the gateway in front
// of this service.
const UserIDHeader = "X-User-ID"

type userIDKey struct{}

// HeaderIdentity resolves the caller from UserIDHeader. Browsers cannot set
// headers on websocket upgrades, so for upgrade requests only the user_id
// query parameter is accepted as a fallback.
func HeaderIdentity(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if raw == "" && websocket.IsWebSocketUpgrade(r) {
		raw = strings.TrimSpace(r.URL.Query().Get("user_id"))
	}
	if raw == "" {
		return 0, domain.ErrUnauthenticated
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrUnauthenticated
	}
	return id, nil
}

func withUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserIDFrom returns the user stored by RequireUser, or 0.
func UserIDFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey{}).(int64)
	return id
}

// RequireUser rejects requests without a valid identity with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := HeaderIdentity(r)
		if err != nil {
			writeErrorCode(w, http.StatusUnauthorized, "unauthenticated", "Authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), id)))
	})
}
