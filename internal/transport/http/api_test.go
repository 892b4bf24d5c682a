package http

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestSessionLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t, time.Second)

	status, body := env.do(t, http.MethodPost, "/api/v1/session/create", 1, map[string]any{"time_limit_minutes": 10})
	if status != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d %v", status, body)
	}
	if sessionField(t, body, "status") != "active" || sessionField(t, body, "time_limit_minutes") != 10.0 {
		t.Fatalf("unexpected session %v", body["session"])
	}
	if sessionField(t, body, "end_time") != nil {
		t.Fatalf("active session must have null end_time")
	}

	env.clock.Advance(30 * time.Second)
	status, body = env.do(t, http.MethodGet, "/api/v1/session/status", 1, nil)
	if status != http.StatusOK || body["is_valid"] != true {
		t.Fatalf("status: unexpected %d %v", status, body)
	}
	if body["time_remaining"] != 570.0 {
		t.Fatalf("expected 570 seconds remaining, got %v", body["time_remaining"])
	}

	status, body = env.do(t, http.MethodPost, "/api/v1/session/extend", 1, map[string]any{"additional_minutes": 5})
	if status != http.StatusOK || sessionField(t, body, "time_limit_minutes") != 15.0 {
		t.Fatalf("extend: unexpected %d %v", status, body)
	}

	status, body = env.do(t, http.MethodPost, "/api/v1/session/extend", 1, map[string]any{"additional_minutes": 31})
	if status != http.StatusBadRequest || body["error"] != "validation_error" {
		t.Fatalf("extend 31: expected 400, got %d %v", status, body)
	}
	if body["message"] != "Additional time must be between 1 and 30 minutes" {
		t.Fatalf("unexpected message %v", body["message"])
	}

	status, body = env.do(t, http.MethodPost, "/api/v1/quiz/submit", 1, map[string]any{
		"answers": map[string]string{"1": "Saturn", "2": "Au"},
	})
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("submit: unexpected %d %v", status, body)
	}
	if body["score"] != 2.0 || body["total_questions"] != 3.0 {
		t.Fatalf("expected 2 of 3, got %v", body)
	}
	if sessionField(t, body, "status") != "completed" {
		t.Fatalf("expected completed session, got %v", body["session"])
	}

	status, body = env.do(t, http.MethodGet, "/api/v1/results/me", 1, nil)
	if status != http.StatusOK {
		t.Fatalf("result: unexpected %d %v", status, body)
	}
	if result := body["result"].(map[string]any); result["quiz_score"] != 2.0 {
		t.Fatalf("expected quiz_score 2, got %v", result)
	}

	status, body = env.do(t, http.MethodGet, "/api/v1/session/status", 1, nil)
	if status != http.StatusNotFound || body["error"] != "not_found" {
		t.Fatalf("expected 404 after completion, got %d %v", status, body)
	}
}

func TestCreateSessionDefaultsAndBounds(t *testing.T) {
	env := newTestEnv(t, time.Second)

	status, body := env.do(t, http.MethodPost, "/api/v1/session/create", 1, nil)
	if status != http.StatusCreated || sessionField(t, body, "time_limit_minutes") != 30.0 {
		t.Fatalf("expected default 30 minute session, got %d %v", status, body)
	}

	status, body = env.do(t, http.MethodPost, "/api/v1/session/create", 1, map[string]any{"time_limit_minutes": 181})
	if status != http.StatusBadRequest || body["message"] != "Time limit must be between 1 and 180 minutes" {
		t.Fatalf("expected 400, got %d %v", status, body)
	}
}

func TestSubmitAfterExpiryOverHTTP(t *testing.T) {
	env := newTestEnv(t, time.Second)

	if status, body := env.do(t, http.MethodPost, "/api/v1/session/create", 7, map[string]any{"time_limit_minutes": 1}); status != http.StatusCreated {
		t.Fatalf("create: %d %v", status, body)
	}
	env.clock.Advance(2 * time.Minute)

	status, body := env.do(t, http.MethodPost, "/api/v1/quiz/submit", 7, map[string]any{
		"answers": map[string]string{"3": " paris "},
	})
	if status != http.StatusOK {
		t.Fatalf("submit: unexpected %d %v", status, body)
	}
	if body["success"] != false || body["expired"] != true || body["score"] != 1.0 {
		t.Fatalf("expected expired partial score, got %v", body)
	}
	if sessionField(t, body, "status") != "timeout" {
		t.Fatalf("expected timeout session, got %v", body["session"])
	}

	status, _ = env.do(t, http.MethodGet, "/api/v1/results/me", 7, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expired submission must not store a result, got %d", status)
	}
}

func TestHeartbeatTimesOutLazily(t *testing.T) {
	env := newTestEnv(t, time.Second)

	env.do(t, http.MethodPost, "/api/v1/session/create", 2, map[string]any{"time_limit_minutes": 1})
	status, body := env.do(t, http.MethodPost, "/api/v1/session/heartbeat", 2, nil)
	if status != http.StatusOK || body["success"] != true || body["is_valid"] != true {
		t.Fatalf("heartbeat before expiry: unexpected %d %v", status, body)
	}
	env.clock.Advance(90 * time.Second)

	status, body = env.do(t, http.MethodPost, "/api/v1/session/heartbeat", 2, nil)
	if status != http.StatusOK {
		t.Fatalf("heartbeat: unexpected %d %v", status, body)
	}
	if body["success"] != false || body["is_valid"] != false || body["expired"] != true || body["time_remaining"] != 0.0 {
		t.Fatalf("expected expired report, got %v", body)
	}
	if sessionField(t, body, "status") != "timeout" || sessionField(t, body, "progress_percentage") != 100.0 {
		t.Fatalf("unexpected session %v", body["session"])
	}
}

func TestAbandonOverHTTP(t *testing.T) {
	env := newTestEnv(t, time.Second)

	status, _ := env.do(t, http.MethodPost, "/api/v1/session/abandon", 3, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 without session, got %d", status)
	}
	env.do(t, http.MethodPost, "/api/v1/session/create", 3, nil)
	status, body := env.do(t, http.MethodPost, "/api/v1/session/abandon", 3, nil)
	if status != http.StatusOK || sessionField(t, body, "status") != "abandoned" {
		t.Fatalf("abandon: unexpected %d %v", status, body)
	}
}

func TestRequestsWithoutIdentityAreRejected(t *testing.T) {
	env := newTestEnv(t, time.Second)

	for _, path := range []string{"/api/v1/session/status", "/api/v1/results/me"} {
		status, body := env.do(t, http.MethodGet, path, 0, nil)
		if status != http.StatusUnauthorized || body["error"] != "unauthenticated" {
			t.Fatalf("%s: expected 401, got %d %v", path, status, body)
		}
	}
	status, _ := env.do(t, http.MethodPost, "/api/v1/quiz/submit", 0, map[string]any{"answers": map[string]string{}})
	if status != http.StatusUnauthorized {
		t.Fatalf("submit: expected 401, got %d", status)
	}
}

func TestQueryUserIDIgnoredOnRESTRoutes(t *testing.T) {
	env := newTestEnv(t, time.Second)

	status, body := env.do(t, http.MethodPost, "/api/v1/session/create?user_id=7", 0, map[string]int{"time_limit_minutes": 10})
	if status != http.StatusUnauthorized || body["error"] != "unauthenticated" {
		t.Fatalf("expected 401 for query identity, got %d %v", status, body)
	}
	session, err := env.sessions.GetActiveSession(context.Background(), 7)
	if err != nil || session != nil {
		t.Fatalf("expected no session for user 7, got %+v %v", session, err)
	}

	status, _ = env.do(t, http.MethodGet, "/api/v1/results/me?user_id=7", 0, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("results: expected 401 for query identity, got %d", status)
	}
}

func TestQuestionEndpoints(t *testing.T) {
	env := newTestEnv(t, time.Second)

	status, body := env.do(t, http.MethodGet, "/api/v1/questions", 0, nil)
	if status != http.StatusOK {
		t.Fatalf("list: unexpected %d", status)
	}
	questions := body["questions"].([]any)
	if len(questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(questions))
	}
	if _, leaked := questions[0].(map[string]any)["answer"]; leaked {
		t.Fatalf("question list must not expose answers")
	}

	status, _ = env.do(t, http.MethodPost, "/api/v1/questions", 0, map[string]string{"question": "Largest ocean?", "answer": "Pacific"})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous create, got %d", status)
	}

	status, body = env.do(t, http.MethodPost, "/api/v1/questions", 1, map[string]string{"question": "Why?", "answer": "x"})
	if status != http.StatusBadRequest || body["message"] != "Question must be at least 5 characters long" {
		t.Fatalf("expected validation error, got %d %v", status, body)
	}

	status, body = env.do(t, http.MethodPost, "/api/v1/questions", 1, map[string]string{"question": "Largest ocean?", "answer": "Pacific"})
	if status != http.StatusCreated {
		t.Fatalf("create: unexpected %d %v", status, body)
	}
	created := body["question"].(map[string]any)
	if created["id"] != 4.0 || created["answer"] != "Pacific" {
		t.Fatalf("unexpected created question %v", created)
	}

	status, body = env.do(t, http.MethodPut, "/api/v1/questions/4", 1, map[string]string{"answer": "Pacific Ocean"})
	if status != http.StatusOK || body["question"].(map[string]any)["answer"] != "Pacific Ocean" {
		t.Fatalf("edit: unexpected %d %v", status, body)
	}

	status, _ = env.do(t, http.MethodDelete, "/api/v1/questions/4", 1, nil)
	if status != http.StatusOK {
		t.Fatalf("delete: unexpected %d", status)
	}
	status, body = env.do(t, http.MethodDelete, "/api/v1/questions/4", 1, nil)
	if status != http.StatusNotFound || body["message"] != "Question not found" {
		t.Fatalf("expected 404 on second delete, got %d %v", status, body)
	}
}

func TestRegisterAndLoginOverHTTP(t *testing.T) {
	env := newTestEnv(t, time.Second)
	form := map[string]string{"first_name": "Grace", "last_name": "Hopper", "user_name": "grace", "password": "cobol1"}

	status, body := env.do(t, http.MethodPost, "/api/v1/users/register", 0, form)
	if status != http.StatusCreated {
		t.Fatalf("register: unexpected %d %v", status, body)
	}
	user := body["user"].(map[string]any)
	if _, leaked := user["password_hash"]; leaked {
		t.Fatalf("password hash must not be serialized")
	}

	status, body = env.do(t, http.MethodPost, "/api/v1/users/register", 0, form)
	if status != http.StatusConflict || body["error"] != "username_taken" {
		t.Fatalf("expected 409, got %d %v", status, body)
	}

	status, _ = env.do(t, http.MethodPost, "/api/v1/users/login", 0, map[string]string{"user_name": "grace", "password": "nope12"})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", status)
	}
	status, body = env.do(t, http.MethodPost, "/api/v1/users/login", 0, map[string]string{"user_name": "grace", "password": "cobol1"})
	if status != http.StatusOK || body["user"].(map[string]any)["user_name"] != "grace" {
		t.Fatalf("login: unexpected %d %v", status, body)
	}

	id := int64(user["id"].(float64))
	status, body = env.do(t, http.MethodGet, "/api/v1/users/me", id, nil)
	if status != http.StatusOK || body["user"].(map[string]any)["first_name"] != "Grace" {
		t.Fatalf("me: unexpected %d %v", status, body)
	}
	status, _ = env.do(t, http.MethodGet, "/api/v1/users/me", id+100, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", status)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, time.Second)
	status, body := env.do(t, http.MethodGet, "/healthz", 0, nil)
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("unexpected %d %v", status, body)
	}
}
