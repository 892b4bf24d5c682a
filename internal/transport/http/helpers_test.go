package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	server   *httptest.Server
	sessions *app.SessionService
	clock    *testClock
}

func newTestEnv(t *testing.T, interval time.Duration) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	clock := &testClock{now: time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC)}
	store := memory.NewQuestionStore(
		domain.Question{ID: 1, Prompt: "Which planet has rings?", Answer: "Saturn"},
		domain.Question{ID: 2, Prompt: "Chemical symbol for gold?", Answer: "Au"},
		domain.Question{ID: 3, Prompt: "Capital of France?", Answer: "Paris"},
	)
	questions := app.NewQuestionService(store, memory.NewQuestionCache(store, time.Minute))
	sessions := app.NewSessionService(memory.NewSessionStore(), questions, memory.NewResultStore(),
		app.WithClock(clock.Now), app.WithLogger(log))
	users := app.NewUserServiceWithCost(memory.NewUserStore(), bcrypt.MinCost)

	api := NewAPI(sessions, questions, users, log, 30)
	ws := NewWSHandler(sessions, interval, log)
	server := httptest.NewServer(NewRouter(api, ws, io.Discard))
	t.Cleanup(server.Close)

	return &testEnv{server: server, sessions: sessions, clock: clock}
}

func (e *testEnv) do(t *testing.T, method, path string, userID int64, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		req.Header.Set(UserIDHeader, strconv.FormatInt(userID, 10))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func sessionField(t *testing.T, body map[string]any, field string) any {
	t.Helper()
	session, ok := body["session"].(map[string]any)
	if !ok {
		t.Fatalf("expected session object in %v", body)
	}
	return session[field]
}
