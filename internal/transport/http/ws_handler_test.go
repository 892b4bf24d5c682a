package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialSession(t *testing.T, env *testEnv, userID string) *websocket.Conn {
	t.Helper()
	u := "ws" + env.server.URL[len("http"):] + "/ws/session"
	header := http.Header{}
	header.Set(UserIDHeader, userID)
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketHeartbeatFlow(t *testing.T) {
	env := newTestEnv(t, 20*time.Millisecond)
	if _, err := env.sessions.StartSession(context.Background(), 1, 1); err != nil {
		t.Fatalf("start: %v", err)
	}

	conn := dialSession(t, env, "1")

	// Expect status event first.
	_, payload := readNext(conn, t, "status")
	if payload["is_valid"] != true {
		t.Fatalf("expected valid status, got %v", payload)
	}

	readUntil(conn, t, "heartbeat")

	if err := conn.WriteJSON(map[string]any{"type": "extend", "payload": map[string]any{"additional_minutes": 2}}); err != nil {
		t.Fatalf("write extend: %v", err)
	}
	extended := readUntil(conn, t, "extended")
	if extended["time_limit_minutes"] != 3.0 {
		t.Fatalf("expected 3 minute limit, got %v", extended["time_limit_minutes"])
	}

	env.clock.Advance(4 * time.Minute)
	expired := readUntil(conn, t, "expired")
	if expired["is_valid"] != false {
		t.Fatalf("expected invalid report on expiry, got %v", expired)
	}
	session := expired["session"].(map[string]any)
	if session["status"] != "timeout" {
		t.Fatalf("expected timeout status, got %v", session["status"])
	}
}

func TestWebSocketAbandon(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	if _, err := env.sessions.StartSession(context.Background(), 5, 10); err != nil {
		t.Fatalf("start: %v", err)
	}
	conn := dialSession(t, env, "5")
	readNext(conn, t, "status")

	if err := conn.WriteJSON(map[string]any{"type": "abandon"}); err != nil {
		t.Fatalf("write abandon: %v", err)
	}
	_, payload := readNext(conn, t, "abandoned")
	if payload["status"] != "abandoned" {
		t.Fatalf("expected abandoned snapshot, got %v", payload)
	}

	if err := conn.WriteJSON(map[string]any{"type": "heartbeat"}); err != nil {
		t.Fatalf("write heartbeat: %v", err)
	}
	_, payload = readNext(conn, t, "error")
	if payload["message"] != "No active quiz session" {
		t.Fatalf("unexpected error payload %v", payload)
	}
}

func TestWebSocketWithoutSession(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	conn := dialSession(t, env, "9")

	_, payload := readNext(conn, t, "error")
	if payload["message"] != "No active quiz session" {
		t.Fatalf("unexpected error payload %v", payload)
	}
}

func TestWebSocketRequiresIdentity(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	u := "ws" + env.server.URL[len("http"):] + "/ws/session"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail without identity")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 response, got %v", resp)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

// readUntil skips interleaved heartbeats until a message of type expect arrives.
func readUntil(conn *websocket.Conn, t *testing.T, expect string) map[string]any {
	t.Helper()
	for i := 0; i < 50; i++ {
		typ, payload := readNext(conn, t, "")
		if typ == expect {
			return payload
		}
	}
	t.Fatalf("no %s message received", expect)
	return nil
}

func TestWebSocketAcceptsQueryIdentity(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	if _, err := env.sessions.StartSession(context.Background(), 4, 5); err != nil {
		t.Fatalf("start: %v", err)
	}
	u := "ws" + env.server.URL[len("http"):] + "/ws/session?user_id=4"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, payload := readNext(conn, t, "status")
	session := payload["session"].(map[string]any)
	if session["user_id"] != float64(4) {
		t.Fatalf("expected session of user 4, got %v", session)
	}
}
