package rabbitmq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"timed-quiz-service/internal/domain"
)

type fakeChannel struct {
	key  string
	msgs []amqp.Publishing
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	c.key = key
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeChannel) Close() error { return nil }

func TestPublishSessionEvent(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{queue: DefaultQueue, ch: ch}

	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	session := domain.NewQuizSession("s-1", 4, 30, now)
	if err := session.Complete(now.Add(time.Minute), 2, 3); err != nil {
		t.Fatalf("complete: %v", err)
	}

	err := p.PublishSessionEvent(context.Background(), domain.NewSessionEvent(domain.EventSessionCompleted, session, now))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ch.key != DefaultQueue || len(ch.msgs) != 1 {
		t.Fatalf("expected one message on %s, got %d on %s", DefaultQueue, len(ch.msgs), ch.key)
	}

	msg := ch.msgs[0]
	if msg.Type != "session.completed" || msg.MessageId != "s-1" || msg.DeliveryMode != amqp.Persistent {
		t.Fatalf("unexpected message headers %+v", msg)
	}
	var got domain.SessionEvent
	if err := json.Unmarshal(msg.Body, &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.UserID != 4 || got.Score != 2 || got.Status != domain.StatusCompleted {
		t.Fatalf("unexpected event %+v", got)
	}
}
