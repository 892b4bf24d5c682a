package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/memory"
)

func TestQuestionCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{QuestionStore: memory.NewQuestionStore(sampleQuestions()...)}
	cache := NewQuestionCache(client, loader, time.Minute)

	qs, err := cache.ListQuestions(context.Background())
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qs))
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if got := mr.HGet(answersKey, "2"); got != "Au" {
		t.Fatalf("expected cached answer Au, got %q", got)
	}
	if ttl := mr.TTL(answersKey); ttl < time.Minute {
		t.Fatalf("expected ttl of at least a minute, got %v", ttl)
	}

	// Second call should hit cache, loader not incremented.
	qs, _ = cache.ListQuestions(context.Background())
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if qs[0].ID != 1 || qs[0].Prompt != "Which planet has rings?" || qs[1].Answer != "Au" {
		t.Fatalf("unexpected cached questions %+v", qs)
	}
}

func TestQuestionCacheInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{QuestionStore: memory.NewQuestionStore(sampleQuestions()...)}
	cache := NewQuestionCache(newClient(mr), loader, time.Minute)

	_, _ = cache.ListQuestions(context.Background())
	if err := cache.Invalidate(context.Background()); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists(answersKey) || mr.Exists(promptsKey) {
		t.Fatalf("expected cache keys removed")
	}
	_, _ = cache.ListQuestions(context.Background())
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}

	mr.FastForward(2 * time.Minute)
	_, _ = cache.ListQuestions(context.Background())
	if loader.calls != 3 {
		t.Fatalf("expected reload after ttl, loader calls=%d", loader.calls)
	}
}

type countingLoader struct {
	*memory.QuestionStore
	calls int
}

func (l *countingLoader) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	l.calls++
	return l.QuestionStore.ListQuestions(ctx)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Prompt: "Which planet has rings?", Answer: "Saturn"},
		{ID: 2, Prompt: "Chemical symbol for gold?", Answer: "Au"},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

// gatedLoader reads the store, then holds the first call until release is closed.
type gatedLoader struct {
	*memory.QuestionStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (l *gatedLoader) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	qs, err := l.QuestionStore.ListQuestions(ctx)
	l.once.Do(func() {
		close(l.entered)
		<-l.release
	})
	return qs, err
}

func TestQuestionCacheSkipsFillStartedBeforeInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := memory.NewQuestionStore(sampleQuestions()...)
	loader := &gatedLoader{QuestionStore: store, entered: make(chan struct{}), release: make(chan struct{})}
	cache := NewQuestionCache(newClient(mr), loader, time.Minute)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = cache.ListQuestions(ctx)
	}()
	<-loader.entered

	q, _ := store.GetQuestion(ctx, 1)
	q.Answer = "Jupiter"
	if err := store.UpdateQuestion(ctx, q); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	close(loader.release)
	<-done

	if mr.Exists(answersKey) {
		t.Fatalf("expected the stale fill to be dropped, cached answer %q", mr.HGet(answersKey, "1"))
	}
	qs, err := cache.ListQuestions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if qs[0].Answer != "Jupiter" {
		t.Fatalf("expected edited answer, got %q", qs[0].Answer)
	}
	if got := mr.HGet(answersKey, "1"); got != "Jupiter" {
		t.Fatalf("expected fresh fill cached, got %q", got)
	}
}

func TestQuestionCacheKeepsCreatedAt(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	store := memory.NewQuestionStore(domain.Question{ID: 1, Prompt: "Which planet has rings?", Answer: "Saturn", CreatedAt: created})
	loader := &countingLoader{QuestionStore: store}
	cache := NewQuestionCache(newClient(mr), loader, time.Minute)

	_, _ = cache.ListQuestions(context.Background())
	qs, err := cache.ListQuestions(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected second read from cache, loader calls=%d", loader.calls)
	}
	if !qs[0].CreatedAt.Equal(created) {
		t.Fatalf("expected created_at %v from cache, got %v", created, qs[0].CreatedAt)
	}
}
