package redis

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"timed-quiz-service/internal/domain"
)

// QuestionLoader fetches the question bank from a backing store (Postgres).
type QuestionLoader interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
}

const (
	promptsKey    = "quiz:questions:prompts"
	answersKey    = "quiz:questions:answers"
	createdKey    = "quiz:questions:created_at"
	generationKey = "quiz:questions:generation"
)

// errStaleLoad means the bank was invalidated while a load was running.
var errStaleLoad = errors.New("question cache invalidated during load")

// QuestionCache caches the question bank in Redis and falls back to a loader
// on a miss. The bank is stored as hashes keyed by question ID:
//
//	HSET quiz:questions:prompts    {id} {prompt}
//	HSET quiz:questions:answers    {id} {answer}
//	HSET quiz:questions:created_at {id} {RFC3339 time}
//
// quiz:questions:generation is incremented by Invalidate. A fill is written
// under WATCH on it and skipped if it moved since the load began, so every
// instance sharing the Redis drops loads that raced an edit.
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	if qs, ok := c.cached(ctx); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(answersKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if qs, ok := c.cached(ctx); ok {
			return qs, nil
		}

		gen, err := generation(ctx, c.client)
		if err != nil {
			return nil, err
		}
		qs, err := c.loader.ListQuestions(ctx)
		if err != nil {
			return nil, err
		}
		if len(qs) == 0 {
			return qs, nil
		}

		// a failed or stale write only costs a reload next time
		_ = c.store(ctx, gen, qs)
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	qs := result.([]domain.Question)
	out := make([]domain.Question, len(qs))
	copy(out, qs)
	return out, nil
}

// store writes qs unless the generation moved away from gen.
func (c *QuestionCache) store(ctx context.Context, gen int64, qs []domain.Question) error {
	ttl := c.ttlWithJitter()
	return c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := generation(ctx, tx)
		if err != nil {
			return err
		}
		if current != gen {
			return errStaleLoad
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, promptsKey, answersKey, createdKey)
			for _, q := range qs {
				id := strconv.FormatInt(q.ID, 10)
				pipe.HSet(ctx, promptsKey, id, q.Prompt)
				pipe.HSet(ctx, answersKey, id, q.Answer)
				pipe.HSet(ctx, createdKey, id, q.CreatedAt.UTC().Format(time.RFC3339Nano))
			}
			if ttl > 0 {
				pipe.Expire(ctx, promptsKey, ttl)
				pipe.Expire(ctx, answersKey, ttl)
				pipe.Expire(ctx, createdKey, ttl)
			}
			return nil
		})
		return err
	}, generationKey)
}

// Invalidate removes the cached bank so the next read goes to the loader.
func (c *QuestionCache) Invalidate(ctx context.Context) error {
	c.sf.Forget(answersKey)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, promptsKey, answersKey, createdKey)
		return nil
	})
	return err
}

func (c *QuestionCache) cached(ctx context.Context) ([]domain.Question, bool) {
	answers, err := c.client.HGetAll(ctx, answersKey).Result()
	if err != nil || len(answers) == 0 {
		return nil, false
	}
	prompts, _ := c.client.HGetAll(ctx, promptsKey).Result()
	created, _ := c.client.HGetAll(ctx, createdKey).Result()
	return buildQuestionsFromCache(prompts, answers, created), true
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func generation(ctx context.Context, r getter) (int64, error) {
	gen, err := r.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func buildQuestionsFromCache(prompts, answers, created map[string]string) []domain.Question {
	questions := make([]domain.Question, 0, len(answers))
	for rawID, answer := range answers {
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			continue
		}
		createdAt, _ := time.Parse(time.RFC3339Nano, created[rawID])
		questions = append(questions, domain.Question{
			ID:        id,
			Prompt:    prompts[rawID],
			Answer:    answer,
			CreatedAt: createdAt,
		})
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })
	return questions
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
