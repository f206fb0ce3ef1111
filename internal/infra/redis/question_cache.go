package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiznet-service/internal/domain"
)

// CatalogLoader fetches a quiz's full question set from the backing store.
type CatalogLoader interface {
	LoadQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
}

// QuestionCache is a read-through Redis cache of the answer-stripped
// question projection, one JSON value per quiz:
//
//	SET quiz:{quizID}:questions <json array> EX ttl
//
// Correct answers never enter Redis. Entries expire on their own; nothing
// invalidates them because questions are immutable after quiz creation.
type QuestionCache struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader CatalogLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Views(ctx context.Context, quizID string) ([]domain.QuestionView, error) {
	key := c.key(quizID)

	if views, ok := c.lookup(ctx, key); ok {
		return views, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if views, ok := c.lookup(ctx, key); ok {
			return views, nil
		}

		questions, err := c.loader.LoadQuestions(ctx, quizID)
		if err != nil {
			return nil, err
		}
		views := make([]domain.QuestionView, 0, len(questions))
		for _, q := range questions {
			views = append(views, q.View())
		}

		payload, err := json.Marshal(views)
		if err != nil {
			return nil, fmt.Errorf("marshal question views: %w", err)
		}
		if err := c.client.Set(ctx, key, payload, c.ttlWithJitter()).Err(); err != nil {
			// Serve from the store even when Redis is unhappy.
			return views, nil
		}
		return views, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuestionView), nil
}

func (c *QuestionCache) lookup(ctx context.Context, key string) ([]domain.QuestionView, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var views []domain.QuestionView
	if err := json.Unmarshal(raw, &views); err != nil {
		return nil, false
	}
	return views, true
}

func (c *QuestionCache) key(quizID string) string {
	return "quiz:" + quizID + ":questions"
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
