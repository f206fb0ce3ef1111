package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiznet-service/internal/domain"
)

// CatalogLoader fetches a quiz's full question set from the backing store.
type CatalogLoader interface {
	LoadQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
}

// QuestionCache keeps the answer-stripped question projection per quiz with
// a TTL, so attempt starts do not re-read the catalog every time. Safe only
// because questions are immutable after quiz creation; if authoring ever
// allows edits, an invalidation hook keyed by quiz id has to be added here.
type QuestionCache struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedViews
}

type cachedViews struct {
	views     []domain.QuestionView
	expiresAt time.Time
}

func NewQuestionCache(loader CatalogLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedViews),
	}
}

func (c *QuestionCache) Views(ctx context.Context, quizID string) ([]domain.QuestionView, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.views, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.views, nil
		}
		c.mu.RUnlock()

		questions, err := c.loader.LoadQuestions(ctx, quizID)
		if err != nil {
			return nil, err
		}
		views := stripAnswers(questions)

		c.mu.Lock()
		c.cache[quizID] = cachedViews{views: views, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return views, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuestionView), nil
}

func stripAnswers(questions []domain.Question) []domain.QuestionView {
	views := make([]domain.QuestionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, q.View())
	}
	return views
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
