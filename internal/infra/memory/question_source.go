package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizsync-service/internal/app"
	"quizsync-service/internal/domain"
)

// QuestionSetCache caches question sets with TTL to avoid repeated source hits.
type QuestionSetCache struct {
	source app.QuestionSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedSet
}

type cachedSet struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionSetCache(source app.QuestionSource, ttl time.Duration) *QuestionSetCache {
	return &QuestionSetCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSet),
	}
}

func (c *QuestionSetCache) LoadQuestionSet(ctx context.Context, name string) ([]domain.Question, error) {
	if questions, ok := c.lookup(name); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(name, func() (interface{}, error) {
		if questions, ok := c.lookup(name); ok {
			return questions, nil
		}
		questions, err := c.source.LoadQuestionSet(ctx, name)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[name] = cachedSet{questions: questions, expiresAt: c.clock().Add(c.ttlWithJitterLocked())}
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return copyQuestions(result.([]domain.Question)), nil
}

// Invalidate drops a cached set, e.g. after it was re-imported.
func (c *QuestionSetCache) Invalidate(name string) {
	c.mu.Lock()
	delete(c.cache, name)
	c.mu.Unlock()
}

func (c *QuestionSetCache) lookup(name string) ([]domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[name]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return copyQuestions(entry.questions), true
}

func (c *QuestionSetCache) ttlWithJitterLocked() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticQuestionSource is a loader backed by an in-memory map (useful for tests/demos).
type StaticQuestionSource struct {
	sets map[string][]domain.Question
}

func NewStaticQuestionSource(sets map[string][]domain.Question) *StaticQuestionSource {
	return &StaticQuestionSource{sets: sets}
}

func (s *StaticQuestionSource) LoadQuestionSet(_ context.Context, name string) ([]domain.Question, error) {
	questions, ok := s.sets[name]
	if !ok {
		return nil, domain.ErrQuestionSetNotFound
	}
	return copyQuestions(questions), nil
}

func copyQuestions(in []domain.Question) []domain.Question {
	out := make([]domain.Question, len(in))
	for i, q := range in {
		q.Answers = append([]string(nil), q.Answers...)
		q.Correct = append([]int(nil), q.Correct...)
		q.AnswerOrder = append([]int(nil), q.AnswerOrder...)
		out[i] = q
	}
	return out
}
