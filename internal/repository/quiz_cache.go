package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stemsi/quizly-backend/internal/config"
	"github.com/stemsi/quizly-backend/internal/model"
)

// generationTTL keeps invalidation counters well past any document TTL.
const generationTTL = 7 * 24 * time.Hour

// QuizCache is a Redis read-through cache for quiz documents and share
// code lookups.
type QuizCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuizCache creates a QuizCache whose entries expire after ttl.
func NewQuizCache(rdb *redis.Client, ttl time.Duration) *QuizCache {
	return &QuizCache{rdb: rdb, ttl: ttl}
}

// GetQuiz returns the cached quiz or ErrNotFound on a miss.
func (c *QuizCache) GetQuiz(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	data, err := c.rdb.Get(ctx, config.CacheKey.QuizDocKey(id.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get quiz doc: %w", err)
	}

	var q model.Quiz
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("unmarshal quiz doc: %w", err)
	}
	return &q, nil
}

// setQuizIfCurrent writes the document only while the generation counter
// still holds the value the caller read before loading the quiz.
var setQuizIfCurrent = redis.NewScript(`
if tonumber(redis.call('GET', KEYS[1]) or '0') ~= tonumber(ARGV[1]) then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

// Generation returns the invalidation counter of a quiz, zero if never
// invalidated.
func (c *QuizCache) Generation(ctx context.Context, id uuid.UUID) (int64, error) {
	gen, err := c.rdb.Get(ctx, config.CacheKey.QuizGenKey(id.String())).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get quiz generation: %w", err)
	}
	return gen, nil
}

// SetQuiz stores the quiz document unless it was invalidated after gen was
// read. A stale write is dropped silently.
func (c *QuizCache) SetQuiz(ctx context.Context, q *model.Quiz, gen int64) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal quiz doc: %w", err)
	}

	keys := []string{
		config.CacheKey.QuizGenKey(q.ID.String()),
		config.CacheKey.QuizDocKey(q.ID.String()),
	}
	if err := setQuizIfCurrent.Run(ctx, c.rdb, keys, gen, data, c.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("cache quiz: %w", err)
	}
	return nil
}

// SetShareCode maps a share code to its quiz id.
func (c *QuizCache) SetShareCode(ctx context.Context, code string, id uuid.UUID) error {
	if err := c.rdb.Set(ctx, config.CacheKey.ShareCodeKey(code), id.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("cache share code: %w", err)
	}
	return nil
}

// LookupShareCode resolves a share code to a quiz id, or ErrNotFound.
func (c *QuizCache) LookupShareCode(ctx context.Context, code string) (uuid.UUID, error) {
	val, err := c.rdb.Get(ctx, config.CacheKey.ShareCodeKey(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("get share code: %w", err)
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse cached quiz id: %w", err)
	}
	return id, nil
}

// InvalidateQuizzes drops the cached documents of the given quizzes and
// bumps their generation so in-flight fills of the old row are discarded.
// Share code mappings stay valid because codes never change.
func (c *QuizCache) InvalidateQuizzes(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	pipe := c.rdb.TxPipeline()
	for _, id := range ids {
		genKey := config.CacheKey.QuizGenKey(id.String())
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, generationTTL)
		pipe.Del(ctx, config.CacheKey.QuizDocKey(id.String()))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("invalidate quizzes: %w", err)
	}
	return nil
}
