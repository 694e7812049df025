package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stemsi/quizly-backend/internal/config"
	"github.com/stemsi/quizly-backend/internal/model"
)

// AttemptQueue is the Redis list that carries scored attempts from the
// request path to the persistence worker.
type AttemptQueue struct {
	rdb *redis.Client
	key string
}

// NewAttemptQueue creates an AttemptQueue on the persist attempts list.
func NewAttemptQueue(rdb *redis.Client) *AttemptQueue {
	return &AttemptQueue{rdb: rdb, key: config.WorkerKey.PersistAttemptsQueue}
}

// Enqueue appends an attempt to the tail of the queue.
func (q *AttemptQueue) Enqueue(ctx context.Context, a *model.Attempt) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	return q.rdb.RPush(ctx, q.key, raw).Err()
}

// Pop blocks up to timeout for the next attempt. It returns ErrNotFound
// when the wait times out.
func (q *AttemptQueue) Pop(ctx context.Context, timeout time.Duration) (*model.Attempt, error) {
	item, err := q.rdb.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(item) < 2 {
		return nil, ErrNotFound
	}

	var a model.Attempt
	if err := json.Unmarshal([]byte(item[1]), &a); err != nil {
		return nil, fmt.Errorf("invalid attempt payload: %w", err)
	}
	return &a, nil
}

// Len reports how many attempts wait in the queue.
func (q *AttemptQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}

// Requeue puts attempts back at the head so they are retried first.
func (q *AttemptQueue) Requeue(ctx context.Context, attempts ...*model.Attempt) error {
	if len(attempts) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(attempts))
	for _, a := range attempts {
		raw, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal attempt: %w", err)
		}
		values = append(values, raw)
	}
	return q.rdb.LPush(ctx, q.key, values...).Err()
}
