package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
)

// RedisQueue is a Queue backed by a Redis list, pushed with RPUSH and
// popped with blocking BLPOP (oldest item first). Capacity is advisory: Push checks LLEN and
// retries with backoff until room frees up or ctx's deadline elapses.
type RedisQueue struct {
	client   redis.Cmdable
	key      string
	capacity int64
}

// NewRedisQueue returns a queue backed by key in client, bounded to
// capacity items. A non-positive capacity means unbounded.
func NewRedisQueue(client redis.Cmdable, key string, capacity int64) *RedisQueue {
	return &RedisQueue{client: client, key: key, capacity: capacity}
}

func (q *RedisQueue) Push(ctx context.Context, item any) error {
	data, err := encode(item)
	if err != nil {
		return fmt.Errorf("encode queue item: %w", err)
	}

	op := func() (struct{}, error) {
		if q.capacity > 0 {
			n, err := q.client.LLen(ctx, q.key).Result()
			if err != nil {
				return struct{}{}, backoff.Permanent(fmt.Errorf("check queue depth: %w", err))
			}
			if n >= q.capacity {
				return struct{}{}, fmt.Errorf("%w: %s at capacity %d", ErrFull, q.key, q.capacity)
			}
		}
		if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("rpush: %w", err))
		}
		return struct{}{}, nil
	}

	_, err = backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(0), // bounded by ctx's own deadline instead
	)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", ErrFull, q.key)
		}
		return err
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context, dst any) error {
	res, err := q.client.BLPop(ctx, blockTimeout(ctx), q.key).Result()
	if err == redis.Nil {
		return ErrEmpty
	}
	if err != nil {
		if ctx.Err() != nil {
			return ErrEmpty
		}
		return fmt.Errorf("blpop: %w", err)
	}
	// BLPop returns [key, value].
	if len(res) != 2 {
		return fmt.Errorf("blpop: unexpected reply shape %v", res)
	}
	return decode([]byte(res[1]), dst)
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("llen: %w", err)
	}
	return n, nil
}

// blockTimeout caps BLPop's block duration at ctx's remaining deadline (or
// a one-second poll when ctx carries none), so Pop still returns promptly
// on cancellation.
func blockTimeout(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
		return time.Millisecond
	}
	return time.Second
}
