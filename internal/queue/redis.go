package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fathima-sithara/relay-service/internal/errs"
)

// RedisQueue keeps each recipient's pending payloads in a Redis list
// under pending:<userID>, appended with RPUSH and read back oldest
// first.
type RedisQueue struct {
	client *redis.Client
	prefix string
}

func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	return &RedisQueue{client: client, prefix: prefix}
}

func (q *RedisQueue) key(userID string) string {
	return fmt.Sprintf("%s:pending:%s", q.prefix, userID)
}

func (q *RedisQueue) Enqueue(ctx context.Context, userID string, payload []byte) error {
	if err := q.client.RPush(ctx, q.key(userID), payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrQueueUnavailable, err)
	}
	return nil
}

func (q *RedisQueue) DrainAll(ctx context.Context, userID string) ([][]byte, error) {
	vals, err := q.client.LRange(ctx, q.key(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrQueueUnavailable, err)
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

// Clear trims exactly the count oldest entries. LTRIM keeps everything
// from index count onward, so entries RPUSHed after the DrainAll read
// survive.
func (q *RedisQueue) Clear(ctx context.Context, userID string, count int) error {
	if count <= 0 {
		return nil
	}
	if err := q.client.LTrim(ctx, q.key(userID), int64(count), -1).Err(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrQueueUnavailable, err)
	}
	return nil
}
