package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "catalog:deferred"

// RedisClient is the subset of *redis.Client used by RedisQueue.
type RedisClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	RPop(ctx context.Context, key string) *redis.StringCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Close() error
}

// RedisQueue keeps deferred items in a Redis list so a later recheck run, or
// the serve-mode cron, can pick them up from another process.
type RedisQueue struct {
	client RedisClient
	key    string
	now    func() time.Time
}

func NewRedisQueue(client RedisClient, key string) *RedisQueue {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisQueue{client: client, key: key, now: time.Now}
}

func (q *RedisQueue) Push(ctx context.Context, item models.DeferredItem) error {
	if item.QueuedAt.IsZero() {
		item.QueuedAt = q.now()
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal deferred item: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, string(data)).Err(); err != nil {
		return fmt.Errorf("failed to push deferred item: %w", err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context) (models.DeferredItem, error) {
	raw, err := q.client.RPop(ctx, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return models.DeferredItem{}, ErrQueueEmpty
	}
	if err != nil {
		return models.DeferredItem{}, fmt.Errorf("failed to pop deferred item: %w", err)
	}

	var item models.DeferredItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return models.DeferredItem{}, fmt.Errorf("failed to unmarshal deferred item: %w", err)
	}
	return item, nil
}

// Peek returns the oldest items first without removing them.
func (q *RedisQueue) Peek(ctx context.Context, limit int) ([]models.DeferredItem, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raws, err := q.client.LRange(ctx, q.key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read deferred items: %w", err)
	}

	items := make([]models.DeferredItem, 0, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		var item models.DeferredItem
		if err := json.Unmarshal([]byte(raws[i]), &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (q *RedisQueue) Size(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return int(n), nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
