package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// EventCache is a best-effort duplicate-delivery fast path. The durable
// idempotency record in Postgres stays authoritative; a cache miss or error
// only costs one extra store transaction.
type EventCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewEventCache(client RedisClient, ttl time.Duration) *EventCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &EventCache{client: client, ttl: ttl}
}

func eventKey(eventID string) string {
	return fmt.Sprintf("processed_event:%s", eventID)
}

func (c *EventCache) Seen(ctx context.Context, eventID string) (bool, error) {
	_, err := c.client.Get(ctx, eventKey(eventID))
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *EventCache) MarkSeen(ctx context.Context, eventID string) error {
	return c.client.Set(ctx, eventKey(eventID), "1", c.ttl)
}
