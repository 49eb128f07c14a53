package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisEscalationCache deduplicates operator prompts: at most one
// escalation notification per domain per TTL window. Raising the ceiling
// clears the mark so the domain can escalate again later.
type RedisEscalationCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisEscalationCache(client *redis.Client, ttl time.Duration) *RedisEscalationCache {
	return &RedisEscalationCache{client: client, ttl: ttl}
}

func escalationKey(domainID int64) string {
	return fmt.Sprintf("autobidder:escalated:%d", domainID)
}

// MarkNotified returns true when this is the first notification inside the
// current window.
func (r *RedisEscalationCache) MarkNotified(ctx context.Context, domainID int64) (bool, error) {
	return r.client.SetNX(ctx, escalationKey(domainID), "1", r.ttl).Result()
}

func (r *RedisEscalationCache) ClearNotified(ctx context.Context, domainID int64) error {
	return r.client.Del(ctx, escalationKey(domainID)).Err()
}
