package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const sweepLockKey = "autobidder:sweep_lock"

// RedisSweepLock is the single-flight guard for sweeps. A periodic sweep
// and an escalation retry share one auction-site session, so only one may
// run at a time. The TTL bounds a sweep that dies without releasing.
type RedisSweepLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSweepLock(client *redis.Client, ttl time.Duration) *RedisSweepLock {
	return &RedisSweepLock{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisSweepLock) Acquire(ctx context.Context, ownerID string) (bool, error) {
	return r.client.SetNX(ctx, sweepLockKey, ownerID, r.ttl).Result()
}

func (r *RedisSweepLock) Release(ctx context.Context, ownerID string) error {
	// Lua compare-and-delete so a slow sweep never releases a lock that
	// has already expired and been re-acquired by another owner.
	luaScript := `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("DEL", KEYS[1])
        else
            return 0
        end
    `

	_, err := r.client.Eval(ctx, luaScript, []string{sweepLockKey}, ownerID).Result()
	return err
}
