package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "wedlock:ratelimit:"

// Redis is a fixed-window limiter shared by every replica pointing at the
// same Redis.
type Redis struct {
	client *redis.Client
	policy Policy
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, p Policy) *Redis {
	return &Redis{client: client, policy: p.withDefaults()}
}

// Allow increments the counter for key and starts its window on the first
// hit. Errors leave allowed set to true so callers can fail open.
func (r *Redis) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := keyPrefix + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return true, 0, fmt.Errorf("counting attempts: %w", err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		if err := r.client.PExpire(ctx, k, r.policy.Window).Err(); err != nil {
			return true, 0, fmt.Errorf("starting window: %w", err)
		}
		remaining = r.policy.Window
	}

	if incr.Val() > int64(r.policy.Limit) {
		return false, remaining, nil
	}
	return true, 0, nil
}
