package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimit is a fixed-window counter: the first INCR in a window sets the
// expiry, every request increments, and the call is allowed while the
// count stays at or under the limit.
type RateLimit struct {
	client *Client
}

func NewRateLimit(client *Client) *RateLimit {
	return &RateLimit{client: client}
}

func (rl *RateLimit) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := rl.client.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit incr %s: %w", key, err)
	}
	if n == 1 {
		if err := rl.client.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit expire %s: %w", key, err)
		}
	}
	return n <= int64(limit), nil
}
