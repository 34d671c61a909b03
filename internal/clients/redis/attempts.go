package redis

import (
	"context"
	"fmt"
)

func VideoAttemptsKey(videoID string) string { return "attempts:video:" + videoID }
func EmailAttemptsKey(videoID string) string { return "attempts:email:" + videoID }

// Attempts counts delivery attempts per job so the worker can route
// retry vs dead-letter.
type Attempts struct {
	client *Client
}

func NewAttempts(client *Client) *Attempts {
	return &Attempts{client: client}
}

func (a *Attempts) Incr(ctx context.Context, key string) (int, error) {
	n, err := a.client.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return int(n), nil
}

func (a *Attempts) Clear(ctx context.Context, key string) error {
	return a.client.rdb.Del(ctx, key).Err()
}
