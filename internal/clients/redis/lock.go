package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/streem-backend/internal/logger"
)

func VideoLockKey(videoID string) string { return "lock:video:" + videoID }
func EmailLockKey(videoID string) string { return "lock:email:" + videoID }

// WorkerOwner builds a lock owner token unique to this worker process.
func WorkerOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

type Lock struct {
	client *Client
	log    *logger.Logger
}

func NewLock(client *Client) *Lock {
	return &Lock{client: client, log: client.log.With("component", "RedisLock")}
}

// Acquire takes the lock with SET NX PX. false means another owner holds it.
func (l *Lock) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ok, err := l.client.rdb.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock acquire %s: %w", key, err)
	}
	return ok, nil
}

// Release drops the lock only when we still own it. Best-effort: failures
// are logged, never propagated, since the TTL reclaims the key anyway.
func (l *Lock) Release(ctx context.Context, key, owner string) {
	val, err := l.client.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			l.log.Warn("Lock release read failed", "key", key, "error", err)
		}
		return
	}
	if val != owner {
		l.log.Warn("Lock owner changed; not releasing", "key", key)
		return
	}
	if err := l.client.rdb.Del(ctx, key).Err(); err != nil {
		l.log.Warn("Lock release delete failed", "key", key, "error", err)
	}
}

// Heartbeat extends the lock TTL until ctx is cancelled or the returned
// stop func runs. Interval is ttl/3 clamped to [5s, 60s].
func (l *Lock) Heartbeat(ctx context.Context, key, owner string, ttl time.Duration) (stop func()) {
	interval := HeartbeatInterval(ttl)
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				val, err := l.client.rdb.Get(ctx, key).Result()
				if err != nil || val != owner {
					return
				}
				if err := l.client.rdb.PExpire(ctx, key, ttl).Err(); err != nil {
					l.log.Warn("Lock heartbeat extend failed", "key", key, "error", err)
				}
			}
		}
	}()

	var once bool
	return func() {
		if !once {
			once = true
			close(done)
		}
	}
}

func HeartbeatInterval(ttl time.Duration) time.Duration {
	interval := ttl / 3
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}
	if interval > 60*time.Second {
		interval = 60 * time.Second
	}
	return interval
}
