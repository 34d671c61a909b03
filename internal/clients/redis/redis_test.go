package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/streem-backend/internal/logger"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	c := NewFromRedis(logger.NewNop(), rdb)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestQueueEnqueueDequeue(t *testing.T) {
	c, _ := newTestClient(t)
	q := NewQueue(c)
	ctx := context.Background()

	if err := q.Enqueue(ctx, VideoQueue, JobEnvelope{VideoID: "v1", Reason: "finalize"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	raw, err := q.Dequeue(ctx, VideoQueue, time.Second)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	var env JobEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.VideoID != "v1" {
		t.Fatalf("video_id = %q, want v1", env.VideoID)
	}
	if env.Reason != "finalize" {
		t.Fatalf("reason = %q, want finalize", env.Reason)
	}
}

func TestQueueDequeueFIFO(t *testing.T) {
	c, _ := newTestClient(t)
	q := NewQueue(c)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ctx, VideoQueue, JobEnvelope{VideoID: id}); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	for _, want := range []string{"a", "b", "c"} {
		raw, err := q.Dequeue(ctx, VideoQueue, time.Second)
		if err != nil {
			t.Fatalf("dequeue: %v", err)
		}
		var env JobEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if env.VideoID != want {
			t.Fatalf("video_id = %q, want %q", env.VideoID, want)
		}
	}
}

func TestPushDLQCapsLength(t *testing.T) {
	c, mr := newTestClient(t)
	q := NewQueue(c)
	ctx := context.Background()

	entry := NewDLQEntry("v1", nil, 3, "attempts_exhausted")
	if entry.TS == "" {
		t.Fatal("DLQ entry missing timestamp")
	}
	if err := q.PushDLQ(ctx, VideoDLQ, entry); err != nil {
		t.Fatalf("push dlq: %v", err)
	}
	items, err := mr.List(VideoDLQ)
	if err != nil {
		t.Fatalf("list dlq: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("dlq length = %d, want 1", len(items))
	}
	var got DLQEntry
	if err := json.Unmarshal([]byte(items[0]), &got); err != nil {
		t.Fatalf("unmarshal dlq entry: %v", err)
	}
	if got.VideoID != "v1" || got.Attempts != 3 || got.Reason != "attempts_exhausted" {
		t.Fatalf("unexpected dlq entry: %+v", got)
	}
}

func TestLockAcquireRelease(t *testing.T) {
	c, mr := newTestClient(t)
	l := NewLock(c)
	ctx := context.Background()
	key := VideoLockKey("v1")

	ok, err := l.Acquire(ctx, key, "owner-1", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Fatal("first acquire should succeed")
	}

	ok, err = l.Acquire(ctx, key, "owner-2", time.Minute)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatal("second acquire should be refused while held")
	}

	// Wrong owner must not release.
	l.Release(ctx, key, "owner-2")
	if !mr.Exists(key) {
		t.Fatal("lock released by non-owner")
	}

	l.Release(ctx, key, "owner-1")
	if mr.Exists(key) {
		t.Fatal("lock not released by owner")
	}
}

func TestHeartbeatInterval(t *testing.T) {
	cases := []struct {
		ttl  time.Duration
		want time.Duration
	}{
		{3 * time.Second, 5 * time.Second},
		{30 * time.Second, 10 * time.Second},
		{15 * time.Minute, 60 * time.Second},
	}
	for _, tc := range cases {
		if got := HeartbeatInterval(tc.ttl); got != tc.want {
			t.Fatalf("HeartbeatInterval(%v) = %v, want %v", tc.ttl, got, tc.want)
		}
	}
}

func TestAttemptsIncrClear(t *testing.T) {
	c, _ := newTestClient(t)
	a := NewAttempts(c)
	ctx := context.Background()
	key := VideoAttemptsKey("v1")

	for want := 1; want <= 3; want++ {
		n, err := a.Incr(ctx, key)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if n != want {
			t.Fatalf("attempt = %d, want %d", n, want)
		}
	}
	if err := a.Clear(ctx, key); err != nil {
		t.Fatalf("clear: %v", err)
	}
	n, err := a.Incr(ctx, key)
	if err != nil {
		t.Fatalf("incr after clear: %v", err)
	}
	if n != 1 {
		t.Fatalf("attempt after clear = %d, want 1", n)
	}
}

func TestRateLimitFixedWindow(t *testing.T) {
	c, mr := newTestClient(t)
	rl := NewRateLimit(c)
	ctx := context.Background()
	key := "rl:upload:u1"

	for i := 0; i < 5; i++ {
		ok, err := rl.Allow(ctx, key, 5, time.Minute)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	ok, err := rl.Allow(ctx, key, 5, time.Minute)
	if err != nil {
		t.Fatalf("allow over limit: %v", err)
	}
	if ok {
		t.Fatal("sixth request should be refused")
	}

	mr.FastForward(time.Minute + time.Second)
	ok, err = rl.Allow(ctx, key, 5, time.Minute)
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !ok {
		t.Fatal("request in new window should be allowed")
	}
}
