package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	VideoQueue = "q:videos"
	EmailQueue = "q:emails"
	VideoDLQ   = "dlq:videos"
	EmailDLQ   = "dlq:emails"

	dlqMaxEntries = 10000
)

// JobEnvelope is the payload shape on both work queues. Reason records
// why the job was enqueued ("finalize", "retry", "video_ready").
type JobEnvelope struct {
	VideoID string `json:"video_id"`
	Reason  string `json:"reason,omitempty"`
}

// DLQEntry records a permanently failed job.
type DLQEntry struct {
	VideoID  string `json:"video_id"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
	Reason   string `json:"reason"`
	TS       string `json:"ts"`
}

func NewDLQEntry(videoID string, err error, attempts int, reason string) DLQEntry {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return DLQEntry{
		VideoID:  videoID,
		Error:    msg,
		Attempts: attempts,
		Reason:   reason,
		TS:       time.Now().UTC().Format(time.RFC3339),
	}
}

type Queue struct {
	client *Client
}

func NewQueue(client *Client) *Queue {
	return &Queue{client: client}
}

func (q *Queue) Enqueue(ctx context.Context, queue string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal queue payload: %w", err)
	}
	if err := q.client.rdb.LPush(ctx, queue, raw).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", queue, err)
	}
	return nil
}

// Dequeue blocks up to timeout on BRPOP and returns (nil, nil) when the
// queue stays empty.
func (q *Queue) Dequeue(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	res, err := q.client.rdb.BRPop(ctx, timeout, queue).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("brpop %s: %w", queue, err)
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("brpop %s: unexpected reply of %d parts", queue, len(res))
	}
	return []byte(res[1]), nil
}

// PushDLQ appends a dead-letter entry and caps the list length.
func (q *Queue) PushDLQ(ctx context.Context, dlq string, entry DLQEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dlq entry: %w", err)
	}
	pipe := q.client.rdb.TxPipeline()
	pipe.LPush(ctx, dlq, raw)
	pipe.LTrim(ctx, dlq, 0, dlqMaxEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push dlq %s: %w", dlq, err)
	}
	return nil
}
