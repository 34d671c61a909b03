package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/sse"
)

// SSEBus fans status events out across API replicas over redis pub/sub so a
// worker publish reaches every connected hub.
type SSEBus interface {
	Publish(ctx context.Context, msg sse.Message) error
	StartForwarder(ctx context.Context, onMsg func(m sse.Message)) error
}

type sseBus struct {
	log     *logger.Logger
	client  *Client
	channel string
}

func NewSSEBus(log *logger.Logger, client *Client) (SSEBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	ch := strings.TrimSpace(os.Getenv("SSE_REDIS_CHANNEL"))
	if ch == "" {
		ch = "sse:events"
	}
	return &sseBus{
		log:     log.With("service", "RedisSSEBus"),
		client:  client,
		channel: ch,
	}, nil
}

func (b *sseBus) Publish(ctx context.Context, msg sse.Message) error {
	if b == nil || b.client == nil {
		return fmt.Errorf("redis SSE bus not initialized")
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.client.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *sseBus) StartForwarder(ctx context.Context, onMsg func(m sse.Message)) error {
	if b == nil || b.client == nil {
		return fmt.Errorf("redis SSE bus not initialized")
	}
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}

	sub := b.client.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var msg sse.Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.log.Warn("bad redis SSE payload", "error", err)
					continue
				}
				onMsg(msg)
			}
		}
	}()

	return nil
}
