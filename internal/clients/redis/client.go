package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/platform/envutil"
)

// Client wraps the shared go-redis connection used for queues, locks,
// attempt counters, rate limits and the SSE bus.
type Client struct {
	log *logger.Logger
	rdb *goredis.Client
}

func New(log *logger.Logger) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
		DB:          envutil.Int("REDIS_DB", 0),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Client{log: log.With("client", "RedisClient"), rdb: rdb}, nil
}

// NewFromRedis wraps an existing connection. Test helper.
func NewFromRedis(log *logger.Logger, rdb *goredis.Client) *Client {
	return &Client{log: log.With("client", "RedisClient"), rdb: rdb}
}

func (c *Client) Redis() *goredis.Client { return c.rdb }

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
