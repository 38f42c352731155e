package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/tbourn/inbound-bridge/internal/clock"
)

// RedisLedger stores each key with SET NX and a TTL equal to the retention
// window, so expiry is handled by Redis.
type RedisLedger struct {
	client    redis.UniversalClient
	retention time.Duration
	clock     clock.Clock
}

var _ Ledger = (*RedisLedger)(nil)

// NewRedisLedger wraps an existing client.
func NewRedisLedger(client redis.UniversalClient, retention time.Duration, clk clock.Clock) *RedisLedger {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &RedisLedger{client: client, retention: retention, clock: clk}
}

// DialRedis parses rawURL, connects and pings.
func DialRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	if rawURL == "" {
		return nil, errors.New("redis: REDIS_URL is not set")
	}
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return c, nil
}

// Seen implements Ledger.
func (l *RedisLedger) Seen(ctx context.Context, k Key) (bool, error) {
	n, err := l.client.Exists(ctx, k.String()).Result()
	if err != nil {
		return false, fmt.Errorf("ledger: exists: %w", err)
	}
	return n > 0, nil
}

// Record implements Ledger. The stored value is the processing time.
func (l *RedisLedger) Record(ctx context.Context, k Key) (bool, error) {
	ok, err := l.client.SetNX(ctx, k.String(), l.clock.Now().UTC().Unix(), l.retention).Result()
	if err != nil {
		return false, fmt.Errorf("ledger: setnx: %w", err)
	}
	return ok, nil
}

// Purge implements Ledger. Redis expires keys itself.
func (l *RedisLedger) Purge(context.Context) (int64, error) { return 0, nil }
