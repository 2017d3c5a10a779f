package platform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a Redis client from the given URL and pings it with
// a bounded retry budget. If Redis is still unreachable once the budget is
// exhausted, the caller is expected to exit with code 2 (spec.md §6).
func NewRedisClient(ctx context.Context, redisURL string, attempts uint, delay time.Duration, logger *slog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	err = retry.Do(
		func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx).Err()
		},
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("redis unreachable, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis after %d attempts: %w", attempts, err)
	}

	return client, nil
}
