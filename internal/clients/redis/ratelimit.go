package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ellyeware/idiombot/internal/platform/logger"
)

// RateLimiter throttles per-user actions with redis keys carrying a TTL. Hit
// reports whether the action is still allowed inside the current window and
// bumps the counter either way.
type RateLimiter interface {
	Hit(ctx context.Context, action, userID string, limit int, window time.Duration) (allowed bool, err error)
	Reset(ctx context.Context, action, userID string) error
	Close() error
}

type rateLimiter struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewRateLimiter(log *logger.Logger) (RateLimiter, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &rateLimiter{
		log: log.With("service", "RedisRateLimiter"),
		rdb: rdb,
	}, nil
}

func (rl *rateLimiter) Hit(ctx context.Context, action, userID string, limit int, window time.Duration) (bool, error) {
	if rl == nil || rl.rdb == nil {
		return false, fmt.Errorf("redis rate limiter not initialized")
	}
	key := rateKey(action, userID)
	count, err := rl.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis incr: %w", err)
	}
	if count == 1 {
		// first hit of the window owns the expiry
		if err := rl.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("redis expire: %w", err)
		}
	}
	return count <= int64(limit), nil
}

func (rl *rateLimiter) Reset(ctx context.Context, action, userID string) error {
	if rl == nil || rl.rdb == nil {
		return fmt.Errorf("redis rate limiter not initialized")
	}
	return rl.rdb.Del(ctx, rateKey(action, userID)).Err()
}

func (rl *rateLimiter) Close() error {
	if rl == nil || rl.rdb == nil {
		return nil
	}
	return rl.rdb.Close()
}

func rateKey(action, userID string) string {
	return fmt.Sprintf("RL_%s_%s", action, userID)
}
