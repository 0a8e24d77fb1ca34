package redisclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-scheduling/internal/ratelimit"
)

// FixedWindowLimiter counts requests per key in Redis so every replica shares
// one budget.
type FixedWindowLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewFixedWindowLimiter(client *redis.Client, limit int, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

func (f *FixedWindowLimiter) Allow(ctx context.Context, key string) (ratelimit.Decision, error) {
	now := f.now()
	bucket := now.UnixMilli() / f.window.Milliseconds()
	redisKey := "ratelimit:" + key + ":" + strconv.FormatInt(bucket, 10)

	pipe := f.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.PExpire(ctx, redisKey, f.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return ratelimit.Decision{}, fmt.Errorf("rate limit counter: %w", err)
	}

	if incr.Val() > f.limit {
		elapsed := time.Duration(now.UnixMilli()%f.window.Milliseconds()) * time.Millisecond
		return ratelimit.Decision{Allowed: false, RetryAfter: f.window - elapsed}, nil
	}
	return ratelimit.Decision{Allowed: true}, nil
}
