package idgen

import (
	"context"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/redis/go-redis/v9"
)

// Clock is the millisecond time source of the generator.
type Clock interface {
	NowMillis() int64
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

func (SystemClock) NowMillis() int64 {
	return time.Now().UnixMilli()
}

// RedisClock reads the Redis server clock so every process shares one time base.
type RedisClock struct {
	client  redis.UniversalClient
	timeout time.Duration
}

func NewRedisClock(client redis.UniversalClient) *RedisClock {
	return &RedisClock{client: client, timeout: 500 * time.Millisecond}
}

func (r *RedisClock) NowMillis() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	ts, err := r.client.Time(ctx).Result()
	if err != nil {
		logger.Warnw("Redis clock unavailable, using local time", "error", err.Error())
		return time.Now().UnixMilli()
	}
	return ts.UnixMilli()
}
