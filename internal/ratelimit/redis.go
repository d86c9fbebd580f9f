package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "ticketbot:cooldown:"

// RedisLimiter shares cooldowns between bot processes. Redis failures fail open.
type RedisLimiter struct {
	client    *redis.Client
	logger    *zap.Logger
	maxWindow time.Duration
	now       func() time.Time
}

// NewRedisLimiter wraps client; entries expire after maxWindow.
func NewRedisLimiter(client *redis.Client, logger *zap.Logger, maxWindow time.Duration) *RedisLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxWindow <= 0 {
		maxWindow = time.Minute
	}
	return &RedisLimiter{client: client, logger: logger, maxWindow: maxWindow, now: time.Now}
}

func (l *RedisLimiter) IsThrottled(ctx context.Context, key string, window time.Duration) bool {
	last, ok := l.lastMark(ctx, key)
	return ok && l.now().Sub(last) < window
}

func (l *RedisLimiter) Mark(ctx context.Context, key string) {
	value := strconv.FormatInt(l.now().UnixMilli(), 10)
	if err := l.client.Set(ctx, redisKeyPrefix+key, value, l.maxWindow).Err(); err != nil {
		l.logger.Warn("cooldown mark failed", zap.String("key", key), zap.Error(err))
	}
}

func (l *RedisLimiter) Remaining(ctx context.Context, key string, window time.Duration) int {
	last, ok := l.lastMark(ctx, key)
	if !ok {
		return 0
	}
	return remainingSeconds(last, l.now(), window)
}

func (l *RedisLimiter) lastMark(ctx context.Context, key string) (time.Time, bool) {
	raw, err := l.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			l.logger.Warn("cooldown lookup failed", zap.String("key", key), zap.Error(err))
		}
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		l.logger.Warn("cooldown value corrupt", zap.String("key", key), zap.String("value", raw))
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
