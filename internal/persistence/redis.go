package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/laggis/Discord-Ticket-bot/internal/config"
)

const redisPingTimeout = 3 * time.Second

// Redis wraps the go-redis client behind the shared cooldown store.
type Redis struct {
	Client *redis.Client
}

// NewRedis dials Redis only when cooldowns are stored there. With the
// in-memory backend the returned Redis has no client.
func NewRedis(ctx context.Context, cfg config.RedisConfig, backend config.CooldownBackend, logger *zap.Logger) *Redis {
	if backend != config.CooldownBackendRedis {
		logger.Info("cooldowns kept in memory; redis not used")
		return &Redis{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// the limiter fails open until redis comes back
		logger.Warn("unable to reach redis", zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.String("addr", cfg.Addr))
	}

	return &Redis{Client: client}
}

// Enabled reports whether a client was created.
func (r *Redis) Enabled() bool {
	return r != nil && r.Client != nil
}

// Close closes the client.
func (r *Redis) Close() {
	if r.Enabled() {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if !r.Enabled() {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
