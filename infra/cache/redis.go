package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares cached responses between several dashboard instances.
// Expiry is delegated to the server; errors degrade to cache misses.
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
	logger *slog.Logger
}

func NewRedis(rdb redis.UniversalClient, prefix string, logger *slog.Logger) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, logger: logger.With("component", "cache.redis")}
}

// Dial connects to addrs and verifies the connection.
func Dial(ctx context.Context, addrs []string, prefix string, logger *slog.Logger) (*Redis, error) {
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: addrs})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return NewRedis(rdb, prefix, logger), nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("cache get failed", "key", key, "err", err)
		}
		return nil, false
	}
	return b, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		r.Invalidate(ctx, key)
		return
	}
	if err := r.rdb.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		r.logger.Warn("cache set failed", "key", key, "err", err)
	}
}

func (r *Redis) Invalidate(ctx context.Context, key string) {
	if err := r.rdb.Del(ctx, r.prefix+key).Err(); err != nil {
		r.logger.Warn("cache invalidate failed", "key", key, "err", err)
	}
}

func (r *Redis) Close() error { return r.rdb.Close() }
