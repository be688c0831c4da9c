package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.uber.org/fx"

	"github.com/webitel/shardscope/config"
)

const dialTimeout = 5 * time.Second

// ClosableStore is a Store that owns a connection or buffer.
type ClosableStore interface {
	Store
	io.Closer
}

// Open builds the store selected by cache.driver.
func Open(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (ClosableStore, error) {
	switch cfg.Driver {
	case config.CacheRedis:
		ctx, cancel := context.WithTimeout(ctx, dialTimeout)
		defer cancel()

		r, err := Dial(ctx, strings.Split(cfg.RedisAddr, ","), cfg.Prefix, logger)
		if err != nil {
			return nil, fmt.Errorf("cache: dial redis %s: %w", cfg.RedisAddr, err)
		}
		return r, nil
	default:
		return NewMemory(cfg.Size)
	}
}

var Module = fx.Module(
	"cache",

	// [LIFECYCLE] The store is closed together with the app
	fx.Provide(func(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (Store, error) {
		s, err := Open(context.Background(), cfg.Cache, logger)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return s.Close()
			},
		})
		logger.Info("cache ready", "driver", cfg.Cache.Driver)
		return s, nil
	}),
)
