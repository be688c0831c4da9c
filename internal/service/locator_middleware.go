package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/webitel/shardscope/internal/domain/model"
)

// LocatorMiddleware implements [DECORATOR_PATTERN] to add observability
// to guild lookups without touching the resolution logic.
type LocatorMiddleware struct {
	Next   Locator
	Logger *slog.Logger
}

// NewLocatorMiddleware creates a new logging decorator for the Locator.
func NewLocatorMiddleware(next Locator, logger *slog.Logger) Locator {
	return &LocatorMiddleware{
		Next:   next,
		Logger: logger,
	}
}

// Locate wraps the lookup with execution timing and outcome logging.
func (m *LocatorMiddleware) Locate(ctx context.Context, guildID string) (model.GuildLocateResult, error) {
	start := time.Now()

	res, err := m.Next.Locate(ctx, guildID)

	duration := time.Since(start)

	if err != nil {
		m.Logger.Warn("GUILD_LOCATE_REJECTED",
			"guild_id", guildID,
			"err", err,
			"duration_ms", duration.Milliseconds(),
		)
		return res, err
	}

	attrs := []any{
		"guild_id", guildID,
		"method", res.SearchMethod,
		"found", res.Found,
		"duration_ms", duration.Milliseconds(),
	}
	if res.ShardID != nil {
		attrs = append(attrs, "shard_id", *res.ShardID)
	}
	if res.Error != nil {
		attrs = append(attrs, "reason", *res.Error)
		m.Logger.Info("GUILD_LOCATE_ESTIMATED", attrs...)
		return res, nil
	}

	m.Logger.Debug("GUILD_LOCATE_COMPLETED", attrs...)
	return res, nil
}
