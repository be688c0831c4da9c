package cmd

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"

	"github.com/webitel/shardscope/config"
)

// ProvideLogger builds the process logger. The level stays adjustable
// through the returned LevelVar for config hot reload.
func ProvideLogger(cfg *config.Config, tel *Telemetry) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	if l, err := config.ParseLevel(cfg.Log.Level); err == nil {
		lvl.Set(l)
	}

	var logger *slog.Logger
	if cfg.Log.OTel {
		logger = slog.New(&leveled{
			Handler: otelslog.NewHandler(ServiceName,
				otelslog.WithVersion(version),
				otelslog.WithLoggerProvider(tel.Logs),
			),
			level: lvl,
		})
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	}

	logger = logger.With(
		slog.String("service", ServiceName),
		slog.String("version", version),
	)
	slog.SetDefault(logger)
	cfg.WatchLogLevel(lvl, logger)
	return logger, lvl
}

// leveled applies the configured level in front of the otel bridge, which
// has no level of its own.
type leveled struct {
	slog.Handler
	level slog.Leveler
}

func (h *leveled) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() && h.Handler.Enabled(ctx, l)
}

func (h *leveled) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &leveled{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h *leveled) WithGroup(name string) slog.Handler {
	return &leveled{Handler: h.Handler.WithGroup(name), level: h.level}
}
