package botapi

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/webitel/shardscope/config"
)

// ConfigFrom maps the service configuration onto the transport setup.
func ConfigFrom(cfg *config.Config) Config {
	b := cfg.BotAPI
	return Config{
		BaseURL:     b.BaseURL,
		APIKey:      b.APIKey,
		AdminAPIKey: b.AdminAPIKey,
		Timeout:     b.Timeout,
		Breaker: BreakerConfig{
			Enabled:          b.Breaker.Enabled,
			FailureThreshold: b.Breaker.FailureThreshold,
			OpenTimeout:      b.Breaker.OpenTimeout,
			HalfOpenRequests: b.Breaker.HalfOpenRequests,
		},
	}
}

var Module = fx.Module(
	"botapi",

	// [CONSTRUCTOR] Provides the resilient bot API transport
	fx.Provide(func(cfg *config.Config, logger *slog.Logger) (*Transport, error) {
		return New(ConfigFrom(cfg), logger)
	}),

	// [LIFECYCLE] Drains the connection pool gracefully on app shutdown
	fx.Invoke(func(lc fx.Lifecycle, t *Transport) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return t.Close()
			},
		})
	}),
)
