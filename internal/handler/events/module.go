package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"

	"github.com/webitel/shardscope/config"
)

var Module = fx.Module("events-handler",
	fx.Provide(
		NewSnapshotHandler,
		NewWatermillRouter,
	),

	fx.Invoke(func(h *SnapshotHandler, router *message.Router, sub message.Subscriber, cfg *config.Config) error {
		return h.RegisterHandlers(router, sub, cfg.PubSub.Topic)
	}),

	// [LIFECYCLE] Router runs until the app stops
	fx.Invoke(func(lc fx.Lifecycle, router *message.Router) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				errCh := make(chan error, 1)
				go func() { errCh <- router.Run(context.Background()) }()

				select {
				case <-router.Running():
					return nil
				case err := <-errCh:
					return fmt.Errorf("events router: %w", err)
				case <-ctx.Done():
					return ctx.Err()
				}
			},
			OnStop: func(ctx context.Context) error {
				return router.Close()
			},
		})
	}),
)
