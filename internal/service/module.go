package service

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/webitel/shardscope/config"
	"github.com/webitel/shardscope/infra/client/botapi"
	"github.com/webitel/shardscope/internal/adapter/pubsub"
	"github.com/webitel/shardscope/internal/domain/fleet"
)

const instrumentation = "github.com/webitel/shardscope/internal/service"

var Module = fx.Module(
	"service",

	fx.Provide(
		fx.Annotate(
			func(t *botapi.Transport) *botapi.Transport { return t },
			fx.As(new(Executor)),
		),
		func(cfg *config.Config) *fleet.Synthesizer {
			return fleet.NewSynthesizer(cfg.Fleet.FallbackShards, cfg.Fleet.Seed)
		},
		fx.Annotate(
			NewDispatcher,
			fx.As(new(Caller)),
			fx.As(fx.Self()),
		),
		fx.Annotate(
			NewFleetService,
			fx.As(new(ShardCounter)),
			fx.As(fx.Self()),
		),
		// [DECORATION_LAYER] Locator is handed out wrapped; fx.Decorate would
		// not reach consumers outside this module.
		func(caller Caller, shards ShardCounter, cfg *config.Config, logger *slog.Logger) Locator {
			return NewLocatorMiddleware(
				NewLocatorService(caller, shards, logger, WithHealthTTL(cfg.Locator.HealthTTL)),
				logger,
			)
		},
	),
)

// PollerModule runs the background fleet poller; one-shot CLI commands leave it out.
var PollerModule = fx.Module(
	"fleet_poller",

	fx.Provide(
		fx.Annotate(
			pubsub.NewEventDispatcher,
			fx.As(new(SnapshotPublisher)),
			fx.As(fx.Self()),
		),
		func(fleetSvc *FleetService, events SnapshotPublisher, cfg *config.Config, logger *slog.Logger) *FleetPoller {
			return NewFleetPoller(fleetSvc, events, cfg.PubSub.Topic, cfg.Poller.Interval, cfg.Poller.MaxBackoff, logger)
		},
	),

	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, p *FleetPoller, logger *slog.Logger) {
		if !cfg.Poller.Enabled {
			logger.Info("fleet poller disabled")
			return
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return p.Start(ctx)
			},
			OnStop: func(ctx context.Context) error {
				p.Stop()
				return nil
			},
		})
	}),
)
