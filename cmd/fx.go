package cmd

import (
	"log/slog"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/webitel/shardscope/config"
	"github.com/webitel/shardscope/infra/cache"
	"github.com/webitel/shardscope/infra/client/botapi"
	"github.com/webitel/shardscope/infra/pubsub"
	httpsrv "github.com/webitel/shardscope/infra/server/http"
	"github.com/webitel/shardscope/internal/domain/registry"
	"github.com/webitel/shardscope/internal/handler/events"
	"github.com/webitel/shardscope/internal/handler/live"
	"github.com/webitel/shardscope/internal/handler/rest"
	"github.com/webitel/shardscope/internal/service"
)

// clientModules is the bot API client stack shared by the server and the
// one-shot commands.
func clientModules(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideTelemetry,
			ProvideLogger,
		),
		fx.Invoke(func(*Telemetry) {}),
		botapi.Module,
		cache.Module,
		service.Module,
	)
}

func serverModules(cfg *config.Config) fx.Option {
	return fx.Options(
		clientModules(cfg),
		pubsub.Module,
		registry.Module,
		events.Module,
		service.PollerModule,
		httpsrv.Module,
		rest.Module,
		live.Module,
	)
}

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		serverModules(cfg),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger}
		}),
	)
}

// NewClientApp builds only the client stack and hands the requested
// components out through targets (pointers, as for fx.Populate).
func NewClientApp(cfg *config.Config, targets ...any) *fx.App {
	return fx.New(
		clientModules(cfg),
		fx.NopLogger,
		fx.Populate(targets...),
	)
}
