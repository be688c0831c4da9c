// Package live mounts the push endpoints fed by the snapshot hub.
package live

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"

	"github.com/webitel/shardscope/internal/domain/registry"
	"github.com/webitel/shardscope/internal/handler/lp"
	"github.com/webitel/shardscope/internal/handler/ws"
)

var Module = fx.Module("live-handler",
	fx.Provide(
		ws.NewWSHandler,
		func(hub registry.Hubber) *lp.LPHandler {
			return lp.NewLPHandler(hub, lp.DefaultPollTimeout)
		},
	),
	fx.Invoke(func(r chi.Router, wsh *ws.WSHandler, lph *lp.LPHandler, logger *slog.Logger) {
		r.Get("/ws/fleet", wsh.ServeHTTP)
		r.Get("/poll/fleet", lph.Poll)
		logger.Debug("live endpoints mounted", "ws", "/ws/fleet", "poll", "/poll/fleet")
	}),
)
