package rest

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"

	"github.com/webitel/shardscope/internal/service"
)

var Module = fx.Module("rest-handler",
	fx.Provide(
		func(d *service.Dispatcher, f *service.FleetService, l service.Locator, logger *slog.Logger) *Handler {
			return NewHandler(d, f, l, logger)
		},
	),
	fx.Invoke(func(r chi.Router, h *Handler) {
		h.Register(r)
	}),
)
