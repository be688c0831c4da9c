package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/webitel/shardscope/internal/domain/model"
	"github.com/webitel/shardscope/internal/service"
)

// Caller resolves raw operations and owns their cache.
type Caller interface {
	Call(ctx context.Context, op model.Operation, params model.Params) (*model.Result, error)
	Invalidate(ctx context.Context, op model.Operation, params model.Params)
}

// FleetReader serves the canonical fleet shapes.
type FleetReader interface {
	Fleet(ctx context.Context) (model.Fleet, error)
	Detailed(ctx context.Context) (model.Fleet, error)
	Overview(ctx context.Context) (model.Overview, error)
}

// Locator resolves guild placement.
type Locator interface {
	Locate(ctx context.Context, guildID string) (model.GuildLocateResult, error)
}

type Handler struct {
	caller  Caller
	fleet   FleetReader
	locator Locator
	logger  *slog.Logger
}

func NewHandler(caller Caller, fleet FleetReader, locator Locator, logger *slog.Logger) *Handler {
	return &Handler{
		caller:  caller,
		fleet:   fleet,
		locator: locator,
		logger:  logger.With("component", "rest"),
	}
}

// Register mounts the dashboard API on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/fleet", h.Fleet)
		r.Get("/shards", h.Shards)
		r.Get("/overview", h.Overview)
		r.Get("/guilds/{id}/locate", h.Locate)
		r.Get("/ops/*", h.Operation)
		r.Delete("/cache/*", h.Invalidate)
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	res, err := service.CallSettled(r.Context(), h.caller, model.OpHealth, nil)
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	var health model.Health
	if err := res.Decode(&health); err != nil {
		fail(w, h.logger, err)
		return
	}
	ok(w, health, res.IsFallback)
}

func (h *Handler) Fleet(w http.ResponseWriter, r *http.Request) {
	f, err := h.fleet.Fleet(r.Context())
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	ok(w, f, f.Summary.IsFallback)
}

func (h *Handler) Shards(w http.ResponseWriter, r *http.Request) {
	f, err := h.fleet.Detailed(r.Context())
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	shards := f.Shards
	if shards == nil {
		shards = []model.ShardRecord{}
	}
	ok(w, shards, f.Summary.IsFallback)
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.fleet.Overview(r.Context())
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	ok(w, ov, ov.IsFallback)
}

func (h *Handler) Locate(w http.ResponseWriter, r *http.Request) {
	res, err := h.locator.Locate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	ok(w, res, false)
}

// Operation passes a parameterless operation through unchanged.
func (h *Handler) Operation(w http.ResponseWriter, r *http.Request) {
	op, err := h.operation(r)
	if err != nil {
		fail(w, h.logger, err)
		return
	}

	res, err := service.CallSettled(r.Context(), h.caller, op, nil)
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, response{
		Success:    true,
		Data:       res.Data,
		IsFallback: res.IsFallback,
		Cached:     res.Cached,
	})
}

func (h *Handler) Invalidate(w http.ResponseWriter, r *http.Request) {
	op, err := h.operation(r)
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	h.caller.Invalidate(r.Context(), op, nil)
	h.logger.Info("CACHE_INVALIDATED", "op", op.String())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) operation(r *http.Request) (model.Operation, error) {
	name := strings.Trim(chi.URLParam(r, "*"), "/")
	op, found := model.ParseOperation(name)
	if !found {
		return 0, &model.Error{Kind: model.KindValidation, Op: name, Message: "unknown operation"}
	}
	if op.Parameterized() {
		return 0, &model.Error{Kind: model.KindValidation, Op: name, Message: "operation needs parameters"}
	}
	return op, nil
}
