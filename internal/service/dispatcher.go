package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/webitel/shardscope/infra/cache"
	"github.com/webitel/shardscope/infra/client/botapi"
	"github.com/webitel/shardscope/internal/domain/fleet"
	"github.com/webitel/shardscope/internal/domain/model"
)

// Executor is the transport seen by the dispatcher.
type Executor interface {
	Execute(ctx context.Context, req botapi.Request) (*model.Envelope, error)
}

// Caller is the high-level contract consumed by the fleet service,
// the locator and polling sessions.
type Caller interface {
	Call(ctx context.Context, op model.Operation, params model.Params) (*model.Result, error)
}

// Dispatcher maps operations onto transport calls. It serves fresh cache
// entries, keeps at most one pending request per logical key and degrades
// to synthetic data for operations that define a fallback.
type Dispatcher struct {
	exec   Executor
	cache  cache.Store
	synth  *fleet.Synthesizer
	logger *slog.Logger
	now    func() time.Time

	// callTimeout overrides the transport default when positive.
	callTimeout time.Duration

	// mu guards inflight and orders completions against newer calls.
	mu       sync.Mutex
	inflight map[string]*model.RequestHandle

	calls metric.Int64Counter
}

// DispatcherOption defines a functional configuration type for the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatchClock overrides the timestamp source of results.
func WithDispatchClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// WithCallTimeout sets the per-call timeout passed to the transport.
func WithCallTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.callTimeout = timeout }
}

func NewDispatcher(exec Executor, store cache.Store, synth *fleet.Synthesizer, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		exec:     exec,
		cache:    store,
		synth:    synth,
		logger:   logger.With("component", "dispatcher"),
		now:      time.Now,
		inflight: make(map[string]*model.RequestHandle),
	}
	for _, opt := range opts {
		opt(d)
	}

	calls, err := otel.Meter(instrumentation).Int64Counter("shardscope.dispatch.calls",
		metric.WithDescription("Dispatcher calls by operation and outcome"))
	if err != nil {
		d.logger.Warn("dispatch counter unavailable", "err", err)
	}
	d.calls = calls
	return d
}

// Key identifies a logical request: the operation plus a hash of its params.
func Key(op model.Operation, params model.Params) string {
	canonical := params.Canonical()
	if canonical == "" {
		return op.String()
	}
	return op.String() + "#" + strconv.FormatUint(xxhash.Sum64String(canonical), 16)
}

type cachedPayload struct {
	Data      json.RawMessage `json:"data"`
	Summary   json.RawMessage `json:"summary,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Call resolves op through cache, transport and fallback, in that order.
// A call superseded by a newer one for the same key returns model.ErrAborted
// and its response is never applied.
func (d *Dispatcher) Call(ctx context.Context, op model.Operation, params model.Params) (*model.Result, error) {
	if !op.Valid() {
		return nil, &model.Error{Kind: model.KindValidation, Op: op.String(), Message: "unknown operation"}
	}
	spec := op.Spec()
	key := Key(op, params)

	if res, ok := d.fromCache(ctx, op, key); ok {
		return res, nil
	}

	h, callCtx := d.begin(ctx, key)
	defer d.release(key, h)

	env, err := d.exec.Execute(callCtx, botapi.Request{
		Op:      op,
		Params:  params,
		Auth:    spec.Auth,
		Timeout: d.callTimeout,
	})

	if err == nil && !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "bot api reported failure"
		}
		err = &model.Error{Kind: model.KindAPI, Op: op.String(), Message: msg}
	}

	if err != nil {
		if !h.Fail() {
			return nil, d.discard(ctx, op, h)
		}
		return d.degrade(ctx, op, err)
	}

	res := &model.Result{
		Op:         op,
		Data:       env.Data,
		Summary:    env.Summary,
		IsFallback: env.IsFallback,
		Timestamp:  d.now().UTC(),
	}

	d.mu.Lock()
	completed := h.Complete()
	if completed && spec.TTL > 0 && !env.IsFallback {
		d.store(ctx, key, res, spec.TTL)
	}
	d.mu.Unlock()

	if !completed {
		return nil, d.discard(ctx, op, h)
	}
	d.count(ctx, op, "network")
	return res, nil
}

// Await blocks until the request currently pending for op/params, if any,
// has settled and its response is cached.
func (d *Dispatcher) Await(ctx context.Context, op model.Operation, params model.Params) error {
	d.mu.Lock()
	h, ok := d.inflight[Key(op, params)]
	d.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case <-h.Done():
	case <-ctx.Done():
		return &model.Error{Kind: model.KindTimeout, Op: op.String(), Err: ctx.Err()}
	}
	// completion and the cache write share mu
	d.mu.Lock()
	d.mu.Unlock()
	return nil
}

// Invalidate drops the cached response of op for params.
func (d *Dispatcher) Invalidate(ctx context.Context, op model.Operation, params model.Params) {
	d.cache.Invalidate(ctx, Key(op, params))
}

// Pending reports whether a request for op/params is currently in flight.
func (d *Dispatcher) Pending(op model.Operation, params model.Params) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.inflight[Key(op, params)]
	return ok && h.State() == model.HandlePending
}

func (d *Dispatcher) fromCache(ctx context.Context, op model.Operation, key string) (*model.Result, bool) {
	if op.Spec().TTL <= 0 {
		return nil, false
	}
	raw, ok := d.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}

	var p cachedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		d.logger.Warn("dropping unreadable cache entry", "key", key, "err", err)
		d.cache.Invalidate(ctx, key)
		return nil, false
	}

	d.count(ctx, op, "cache")
	return &model.Result{Op: op, Data: p.Data, Summary: p.Summary, Cached: true, Timestamp: p.Timestamp}, true
}

func (d *Dispatcher) store(ctx context.Context, key string, res *model.Result, ttl time.Duration) {
	raw, err := json.Marshal(cachedPayload{Data: res.Data, Summary: res.Summary, Timestamp: res.Timestamp})
	if err != nil {
		d.logger.Warn("cache encode failed", "key", key, "err", err)
		return
	}
	d.cache.Set(ctx, key, raw, ttl)
}

// begin registers a fresh handle for key, aborting any pending predecessor.
func (d *Dispatcher) begin(ctx context.Context, key string) (*model.RequestHandle, context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.inflight[key]; ok && prev.Abort() {
		d.logger.Debug("superseded pending request", "key", key, "handle", prev.ID)
	}

	h, callCtx := model.NewRequestHandle(ctx, key)
	d.inflight[key] = h
	return h, callCtx
}

func (d *Dispatcher) release(key string, h *model.RequestHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inflight[key] == h {
		delete(d.inflight, key)
	}
}

func (d *Dispatcher) discard(ctx context.Context, op model.Operation, h *model.RequestHandle) error {
	d.count(ctx, op, "aborted")
	return &model.Error{Kind: model.KindAborted, Op: op.String(), Message: fmt.Sprintf("request %s superseded", h.ID)}
}

// degrade answers a failed call with the operation's fallback, if it has one.
func (d *Dispatcher) degrade(ctx context.Context, op model.Operation, cause error) (*model.Result, error) {
	kind := op.Spec().Fallback
	if kind == model.FallbackNone || !model.Fallbackable(cause) {
		d.count(ctx, op, "error")
		return nil, cause
	}

	data, err := json.Marshal(d.fallback(kind))
	if err != nil {
		d.count(ctx, op, "error")
		return nil, fmt.Errorf("encode fallback for %s: %w", op, err)
	}

	d.logger.Warn("serving fallback data", "op", op.String(), "cause", cause)
	d.count(ctx, op, "fallback")
	return &model.Result{Op: op, Data: data, IsFallback: true, Timestamp: d.now().UTC()}, nil
}

func (d *Dispatcher) fallback(kind model.FallbackKind) any {
	switch kind {
	case model.FallbackHealth, model.FallbackStatus:
		return d.synth.Health()
	case model.FallbackBotStats:
		return d.synth.BotStats()
	case model.FallbackFleet:
		return d.synth.Fleet()
	case model.FallbackOverview:
		return d.synth.Overview()
	default:
		return nil
	}
}

func (d *Dispatcher) count(ctx context.Context, op model.Operation, outcome string) {
	if d.calls == nil {
		return
	}
	d.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op.String()),
		attribute.String("outcome", outcome),
	))
}

type awaiter interface {
	Await(ctx context.Context, op model.Operation, params model.Params) error
}

// CallSettled is Call for consumers that must not see supersession. A call
// aborted by a newer request for the same key waits for that request and
// asks once more, which normally hits the cache the newer request filled.
func CallSettled(ctx context.Context, c Caller, op model.Operation, params model.Params) (*model.Result, error) {
	res, err := c.Call(ctx, op, params)
	if model.KindOf(err) != model.KindAborted || ctx.Err() != nil {
		return res, err
	}
	if a, ok := c.(awaiter); ok {
		if err := a.Await(ctx, op, params); err != nil {
			return nil, err
		}
	}
	return c.Call(ctx, op, params)
}
