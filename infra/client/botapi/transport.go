// Package botapi is the HTTP transport to the bot process REST API.
package botapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/webitel/shardscope/internal/domain/model"
)

const (
	instrumentation = "github.com/webitel/shardscope/infra/client/botapi"
	maxBodyBytes    = 8 << 20
)

// Request is one bot API call.
type Request struct {
	Op     model.Operation
	Params model.Params
	Auth   model.AuthLevel
	// Timeout overrides the transport default when positive.
	Timeout time.Duration
}

// Transport issues single requests; it keeps no per-call state.
type Transport struct {
	base      *url.URL
	apiKey    string
	adminKey  string
	timeout   time.Duration
	userAgent string

	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	tracer  trace.Tracer
	logger  *slog.Logger
}

func New(cfg Config, logger *slog.Logger, opts ...Option) (*Transport, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("botapi: base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("botapi: parse base url: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	t := &Transport{
		base:      base,
		apiKey:    cfg.APIKey,
		adminKey:  cfg.AdminAPIKey,
		timeout:   timeout,
		userAgent: "shardscope",
		http:      cleanhttp.DefaultPooledClient(),
		tracer:    otel.Tracer(instrumentation),
		logger:    logger.With("component", "botapi"),
	}
	for _, opt := range opts {
		opt(t)
	}

	if cfg.Breaker.Enabled {
		t.breaker = newBreaker(cfg.Breaker, t.logger)
	}
	return t, nil
}

// Execute performs req and returns the decoded envelope. A success:false
// body is returned as-is; interpreting it is the caller's job.
func (t *Transport) Execute(ctx context.Context, req Request) (*model.Envelope, error) {
	op := req.Op.String()

	ctx, span := t.tracer.Start(ctx, "botapi "+op, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("botapi.operation", op),
			attribute.String("botapi.auth", req.Auth.String()),
		))
	defer span.End()

	env, err := t.execute(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Bool("botapi.success", env.Success))
	return env, nil
}

func (t *Transport) execute(ctx context.Context, req Request) (*model.Envelope, error) {
	op := req.Op.String()

	key, err := t.credential(req.Auth, op)
	if err != nil {
		return nil, err
	}

	rel, err := req.Op.Resolve(req.Params)
	if err != nil {
		return nil, err
	}
	target, err := t.base.Parse(rel)
	if err != nil {
		return nil, &model.Error{Kind: model.KindValidation, Op: op, Message: "build url", Err: err}
	}

	if t.breaker == nil {
		return t.roundTrip(ctx, req, target, key)
	}

	res, err := t.breaker.Execute(func() (interface{}, error) {
		return t.roundTrip(ctx, req, target, key)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &model.Error{Kind: model.KindNetwork, Op: op, Message: "circuit breaker open", Err: err}
	}
	if err != nil {
		return nil, err
	}
	return res.(*model.Envelope), nil
}

func (t *Transport) credential(level model.AuthLevel, op string) (string, error) {
	switch level {
	case model.AuthPublic:
		return "", nil
	case model.AuthAuthenticated:
		return t.apiKey, nil
	case model.AuthAdmin:
		if t.adminKey == "" {
			return "", &model.Error{Kind: model.KindAuth, Op: op, Message: "admin credential is not configured"}
		}
		return t.adminKey, nil
	default:
		return "", &model.Error{Kind: model.KindAuth, Op: op, Message: "unknown access level"}
	}
}

func (t *Transport) roundTrip(ctx context.Context, req Request, target *url.URL, key string) (*model.Envelope, error) {
	op := req.Op.String()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = t.timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, &model.Error{Kind: model.KindValidation, Op: op, Message: "build request", Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", t.userAgent)
	if key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}

	start := time.Now()
	resp, err := t.http.Do(httpReq)
	if err != nil {
		return nil, classify(ctx, callCtx, op, timeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classify(ctx, callCtx, op, timeout, err)
	}

	t.logger.Debug("bot api call",
		"op", op,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(op, resp.StatusCode, body)
	}
	return decodeEnvelope(op, body)
}

// classify tells timeouts, caller cancellation and connection failures apart.
func classify(parent, call context.Context, op string, timeout time.Duration, err error) error {
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return &model.Error{Kind: model.KindAborted, Op: op, Err: parent.Err()}
	case parent.Err() != nil, errors.Is(call.Err(), context.DeadlineExceeded):
		return &model.Error{Kind: model.KindTimeout, Op: op, Message: fmt.Sprintf("no response within %s", timeout), Err: err}
	default:
		return &model.Error{Kind: model.KindNetwork, Op: op, Err: err}
	}
}

type wireEnvelope struct {
	Success    *bool           `json:"success"`
	Data       json.RawMessage `json:"data"`
	Error      json.RawMessage `json:"error"`
	Message    string          `json:"message"`
	Timestamp  string          `json:"timestamp"`
	IsFallback bool            `json:"isFallback"`
	Summary    json.RawMessage `json:"summary"`
}

func (w wireEnvelope) errorText() string {
	if len(w.Error) > 0 {
		var s string
		if err := json.Unmarshal(w.Error, &s); err == nil {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(w.Error, &obj); err == nil && obj.Message != "" {
			return obj.Message
		}
		return string(w.Error)
	}
	return w.Message
}

func decodeEnvelope(op string, body []byte) (*model.Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, &model.Error{Kind: model.KindParse, Op: op, Message: "response is not valid JSON", Err: err}
	}
	if w.Success == nil {
		return nil, &model.Error{Kind: model.KindParse, Op: op, Message: "response envelope has no success field"}
	}

	return &model.Envelope{
		Success:    *w.Success,
		Data:       w.Data,
		Error:      w.errorText(),
		Timestamp:  w.Timestamp,
		IsFallback: w.IsFallback,
		Summary:    w.Summary,
	}, nil
}

func statusError(op string, status int, body []byte) error {
	msg := http.StatusText(status)
	var w wireEnvelope
	if err := json.Unmarshal(body, &w); err == nil {
		if text := w.errorText(); text != "" {
			msg = text
		}
	}

	kind := model.KindAPI
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = model.KindAuth
	}
	return &model.Error{Kind: kind, Op: op, Status: status, Message: msg}
}

// Close releases idle pooled connections.
func (t *Transport) Close() error {
	t.http.CloseIdleConnections()
	return nil
}
