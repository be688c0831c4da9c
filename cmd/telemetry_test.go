package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"

	"github.com/webitel/shardscope/config"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStdoutTelemetryExportsEverySignal(t *testing.T) {
	ctx := context.Background()
	var out syncBuffer

	tel, err := newTelemetry(ctx, config.OTelConfig{Exporter: config.OTelStdout, MetricInterval: time.Minute}, &out)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(ctx, "locate-guild")
	span.End()

	calls, err := otel.Meter("test").Int64Counter("test.dispatch.calls")
	require.NoError(t, err)
	calls.Add(ctx, 3)

	slog.New(otelslog.NewHandler("test", otelslog.WithLoggerProvider(tel.Logs))).Info("FLEET_POLLED")

	require.NoError(t, tel.Shutdown(ctx))

	got := out.String()
	assert.Contains(t, got, "locate-guild")
	assert.Contains(t, got, "test.dispatch.calls")
	assert.Contains(t, got, "FLEET_POLLED")
}

func TestTelemetryRejectsUnknownExporter(t *testing.T) {
	_, err := newTelemetry(context.Background(), config.OTelConfig{Exporter: "jaeger", MetricInterval: time.Minute}, &syncBuffer{})
	assert.Error(t, err)
}

func TestLeveledHandlerFollowsLevelVar(t *testing.T) {
	var out syncBuffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(&leveled{Handler: slog.NewJSONHandler(&out, nil), level: lvl}).With("component", "test")

	logger.Info("QUIET")
	logger.Warn("LOUD")
	assert.NotContains(t, out.String(), "QUIET")
	assert.Contains(t, out.String(), "LOUD")

	lvl.Set(slog.LevelDebug)
	logger.Info("NOW_VISIBLE")
	assert.Contains(t, out.String(), "NOW_VISIBLE")
}
