package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	"github.com/webitel/shardscope/config"
)

// Telemetry holds the SDK providers installed as the otel globals.
type Telemetry struct {
	Traces  *sdktrace.TracerProvider
	Metrics *sdkmetric.MeterProvider
	Logs    *sdklog.LoggerProvider
}

// ProvideTelemetry installs the providers and flushes them on stop. The
// stdout exporter writes to stderr so command output stays clean.
func ProvideTelemetry(lc fx.Lifecycle, cfg *config.Config) (*Telemetry, error) {
	tel, err := newTelemetry(context.Background(), cfg.OTel, os.Stderr)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: tel.Shutdown,
	})
	return tel, nil
}

func newTelemetry(ctx context.Context, cfg config.OTelConfig, w io.Writer) (*Telemetry, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
		attribute.String("service.namespace", ServiceNamespace),
		attribute.String("service.version", version),
	)

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	logOpts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}

	switch cfg.Exporter {
	case config.OTelNone:
		// spans still get ids for log correlation, nothing is exported
	case config.OTelStdout:
		spans, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("otel: stdout trace exporter: %w", err)
		}
		metrics, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("otel: stdout metric exporter: %w", err)
		}
		logs, err := stdoutlog.New(stdoutlog.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("otel: stdout log exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(spans))
		metricOpts = append(metricOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metrics, sdkmetric.WithInterval(cfg.MetricInterval))))
		logOpts = append(logOpts, sdklog.WithProcessor(sdklog.NewBatchProcessor(logs)))
	case config.OTelOTLP:
		spans, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint+"/v1/traces"))
		if err != nil {
			return nil, fmt.Errorf("otel: otlp trace exporter: %w", err)
		}
		metrics, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(cfg.Endpoint+"/v1/metrics"))
		if err != nil {
			return nil, fmt.Errorf("otel: otlp metric exporter: %w", err)
		}
		logs, err := otlploghttp.New(ctx, otlploghttp.WithEndpointURL(cfg.Endpoint+"/v1/logs"))
		if err != nil {
			return nil, fmt.Errorf("otel: otlp log exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(spans))
		metricOpts = append(metricOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metrics, sdkmetric.WithInterval(cfg.MetricInterval))))
		logOpts = append(logOpts, sdklog.WithProcessor(sdklog.NewBatchProcessor(logs)))
	default:
		return nil, fmt.Errorf("otel: unknown exporter %q", cfg.Exporter)
	}

	tel := &Telemetry{
		Traces:  sdktrace.NewTracerProvider(traceOpts...),
		Metrics: sdkmetric.NewMeterProvider(metricOpts...),
		Logs:    sdklog.NewLoggerProvider(logOpts...),
	}
	otel.SetTracerProvider(tel.Traces)
	otel.SetMeterProvider(tel.Metrics)
	global.SetLoggerProvider(tel.Logs)
	return tel, nil
}

// Shutdown flushes pending telemetry. Logs go last so shutdown errors of
// the other providers can still be exported.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.Traces.Shutdown(ctx),
		t.Metrics.Shutdown(ctx),
		t.Logs.Shutdown(ctx),
	)
}
