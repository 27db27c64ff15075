package otel

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

// Local exports go to stderr so `worker evaluate` output stays readable.
var localWriter io.Writer = os.Stderr

// Job durations are seconds to minutes, the default one minute interval hides most of them
const metricInterval = 15 * time.Second

// exporters holds one exporter per signal, either all OTLP gRPC or all local.
type exporters struct {
	spans   trace.SpanExporter
	metrics metric.Exporter
	logs    log.Exporter
}

func newExporters(ctx context.Context, useOTLP bool) (*exporters, error) {
	var e exporters
	var err error

	if useOTLP {
		if e.spans, err = otlptracegrpc.New(ctx); err != nil {
			return nil, err
		}
		if e.metrics, err = otlpmetricgrpc.New(ctx); err != nil {
			return nil, err
		}
		if e.logs, err = otlploggrpc.New(ctx); err != nil {
			return nil, err
		}
		return &e, nil
	}

	if e.spans, err = stdouttrace.New(stdouttrace.WithWriter(localWriter)); err != nil {
		return nil, err
	}
	if e.metrics, err = stdoutmetric.New(stdoutmetric.WithWriter(localWriter)); err != nil {
		return nil, err
	}
	if e.logs, err = stdoutlog.New(stdoutlog.WithWriter(localWriter)); err != nil {
		return nil, err
	}
	return &e, nil
}

// SetupOTelSDK bootstraps the OpenTelemetry pipeline for serviceName (judge-worker or
// judge-relay). If it does not return an error, make sure to call shutdown for proper cleanup.
func SetupOTelSDK(
	ctx context.Context,
	serviceName string,
	useOTLP bool,
) (func(context.Context) error, error) {
	var shutdownFuncs []func(context.Context) error

	// shutdown calls cleanup functions registered via shutdownFuncs.
	// The errors from the calls are joined.
	// Each registered cleanup will be invoked once.
	shutdown := func(ctx context.Context) error {
		var er error
		for _, fn := range shutdownFuncs {
			er = errors.Join(er, fn(ctx))
		}
		shutdownFuncs = nil
		return er
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("service.namespace", "submission-judge"),
		),
	)
	if err != nil {
		return shutdown, err
	}

	exp, err := newExporters(ctx, useOTLP)
	if err != nil {
		return shutdown, err
	}

	tracerProvider := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithSampler(trace.AlwaysSample()),
		trace.WithBatcher(exp.spans),
	)
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	meterProvider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exp.metrics, metric.WithInterval(metricInterval))),
	)
	shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	loggerProvider := log.NewLoggerProvider(
		log.WithResource(res),
		log.WithProcessor(log.NewBatchProcessor(exp.logs)),
	)
	shutdownFuncs = append(shutdownFuncs, loggerProvider.Shutdown)
	global.SetLoggerProvider(loggerProvider)

	return shutdown, nil
}
