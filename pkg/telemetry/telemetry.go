// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	sentryotel "github.com/getsentry/sentry-go/otel"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// sentryFlushTimeout bounds the final flush during shutdown.
const sentryFlushTimeout = 2 * time.Second

// Init initializes the Sentry and OpenTelemetry stack.
//
// Description:
//
//	Starts the Sentry client (skipped when the DSN is empty), then
//	builds a TracerProvider whose pipeline is: relabel processor,
//	Sentry span processor (DSN present only), and the optional
//	otlp/stdout exporter wrapped in the input/output redaction
//	decorator. Sampling is parent-based on TracesSampleRate, so spans
//	continuing a sampled remote trace stay sampled. The Sentry
//	propagator becomes the global TextMapPropagator when the DSN is
//	present; otherwise the standard W3C composite is installed. A
//	MeterProvider is configured when MetricExporter is not "none".
//
//	An absent DSN is not an error: the OTel side still initializes so
//	header parsing, context continuation, and event routing behave
//	identically with emission disabled.
//
// Inputs:
//
//	ctx - Context for initialization (used for exporter connections).
//	cfg - Resolved telemetry configuration; see Resolve.
//
// Outputs:
//
//	shutdown - Function to call on host exit. Flushes Sentry and shuts
//	           down the providers. Must be called.
//	error - Non-nil if initialization fails. Anything already started
//	        (the Sentry client included) is shut down before the error
//	        returns. Callers inside a host process should log and
//	        continue; telemetry failing to initialize must never take
//	        the host down.
//
// Example:
//
//	shutdown, err := telemetry.Init(ctx, telemetry.Resolve(telemetry.Options{}))
//	if err != nil {
//	    logger.Warn("telemetry disabled", "error", err)
//	    return
//	}
//	defer shutdown(context.Background())
//
// Thread Safety: Call once at initialization, before any handler runs.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	var shutdownFuncs []func(context.Context) error

	shutdown = func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			return fmt.Errorf("shutdown errors: %v", errs)
		}
		return nil
	}

	// --- SENTRY ---
	if cfg.Enabled() {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.DSN,
			Environment:      cfg.Environment,
			Release:          cfg.Release,
			Debug:            cfg.Debug,
			EnableTracing:    true,
			TracesSampleRate: cfg.TracesSampleRate,
		})
		if err != nil {
			return nil, fmt.Errorf("init sentry: %w", err)
		}
		shutdownFuncs = append(shutdownFuncs, func(context.Context) error {
			sentry.Flush(sentryFlushTimeout)
			return nil
		})
	}

	// Build resource (service identity) using standard attribute keys
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", serviceName),
		attribute.String("service.version", serviceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)

	// --- TRACES ---
	tp, err := initTracer(ctx, cfg, res)
	if err != nil {
		// Unwind whatever already started (the Sentry flush in
		// particular) before surfacing the error.
		_ = shutdown(ctx)
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	otel.SetTracerProvider(tp)
	shutdownFuncs = append(shutdownFuncs, tp.Shutdown)

	if cfg.Enabled() {
		otel.SetTextMapPropagator(sentryotel.NewSentryPropagator())
	} else {
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	// --- METRICS ---
	if cfg.MetricExporter != "none" {
		mp, err := initMeter(ctx, cfg, res)
		if err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("init meter: %w", err)
		}
		otel.SetMeterProvider(mp)
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
	}

	return shutdown, nil
}

// initTracer creates and returns a configured TracerProvider.
func initTracer(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(cfg.TracesSampleRate),
		)),
		// Relabel runs first so downstream processors and exporters see
		// the canonical gen_ai attributes.
		sdktrace.WithSpanProcessor(NewRelabelProcessor()),
	}

	if cfg.Enabled() {
		// The Sentry processor consumes span attributes at OnEnd, so the
		// redaction decorator must sit in front of it too, not just on
		// the secondary exporter path.
		opts = append(opts, sdktrace.WithSpanProcessor(NewRedactProcessor(
			sentryotel.NewSentrySpanProcessor(),
			cfg.RecordInputs, cfg.RecordOutputs,
		)))
	}

	exporter, err := newTraceExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if exporter != nil {
		exporter = NewRedactExporter(exporter, cfg.RecordInputs, cfg.RecordOutputs)
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	return sdktrace.NewTracerProvider(opts...), nil
}

// newTraceExporter builds the optional secondary span sink. Returns
// (nil, nil) for "none".
func newTraceExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.TraceExporter {
	case "none", "":
		return nil, nil

	case "otlp":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create exporter: %w", err)
		}
		return exporter, nil

	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create exporter: %w", err)
		}
		return exporter, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}
}

// prometheusHandler stores the Prometheus exporter's HTTP handler.
// Access via MetricsHandler().
var (
	prometheusHandler   http.Handler
	prometheusHandlerMu sync.RWMutex
)

// MetricsHandler returns the HTTP handler for the /metrics endpoint.
//
// Description:
//
//	Returns the Prometheus metrics handler if the Prometheus exporter
//	is enabled. Returns nil if metrics are disabled or a different
//	exporter is used. The host owns the listener; this package never
//	opens a port.
//
// Outputs:
//
//	http.Handler - The metrics handler, or nil if unavailable.
//
// Thread Safety: Safe for concurrent use.
func MetricsHandler() http.Handler {
	prometheusHandlerMu.RLock()
	defer prometheusHandlerMu.RUnlock()
	return prometheusHandler
}

// initMeter creates and returns a configured MeterProvider.
func initMeter(_ context.Context, cfg Config, res *resource.Resource) (*metric.MeterProvider, error) {
	switch cfg.MetricExporter {
	case "prometheus":
		exporter, err := promexporter.New()
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}

		// The OTel prometheus exporter registers with the default
		// prometheus registry, so promhttp.Handler() includes our metrics.
		prometheusHandlerMu.Lock()
		prometheusHandler = promhttp.Handler()
		prometheusHandlerMu.Unlock()

		return metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(exporter),
		), nil

	case "stdout":
		exporter, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}

		return metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(exporter)),
		), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}
}
