// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry initializes the Sentry and OpenTelemetry SDKs for
// the sentrylink plugin.
//
// This package owns configuration resolution (explicit option, then
// environment variable, then default), the Sentry client, the OTel
// TracerProvider and MeterProvider, and two span-pipeline pieces of its
// own: a processor that re-labels Vercel-AI-style instrumentation spans
// into the gen_ai taxonomy, and an exporter decorator that redacts AI
// call inputs/outputs when recording is disabled.
//
// # Philosophy
//
// Be opinionated about the API, flexible about the backend. OpenTelemetry
// IS the abstraction layer: spans are created through OTel APIs, and
// Sentry receives them through its official OTel span processor. Hosts
// that want a second sink swap exporter configuration, not code.
//
// # Backend
//
// Sentry is the primary backend, addressed by SENTRY_DSN. An absent DSN
// disables emission entirely while leaving the rest of the pipeline
// (header parsing, context continuation, event routing) fully
// functional. An OTLP or stdout exporter can run alongside for local
// debugging via OTEL_TRACES_EXPORTER.
//
// # Logging
//
// Uses slog (Go 1.21+ stdlib) through pkg/logging. SENTRY_DEBUG=true
// turns on verbose SDK logging.
//
// # Usage
//
//	cfg := telemetry.Resolve(telemetry.Options{})
//	shutdown, err := telemetry.Init(ctx, cfg)
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(ctx)
//
// # Environment Variables
//
//   - SENTRY_DSN: telemetry destination (absent = disabled)
//   - SENTRY_ENVIRONMENT: environment tag (default: development)
//   - SENTRY_RELEASE: release tag (default: opencode@local)
//   - SENTRY_TRACES_SAMPLE_RATE: trace sampling fraction (default: 1.0)
//   - SENTRY_DEBUG: verbose SDK logging, literal "true" only
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init() returns.
package telemetry
