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
	"strconv"

	"github.com/kelseyhightower/envconfig"
)

// Defaults applied when neither an explicit option nor an environment
// variable supplies a value.
const (
	DefaultEnvironment      = "development"
	DefaultRelease          = "opencode@local"
	DefaultTracesSampleRate = 1.0
	DefaultOTLPEndpoint     = "localhost:4317"

	serviceName    = "sentrylink"
	serviceVersion = "1.0.0"
)

// Options carries explicit configuration from the host.
//
// Every field is optional. Zero values (empty string, nil pointer) fall
// through to the corresponding environment variable and then to the
// default; see Resolve. Pointer fields distinguish "not set" from an
// explicit false/zero.
type Options struct {
	// DSN is the Sentry destination. Empty disables telemetry emission.
	DSN string

	// Environment tags all telemetry (development, staging, production).
	Environment string

	// Release tags all telemetry with the host release identifier.
	Release string

	// TracesSampleRate is the fraction of traces sampled, in [0, 1].
	TracesSampleRate *float64

	// Debug enables verbose SDK logging.
	Debug *bool

	// RecordInputs controls whether AI-call inputs are attached to spans.
	RecordInputs *bool

	// RecordOutputs controls whether AI-call outputs are attached to spans.
	RecordOutputs *bool

	// TraceExporter selects an additional span sink: "otlp", "stdout", or "none".
	TraceExporter string

	// MetricExporter selects the metric exporter: "prometheus", "stdout", or "none".
	MetricExporter string

	// OTLPEndpoint is the OTLP receiver endpoint for the otlp exporters.
	OTLPEndpoint string
}

// Config is the fully resolved telemetry configuration consumed by Init.
type Config struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
	Debug            bool
	RecordInputs     bool
	RecordOutputs    bool
	TraceExporter    string
	MetricExporter   string
	OTLPEndpoint     string
	OTLPInsecure     bool
}

// Enabled reports whether telemetry emission to Sentry is configured.
func (c Config) Enabled() bool {
	return c.DSN != ""
}

// envSpec mirrors the environment surface. Numeric and boolean values
// are read as raw strings so a malformed variable degrades to the
// default instead of failing resolution.
type envSpec struct {
	DSN              string `envconfig:"SENTRY_DSN"`
	Environment      string `envconfig:"SENTRY_ENVIRONMENT"`
	Release          string `envconfig:"SENTRY_RELEASE"`
	TracesSampleRate string `envconfig:"SENTRY_TRACES_SAMPLE_RATE"`
	Debug            string `envconfig:"SENTRY_DEBUG"`
	TraceExporter    string `envconfig:"OTEL_TRACES_EXPORTER"`
	MetricExporter   string `envconfig:"OTEL_METRICS_EXPORTER"`
	OTLPEndpoint     string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Resolve produces a Config from explicit options, the environment, and
// defaults, in that precedence order.
//
// Description:
//
//	Each setting takes the explicit option when present, otherwise the
//	environment variable, otherwise the built-in default. SENTRY_DEBUG
//	is true only for the literal string "true". A sample rate that does
//	not parse as a float falls back to the default. Resolve never fails:
//	a broken environment yields a usable (possibly disabled) Config.
//
// Inputs:
//
//	opts - Explicit configuration from the host. Zero value is fine.
//
// Outputs:
//
//	Config - Fully resolved configuration.
//
// Thread Safety: Safe for concurrent use.
func Resolve(opts Options) Config {
	var env envSpec
	// The only failure mode with string-typed fields is a malformed
	// struct tag, which is a programming error; ignore at runtime.
	_ = envconfig.Process("", &env)

	cfg := Config{
		DSN:              firstNonEmpty(opts.DSN, env.DSN, ""),
		Environment:      firstNonEmpty(opts.Environment, env.Environment, DefaultEnvironment),
		Release:          firstNonEmpty(opts.Release, env.Release, DefaultRelease),
		TracesSampleRate: DefaultTracesSampleRate,
		RecordInputs:     true,
		RecordOutputs:    true,
		TraceExporter:    firstNonEmpty(opts.TraceExporter, env.TraceExporter, "none"),
		MetricExporter:   firstNonEmpty(opts.MetricExporter, env.MetricExporter, "none"),
		OTLPEndpoint:     firstNonEmpty(opts.OTLPEndpoint, env.OTLPEndpoint, DefaultOTLPEndpoint),
		OTLPInsecure:     true,
	}

	switch {
	case opts.TracesSampleRate != nil:
		cfg.TracesSampleRate = *opts.TracesSampleRate
	case env.TracesSampleRate != "":
		if rate, err := strconv.ParseFloat(env.TracesSampleRate, 64); err == nil {
			cfg.TracesSampleRate = rate
		}
	}

	if opts.Debug != nil {
		cfg.Debug = *opts.Debug
	} else {
		cfg.Debug = env.Debug == "true"
	}

	if opts.RecordInputs != nil {
		cfg.RecordInputs = *opts.RecordInputs
	}
	if opts.RecordOutputs != nil {
		cfg.RecordOutputs = *opts.RecordOutputs
	}

	return cfg
}

// firstNonEmpty returns the first non-empty string.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
