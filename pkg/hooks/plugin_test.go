// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hooks

import (
	"context"
	"testing"

	"github.com/AleutianAI/sentrylink/pkg/telemetry"
)

// clearPluginEnv blanks every variable plugin construction reads.
func clearPluginEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SENTRY_DSN", "SENTRY_ENVIRONMENT", "SENTRY_RELEASE",
		"SENTRY_TRACES_SAMPLE_RATE", "SENTRY_DEBUG",
		"OTEL_TRACES_EXPORTER", "OTEL_METRICS_EXPORTER",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "TRACEPARENT",
	} {
		t.Setenv(key, "")
	}
}

func TestNew_NoConfiguration(t *testing.T) {
	clearPluginEnv(t)

	p := New(context.Background(), telemetry.Options{}, Project{})
	if p == nil {
		t.Fatal("New() = nil")
	}
	defer func() { _ = p.Close(context.Background()) }()

	if p.Enabled() {
		t.Error("Enabled() = true with no DSN, want false")
	}
	if p.Continued() {
		t.Error("Continued() = true with no TRACEPARENT, want false")
	}
	if p.Manager() == nil {
		t.Error("Manager() = nil")
	}
}

func TestNew_NilContext(t *testing.T) {
	clearPluginEnv(t)

	p := New(nil, telemetry.Options{}, Project{})
	if p == nil {
		t.Fatal("New(nil, ...) = nil, want usable plugin")
	}
	_ = p.Close(nil)
}

func TestPlugin_HandlersNeverPanic(t *testing.T) {
	clearPluginEnv(t)

	p := New(context.Background(), telemetry.Options{}, Project{ID: "proj-1"})
	defer func() { _ = p.Close(context.Background()) }()

	p.OnSessionCreated("ses-1")
	p.OnSessionError("ses-1", "model timeout")
	p.OnSessionError("ses-1", nil)
	p.OnToolBefore("bash", "call-1", map[string]any{"command": "ls"})
	p.OnToolBefore("bash", "", nil)
	p.OnToolAfter("bash", "call-1", nil)
	p.OnToolAfter("bash", "call-1", "exit status 1")
	p.OnSessionIdle("ses-1")
}

func TestNew_ContinuesRemoteTrace(t *testing.T) {
	clearPluginEnv(t)
	t.Setenv("TRACEPARENT", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")

	p := New(context.Background(), telemetry.Options{}, Project{})
	defer func() { _ = p.Close(context.Background()) }()

	// Installation is once per process; if an earlier test in the binary
	// already installed a continuation this one is skipped.
	if !p.Continued() {
		t.Skip("continuation already installed by an earlier test in this process")
	}

	active := p.Manager().Active()
	if got := telemetry.TraceID(active); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("ambient TraceID = %q, want imported trace", got)
	}
	if got := telemetry.SpanID(active); got != "00f067aa0ba902b7" {
		t.Errorf("ambient SpanID = %q, want imported span", got)
	}
}
