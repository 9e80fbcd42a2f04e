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
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// testProvider installs a real tracer provider for the duration of the
// test and restores the previous global afterwards.
func testProvider(t *testing.T) *sdktrace.TracerProvider {
	t.Helper()

	tp := sdktrace.NewTracerProvider()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return tp
}

func TestStartSpan(t *testing.T) {
	testProvider(t)

	ctx, span := StartSpan(context.Background(), "test", "operation")
	defer span.End()

	if !span.SpanContext().IsValid() {
		t.Error("StartSpan() span context is not valid")
	}
	if trace.SpanFromContext(ctx) != span {
		t.Error("StartSpan() context does not carry the span")
	}
}

func TestTraceID_SpanID(t *testing.T) {
	testProvider(t)

	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID(background) = %q, want empty", got)
	}
	if got := SpanID(context.Background()); got != "" {
		t.Errorf("SpanID(background) = %q, want empty", got)
	}

	ctx, span := StartSpan(context.Background(), "test", "operation")
	defer span.End()

	if got := TraceID(ctx); got != span.SpanContext().TraceID().String() {
		t.Errorf("TraceID() = %q, want %q", got, span.SpanContext().TraceID().String())
	}
	if got := SpanID(ctx); got != span.SpanContext().SpanID().String() {
		t.Errorf("SpanID() = %q, want %q", got, span.SpanContext().SpanID().String())
	}
}

func TestRecordError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	ctx, span := StartSpan(context.Background(), "test", "operation")
	RecordError(ctx, errors.New("boom"))
	RecordError(ctx, nil)
	span.End()

	// No span, no panic.
	RecordError(context.Background(), errors.New("ignored"))

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(ended))
	}
	got := ended[0]
	if got.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", got.Status().Code)
	}
	events := got.Events()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1 (nil error must not record)", len(events))
	}
	if events[0].Name != "exception" {
		t.Errorf("event name = %q, want %q", events[0].Name, "exception")
	}
}

func TestHasActiveSpan(t *testing.T) {
	testProvider(t)

	if HasActiveSpan(context.Background()) {
		t.Error("HasActiveSpan(background) = true, want false")
	}

	ctx, span := StartSpan(context.Background(), "test", "operation")
	if !HasActiveSpan(ctx) {
		t.Error("HasActiveSpan() = false with a recording span")
	}
	span.End()

	// A remote parent alone is not an active span in this process.
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	remote := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	remoteCtx := trace.ContextWithRemoteSpanContext(context.Background(), remote)
	if HasActiveSpan(remoteCtx) {
		t.Error("HasActiveSpan() = true for remote-only parent, want false")
	}
}
