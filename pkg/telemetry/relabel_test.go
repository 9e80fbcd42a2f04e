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
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// recordSpan starts and ends one span through a provider that runs the
// relabel processor, returning the recorded result.
func recordSpan(t *testing.T, name string, attrs ...attribute.KeyValue) sdktrace.ReadOnlySpan {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(NewRelabelProcessor()),
		sdktrace.WithSpanProcessor(recorder),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), name,
		trace.WithAttributes(attrs...))
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(ended))
	}
	return ended[0]
}

// stringAttr returns the string value for key, or "" when absent.
func stringAttr(s sdktrace.ReadOnlySpan, key string) (string, bool) {
	for _, kv := range s.Attributes() {
		if string(kv.Key) == key {
			return kv.Value.AsString(), true
		}
	}
	return "", false
}

func TestRelabel_StreamTextSpan(t *testing.T) {
	s := recordSpan(t, "ai.streamText.doStream",
		attribute.String("ai.model.id", "gpt-4"),
		attribute.String("ai.model.provider", "openai"),
	)

	if op, _ := stringAttr(s, "sentry.op"); op != "gen_ai.chat" {
		t.Errorf("sentry.op = %q, want %q", op, "gen_ai.chat")
	}
	if model, _ := stringAttr(s, "gen_ai.request.model"); model != "gpt-4" {
		t.Errorf("gen_ai.request.model = %q, want %q", model, "gpt-4")
	}
	if system, _ := stringAttr(s, "gen_ai.system"); system != "openai" {
		t.Errorf("gen_ai.system = %q, want %q", system, "openai")
	}
}

func TestRelabel_GenerateTextSpan(t *testing.T) {
	s := recordSpan(t, "ai.generateText.doGenerate",
		attribute.String("ai.model.id", "claude-sonnet"),
	)

	if op, _ := stringAttr(s, "sentry.op"); op != "gen_ai.chat" {
		t.Errorf("sentry.op = %q, want %q", op, "gen_ai.chat")
	}
	if model, _ := stringAttr(s, "gen_ai.request.model"); model != "claude-sonnet" {
		t.Errorf("gen_ai.request.model = %q, want %q", model, "claude-sonnet")
	}
}

func TestRelabel_OtherSpansUntouched(t *testing.T) {
	s := recordSpan(t, "http.request",
		attribute.String("ai.model.id", "gpt-4"),
	)

	if _, ok := stringAttr(s, "sentry.op"); ok {
		t.Error("sentry.op set on non-AI span")
	}
	if _, ok := stringAttr(s, "gen_ai.request.model"); ok {
		t.Error("gen_ai.request.model set on non-AI span")
	}
}

func TestRelabel_SourcePrecedence(t *testing.T) {
	// ai.model.id wins over gen_ai.request.model when both are present.
	s := recordSpan(t, "ai.streamText.doStream",
		attribute.String("gen_ai.request.model", "fallback-model"),
		attribute.String("ai.model.id", "primary-model"),
	)

	if model, _ := stringAttr(s, "gen_ai.request.model"); model != "primary-model" {
		t.Errorf("gen_ai.request.model = %q, want %q", model, "primary-model")
	}
}

func TestRelabel_FallbackSources(t *testing.T) {
	s := recordSpan(t, "ai.generateText.doGenerate",
		attribute.String("gen_ai.request.model", "existing-model"),
		attribute.String("gen_ai.system", "existing-system"),
	)

	if model, _ := stringAttr(s, "gen_ai.request.model"); model != "existing-model" {
		t.Errorf("gen_ai.request.model = %q, want %q", model, "existing-model")
	}
	if system, _ := stringAttr(s, "gen_ai.system"); system != "existing-system" {
		t.Errorf("gen_ai.system = %q, want %q", system, "existing-system")
	}
}

func TestRelabel_AbsentSourcesLeaveDestinationUnset(t *testing.T) {
	s := recordSpan(t, "ai.streamText.doStream")

	if op, _ := stringAttr(s, "sentry.op"); op != "gen_ai.chat" {
		t.Errorf("sentry.op = %q, want %q", op, "gen_ai.chat")
	}
	if _, ok := stringAttr(s, "gen_ai.request.model"); ok {
		t.Error("gen_ai.request.model set with no model source")
	}
	if _, ok := stringAttr(s, "gen_ai.system"); ok {
		t.Error("gen_ai.system set with no provider source")
	}
}

func TestRelabel_NonStringSourceIgnored(t *testing.T) {
	s := recordSpan(t, "ai.streamText.doStream",
		attribute.Int("ai.model.id", 7),
	)

	if _, ok := stringAttr(s, "gen_ai.request.model"); ok {
		t.Error("gen_ai.request.model copied from non-string source")
	}
}
