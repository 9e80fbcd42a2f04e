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
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// exportSpan runs one span through a provider whose exporter is wrapped
// by the redaction decorator and returns the exported stub.
func exportSpan(t *testing.T, recordInputs, recordOutputs bool, attrs ...attribute.KeyValue) tracetest.SpanStub {
	t.Helper()

	mem := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(NewRedactExporter(mem, recordInputs, recordOutputs)),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), "ai.streamText.doStream",
		trace.WithAttributes(attrs...))
	span.End()

	stubs := mem.GetSpans()
	if len(stubs) != 1 {
		t.Fatalf("exported %d spans, want 1", len(stubs))
	}
	return stubs[0]
}

// hasAttr reports whether the exported stub carries the key.
func hasAttr(stub tracetest.SpanStub, key string) bool {
	for _, kv := range stub.Attributes {
		if string(kv.Key) == key {
			return true
		}
	}
	return false
}

func TestRedact_DropsInputs(t *testing.T) {
	stub := exportSpan(t, false, true,
		attribute.String("ai.prompt.messages", "secret prompt"),
		attribute.String("gen_ai.prompt", "secret prompt"),
		attribute.String("gen_ai.request.messages", "secret prompt"),
		attribute.String("ai.response.text", "the answer"),
		attribute.String("gen_ai.request.model", "gpt-4"),
	)

	for _, key := range []string{"ai.prompt.messages", "gen_ai.prompt", "gen_ai.request.messages"} {
		if hasAttr(stub, key) {
			t.Errorf("input attribute %q survived redaction", key)
		}
	}
	if !hasAttr(stub, "ai.response.text") {
		t.Error("output attribute dropped with recordOutputs=true")
	}
	if !hasAttr(stub, "gen_ai.request.model") {
		t.Error("unrelated attribute dropped")
	}
}

func TestRedact_DropsOutputs(t *testing.T) {
	stub := exportSpan(t, true, false,
		attribute.String("ai.response.text", "the answer"),
		attribute.String("gen_ai.completion", "the answer"),
		attribute.String("gen_ai.response.text", "the answer"),
		attribute.String("ai.prompt.messages", "prompt"),
	)

	for _, key := range []string{"ai.response.text", "gen_ai.completion", "gen_ai.response.text"} {
		if hasAttr(stub, key) {
			t.Errorf("output attribute %q survived redaction", key)
		}
	}
	if !hasAttr(stub, "ai.prompt.messages") {
		t.Error("input attribute dropped with recordInputs=true")
	}
}

func TestRedact_DropsBoth(t *testing.T) {
	stub := exportSpan(t, false, false,
		attribute.String("ai.prompt.messages", "prompt"),
		attribute.String("ai.response.text", "answer"),
		attribute.String("other.key", "kept"),
	)

	if hasAttr(stub, "ai.prompt.messages") || hasAttr(stub, "ai.response.text") {
		t.Error("redacted attributes survived with both flags off")
	}
	if !hasAttr(stub, "other.key") {
		t.Error("unrelated attribute dropped")
	}
}

// captureProcessor records the spans handed to OnEnd, standing in for a
// downstream processor-style sink such as the Sentry span processor.
type captureProcessor struct {
	mu    sync.Mutex
	ended []sdktrace.ReadOnlySpan
}

func (c *captureProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (c *captureProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ended = append(c.ended, s)
}

func (c *captureProcessor) Shutdown(context.Context) error   { return nil }
func (c *captureProcessor) ForceFlush(context.Context) error { return nil }

func (c *captureProcessor) spans() []sdktrace.ReadOnlySpan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sdktrace.ReadOnlySpan(nil), c.ended...)
}

// hasSpanAttr reports whether the span view carries the key.
func hasSpanAttr(s sdktrace.ReadOnlySpan, key string) bool {
	for _, kv := range s.Attributes() {
		if string(kv.Key) == key {
			return true
		}
	}
	return false
}

func TestRedactProcessor_HidesInputsFromDownstream(t *testing.T) {
	capture := &captureProcessor{}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(NewRelabelProcessor()),
		sdktrace.WithSpanProcessor(NewRedactProcessor(capture, false, true)),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), "ai.streamText.doStream",
		trace.WithAttributes(
			attribute.String("ai.prompt", "secret user input"),
			attribute.String("ai.model.id", "gpt-4"),
		))
	span.End()

	spans := capture.spans()
	if len(spans) != 1 {
		t.Fatalf("downstream saw %d spans, want 1", len(spans))
	}
	got := spans[0]
	if hasSpanAttr(got, "ai.prompt") {
		t.Error("ai.prompt reached the downstream processor with recordInputs=false")
	}
	if !hasSpanAttr(got, "gen_ai.request.model") {
		t.Error("relabeled model attribute hidden from the downstream processor")
	}
}

func TestRedactProcessor_HidesOutputsFromDownstream(t *testing.T) {
	capture := &captureProcessor{}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(NewRedactProcessor(capture, true, false)),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), "ai.generateText.doGenerate",
		trace.WithAttributes(
			attribute.String("gen_ai.completion", "the answer"),
			attribute.String("ai.prompt", "kept prompt"),
		))
	span.End()

	spans := capture.spans()
	if len(spans) != 1 {
		t.Fatalf("downstream saw %d spans, want 1", len(spans))
	}
	got := spans[0]
	if hasSpanAttr(got, "gen_ai.completion") {
		t.Error("gen_ai.completion reached the downstream processor with recordOutputs=false")
	}
	if !hasSpanAttr(got, "ai.prompt") {
		t.Error("input attribute hidden with recordInputs=true")
	}
}

func TestNewRedactProcessor_Passthrough(t *testing.T) {
	capture := &captureProcessor{}

	if got := NewRedactProcessor(capture, true, true); got != sdktrace.SpanProcessor(capture) {
		t.Error("NewRedactProcessor(next, true, true) should return next unchanged")
	}
	if got := NewRedactProcessor(nil, false, false); got != nil {
		t.Errorf("NewRedactProcessor(nil, ...) = %v, want nil", got)
	}
}

func TestNewRedactExporter_PassthroughWhenRecordingEverything(t *testing.T) {
	mem := tracetest.NewInMemoryExporter()

	if got := NewRedactExporter(mem, true, true); got != sdktrace.SpanExporter(mem) {
		t.Error("NewRedactExporter(next, true, true) should return next unchanged")
	}
}

func TestNewRedactExporter_NilNext(t *testing.T) {
	if got := NewRedactExporter(nil, false, false); got != nil {
		t.Errorf("NewRedactExporter(nil, ...) = %v, want nil", got)
	}
}
