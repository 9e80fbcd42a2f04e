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
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Attribute prefixes carrying AI call inputs and outputs.
var (
	inputAttrPrefixes  = []string{"ai.prompt", "gen_ai.prompt", "gen_ai.request.messages"}
	outputAttrPrefixes = []string{"ai.response", "gen_ai.completion", "gen_ai.response"}
)

// redactor decides which span attribute keys are hidden by configuration.
// Shared by the exporter and processor decorators so both sinks apply
// the same rules.
type redactor struct {
	dropInputs  bool
	dropOutputs bool
}

// redacted reports whether the attribute key is hidden.
func (r redactor) redacted(key string) bool {
	if r.dropInputs && hasAnyPrefix(key, inputAttrPrefixes) {
		return true
	}
	if r.dropOutputs && hasAnyPrefix(key, outputAttrPrefixes) {
		return true
	}
	return false
}

// redactedSpan overrides Attributes to hide redacted keys. Embedding the
// ReadOnlySpan interface carries the remaining methods through.
type redactedSpan struct {
	sdktrace.ReadOnlySpan
	r redactor
}

// Attributes implements sdktrace.ReadOnlySpan.
func (s redactedSpan) Attributes() []attribute.KeyValue {
	attrs := s.ReadOnlySpan.Attributes()
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, kv := range attrs {
		if s.r.redacted(string(kv.Key)) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// redactExporter drops input/output span attributes at export time.
type redactExporter struct {
	next sdktrace.SpanExporter
	r    redactor
}

// NewRedactExporter decorates a span exporter so AI call inputs and/or
// outputs never leave the process when recording is disabled.
//
// Description:
//
//	When recordInputs is false, attributes under the ai.prompt and
//	gen_ai.prompt/gen_ai.request.messages prefixes are removed from
//	every exported span; recordOutputs likewise covers ai.response,
//	gen_ai.completion, and gen_ai.response. Redaction happens at export
//	so late-set attributes are covered too. When both flags are true,
//	or next is nil, next is returned undecorated.
//
// Inputs:
//
//	next - The exporter to decorate. May be nil.
//	recordInputs - Whether AI-call inputs may leave the process.
//	recordOutputs - Whether AI-call outputs may leave the process.
//
// Outputs:
//
//	sdktrace.SpanExporter - Decorated exporter, or next unchanged.
//
// Thread Safety: Safe for concurrent use if next is.
func NewRedactExporter(next sdktrace.SpanExporter, recordInputs, recordOutputs bool) sdktrace.SpanExporter {
	if next == nil || (recordInputs && recordOutputs) {
		return next
	}
	return &redactExporter{
		next: next,
		r:    redactor{dropInputs: !recordInputs, dropOutputs: !recordOutputs},
	}
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *redactExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	out := make([]sdktrace.ReadOnlySpan, len(spans))
	for i, s := range spans {
		out[i] = redactedSpan{ReadOnlySpan: s, r: e.r}
	}
	return e.next.ExportSpans(ctx, out)
}

// Shutdown implements sdktrace.SpanExporter.
func (e *redactExporter) Shutdown(ctx context.Context) error {
	return e.next.Shutdown(ctx)
}

// redactProcessor hides input/output attributes from a downstream span
// processor's OnEnd view.
type redactProcessor struct {
	next sdktrace.SpanProcessor
	r    redactor
}

// NewRedactProcessor decorates a span processor the same way
// NewRedactExporter decorates an exporter.
//
// Description:
//
//	OnEnd hands next a span view with the redacted attribute keys
//	filtered out; the other SpanProcessor methods delegate untouched.
//	This covers sinks that consume spans as a processor rather than an
//	exporter — the Sentry span processor in particular, which would
//	otherwise forward AI prompts and responses to the backend with
//	recording disabled. When both flags are true, or next is nil, next
//	is returned undecorated.
//
// Inputs:
//
//	next - The processor to decorate. May be nil.
//	recordInputs - Whether AI-call inputs may leave the process.
//	recordOutputs - Whether AI-call outputs may leave the process.
//
// Outputs:
//
//	sdktrace.SpanProcessor - Decorated processor, or next unchanged.
//
// Thread Safety: Safe for concurrent use if next is.
func NewRedactProcessor(next sdktrace.SpanProcessor, recordInputs, recordOutputs bool) sdktrace.SpanProcessor {
	if next == nil || (recordInputs && recordOutputs) {
		return next
	}
	return &redactProcessor{
		next: next,
		r:    redactor{dropInputs: !recordInputs, dropOutputs: !recordOutputs},
	}
}

// OnStart implements sdktrace.SpanProcessor. Attributes are read by
// consumers at OnEnd, so the live span passes through unfiltered.
func (p *redactProcessor) OnStart(ctx context.Context, s sdktrace.ReadWriteSpan) {
	p.next.OnStart(ctx, s)
}

// OnEnd implements sdktrace.SpanProcessor.
func (p *redactProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	p.next.OnEnd(redactedSpan{ReadOnlySpan: s, r: p.r})
}

// Shutdown implements sdktrace.SpanProcessor.
func (p *redactProcessor) Shutdown(ctx context.Context) error {
	return p.next.Shutdown(ctx)
}

// ForceFlush implements sdktrace.SpanProcessor.
func (p *redactProcessor) ForceFlush(ctx context.Context) error {
	return p.next.ForceFlush(ctx)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
