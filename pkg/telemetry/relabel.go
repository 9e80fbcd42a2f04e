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

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Instrumentation-library span names emitted by the Vercel AI SDK
// telemetry layer for model calls.
const (
	spanNameStreamText   = "ai.streamText.doStream"
	spanNameGenerateText = "ai.generateText.doGenerate"
)

// Canonical gen_ai taxonomy keys the relabel processor writes.
const (
	attrSentryOp    = "sentry.op"
	opGenAIChat     = "gen_ai.chat"
	attrGenAIModel  = "gen_ai.request.model"
	attrGenAISystem = "gen_ai.system"
	attrAIModelID   = "ai.model.id"
	attrAIModelProv = "ai.model.provider"
)

// RelabelProcessor re-tags generic AI-instrumentation spans with the
// gen_ai span taxonomy.
//
// Description:
//
//	Spans named after the two Vercel AI SDK model-call operations get
//	the operation attribute "sentry.op" set to "gen_ai.chat", and their
//	model and provider copied into the canonical gen_ai attribute keys.
//	For each destination the first present source wins (ai.model.id
//	before gen_ai.request.model, ai.model.provider before
//	gen_ai.system); absent sources leave the destination unset. Spans
//	with any other name pass through untouched.
//
//	Relabeling happens in OnStart, so it only sees attributes supplied
//	at span creation — which is where the AI instrumentation sets them.
//
// Thread Safety: Stateless; safe for concurrent use.
type RelabelProcessor struct{}

// NewRelabelProcessor returns a RelabelProcessor.
func NewRelabelProcessor() *RelabelProcessor {
	return &RelabelProcessor{}
}

// OnStart implements sdktrace.SpanProcessor.
func (p *RelabelProcessor) OnStart(_ context.Context, s sdktrace.ReadWriteSpan) {
	switch s.Name() {
	case spanNameStreamText, spanNameGenerateText:
	default:
		return
	}

	out := []attribute.KeyValue{
		attribute.String(attrSentryOp, opGenAIChat),
	}

	attrs := s.Attributes()
	if model, ok := firstStringAttr(attrs, attrAIModelID, attrGenAIModel); ok {
		out = append(out, attribute.String(attrGenAIModel, model))
	}
	if provider, ok := firstStringAttr(attrs, attrAIModelProv, attrGenAISystem); ok {
		out = append(out, attribute.String(attrGenAISystem, provider))
	}

	s.SetAttributes(out...)
}

// OnEnd implements sdktrace.SpanProcessor.
func (p *RelabelProcessor) OnEnd(sdktrace.ReadOnlySpan) {}

// Shutdown implements sdktrace.SpanProcessor.
func (p *RelabelProcessor) Shutdown(context.Context) error { return nil }

// ForceFlush implements sdktrace.SpanProcessor.
func (p *RelabelProcessor) ForceFlush(context.Context) error { return nil }

// firstStringAttr returns the value of the first listed key present in
// attrs with a string value.
func firstStringAttr(attrs []attribute.KeyValue, keys ...string) (string, bool) {
	for _, key := range keys {
		for _, kv := range attrs {
			if string(kv.Key) == key && kv.Value.Type() == attribute.STRING {
				return kv.Value.AsString(), true
			}
		}
	}
	return "", false
}
