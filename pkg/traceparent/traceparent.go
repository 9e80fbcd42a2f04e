// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package traceparent imports an externally supplied W3C Trace Context
// header so telemetry emitted by this process can continue a distributed
// trace started elsewhere.
//
// The host hands the header over either through the TRACEPARENT
// environment variable or through a string-map carrier. Parsing is
// deliberately looser than the W3C grammar: the header is accepted when
// it splits into exactly four hyphen-separated segments, and nothing
// else about the segments is checked. Hex validation happens later, in
// Continuation.SpanContext, and a failure there simply means "no
// continuation" — this package never returns an error and never panics.
package traceparent

import (
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// EnvVar is the environment variable the host uses to hand over the
// W3C traceparent header.
const EnvVar = "TRACEPARENT"

// carrierKey is the map-carrier key holding the header, matching the
// HTTP header name used by W3C Trace Context.
const carrierKey = "traceparent"

// sampledFlags is the only flags segment value that marks the remote
// trace as sampled. Anything else, including malformed flags, means
// unsampled.
const sampledFlags = "01"

// Continuation identifies the remote parent span this process should
// attach its telemetry to.
//
// A Continuation is constructed once at process start and never mutated.
// The zero value is not meaningful; use Parse, FromEnv, or FromCarrier.
type Continuation struct {
	// TraceID is the hex-encoded trace identifier segment, as received.
	TraceID string

	// SpanID is the hex-encoded parent span identifier segment, as received.
	SpanID string

	// Sampled reports whether the remote trace was sampled.
	Sampled bool
}

// Parse extracts a Continuation from a raw traceparent header.
//
// Description:
//
//	Splits the header on ASCII hyphens and requires exactly four
//	segments (version, trace-id, parent-id, flags). Any other segment
//	count — including the empty string — yields (zero, false); there is
//	no partial extraction. Segment contents are not validated here.
//
// Inputs:
//
//	header - Raw traceparent header. May be empty.
//
// Outputs:
//
//	Continuation - The parsed continuation. Zero value when ok is false.
//	bool - True when the header had the expected shape.
//
// Example:
//
//	if c, ok := traceparent.Parse(os.Getenv(traceparent.EnvVar)); ok {
//	    ambient.Install(c)
//	}
//
// Thread Safety: Pure function, safe for concurrent use.
func Parse(header string) (Continuation, bool) {
	parts := strings.Split(header, "-")
	if len(parts) != 4 {
		return Continuation{}, false
	}

	return Continuation{
		TraceID: parts[1],
		SpanID:  parts[2],
		Sampled: parts[3] == sampledFlags,
	}, true
}

// FromEnv reads and parses the TRACEPARENT environment variable.
//
// Returns (zero, false) when the variable is unset or malformed.
//
// Thread Safety: Safe for concurrent use.
func FromEnv() (Continuation, bool) {
	return Parse(os.Getenv(EnvVar))
}

// FromCarrier reads and parses the "traceparent" key of a string-map
// carrier, for hosts that forward headers instead of environment.
//
// Returns (zero, false) when the carrier is nil, the key is absent, or
// the value is malformed.
//
// Thread Safety: Safe for concurrent use as long as the carrier is not
// written concurrently.
func FromCarrier(carrier map[string]string) (Continuation, bool) {
	if carrier == nil {
		return Continuation{}, false
	}
	return Parse(carrier[carrierKey])
}

// SpanContext converts the continuation into a remote OTel span context.
//
// Description:
//
//	Decodes the hex trace and span identifiers and assembles a
//	trace.SpanContext with Remote set and the sampled bit mapped onto
//	TraceFlags. Decoding failures (the spec's parse accepts non-hex
//	segments) yield (zero, false) so callers degrade to "no
//	continuation" instead of propagating an error.
//
// Outputs:
//
//	trace.SpanContext - Remote parent span context. Zero when ok is false.
//	bool - True when both identifiers decoded.
//
// Thread Safety: Pure method, safe for concurrent use.
func (c Continuation) SpanContext() (trace.SpanContext, bool) {
	traceID, err := trace.TraceIDFromHex(c.TraceID)
	if err != nil {
		return trace.SpanContext{}, false
	}

	spanID, err := trace.SpanIDFromHex(c.SpanID)
	if err != nil {
		return trace.SpanContext{}, false
	}

	var flags trace.TraceFlags
	if c.Sampled {
		flags = trace.FlagsSampled
	}

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	})
	if !sc.IsValid() {
		return trace.SpanContext{}, false
	}
	return sc, true
}
