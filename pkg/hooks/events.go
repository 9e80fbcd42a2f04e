// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package hooks receives lifecycle and tool-execution events from the
// AI-agent host and routes each to Sentry as a breadcrumb, an exception
// capture, or a bounded flush.
//
// The event surface is a closed sum type: the five kinds below are the
// whole vocabulary, and anything else is silently ignored. The Plugin
// type is the host-facing entry point; it wires configuration, the
// trace-context continuation, and the router together exactly once per
// process. Nothing in this package ever panics into the host or returns
// an error the host must handle — every internal failure degrades to a
// disabled telemetry feature.
package hooks

// Event is a discrete occurrence reported by the host. The set of
// implementations in this package is closed; Router.Handle ignores
// anything else.
type Event interface {
	event()
}

// SessionCreated reports that the host created a new agent session.
type SessionCreated struct {
	SessionID string
}

// SessionError reports that a session failed.
//
// Cause carries whatever the host attached: a Go error, a plain string,
// or any other value. Non-error values are coerced into an error whose
// message is the stringified payload. A nil Cause means there is
// nothing to capture.
type SessionError struct {
	SessionID string
	Cause     any
}

// SessionIdle reports that a session went idle; buffered telemetry is
// flushed on this signal.
type SessionIdle struct {
	SessionID string
}

// ToolExecuteBefore reports that the host is about to invoke a tool.
// Args holds the tool's arguments; only the key names are ever
// forwarded, never the values.
type ToolExecuteBefore struct {
	Tool   string
	CallID string
	Args   map[string]any
}

// ToolExecuteAfter reports that a tool invocation finished. Error is
// the error slot of the tool's result metadata, subject to the same
// coercion rules as SessionError.Cause.
type ToolExecuteAfter struct {
	Tool   string
	CallID string
	Error  any
}

func (SessionCreated) event()    {}
func (SessionError) event()      {}
func (SessionIdle) event()       {}
func (ToolExecuteBefore) event() {}
func (ToolExecuteAfter) event()  {}
