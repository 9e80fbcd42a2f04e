// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ambient models the "currently active" tracing context for a
// host process that does not thread context.Context through its own
// call paths.
//
// A Manager answers two questions: what is the active context right now
// (Active), and run this closure with some other context active
// (Within). ProcessManager is the plain implementation. WithRemoteParent
// decorates any Manager so that, whenever nothing is explicitly active,
// Active returns a context parented to a span imported from another
// process. That keeps spans created outside any explicit scope attached
// to the distributed trace the host was launched under, instead of each
// starting a fresh disconnected trace.
//
// The process-wide default manager is wrapped at most once, at
// initialization, before any event handler runs. Explicitly entered
// scopes always win over the remote parent.
package ambient

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/sentrylink/pkg/traceparent"
)

// Manager owns the notion of a currently active tracing context.
//
// Implementations must return a non-nil context from Active and must
// execute fn synchronously in Within.
type Manager interface {
	// Active returns the currently active context.
	Active() context.Context

	// Within runs fn with ctx as the active context, restoring the
	// previous active context when fn returns.
	Within(ctx context.Context, fn func(context.Context))
}

// ProcessManager is a stack-based Manager.
//
// The host invokes handlers one at a time, so the stack discipline of
// Within matches the host's cooperative scheduling. State is still
// mutex-guarded so that Active is safe to call from anywhere.
type ProcessManager struct {
	mu    sync.Mutex
	stack []context.Context
}

// NewProcessManager returns a Manager whose base active context is
// context.Background().
func NewProcessManager() *ProcessManager {
	return &ProcessManager{}
}

// Active returns the innermost context entered via Within, or
// context.Background() when no scope is open.
func (m *ProcessManager) Active() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stack) == 0 {
		return context.Background()
	}
	return m.stack[len(m.stack)-1]
}

// Within pushes ctx, runs fn(ctx), and pops ctx again. A nil ctx is
// replaced with context.Background().
func (m *ProcessManager) Within(ctx context.Context, fn func(context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	m.stack = append(m.stack, ctx)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.stack = m.stack[:len(m.stack)-1]
		m.mu.Unlock()
	}()

	fn(ctx)
}

// continuity decorates a Manager so Active falls back to a context
// carrying an imported remote parent span. Only Active is intercepted;
// Within delegates untouched so explicit nesting keeps its semantics.
type continuity struct {
	inner Manager
	root  context.Context
}

// WithRemoteParent returns inner decorated with a remote-parent fallback.
//
// Description:
//
//	Builds a root context by attaching the continuation's remote span
//	context to an otherwise empty context. The returned Manager answers
//	Active with the inner manager's context whenever that context
//	already carries a valid span context (someone explicitly entered a
//	span scope), and with the root context otherwise.
//
//	When inner is nil or the continuation's identifiers do not decode,
//	the inner manager is returned unchanged — continuation is a
//	best-effort enhancement and must never fail loudly.
//
// Inputs:
//
//	inner - Manager to decorate. May be nil.
//	c - Imported trace continuation.
//
// Outputs:
//
//	Manager - Decorated manager, or inner unchanged when decoration
//	          is not possible.
//
// Thread Safety: Safe for concurrent use; the root context is immutable.
func WithRemoteParent(inner Manager, c traceparent.Continuation) Manager {
	if inner == nil {
		return inner
	}

	sc, ok := c.SpanContext()
	if !ok {
		return inner
	}

	return &continuity{
		inner: inner,
		root:  trace.ContextWithRemoteSpanContext(context.Background(), sc),
	}
}

// Active implements Manager.
func (c *continuity) Active() context.Context {
	cur := c.inner.Active()
	// Any valid span context means a scope was entered explicitly;
	// sampled-out spans count too, or their children would be
	// re-parented onto the remote trace.
	if trace.SpanContextFromContext(cur).IsValid() {
		return cur
	}
	return c.root
}

// Within implements Manager by delegating unchanged.
func (c *continuity) Within(ctx context.Context, fn func(context.Context)) {
	c.inner.Within(ctx, fn)
}

// Process-wide default manager. Written once at initialization (Install
// or SetDefault), read-only afterwards.
var (
	defaultMu      sync.RWMutex
	defaultManager Manager = NewProcessManager()
	installOnce    sync.Once
)

// Default returns the process-wide manager.
//
// Thread Safety: Safe for concurrent use.
func Default() Manager {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultManager
}

// SetDefault replaces the process-wide manager.
//
// Single-writer-at-init semantics: call before Install and before any
// telemetry is emitted. Passing nil disables continuation installation.
func SetDefault(m Manager) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultManager = m
}

// Install wraps the process-wide manager with a remote-parent fallback.
//
// Description:
//
//	Applies WithRemoteParent to the default manager at most once per
//	process. Later calls, including calls racing the first, do nothing
//	and return false. Install also returns false when no default
//	manager is available or the continuation cannot produce a valid
//	remote span context; both cases degrade silently, never panic.
//
// Inputs:
//
//	c - Imported trace continuation, typically from traceparent.FromEnv.
//
// Outputs:
//
//	bool - True when the fallback was installed by this call.
//
// Thread Safety: Safe for concurrent use.
func Install(c traceparent.Continuation) bool {
	installed := false
	installOnce.Do(func() {
		defaultMu.Lock()
		defer defaultMu.Unlock()

		if defaultManager == nil {
			return
		}
		wrapped := WithRemoteParent(defaultManager, c)
		if wrapped == defaultManager {
			return
		}
		defaultManager = wrapped
		installed = true
	})
	return installed
}
