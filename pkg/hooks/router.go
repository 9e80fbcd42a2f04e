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
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/sentrylink/pkg/logging"
	"github.com/AleutianAI/sentrylink/pkg/telemetry"
)

// FlushTimeout is the wall bound on the session-idle flush. The wait
// always resolves by this deadline, flushed or not.
const FlushTimeout = 2000 * time.Millisecond

// Exception source tags.
const (
	sourceSessionError = "session.error"
	sourceToolExecute  = "tool.execute"
)

// RouterConfig adjusts Router behavior. The zero value is usable.
type RouterConfig struct {
	// Logger receives debug output. Nil means no logging.
	Logger *logging.Logger

	// Metrics, when non-nil, counts routed events, captures, and flushes.
	Metrics *telemetry.Metrics

	// OmitToolArgKeys drops argument key names from tool breadcrumbs.
	// Set when AI-call input recording is disabled.
	OmitToolArgKeys bool

	// FlushTimeout overrides the default session-idle flush bound.
	// Zero means FlushTimeout (2000 ms).
	FlushTimeout time.Duration
}

// Router maps host lifecycle events onto telemetry actions.
//
// Description:
//
//	Each event kind maps to exactly one action: session created, idle,
//	and tool-before record breadcrumbs; session error and tool-after
//	capture exceptions when an error payload is present; session idle
//	additionally flushes buffered telemetry with a hard wall bound.
//	Events outside the closed set produce no action. Handle never
//	returns an error and never panics into the host.
//
// Thread Safety: Safe for concurrent use; the host invokes handlers one
// at a time, but nothing here depends on that.
type Router struct {
	reporter     Reporter
	logger       *logging.Logger
	metrics      *telemetry.Metrics
	omitArgKeys  bool
	flushTimeout time.Duration
}

// NewRouter returns a Router forwarding to reporter. A nil reporter
// falls back to the process-wide Sentry hub.
func NewRouter(reporter Reporter, cfg RouterConfig) *Router {
	if reporter == nil {
		reporter = NewSentryReporter(nil)
	}
	timeout := cfg.FlushTimeout
	if timeout <= 0 {
		timeout = FlushTimeout
	}
	return &Router{
		reporter:     reporter,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		omitArgKeys:  cfg.OmitToolArgKeys,
		flushTimeout: timeout,
	}
}

// Handle routes one event. Unknown event values are ignored.
func (r *Router) Handle(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case SessionCreated:
		r.countEvent(ctx, "session.created")
		r.breadcrumb(ctx, "session", "session created", map[string]any{
			"session_id": e.SessionID,
		})

	case SessionError:
		r.countEvent(ctx, "session.error")
		err := coerceError(e.Cause)
		if err == nil {
			return
		}
		r.capture(ctx, err, map[string]string{"source": sourceSessionError})

	case SessionIdle:
		r.countEvent(ctx, "session.idle")
		r.breadcrumb(ctx, "session", "session idle", map[string]any{
			"session_id": e.SessionID,
		})
		r.flush(ctx)

	case ToolExecuteBefore:
		r.countEvent(ctx, "tool.execute.before")
		data := map[string]any{"tool": e.Tool}
		if e.CallID != "" {
			data["call_id"] = e.CallID
		}
		if !r.omitArgKeys {
			data["args"] = argKeys(e.Args)
		}
		r.breadcrumb(ctx, "tool", "executing tool "+e.Tool, data)

	case ToolExecuteAfter:
		r.countEvent(ctx, "tool.execute.after")
		err := coerceError(e.Error)
		if err == nil {
			return
		}
		r.capture(ctx, err, map[string]string{
			"source": sourceToolExecute,
			"tool":   e.Tool,
		})

	default:
		// Closed set: anything else produces no action.
	}
}

// breadcrumb records an informational breadcrumb and counts it.
func (r *Router) breadcrumb(ctx context.Context, category, message string, data map[string]any) {
	r.reporter.AddBreadcrumb(category, message, data)
	if r.metrics != nil {
		r.metrics.BreadcrumbsTotal.Add(ctx, 1)
	}
}

// capture forwards an exception and counts it by source tag. The error
// is also recorded on the active span, if any.
func (r *Router) capture(ctx context.Context, err error, tags map[string]string) {
	r.reporter.CaptureException(err, tags)
	telemetry.RecordError(ctx, err)
	if r.metrics != nil {
		r.metrics.ExceptionsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source", tags["source"]),
		))
	}
	if r.logger != nil {
		r.logger.Debug("captured exception", "source", tags["source"], "error", err)
	}
}

// flush waits for buffered telemetry with a hard wall bound.
//
// The reporter's own Flush takes the same timeout, but the select
// guarantees the bound even when the reporter misbehaves and never
// resolves.
func (r *Router) flush(ctx context.Context) {
	start := time.Now()

	done := make(chan bool, 1)
	go func() {
		done <- r.reporter.Flush(r.flushTimeout)
	}()

	timer := time.NewTimer(r.flushTimeout)
	defer timer.Stop()

	var flushed bool
	select {
	case flushed = <-done:
	case <-timer.C:
		flushed = false
	}

	if r.metrics != nil {
		outcome := "timeout"
		if flushed {
			outcome = "flushed"
		}
		r.metrics.FlushesTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", outcome),
		))
		r.metrics.FlushDuration.Record(ctx, time.Since(start).Seconds())
	}
	if r.logger != nil && !flushed {
		r.logger.Debug("telemetry flush timed out", "timeout", r.flushTimeout)
	}
}

// countEvent counts a routed event by kind.
func (r *Router) countEvent(ctx context.Context, kind string) {
	if r.metrics != nil {
		r.metrics.EventsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", kind),
		))
	}
}

// coerceError normalizes the host's error payloads. Hosts report
// errors as Go errors, plain strings, or arbitrary values; anything
// non-nil and non-empty becomes an error whose message is the
// stringified payload.
func coerceError(v any) error {
	switch cause := v.(type) {
	case nil:
		return nil
	case error:
		return cause
	case string:
		if cause == "" {
			return nil
		}
		return errors.New(cause)
	default:
		return fmt.Errorf("%v", cause)
	}
}

// argKeys returns the sorted argument key names, never the values.
func argKeys(args map[string]any) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
