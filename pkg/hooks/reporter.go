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
	"time"

	"github.com/getsentry/sentry-go"
)

// Reporter is the narrow slice of the telemetry client the router needs.
//
// The production implementation wraps a Sentry hub. Tests substitute a
// recording fake; the interface exists so router behavior can be
// asserted without a Sentry transport.
type Reporter interface {
	// AddBreadcrumb records an informational breadcrumb.
	AddBreadcrumb(category, message string, data map[string]any)

	// CaptureException forwards an error with the given tags.
	CaptureException(err error, tags map[string]string)

	// Flush blocks until buffered telemetry is sent or the timeout
	// elapses, reporting whether everything was sent.
	Flush(timeout time.Duration) bool
}

// sentryReporter adapts a *sentry.Hub to Reporter.
type sentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter returns a Reporter backed by the given hub, or the
// process-wide current hub when hub is nil.
//
// Thread Safety: Safe for concurrent use; the hub serializes access to
// its scope internally.
func NewSentryReporter(hub *sentry.Hub) Reporter {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &sentryReporter{hub: hub}
}

// AddBreadcrumb implements Reporter.
func (r *sentryReporter) AddBreadcrumb(category, message string, data map[string]any) {
	r.hub.AddBreadcrumb(&sentry.Breadcrumb{
		Category:  category,
		Message:   message,
		Data:      data,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}, nil)
}

// CaptureException implements Reporter. Tags are applied on a pushed
// scope so they never leak onto unrelated events.
func (r *sentryReporter) CaptureException(err error, tags map[string]string) {
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		r.hub.CaptureException(err)
	})
}

// Flush implements Reporter.
func (r *sentryReporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}
