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
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for the sentrylink event router.
//
// All metrics use the "sentrylink_" prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// EventsTotal counts lifecycle events routed, by event kind.
	EventsTotal metric.Int64Counter

	// BreadcrumbsTotal counts breadcrumbs recorded.
	BreadcrumbsTotal metric.Int64Counter

	// ExceptionsTotal counts exceptions captured, by source.
	ExceptionsTotal metric.Int64Counter

	// FlushesTotal counts flush attempts, by outcome (flushed, timeout).
	FlushesTotal metric.Int64Counter

	// FlushDuration records flush duration in seconds.
	FlushDuration metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with all metrics registered.
//
// Description:
//
//	Registers all pre-defined metrics with the provided meter.
//	Returns an error if any metric registration fails.
//
// Inputs:
//
//	meter - The OTel meter to use for metric registration.
//
// Outputs:
//
//	*Metrics - The metrics instance with all instruments initialized.
//	error - Non-nil if metric registration fails.
//
// Example:
//
//	meter := otel.Meter("sentrylink")
//	metrics, err := telemetry.NewMetrics(meter)
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
//
// Thread Safety: Safe for concurrent use after creation.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.EventsTotal, err = meter.Int64Counter(
		"sentrylink_events_total",
		metric.WithDescription("Total lifecycle events routed"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create events_total: %w", err)
	}

	m.BreadcrumbsTotal, err = meter.Int64Counter(
		"sentrylink_breadcrumbs_total",
		metric.WithDescription("Total breadcrumbs recorded"),
		metric.WithUnit("{breadcrumb}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create breadcrumbs_total: %w", err)
	}

	m.ExceptionsTotal, err = meter.Int64Counter(
		"sentrylink_exceptions_total",
		metric.WithDescription("Total exceptions captured"),
		metric.WithUnit("{exception}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create exceptions_total: %w", err)
	}

	m.FlushesTotal, err = meter.Int64Counter(
		"sentrylink_flushes_total",
		metric.WithDescription("Total telemetry flush attempts"),
		metric.WithUnit("{flush}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create flushes_total: %w", err)
	}

	m.FlushDuration, err = meter.Float64Histogram(
		"sentrylink_flush_duration_seconds",
		metric.WithDescription("Telemetry flush duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create flush_duration_seconds: %w", err)
	}

	return m, nil
}
