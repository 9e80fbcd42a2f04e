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

	"github.com/getsentry/sentry-go"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/sentrylink/pkg/ambient"
	"github.com/AleutianAI/sentrylink/pkg/logging"
	"github.com/AleutianAI/sentrylink/pkg/telemetry"
	"github.com/AleutianAI/sentrylink/pkg/traceparent"
)

// Project is the host-supplied identity record, attached as
// request-scoped tags on every event the plugin forwards.
type Project struct {
	// ID identifies the project the agent is working on.
	ID string

	// Directory is the working-directory path.
	Directory string

	// Worktree identifies the active worktree.
	Worktree string
}

// Plugin is the host-facing entry point: one instance per process,
// created before any lifecycle event is delivered.
type Plugin struct {
	cfg       telemetry.Config
	router    *Router
	logger    *logging.Logger
	manager   ambient.Manager
	shutdown  func(context.Context) error
	continued bool
}

// New builds the plugin: configuration, SDKs, trace continuation, and
// the event router, in that order.
//
// Description:
//
//	Resolves configuration (explicit options, then environment, then
//	defaults), installs the remote-parent continuation from TRACEPARENT
//	before anything can create a span, initializes the Sentry and OTel
//	SDKs, and attaches the project record to the Sentry scope.
//
//	New never fails into the host. A missing DSN disables emission; a
//	malformed trace header skips continuation; an SDK initialization
//	error disables the affected feature. All of it is logged (debug
//	level unless it loses telemetry) and the returned Plugin is always
//	usable.
//
// Inputs:
//
//	ctx - Context for SDK initialization. Nil is tolerated.
//	opts - Explicit configuration overrides. Zero value is fine.
//	project - Host identity record.
//
// Outputs:
//
//	*Plugin - Ready plugin. Call Close on host exit.
//
// Thread Safety: Call once at process start, before any handler runs.
func New(ctx context.Context, opts telemetry.Options, project Project) *Plugin {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := telemetry.Resolve(opts)

	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{Level: level, Service: "sentrylink"})

	p := &Plugin{
		cfg:      cfg,
		logger:   logger,
		manager:  ambient.Default(),
		shutdown: func(context.Context) error { return nil },
	}

	// Continuation first: the remote parent must be in place before any
	// span is created and before any event handler runs.
	if c, ok := traceparent.FromEnv(); ok {
		p.continued = ambient.Install(c)
		if p.continued {
			p.manager = ambient.Default()
			logger.Debug("continuing remote trace",
				"trace_id", c.TraceID, "span_id", c.SpanID, "sampled", c.Sampled)
		}
	} else {
		logger.Debug("no usable traceparent header, starting fresh traces")
	}

	shutdown, err := telemetry.Init(ctx, cfg)
	if err != nil {
		// Telemetry failing to initialize must never block the host.
		logger.Warn("telemetry initialization failed, emission disabled", "error", err)
	} else {
		p.shutdown = shutdown
	}

	if !cfg.Enabled() {
		logger.Debug("no DSN configured, telemetry emission disabled")
	} else {
		sentry.CurrentHub().ConfigureScope(func(scope *sentry.Scope) {
			if project.ID != "" {
				scope.SetTag("project.id", project.ID)
			}
			if project.Worktree != "" {
				scope.SetTag("project.worktree", project.Worktree)
			}
			scope.SetContext("project", sentry.Context{
				"id":        project.ID,
				"directory": project.Directory,
				"worktree":  project.Worktree,
			})
		})
	}

	var metrics *telemetry.Metrics
	if cfg.MetricExporter != "none" {
		metrics, err = telemetry.NewMetrics(otel.Meter("sentrylink"))
		if err != nil {
			logger.Warn("router metrics disabled", "error", err)
			metrics = nil
		}
	}

	p.router = NewRouter(NewSentryReporter(nil), RouterConfig{
		Logger:          logger,
		Metrics:         metrics,
		OmitToolArgKeys: !cfg.RecordInputs,
	})

	return p
}

// Handle routes one event under the ambient tracing context.
func (p *Plugin) Handle(ev Event) {
	p.router.Handle(p.manager.Active(), ev)
}

// OnSessionCreated reports a new session.
func (p *Plugin) OnSessionCreated(sessionID string) {
	p.Handle(SessionCreated{SessionID: sessionID})
}

// OnSessionError reports a failed session. Cause may be an error, a
// string, or any other value; nil means nothing to capture.
func (p *Plugin) OnSessionError(sessionID string, cause any) {
	p.Handle(SessionError{SessionID: sessionID, Cause: cause})
}

// OnSessionIdle reports an idle session and flushes buffered telemetry,
// bounded at FlushTimeout.
func (p *Plugin) OnSessionIdle(sessionID string) {
	p.Handle(SessionIdle{SessionID: sessionID})
}

// OnToolBefore reports an imminent tool invocation.
func (p *Plugin) OnToolBefore(tool, callID string, args map[string]any) {
	p.Handle(ToolExecuteBefore{Tool: tool, CallID: callID, Args: args})
}

// OnToolAfter reports a finished tool invocation. errValue is the error
// slot of the tool's result metadata; nil means success.
func (p *Plugin) OnToolAfter(tool, callID string, errValue any) {
	p.Handle(ToolExecuteAfter{Tool: tool, CallID: callID, Error: errValue})
}

// Manager exposes the ambient context manager, e.g. for hosts that
// create their own spans with telemetry.StartSpan.
func (p *Plugin) Manager() ambient.Manager {
	return p.manager
}

// Enabled reports whether telemetry emission is configured.
func (p *Plugin) Enabled() bool {
	return p.cfg.Enabled()
}

// Continued reports whether a remote trace continuation was installed.
func (p *Plugin) Continued() bool {
	return p.continued
}

// Close flushes and shuts down the telemetry stack. Safe to call even
// when initialization partially failed.
func (p *Plugin) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	err := p.shutdown(ctx)
	p.logger.Close()
	return err
}
