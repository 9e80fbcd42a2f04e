// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging provides structured logging for the sentrylink plugin.
//
// The package is built on Go's standard library slog package. Output
// goes to stderr by default (Unix CLI convention: the host owns stdout)
// or to a caller-supplied writer. Debug level is gated by SENTRY_DEBUG
// through the telemetry configuration; the plugin never logs at debug
// level unless the operator asked for it.
//
// # Basic Usage
//
//	logger := logging.Default()
//	logger.Info("plugin ready", "session_id", sessionID)
//	logger.Debug("continuing remote trace", "trace_id", traceID)
//
// # Log Levels
//
// Four levels are supported, matching slog conventions:
//
//   - Debug: development troubleshooting, verbose output
//   - Info: normal operations (plugin init, continuation installed)
//   - Warn: recoverable issues (SDK init failure, degraded mode)
//   - Error: operation failures (but the plugin continues)
//
// # Security Considerations
//
// This package does NOT automatically redact sensitive data.
// Callers must ensure PII, tokens, and secrets are not logged:
//
//	// BAD: logs sensitive data
//	logger.Info("auth", "dsn", dsn)
//
//	// GOOD: log metadata only
//	logger.Info("auth", "dsn_present", dsn != "")
//
// # Thread Safety
//
// Logger is safe for concurrent use; the underlying slog.Logger is
// thread-safe.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity levels, ordered Debug < Info < Warn < Error.
// Setting a minimum level filters out all logs below it.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operational messages.
	LevelInfo

	// LevelWarn is for potentially problematic situations.
	LevelWarn

	// LevelError is for error conditions the plugin survives.
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// toSlogLevel bridges our Level to the standard library.
func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures the Logger behavior.
//
// All fields have sensible defaults: a zero-value Config creates a
// logger that writes Info+ messages to stderr in text format.
type Config struct {
	// Level sets the minimum log level. Default: LevelInfo.
	Level Level

	// Service identifies the component generating logs. It is included
	// in every entry as the "service" attribute. Default: none.
	Service string

	// JSON enables JSON output instead of human-readable text.
	JSON bool

	// Writer overrides the output destination. Default: os.Stderr.
	Writer io.Writer

	// Quiet disables all output. Useful when the host captures the
	// plugin's stderr and verbose logging was not requested.
	Quiet bool
}

// =============================================================================
// Logger
// =============================================================================

// Logger provides structured logging backed by slog.
type Logger struct {
	slogger *slog.Logger
}

// New creates a Logger from the given configuration.
//
// Thread Safety: The returned Logger is safe for concurrent use.
func New(cfg Config) *Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	if cfg.Quiet {
		w = io.Discard
	}

	opts := &slog.HandlerOptions{Level: cfg.Level.toSlogLevel()}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With("service", cfg.Service)
	}

	return &Logger{slogger: logger}
}

// Default returns a logger with default configuration: Info level,
// stderr, text format.
func Default() *Logger {
	return New(Config{})
}

// Debug logs at debug level with alternating key-value args.
func (l *Logger) Debug(msg string, args ...any) {
	l.slogger.Debug(msg, args...)
}

// Info logs at info level with alternating key-value args.
func (l *Logger) Info(msg string, args ...any) {
	l.slogger.Info(msg, args...)
}

// Warn logs at warn level with alternating key-value args.
func (l *Logger) Warn(msg string, args ...any) {
	l.slogger.Warn(msg, args...)
}

// Error logs at error level with alternating key-value args.
func (l *Logger) Error(msg string, args ...any) {
	l.slogger.Error(msg, args...)
}

// With returns a Logger that includes the given attributes in every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slogger: l.slogger.With(args...)}
}

// Close releases logger resources. Present for interface symmetry with
// the host's component lifecycle; the stderr-backed logger has nothing
// to flush.
func (l *Logger) Close() error {
	return nil
}
