// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

// Package logging provides structured logging with OpenTelemetry trace context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Redacted replaces the value of sensitive attributes.
const Redacted = "[REDACTED]"

// sensitiveKeys are attribute keys whose values never reach the output.
var sensitiveKeys = map[string]struct{}{
	"password":         {},
	"current_password": {},
	"new_password":     {},
	"password_hash":    {},
	"token":            {},
	"reset_token":      {},
	"authorization":    {},
	"jwt_secret":       {},
	"secret_key":       {},
}

// traceHandler wraps a slog.Handler to add service identity and trace context.
type traceHandler struct {
	handler slog.Handler
	service string
	version string
}

// Handle adds service, version and trace context to the log record.
func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(
		slog.String("service", h.service),
		slog.String("version", h.version),
	)

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.HasTraceID() {
		r.AddAttrs(slog.String("trace_id", spanCtx.TraceID().String()))
	}
	if spanCtx.HasSpanID() {
		r.AddAttrs(slog.String("span_id", spanCtx.SpanID().String()))
	}

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.handler.Handle(ctx, r)
}

// Enabled returns true if the level is enabled.
func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs returns a new handler with the given attributes.
func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{
		handler: h.handler.WithAttrs(attrs),
		service: h.service,
		version: h.version,
	}
}

// WithGroup returns a new handler with the given group.
func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{
		handler: h.handler.WithGroup(name),
		service: h.service,
		version: h.version,
	}
}

// ParseLevel converts a configured level name to a slog.Level.
// Unknown names fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// redact is a ReplaceAttr hook that masks sensitive attribute values.
func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// Setup creates a configured slog.Logger.
// format: "json" or "text" (defaults to "json" if empty)
// If w is nil, writes to os.Stderr.
func Setup(service, version, format string, level slog.Level, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	var baseHandler slog.Handler
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redact,
	}

	if format == "text" {
		baseHandler = slog.NewTextHandler(w, opts)
	} else {
		baseHandler = slog.NewJSONHandler(w, opts)
	}

	handler := &traceHandler{
		handler: baseHandler,
		service: service,
		version: version,
	}

	return slog.New(handler)
}

// SetDefault sets up the default logger and returns it.
func SetDefault(service, version, format, level string) *slog.Logger {
	logger := Setup(service, version, format, ParseLevel(level), nil)
	slog.SetDefault(logger)
	return logger
}
