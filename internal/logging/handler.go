// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package logging builds the host's slog logger. Records carry the service
// name and version, plus the OpenTelemetry trace and span ids of the
// context they were logged with.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/trace"
)

// traceHandler decorates records with service identity and trace context.
type traceHandler struct {
	next    slog.Handler
	service string
	version string
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(
		slog.String("service", h.service),
		slog.String("version", h.version),
	)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.next.Handle(ctx, r)
}

func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{next: h.next.WithAttrs(attrs), service: h.service, version: h.version}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{next: h.next.WithGroup(name), service: h.service, version: h.version}
}

// ParseLevel maps debug, info, warn and error to slog levels.
// An empty string means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, oops.In("logging").
			Code("INVALID_LOG_LEVEL").
			With("level", s).
			Errorf("unknown log level %q", s)
	}
}

// Setup creates a logger writing format ("json" or "text", default json)
// at level to w. A nil w writes to stderr.
func Setup(service, version, format, level string, w io.Writer) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var base slog.Handler
	switch format {
	case "text":
		base = slog.NewTextHandler(w, opts)
	case "", "json":
		base = slog.NewJSONHandler(w, opts)
	default:
		return nil, oops.In("logging").
			Code("INVALID_LOG_FORMAT").
			With("format", format).
			Errorf("unknown log format %q", format)
	}

	return slog.New(&traceHandler{next: base, service: service, version: version}), nil
}
