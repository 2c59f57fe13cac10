// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "Failed to parse JSON: %s", buf.String())
	return entry
}

func TestSetup_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("pluginhost", "1.0.0", "json", "info", &buf)
	require.NoError(t, err)

	logger.Info("registered plugin", "plugin", "host-plugin-echo")

	entry := decode(t, &buf)
	assert.Equal(t, "registered plugin", entry["msg"])
	assert.Equal(t, "pluginhost", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Equal(t, "host-plugin-echo", entry["plugin"])
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("pluginhost", "1.0.0", "text", "", &buf)
	require.NoError(t, err)

	logger.Info("test message")

	assert.Contains(t, buf.String(), "test message")
	assert.Contains(t, buf.String(), "service=pluginhost")
}

func TestSetup_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("pluginhost", "1.0.0", "json", "warn", &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Equal(t, "shown", decode(t, &buf)["msg"])
}

func TestSetup_Invalid(t *testing.T) {
	_, err := Setup("pluginhost", "1.0.0", "xml", "info", nil)
	assert.ErrorContains(t, err, "unknown log format")

	_, err = Setup("pluginhost", "1.0.0", "json", "loud", nil)
	assert.ErrorContains(t, err, "unknown log level")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestHandler_TraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("pluginhost", "1.0.0", "json", "info", &buf)
	require.NoError(t, err)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.InfoContext(ctx, "traced message")

	entry := decode(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestHandler_NoTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("pluginhost", "1.0.0", "json", "info", &buf)
	require.NoError(t, err)

	logger.Info("no trace message")

	entry := decode(t, &buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
}

func TestHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("pluginhost", "1.0.0", "json", "info", &buf)
	require.NoError(t, err)

	logger.With("scan_id", "01J").WithGroup("candidate").Info("msg", "dir", "/plugins/a")

	entry := decode(t, &buf)
	assert.Equal(t, "01J", entry["scan_id"])
	group, ok := entry["candidate"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/plugins/a", group["dir"])
	assert.Equal(t, "pluginhost", group["service"], "decorations land inside the open group")
}
