// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package errutil logs and asserts on structured oops errors.
package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level. For oops errors the code and context
// are logged as separate attributes; other errors log their string.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	logger.Error(msg, append(attrs, errorAttrs(err)...)...)
}

// LogWarn is LogError at warn level, for rejections that are expected.
func LogWarn(logger *slog.Logger, msg string, err error, attrs ...any) {
	logger.Warn(msg, append(attrs, errorAttrs(err)...)...)
}

func errorAttrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}

	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil {
		attrs = append(attrs, "code", code)
	}
	if hint := oopsErr.Hint(); hint != "" {
		attrs = append(attrs, "hint", hint)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}
