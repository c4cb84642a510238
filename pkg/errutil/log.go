// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code, context, and kind.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error) {
	LogErrorContext(context.Background(), logger, msg, err)
}

// LogErrorContext is LogError with a context, so trace ids reach the record.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"error", err.Error()}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := oopsErr.Code(); code != nil && code != "" {
			attrs = append(attrs, "code", code)
		}
		if fields := oopsErr.Context(); len(fields) > 0 {
			attrs = append(attrs, "context", fields)
		}
	}
	if kind := KindOf(err); kind != nil {
		attrs = append(attrs, "kind", kind.Error())
	}
	logger.ErrorContext(ctx, msg, attrs...)
}
