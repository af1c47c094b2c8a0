// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package audit

import (
	"context"
	"log/slog"
)

// SlogWriter emits audit entries as structured log records. It is the
// default backend for deployments without an audit database.
type SlogWriter struct {
	logger *slog.Logger
}

// NewSlogWriter creates a SlogWriter. A nil logger uses slog.Default.
func NewSlogWriter(logger *slog.Logger) *SlogWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogWriter{logger: logger}
}

// WriteSync implements Writer.
func (w *SlogWriter) WriteSync(ctx context.Context, entry Entry) error {
	w.logger.LogAttrs(ctx, slog.LevelInfo, "audit", entryAttrs(entry)...)
	return nil
}

// WriteAsync implements Writer.
func (w *SlogWriter) WriteAsync(entry Entry) error {
	w.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", entryAttrs(entry)...)
	return nil
}

// Close implements Writer.
func (w *SlogWriter) Close() error { return nil }

func entryAttrs(entry Entry) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("audit_action", entry.Action),
		slog.String("actor", entry.ActorID),
		slog.String("target", entry.TargetID),
		slog.Bool("allowed", entry.Allowed),
		slog.Time("timestamp", entry.Timestamp),
	}
	if entry.RoleID != "" {
		attrs = append(attrs, slog.String("role", entry.RoleID))
	}
	if entry.Permission != "" {
		attrs = append(attrs, slog.String("permission", entry.Permission))
	}
	if entry.Scope != "" {
		attrs = append(attrs, slog.String("scope", entry.Scope), slog.String("scope_id", entry.ScopeID))
	}
	if entry.Reason != "" {
		attrs = append(attrs, slog.String("reason", entry.Reason))
	}
	if entry.DurationUS > 0 {
		attrs = append(attrs, slog.Int64("duration_us", entry.DurationUS))
	}
	return attrs
}
