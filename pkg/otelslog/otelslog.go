// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otelslog provides a OpenTelemetry aware slog.Handler implementation.
package otelslog

import (
	"context"
	"log/slog"

	"github.com/z5labs/strata/pkg/slogfield"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Handler is an slog.Handler which correlates log records with the
// active span. Every record logged with a valid span context carries the
// Trace ID and Span ID, and records at or above the event level are also
// added to the span as events.
type Handler struct {
	slog       slog.Handler
	eventLevel slog.Level
}

// NewHandler wraps h. Records at [slog.LevelWarn] and above become span events.
func NewHandler(h slog.Handler) *Handler {
	return &Handler{slog: h, eventLevel: slog.LevelWarn}
}

// New provides a simple wrapper for slog.New(NewHandler(h)).
func New(h slog.Handler) *slog.Logger {
	return slog.New(NewHandler(h))
}

// Enabled implements the slog.Handler interface.
func (h *Handler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.slog.Enabled(ctx, lvl)
}

// Handle implements the slog.Handler interface.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	span := trace.SpanFromContext(ctx)
	spanCtx := span.SpanContext()
	if !spanCtx.IsValid() {
		return h.slog.Handle(ctx, record)
	}

	if record.Level >= h.eventLevel && span.IsRecording() {
		attrs := []attribute.KeyValue{attribute.String("log.severity", record.Level.String())}
		record.Attrs(func(a slog.Attr) bool {
			attrs = append(attrs, attribute.String("log."+a.Key, a.Value.String()))
			return true
		})
		span.AddEvent(record.Message, trace.WithAttributes(attrs...))
	}

	r := record.Clone()
	r.AddAttrs(
		slog.Group(
			"otel",
			slogfield.String("trace_id", spanCtx.TraceID().String()),
			slogfield.String("span_id", spanCtx.SpanID().String()),
		),
	)
	return h.slog.Handle(ctx, r)
}

// WithAttrs implements the slog.Handler interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{slog: h.slog.WithAttrs(attrs), eventLevel: h.eventLevel}
}

// WithGroup implements the slog.Handler interface.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{slog: h.slog.WithGroup(name), eventLevel: h.eventLevel}
}
