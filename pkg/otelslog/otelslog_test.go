// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otelslog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type record struct {
	Message string `json:"msg"`
	OTel    struct {
		TraceID string `json:"trace_id"`
		SpanID  string `json:"span_id"`
	} `json:"otel"`
}

func TestHandler_Handle(t *testing.T) {
	t.Run("will not add trace id and span id", func(t *testing.T) {
		t.Run("if the span context is invalid", func(t *testing.T) {
			var buf bytes.Buffer
			log := New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{}))

			log.InfoContext(context.Background(), "test")

			var r record
			err := json.Unmarshal(buf.Bytes(), &r)
			require.Nil(t, err)
			require.Equal(t, "test", r.Message)
			require.Empty(t, r.OTel.TraceID)
			require.Empty(t, r.OTel.SpanID)
		})
	})

	t.Run("will add trace id and span id", func(t *testing.T) {
		t.Run("if the span context is valid", func(t *testing.T) {
			var buf bytes.Buffer
			log := New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{}))

			tp := sdktrace.NewTracerProvider()
			ctx, span := tp.Tracer("otelslog").Start(context.Background(), "test")
			defer span.End()

			log.InfoContext(ctx, "test")

			var r record
			err := json.Unmarshal(buf.Bytes(), &r)
			require.Nil(t, err)
			require.Equal(t, span.SpanContext().TraceID().String(), r.OTel.TraceID)
			require.Equal(t, span.SpanContext().SpanID().String(), r.OTel.SpanID)
		})
	})

	t.Run("will add a span event", func(t *testing.T) {
		t.Run("if the record is a warning", func(t *testing.T) {
			var buf bytes.Buffer
			log := New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{}))

			sr := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
			ctx, span := tp.Tracer("otelslog").Start(context.Background(), "test")

			log.InfoContext(ctx, "ignored")
			log.WarnContext(ctx, "no handlers", slog.String("signal", "activate"))
			span.End()

			spans := sr.Ended()
			require.Len(t, spans, 1)

			events := spans[0].Events()
			require.Len(t, events, 1)
			require.Equal(t, "no handlers", events[0].Name)
		})
	})
}
