// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otelslog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/z5labs/strata/pkg/slogfield"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func ExampleNew() {
	var buf bytes.Buffer
	log := New(slog.NewJSONHandler(&buf, nil)).With(slogfield.AppID("org.example.Editor"))

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("example").Start(context.Background(), "Application.Run")
	defer span.End()

	log.InfoContext(ctx, "application registered")

	var record struct {
		Message string `json:"msg"`
		AppID   string `json:"app_id"`
		Otel    struct {
			TraceID string `json:"trace_id"`
		} `json:"otel"`
	}
	err := json.Unmarshal(buf.Bytes(), &record)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(record.Message)
	fmt.Println(record.AppID)
	fmt.Println(record.Otel.TraceID == span.SpanContext().TraceID().String())
	// Output: application registered
	// org.example.Editor
	// true
}
