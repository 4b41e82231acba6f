// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package slogfield

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJsonHandler(t *testing.T) {
	testCases := []struct {
		Name     string
		Attr     slog.Attr
		Key      string
		Expected any
	}{
		{Name: "bool", Attr: Bool("value", true), Key: "value", Expected: true},
		{Name: "duration", Attr: Duration("value", 5*time.Second), Key: "value", Expected: float64(5 * time.Second)},
		{Name: "error", Attr: Error(errors.New("boom")), Key: "error", Expected: "boom"},
		{Name: "string", Attr: String("value", "hello"), Key: "value", Expected: "hello"},
		{Name: "strings", Attr: Strings("value", []string{"a", "b"}), Key: "value", Expected: []any{"a", "b"}},
		{Name: "int", Attr: Int("value", -3), Key: "value", Expected: float64(-3)},
		{Name: "uint64", Attr: Uint64("value", 7), Key: "value", Expected: float64(7)},
		{Name: "signal", Attr: Signal("action-added"), Key: "signal", Expected: "action-added"},
		{Name: "detail", Attr: Detail("quit"), Key: "detail", Expected: "quit"},
		{Name: "handler id", Attr: HandlerID(12), Key: "handler_id", Expected: float64(12)},
		{Name: "type", Attr: Type("Object"), Key: "type", Expected: "Object"},
		{Name: "action", Attr: Action("app.quit"), Key: "action", Expected: "app.quit"},
		{Name: "app id", Attr: AppID("org.example.App"), Key: "app_id", Expected: "org.example.App"},
		{Name: "backend", Attr: Backend("log"), Key: "notification_backend", Expected: "log"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{}))
			log.Info("test", testCase.Attr)

			var record map[string]any
			err := json.Unmarshal(buf.Bytes(), &record)
			require.Nil(t, err)
			require.Equal(t, testCase.Expected, record[testCase.Key])
		})
	}
}
