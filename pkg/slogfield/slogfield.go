// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package slogfield provides typed helpers for building slog attributes
// used across the runtime.
package slogfield

import (
	"log/slog"
	"time"
)

// Any returns an slog.Attr for the supplied value.
func Any(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// Bool returns an slog.Attr for a bool.
func Bool(key string, value bool) slog.Attr {
	return slog.Bool(key, value)
}

// Duration returns an slog.Attr for a time.Duration.
func Duration(key string, d time.Duration) slog.Attr {
	return slog.Duration(key, d)
}

// Error returns an slog.Attr for a error.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// String returns an slog.Attr for a string.
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Strings returns an slog.Attr for a slice of strings.
func Strings(key string, values []string) slog.Attr {
	return slog.Any(key, values)
}

// Int returns an slog.Attr for a int.
func Int(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Int64 returns an slog.Attr for a int64.
func Int64(key string, n int64) slog.Attr {
	return slog.Int64(key, n)
}

// Uint32 returns an slog.Attr for a uint32.
func Uint32(key string, n uint32) slog.Attr {
	return slog.Uint64(key, uint64(n))
}

// Uint64 returns an slog.Attr for a uint64.
func Uint64(key string, n uint64) slog.Attr {
	return slog.Uint64(key, n)
}

// Signal returns an slog.Attr naming a signal.
func Signal(name string) slog.Attr {
	return slog.String("signal", name)
}

// Detail returns an slog.Attr for a signal detail.
func Detail(detail string) slog.Attr {
	return slog.String("detail", detail)
}

// HandlerID returns an slog.Attr for a signal handler id.
func HandlerID(id uint64) slog.Attr {
	return slog.Uint64("handler_id", id)
}

// Type returns an slog.Attr naming a registered type.
func Type(name string) slog.Attr {
	return slog.String("type", name)
}

// Action returns an slog.Attr naming an action.
func Action(name string) slog.Attr {
	return slog.String("action", name)
}

// AppID returns an slog.Attr for an application id.
func AppID(id string) slog.Attr {
	return slog.String("app_id", id)
}

// Backend returns an slog.Attr naming a notification backend.
func Backend(name string) slog.Attr {
	return slog.String("notification_backend", name)
}
