// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package maskslog provides a slog.Handler which rewrites sensitive
// attributes, e.g. credentials embedded in webhook URLs, before they
// are logged.
package maskslog

import (
	"context"
	"log/slog"
	"maps"
	"net/url"
	"slices"
	"strings"
)

// Masked replaces masked values.
const Masked = "****"

// Option helps configure the Handler.
type Option func(map[string]func(slog.Attr) slog.Attr)

// Attr registers f for masking every attribute named key.
func Attr(key string, f func(slog.Attr) slog.Attr) Option {
	return func(m map[string]func(slog.Attr) slog.Attr) {
		m[key] = f
	}
}

// AnonymousStringAttr replaces the value of a with Masked, whatever its
// type.
func AnonymousStringAttr(a slog.Attr) slog.Attr {
	return slog.String(a.Key, Masked)
}

// URLAttr masks the password and the query values of a URL valued
// attribute. Passwords are replaced the way url.URL.Redacted does. A value which does not parse as a URL is masked entirely.
func URLAttr(a slog.Attr) slog.Attr {
	u, err := url.Parse(a.Value.String())
	if err != nil {
		return AnonymousStringAttr(a)
	}
	if u.RawQuery != "" {
		q := u.Query()
		keys := slices.Sorted(maps.Keys(q))
		for i, k := range keys {
			keys[i] = url.QueryEscape(k) + "=" + Masked
		}
		u.RawQuery = strings.Join(keys, "&")
	}
	return slog.String(a.Key, u.Redacted())
}

// Handler masks attributes before passing records on.
type Handler struct {
	next  slog.Handler
	masks map[string]func(slog.Attr) slog.Attr
}

// NewHandler returns a new Handler wrapping h.
func NewHandler(h slog.Handler, opts ...Option) *Handler {
	masks := make(map[string]func(slog.Attr) slog.Attr)
	for _, opt := range opts {
		opt(masks)
	}
	return &Handler{
		next:  h,
		masks: masks,
	}
}

// Enabled implements the slog.Handler interface.
func (h *Handler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

// Handle implements the slog.Handler interface.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	if len(h.masks) == 0 {
		return h.next.Handle(ctx, record)
	}

	nr := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(a slog.Attr) bool {
		nr.AddAttrs(h.mask(a))
		return true
	})
	return h.next.Handle(ctx, nr)
}

func (h *Handler) mask(a slog.Attr) slog.Attr {
	f, ok := h.masks[a.Key]
	if !ok {
		return a
	}
	return f(a)
}

// WithAttrs implements the slog.Handler interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.mask(a)
	}
	return &Handler{
		next:  h.next.WithAttrs(masked),
		masks: h.masks,
	}
}

// WithGroup implements the slog.Handler interface.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		next:  h.next.WithGroup(name),
		masks: h.masks,
	}
}
