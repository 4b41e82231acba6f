// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package webhook provides a notification backend which POSTs every
// notification event as JSON to a URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/z5labs/strata/internal/httpclient"
	"github.com/z5labs/strata/internal/try"
	"github.com/z5labs/strata/notify"
	"github.com/z5labs/strata/pkg/noop"
	"github.com/z5labs/strata/pkg/otelslog"
	"github.com/z5labs/strata/pkg/slogfield"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Name of the backend in a notify.Registry.
const Name = "webhook"

// DefaultPriority is used by Factory unless Priority is given.
const DefaultPriority = 100

type options struct {
	logHandler slog.Handler
	client     *http.Client
	url        string
	header     http.Header
	priority   int
}

// Option configures the webhook backend.
type Option func(*options)

// LogHandler configures the underlying slog.Handler.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// Client replaces the default http.Client.
func Client(c *http.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// URL events are POSTed to.
func URL(u string) Option {
	return func(o *options) {
		o.url = u
	}
}

// Header adds a header to every request, e.g. for authorization.
func Header(key, value string) Option {
	return func(o *options) {
		o.header.Add(key, value)
	}
}

// Priority of the Factory.
func Priority(n int) Option {
	return func(o *options) {
		o.priority = n
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		logHandler: noop.LogHandler{},
		header:     make(http.Header),
		priority:   DefaultPriority,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		o.client = httpclient.New(
			httpclient.Name(Name),
			httpclient.LogHandler(o.logHandler),
			httpclient.Timeout(10*time.Second),
			httpclient.Retry(3, 100*time.Millisecond, 2*time.Second),
			httpclient.TripAfter(5),
			httpclient.OpenStateTimeout(30*time.Second),
		)
	}
	return o
}

// Factory returns a notify.Factory which is supported once a URL is configured.
func Factory(opts ...Option) notify.Factory {
	o := newOptions(opts)
	return notify.Factory{
		Name:     Name,
		Priority: o.priority,
		IsSupported: func(context.Context) bool {
			return o.url != ""
		},
		New: func(_ context.Context, appID string) (notify.Backend, error) {
			return newBackend(appID, o), nil
		},
	}
}

// Backend implements notify.Backend.
type Backend struct {
	log    *slog.Logger
	client *http.Client
	url    string
	header http.Header
	appID  string
}

// New returns a Backend publishing events of the application appID.
func New(appID string, opts ...Option) *Backend {
	return newBackend(appID, newOptions(opts))
}

func newBackend(appID string, o *options) *Backend {
	return &Backend{
		log:    otelslog.New(o.logHandler).With(slogfield.AppID(appID)),
		client: o.client,
		url:    o.url,
		header: o.header.Clone(),
		appID:  appID,
	}
}

// StatusError is returned when the webhook responds with a non 2xx status code.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e StatusError) Error() string {
	return fmt.Sprintf("webhook responded with status %d: %s", e.StatusCode, e.Body)
}

// Send implements the notify.Backend interface.
func (b *Backend) Send(ctx context.Context, id string, n *notify.Notification) error {
	return b.post(ctx, notify.NewSendEvent(b.appID, id, n))
}

// Withdraw implements the notify.Backend interface.
func (b *Backend) Withdraw(ctx context.Context, id string) error {
	return b.post(ctx, notify.NewWithdrawEvent(b.appID, id))
}

func (b *Backend) post(ctx context.Context, ev notify.Event) (err error) {
	spanCtx, span := otel.Tracer("webhook").Start(ctx, "Backend.post", trace.WithAttributes(
		attribute.String("notification.event", string(ev.Kind)),
		attribute.String("notification.id", ev.ID),
	))
	defer span.End()

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(spanCtx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for key, values := range b.header {
		req.Header[key] = values
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		b.log.ErrorContext(spanCtx, "failed to post notification event", slogfield.Error(err))
		return err
	}
	defer try.Close(&err, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return StatusError{
		StatusCode: resp.StatusCode,
		Body:       string(msg),
	}
}
