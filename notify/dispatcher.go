// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/z5labs/strata/pkg/slogfield"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Dispatcher is a selected Backend. Delivery is best effort: the
// first failure is logged and every failure is dropped.
type Dispatcher struct {
	name    string
	backend Backend
	log     *slog.Logger

	mu     sync.Mutex
	failed sync.Once
}

func newDispatcher(name string, b Backend, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		name:    name,
		backend: b,
		log:     log.With(slogfield.Backend(name)),
	}
}

// Name of the factory the backend was constructed by.
func (d *Dispatcher) Name() string {
	return d.name
}

// Backend returns the underlying backend.
func (d *Dispatcher) Backend() Backend {
	return d.backend
}

// Send delivers n under id, replacing any notification with the same id.
func (d *Dispatcher) Send(ctx context.Context, id string, n *Notification) {
	ctx, span := otel.Tracer("notify").Start(ctx, "Dispatcher.Send", trace.WithAttributes(
		attribute.String("notification.backend", d.name),
		attribute.String("notification.id", id),
	))
	defer span.End()

	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.backend.Send(ctx, id, n)
	d.handleError(ctx, span, "failed to send notification", err)
}

// Withdraw removes the notification sent under id.
func (d *Dispatcher) Withdraw(ctx context.Context, id string) {
	ctx, span := otel.Tracer("notify").Start(ctx, "Dispatcher.Withdraw", trace.WithAttributes(
		attribute.String("notification.backend", d.name),
		attribute.String("notification.id", id),
	))
	defer span.End()

	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.backend.Withdraw(ctx, id)
	d.handleError(ctx, span, "failed to withdraw notification", err)
}

func (d *Dispatcher) handleError(ctx context.Context, span trace.Span, msg string, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)

	d.failed.Do(func() {
		d.log.ErrorContext(ctx, msg, slogfield.Error(err))
	})
}

type logBackend struct {
	log *slog.Logger
}

func (b *logBackend) Send(ctx context.Context, id string, n *Notification) error {
	b.log.InfoContext(
		ctx,
		"notification",
		slogfield.String("notification_id", id),
		slogfield.String("title", n.Title),
		slogfield.String("body", n.Body),
		slogfield.String("priority", n.Priority.String()),
	)
	return nil
}

func (b *logBackend) Withdraw(ctx context.Context, id string) error {
	b.log.InfoContext(ctx, "notification withdrawn", slogfield.String("notification_id", id))
	return nil
}
