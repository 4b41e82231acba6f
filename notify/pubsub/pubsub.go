// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package pubsub provides a notification backend which publishes
// notification events to a Google Cloud PubSub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/z5labs/strata/notify"
	"github.com/z5labs/strata/pkg/noop"
	"github.com/z5labs/strata/pkg/otelslog"
	"github.com/z5labs/strata/pkg/slogfield"

	pubsub "cloud.google.com/go/pubsub/apiv1"
	pubsubpb "cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Name of the backend in a notify.Registry.
const Name = "pubsub"

// DefaultPriority is used by Factory unless Priority is given.
const DefaultPriority = 50

type pubsubPublishClient interface {
	Publish(context.Context, *pubsubpb.PublishRequest, ...gax.CallOption) (*pubsubpb.PublishResponse, error)
}

type options struct {
	logHandler slog.Handler
	pubsub     pubsubPublishClient
	topic      string
	ordered    bool
	priority   int
}

// Option configures the PubSub backend.
type Option func(*options)

// LogHandler configures the underlying slog.Handler.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// Client configures the underlying PubSub client.
func Client(c *pubsub.PublisherClient) Option {
	return func(o *options) {
		o.pubsub = c
	}
}

// Topic configures the full topic name,
// e.g. "projects/my-project/topics/notifications".
func Topic(name string) Option {
	return func(o *options) {
		o.topic = name
	}
}

// Ordered sets an ordering key per notification. The topic
// subscription must have message ordering enabled.
func Ordered() Option {
	return func(o *options) {
		o.ordered = true
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
		priority:   DefaultPriority,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Factory returns a notify.Factory which is supported once a client
// and topic are configured.
func Factory(opts ...Option) notify.Factory {
	o := newOptions(opts)
	return notify.Factory{
		Name:     Name,
		Priority: o.priority,
		IsSupported: func(context.Context) bool {
			return o.pubsub != nil && o.topic != ""
		},
		New: func(_ context.Context, appID string) (notify.Backend, error) {
			return newBackend(appID, o), nil
		},
	}
}

// Backend implements notify.Backend.
type Backend struct {
	log     *slog.Logger
	pubsub  pubsubPublishClient
	topic   string
	ordered bool
	appID   string
}

// New returns a Backend publishing events of the application appID.
func New(appID string, opts ...Option) *Backend {
	return newBackend(appID, newOptions(opts))
}

func newBackend(appID string, o *options) *Backend {
	return &Backend{
		log:     otelslog.New(o.logHandler).With(slogfield.AppID(appID)),
		pubsub:  o.pubsub,
		topic:   o.topic,
		ordered: o.ordered,
		appID:   appID,
	}
}

// Send implements the notify.Backend interface.
func (b *Backend) Send(ctx context.Context, id string, n *notify.Notification) error {
	return b.publish(ctx, notify.NewSendEvent(b.appID, id, n))
}

// Withdraw implements the notify.Backend interface.
func (b *Backend) Withdraw(ctx context.Context, id string) error {
	return b.publish(ctx, notify.NewWithdrawEvent(b.appID, id))
}

func (b *Backend) publish(ctx context.Context, ev notify.Event) error {
	spanCtx, span := otel.Tracer("pubsub").Start(ctx, "Backend.publish", trace.WithAttributes(
		attribute.String("notification.event", string(ev.Kind)),
		attribute.String("notification.id", ev.ID),
	))
	defer span.End()

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	msg := &pubsubpb.PubsubMessage{
		Data: data,
		Attributes: map[string]string{
			"kind":   string(ev.Kind),
			"app_id": ev.AppID,
		},
	}
	if b.ordered {
		msg.OrderingKey = ev.Key()
	}

	resp, err := b.pubsub.Publish(spanCtx, &pubsubpb.PublishRequest{
		Topic:    b.topic,
		Messages: []*pubsubpb.PubsubMessage{msg},
	})
	if err != nil {
		b.log.ErrorContext(spanCtx, "failed to publish message", slogfield.Error(err))
		return err
	}
	b.log.DebugContext(
		spanCtx,
		"published notification event",
		slogfield.Strings("pubsub_message_ids", resp.GetMessageIds()),
		slogfield.String("notification_id", ev.ID),
	)
	return nil
}
