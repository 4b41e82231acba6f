// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package sqs provides a notification backend which publishes
// notification events to an AWS SQS queue.
package sqs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/z5labs/strata/notify"
	"github.com/z5labs/strata/pkg/noop"
	"github.com/z5labs/strata/pkg/otelslog"
	"github.com/z5labs/strata/pkg/slogfield"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Name of the backend in a notify.Registry.
const Name = "sqs"

// DefaultPriority is used by Factory unless Priority is given.
const DefaultPriority = 50

type sqsSendClient interface {
	SendMessage(context.Context, *sqs.SendMessageInput, ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type options struct {
	logHandler slog.Handler
	sqs        sqsSendClient
	queueUrl   string
	fifo       bool
	priority   int
}

// Option configures the SQS backend.
type Option func(*options)

// LogHandler configures the underlying slog.Handler.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// Client configures the underlying SQS client.
func Client(c *sqs.Client) Option {
	return func(o *options) {
		o.sqs = c
	}
}

// QueueUrl configures the SQS queue url.
func QueueUrl(url string) Option {
	return func(o *options) {
		o.queueUrl = url
	}
}

// Fifo must be set for FIFO queues. Events of one notification are
// then delivered in order.
func Fifo() Option {
	return func(o *options) {
		o.fifo = true
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
// and queue url are configured.
func Factory(opts ...Option) notify.Factory {
	o := newOptions(opts)
	return notify.Factory{
		Name:     Name,
		Priority: o.priority,
		IsSupported: func(context.Context) bool {
			return o.sqs != nil && o.queueUrl != ""
		},
		New: func(_ context.Context, appID string) (notify.Backend, error) {
			return newBackend(appID, o), nil
		},
	}
}

// Backend implements notify.Backend.
type Backend struct {
	log      *slog.Logger
	sqs      sqsSendClient
	queueUrl string
	fifo     bool
	appID    string
}

// New returns a Backend publishing events of the application appID.
func New(appID string, opts ...Option) *Backend {
	return newBackend(appID, newOptions(opts))
}

func newBackend(appID string, o *options) *Backend {
	return &Backend{
		log:      otelslog.New(o.logHandler).With(slogfield.AppID(appID)),
		sqs:      o.sqs,
		queueUrl: o.queueUrl,
		fifo:     o.fifo,
		appID:    appID,
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
	spanCtx, span := otel.Tracer("sqs").Start(ctx, "Backend.publish", trace.WithAttributes(
		attribute.String("notification.event", string(ev.Kind)),
		attribute.String("notification.id", ev.ID),
	))
	defer span.End()

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    &b.queueUrl,
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(ev.Kind)),
			},
			"app_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(ev.AppID),
			},
		},
	}
	if b.fifo {
		in.MessageGroupId = aws.String(ev.Key())
		in.MessageDeduplicationId = aws.String(uuid.NewString())
	}

	resp, err := b.sqs.SendMessage(spanCtx, in)
	if err != nil {
		b.log.ErrorContext(spanCtx, "failed to send message", slogfield.Error(err))
		return err
	}
	b.log.DebugContext(
		spanCtx,
		"published notification event",
		slogfield.String("sqs_message_id", aws.ToString(resp.MessageId)),
		slogfield.String("notification_id", ev.ID),
	)
	return nil
}
