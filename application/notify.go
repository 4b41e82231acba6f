// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package application

import (
	"context"

	"github.com/z5labs/strata/notify"
	"github.com/z5labs/strata/pkg/slogfield"

	"github.com/google/uuid"
)

// SendNotification sends n under id, replacing a notification sent
// earlier under the same id. An empty id is replaced by a generated
// one. The id is returned so the notification can be withdrawn.
//
// Only a registered primary instance sends notifications. The backend
// is selected from the notification registry on first use.
func (a *Application) SendNotification(ctx context.Context, id string, n *notify.Notification) string {
	switch {
	case n == nil:
		a.log.ErrorContext(ctx, "notification must not be nil", slogfield.AppID(a.id))
		return ""
	case !a.registered:
		a.log.ErrorContext(ctx, "application must be registered before sending notifications", slogfield.AppID(a.id))
		return ""
	case a.IsRemote():
		a.log.ErrorContext(ctx, "remote instance can not send notifications", slogfield.AppID(a.id))
		return ""
	}

	if id == "" {
		id = uuid.NewString()
	}
	a.dispatcher(ctx).Send(ctx, id, n)
	return id
}

// WithdrawNotification withdraws the notification sent under id.
func (a *Application) WithdrawNotification(ctx context.Context, id string) {
	if id == "" {
		a.log.ErrorContext(ctx, "notification id must not be empty", slogfield.AppID(a.id))
		return
	}
	a.dispatcher(ctx).Withdraw(ctx, id)
}

func (a *Application) dispatcher(ctx context.Context) *notify.Dispatcher {
	if a.notifier == nil {
		a.notifier = a.registry.Select(ctx, a.id)
		a.log.DebugContext(ctx, "selected notification backend", slogfield.Backend(a.notifier.Name()))
	}
	return a.notifier
}
