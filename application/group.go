// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package application

import (
	"github.com/z5labs/strata/action"
	"github.com/z5labs/strata/signal"
	"github.com/z5labs/strata/value"
	"github.com/z5labs/strata/variant"
)

// forwardGroupSignals re-emits the change signals of the exported
// group on the application.
func (a *Application) forwardGroupSignals() {
	signal.Connect(a.exported, "action-added", func(_ value.Instance, name string) {
		a.ActionAdded(name)
	})
	signal.Connect(a.exported, "action-removed", func(_ value.Instance, name string) {
		a.ActionRemoved(name)
	})
	signal.Connect(a.exported, "action-enabled-changed", func(_ value.Instance, name string, enabled bool) {
		a.ActionEnabledChanged(name, enabled)
	})
	signal.Connect(a.exported, "action-state-changed", func(_ value.Instance, name string, state variant.Variant) {
		a.ActionStateChanged(name, state)
	})
}

// group returns the group the action.Group methods operate on, or nil
// if the application is not registered.
func (a *Application) group() action.Group {
	switch {
	case !a.registered:
		a.log.Error("application must be registered before using its actions")
		return nil
	case a.remoteActions != nil:
		return a.remoteActions
	default:
		return a.exported
	}
}

// ListActions implements the action.Group interface. A remote instance
// lists the actions of the primary instance.
func (a *Application) ListActions() []string {
	g := a.group()
	if g == nil {
		return nil
	}
	return g.ListActions()
}

// QueryAction implements the action.Group interface.
func (a *Application) QueryAction(name string) (action.Info, bool) {
	g := a.group()
	if g == nil {
		return action.Info{}, false
	}
	return g.QueryAction(name)
}

// ActivateAction implements the action.Group interface. A remote
// instance activates the action of the primary instance and sends its
// platform data along.
func (a *Application) ActivateAction(name string, parameter variant.Variant) {
	if a.group() == nil {
		return
	}
	if a.remoteActions != nil {
		a.remoteActions.ActivateActionFull(name, parameter, a.PlatformData())
		return
	}
	a.exported.ActivateAction(name, parameter)
}

// ChangeActionState implements the action.Group interface.
func (a *Application) ChangeActionState(name string, v variant.Variant) {
	if a.group() == nil {
		return
	}
	if a.remoteActions != nil {
		a.remoteActions.ChangeActionStateFull(name, v, a.PlatformData())
		return
	}
	a.exported.ChangeActionState(name, v)
}

// LookupAction implements the action.Map interface. It only sees the
// actions added to this instance.
func (a *Application) LookupAction(name string) action.Action {
	return a.exported.LookupAction(name)
}

// AddAction implements the action.Map interface. The action is
// exported to remote instances once the application is the primary
// instance.
func (a *Application) AddAction(act action.Action) {
	a.exported.AddAction(act)
}

// RemoveAction implements the action.Map interface.
func (a *Application) RemoveAction(name string) {
	a.exported.RemoveAction(name)
}
