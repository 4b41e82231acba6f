// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package action

import (
	"github.com/z5labs/strata/object"
	"github.com/z5labs/strata/pkg/slogfield"
	"github.com/z5labs/strata/quark"
	"github.com/z5labs/strata/signal"
	"github.com/z5labs/strata/value"
	"github.com/z5labs/strata/variant"
)

// Signals of [Group]. Each is emitted with the action name as detail,
// so "action-added::quit" only observes the addition of "quit".
var (
	ActionAddedSignal = signal.New(
		"action-added",
		TypeGroup,
		signal.RunLast|signal.Detailed,
		value.None,
		[]value.Type{value.String},
	)
	ActionRemovedSignal = signal.New(
		"action-removed",
		TypeGroup,
		signal.RunLast|signal.Detailed,
		value.None,
		[]value.Type{value.String},
	)
	ActionEnabledChangedSignal = signal.New(
		"action-enabled-changed",
		TypeGroup,
		signal.RunLast|signal.Detailed,
		value.None,
		[]value.Type{value.String, value.Boolean},
	)
	ActionStateChangedSignal = signal.New(
		"action-state-changed",
		TypeGroup,
		signal.RunLast|signal.Detailed|signal.MustCollect,
		value.None,
		[]value.Type{value.String, value.VariantType},
	)
)

// Info describes an action of a [Group].
type Info struct {
	Enabled       bool
	ParameterType variant.Type
	StateType     variant.Type
	StateHint     variant.Variant
	State         variant.Variant
}

// Group is a queryable set of actions.
type Group interface {
	value.Instance

	ListActions() []string
	HasAction(name string) bool
	ActionEnabled(name string) bool
	ActionParameterType(name string) variant.Type
	ActionStateType(name string) variant.Type
	ActionStateHint(name string) variant.Variant
	ActionState(name string) variant.Variant

	// QueryAction returns everything known about the named action in a
	// single call. The second result is false if there is no such action.
	QueryAction(name string) (Info, bool)

	ActivateAction(name string, parameter variant.Variant)
	ChangeActionState(name string, v variant.Variant)
}

// GroupBase is embedded by [Group] implementations. It provides the
// signal emitters and default implementations of the query methods.
//
// The default QueryAction is built on HasAction and the per-field
// getters, while the default getters are built on QueryAction, so an
// implementation must override either QueryAction or all of the
// getters. A group overriding neither is diagnosed instead of
// recursing forever.
type GroupBase struct {
	object.Object

	impl     Group
	querying bool
}

// Init initialises b as an instance of t. impl is the group embedding
// b, whose methods the default implementations dispatch to.
func (b *GroupBase) Init(t value.Type, impl Group) {
	b.Object.Init(t, impl)
	b.impl = impl
}

// HasAction implements the [Group] interface.
func (b *GroupBase) HasAction(name string) bool {
	_, ok := b.impl.QueryAction(name)
	return ok
}

// ActionEnabled implements the [Group] interface.
func (b *GroupBase) ActionEnabled(name string) bool {
	info, _ := b.impl.QueryAction(name)
	return info.Enabled
}

// ActionParameterType implements the [Group] interface.
func (b *GroupBase) ActionParameterType(name string) variant.Type {
	info, _ := b.impl.QueryAction(name)
	return info.ParameterType
}

// ActionStateType implements the [Group] interface.
func (b *GroupBase) ActionStateType(name string) variant.Type {
	info, _ := b.impl.QueryAction(name)
	return info.StateType
}

// ActionStateHint implements the [Group] interface.
func (b *GroupBase) ActionStateHint(name string) variant.Variant {
	info, _ := b.impl.QueryAction(name)
	return info.StateHint
}

// ActionState implements the [Group] interface.
func (b *GroupBase) ActionState(name string) variant.Variant {
	info, _ := b.impl.QueryAction(name)
	return info.State
}

// QueryAction implements the [Group] interface.
func (b *GroupBase) QueryAction(name string) (Info, bool) {
	if b.querying {
		logger().Error(
			"group implements neither QueryAction nor the action getters",
			slogfield.Type(b.InstanceType().Name()),
			slogfield.Action(name),
		)
		return Info{}, false
	}
	b.querying = true
	defer func() { b.querying = false }()

	if !b.impl.HasAction(name) {
		return Info{}, false
	}
	return Info{
		Enabled:       b.impl.ActionEnabled(name),
		ParameterType: b.impl.ActionParameterType(name),
		StateType:     b.impl.ActionStateType(name),
		StateHint:     b.impl.ActionStateHint(name),
		State:         b.impl.ActionState(name),
	}, true
}

// ActionAdded emits [ActionAddedSignal]. It is called by implementations
// after an action has been added.
func (b *GroupBase) ActionAdded(name string) {
	signal.Emit(b.impl, ActionAddedSignal, quark.FromString(name), name)
}

// ActionRemoved emits [ActionRemovedSignal]. It is called by
// implementations before an action is removed.
func (b *GroupBase) ActionRemoved(name string) {
	signal.Emit(b.impl, ActionRemovedSignal, quark.FromString(name), name)
}

// ActionEnabledChanged emits [ActionEnabledChangedSignal].
func (b *GroupBase) ActionEnabledChanged(name string, enabled bool) {
	signal.Emit(b.impl, ActionEnabledChangedSignal, quark.FromString(name), name, enabled)
}

// ActionStateChanged emits [ActionStateChangedSignal].
func (b *GroupBase) ActionStateChanged(name string, state variant.Variant) {
	signal.Emit(b.impl, ActionStateChangedSignal, quark.FromString(name), name, state)
}

// ActivateDetailed parses detailedName with [ParseDetailedName] and
// activates the named action of g with the target as parameter.
func ActivateDetailed(g Group, detailedName string) error {
	name, target, err := ParseDetailedName(detailedName)
	if err != nil {
		return err
	}
	g.ActivateAction(name, target)
	return nil
}
