// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package action provides named, optionally stateful units which can be
// activated, the groups they are queried through and the maps they are
// stored in.
//
// Variants are immutable values, so actions keep the variants passed to
// them without copying.
package action

import (
	"sync"

	"github.com/z5labs/strata/object"
	"github.com/z5labs/strata/pkg/slogfield"
	"github.com/z5labs/strata/signal"
	"github.com/z5labs/strata/value"
	"github.com/z5labs/strata/variant"
)

// Interface types implemented by actions and action containers.
var (
	TypeAction      = value.RegisterInterface("Action")
	TypeGroup       = value.RegisterInterface("ActionGroup")
	TypeMap         = value.RegisterInterface("ActionMap")
	TypeRemoteGroup = value.RegisterInterface("RemoteActionGroup")
)

// TypeSimple is the instance type of [Simple].
var TypeSimple = value.Register(value.Object, "SimpleAction", nil)

// Signals of [Simple]. Connecting a handler replaces the default
// behaviour of [Simple.Activate] and [Simple.ChangeState] respectively.
var (
	ActivateSignal = signal.New(
		"activate",
		TypeSimple,
		signal.RunLast|signal.MustCollect,
		value.None,
		[]value.Type{value.VariantType},
	)
	ChangeStateSignal = signal.New(
		"change-state",
		TypeSimple,
		signal.RunLast|signal.MustCollect,
		value.None,
		[]value.Type{value.VariantType},
	)
)

func init() {
	value.AddInterface(TypeSimple, TypeAction)
}

// Action is a named unit which can be activated with an optional
// parameter and may carry a state.
//
// A zero [variant.Type] stands for "no parameter" or "no state" and a
// zero [variant.Variant] for a missing parameter, state or hint.
// Implementations which embed [object.Object] notify about changes of
// the "enabled" and "state" properties, which is how groups learn
// about them.
type Action interface {
	value.Instance

	Name() string
	ParameterType() variant.Type
	StateType() variant.Type
	StateHint() variant.Variant
	State() variant.Variant
	Enabled() bool

	// ChangeState requests the state to be changed to v.
	ChangeState(v variant.Variant)

	// Activate activates the action with parameter.
	Activate(parameter variant.Variant)
}

// Simple is the standard [Action] implementation.
type Simple struct {
	object.Object

	name      string
	paramType variant.Type

	mu        sync.Mutex
	enabled   bool
	state     variant.Variant
	stateHint variant.Variant
}

// NewSimple returns a stateless action. paramType is the zero
// [variant.Type] if the action takes no parameter.
//
// Nil is returned if name is not a valid action name.
func NewSimple(name string, paramType variant.Type) *Simple {
	return newSimple(name, paramType, variant.Variant{})
}

// NewSimpleStateful returns an action whose state type is the type of
// state.
func NewSimpleStateful(name string, paramType variant.Type, state variant.Variant) *Simple {
	if !state.IsValid() {
		logger().Error("stateful action requires an initial state", slogfield.Action(name))
		return nil
	}
	return newSimple(name, paramType, state)
}

func newSimple(name string, paramType variant.Type, state variant.Variant) *Simple {
	if !NameIsValid(name) {
		logger().Error("invalid action name", slogfield.Action(name))
		return nil
	}
	if !paramType.IsZero() && !paramType.IsDefinite() {
		logger().Error(
			"parameter type of action must be definite",
			slogfield.Action(name),
			slogfield.String("parameter_type", paramType.String()),
		)
		return nil
	}
	a := &Simple{
		name:      name,
		paramType: paramType,
		enabled:   true,
		state:     state,
	}
	a.Init(TypeSimple, a)
	return a
}

// Name implements the [Action] interface.
func (a *Simple) Name() string {
	return a.name
}

// ParameterType implements the [Action] interface.
func (a *Simple) ParameterType() variant.Type {
	return a.paramType
}

// StateType implements the [Action] interface.
func (a *Simple) StateType() variant.Type {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.state.IsValid() {
		return variant.Type{}
	}
	return a.state.Type()
}

// StateHint implements the [Action] interface.
func (a *Simple) StateHint() variant.Variant {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.stateHint
}

// State implements the [Action] interface.
func (a *Simple) State() variant.Variant {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.state
}

// Enabled implements the [Action] interface.
func (a *Simple) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.enabled
}

// SetEnabled enables or disables the action. Disabled actions ignore
// activation and state change requests.
func (a *Simple) SetEnabled(enabled bool) {
	a.mu.Lock()
	if a.enabled == enabled {
		a.mu.Unlock()
		return
	}
	a.enabled = enabled
	a.mu.Unlock()

	a.Notify("enabled")
}

// SetState sets the state of the action directly. It is meant for the
// implementor of the action, e.g. a change-state handler. Users should
// request changes with [Simple.ChangeState] instead.
func (a *Simple) SetState(v variant.Variant) {
	a.mu.Lock()
	if !a.state.IsValid() {
		a.mu.Unlock()
		logger().Error("can not set state of stateless action", slogfield.Action(a.name))
		return
	}
	if !v.IsOfType(a.state.Type()) {
		a.mu.Unlock()
		logger().Error(
			"state has incompatible type",
			slogfield.Action(a.name),
			slogfield.String("state_type", a.state.Type().String()),
			slogfield.String("value_type", v.Type().String()),
		)
		return
	}
	if a.state.Equal(v) {
		a.mu.Unlock()
		return
	}
	a.state = v
	a.mu.Unlock()

	a.Notify("state")
}

// SetStateHint sets the hint describing the valid states of the action.
func (a *Simple) SetStateHint(hint variant.Variant) {
	a.mu.Lock()
	a.stateHint = hint
	a.mu.Unlock()

	a.Notify("state-hint")
}

// ChangeState implements the [Action] interface. If a handler is
// connected to [ChangeStateSignal] it is emitted, otherwise the state
// is set to v.
func (a *Simple) ChangeState(v variant.Variant) {
	stateType := a.StateType()
	if stateType.IsZero() {
		logger().Error("can not change state of stateless action", slogfield.Action(a.name))
		return
	}
	if !v.IsOfType(stateType) {
		logger().Error(
			"requested state has incompatible type",
			slogfield.Action(a.name),
			slogfield.String("state_type", stateType.String()),
			slogfield.String("value_type", v.Type().String()),
		)
		return
	}
	if !a.Enabled() {
		return
	}

	if signal.HasHandlerPending(a, ChangeStateSignal, 0, true) {
		signal.Emit(a, ChangeStateSignal, 0, v)
		return
	}
	a.SetState(v)
}

// Activate implements the [Action] interface. If a handler is connected
// to [ActivateSignal] it is emitted. Otherwise a boolean state is
// toggled when no parameter is given, and a parameter of the state type
// is requested as the new state.
func (a *Simple) Activate(parameter variant.Variant) {
	if !parameterMatches(a.paramType, parameter) {
		logger().Error(
			"parameter has incompatible type",
			slogfield.Action(a.name),
			slogfield.String("parameter_type", a.paramType.String()),
			slogfield.String("value_type", parameter.Type().String()),
		)
		return
	}
	if !a.Enabled() {
		return
	}

	if signal.HasHandlerPending(a, ActivateSignal, 0, true) {
		signal.Emit(a, ActivateSignal, 0, parameter)
		return
	}

	state := a.State()
	switch {
	case !state.IsValid():
	case !parameter.IsValid() && state.IsOfType(variant.TypeBoolean):
		a.ChangeState(variant.NewBool(!state.Bool()))
	case parameter.IsValid() && parameter.IsOfType(state.Type()):
		a.ChangeState(parameter)
	}
}

// OnActivate connects fn to [ActivateSignal] of a.
func (a *Simple) OnActivate(fn func(a *Simple, parameter variant.Variant)) signal.HandlerID {
	return signal.Connect(a, "activate", func(inst value.Instance, parameter variant.Variant) {
		fn(inst.(*Simple), parameter)
	})
}

// OnChangeState connects fn to [ChangeStateSignal] of a.
func (a *Simple) OnChangeState(fn func(a *Simple, v variant.Variant)) signal.HandlerID {
	return signal.Connect(a, "change-state", func(inst value.Instance, v variant.Variant) {
		fn(inst.(*Simple), v)
	})
}

func parameterMatches(paramType variant.Type, parameter variant.Variant) bool {
	if paramType.IsZero() {
		return !parameter.IsValid()
	}
	return parameter.IsOfType(paramType)
}
