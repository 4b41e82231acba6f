// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package action

import (
	"github.com/z5labs/strata/object"
	"github.com/z5labs/strata/pkg/slogfield"
	"github.com/z5labs/strata/signal"
	"github.com/z5labs/strata/value"
	"github.com/z5labs/strata/variant"
)

// TypeProperty is the instance type of [PropertyAction].
var TypeProperty = value.Register(value.Object, "PropertyAction", nil)

func init() {
	value.AddInterface(TypeProperty, TypeAction)
}

// Properties is implemented by objects exposing named properties.
// Property returns an initialised value owned by the caller.
type Properties interface {
	value.Instance

	Property(name string) (value.Value, bool)
	SetProperty(name string, v *value.Value) bool
}

// PropertyAction is a stateful [Action] reflecting a property of an
// object. Its state is the property value. Activating the action
// toggles boolean properties and sets every other property to the
// parameter. The owner must notify about changes of the property for
// the state of the action to be observable.
type PropertyAction struct {
	object.Object

	name      string
	owner     Properties
	property  string
	valueType value.Type
	stateType variant.Type
	invert    bool
	notifyID  signal.HandlerID
}

// PropertyActionOption configures a [PropertyAction].
type PropertyActionOption func(*PropertyAction)

// InvertBoolean makes the state of an action bound to a boolean property
// the negation of the property.
func InvertBoolean() PropertyActionOption {
	return func(pa *PropertyAction) {
		pa.invert = true
	}
}

// NewPropertyAction returns an action named name bound to property of
// owner. Nil is returned if the property does not exist or has a type
// which can not be represented as a variant.
func NewPropertyAction(name string, owner Properties, property string, opts ...PropertyActionOption) *PropertyAction {
	if !NameIsValid(name) {
		logger().Error("invalid action name", slogfield.Action(name))
		return nil
	}
	v, ok := owner.Property(property)
	if !ok {
		logger().Error(
			"property action bound to unknown property",
			slogfield.Action(name),
			slogfield.Type(owner.InstanceType().Name()),
			slogfield.String("property", property),
		)
		return nil
	}
	defer v.Unset()

	stateType, ok := variantTypeOf(v.Type())
	if !ok {
		logger().Error(
			"property action can not represent property type",
			slogfield.Action(name),
			slogfield.String("property", property),
			slogfield.Type(v.Type().Name()),
		)
		return nil
	}

	pa := &PropertyAction{
		name:      name,
		owner:     owner,
		property:  property,
		valueType: v.Type(),
		stateType: stateType,
	}
	for _, opt := range opts {
		opt(pa)
	}
	pa.Init(TypeProperty, pa)

	if rc, ok := owner.(value.RefCounted); ok {
		rc.Ref()
	}
	if owner.InstanceType().IsA(value.Object) {
		pa.notifyID = object.ConnectNotify(owner, property, func(value.Instance, string) {
			pa.Notify("state")
		})
	}
	pa.OnDispose(pa.release)
	return pa
}

func (pa *PropertyAction) release() {
	if pa.notifyID != 0 {
		signal.Disconnect(pa.owner, pa.notifyID)
	}
	if rc, ok := pa.owner.(value.RefCounted); ok {
		rc.Unref()
	}
}

// Name implements the [Action] interface.
func (pa *PropertyAction) Name() string {
	return pa.name
}

// ParameterType implements the [Action] interface. Actions bound to
// boolean properties take no parameter.
func (pa *PropertyAction) ParameterType() variant.Type {
	if pa.stateType == variant.TypeBoolean {
		return variant.Type{}
	}
	return pa.stateType
}

// StateType implements the [Action] interface.
func (pa *PropertyAction) StateType() variant.Type {
	return pa.stateType
}

// StateHint implements the [Action] interface.
func (pa *PropertyAction) StateHint() variant.Variant {
	return variant.Variant{}
}

// Enabled implements the [Action] interface. A property action is
// always enabled.
func (pa *PropertyAction) Enabled() bool {
	return true
}

// State implements the [Action] interface.
func (pa *PropertyAction) State() variant.Variant {
	v, ok := pa.owner.Property(pa.property)
	if !ok {
		return variant.Variant{}
	}
	defer v.Unset()

	state, _ := variantOf(&v, pa.stateType)
	if pa.invert && state.IsOfType(variant.TypeBoolean) {
		state = variant.NewBool(!state.Bool())
	}
	return state
}

// ChangeState implements the [Action] interface.
func (pa *PropertyAction) ChangeState(v variant.Variant) {
	if !v.IsOfType(pa.stateType) {
		logger().Error(
			"requested state has incompatible type",
			slogfield.Action(pa.name),
			slogfield.String("state_type", pa.stateType.String()),
			slogfield.String("value_type", v.Type().String()),
		)
		return
	}
	pa.set(v)
}

// Activate implements the [Action] interface.
func (pa *PropertyAction) Activate(parameter variant.Variant) {
	if !parameterMatches(pa.ParameterType(), parameter) {
		logger().Error(
			"parameter has incompatible type",
			slogfield.Action(pa.name),
			slogfield.String("parameter_type", pa.ParameterType().String()),
			slogfield.String("value_type", parameter.Type().String()),
		)
		return
	}
	if pa.stateType == variant.TypeBoolean {
		pa.set(variant.NewBool(!pa.State().Bool()))
		return
	}
	pa.set(parameter)
}

func (pa *PropertyAction) set(state variant.Variant) {
	if pa.invert && state.IsOfType(variant.TypeBoolean) {
		state = variant.NewBool(!state.Bool())
	}

	var v value.Value
	v.Init(pa.valueType)
	defer v.Unset()

	if !setFromVariant(&v, state) || !pa.owner.SetProperty(pa.property, &v) {
		logger().Error(
			"can not set property",
			slogfield.Action(pa.name),
			slogfield.String("property", pa.property),
		)
	}
}

func variantTypeOf(t value.Type) (variant.Type, bool) {
	switch t.Fundamental() {
	case value.Boolean:
		return variant.TypeBoolean, true
	case value.Int:
		return variant.TypeInt32, true
	case value.Uint:
		return variant.TypeUint32, true
	case value.Int64:
		return variant.TypeInt64, true
	case value.Uint64:
		return variant.TypeUint64, true
	case value.Float, value.Double:
		return variant.TypeDouble, true
	case value.String:
		return variant.TypeString, true
	case value.VariantType:
		return variant.TypeVariant, true
	}
	return variant.Type{}, false
}

func variantOf(v *value.Value, t variant.Type) (variant.Variant, bool) {
	switch v.Type().Fundamental() {
	case value.Boolean:
		return variant.NewBool(v.Bool()), true
	case value.Int:
		return variant.NewInt32(int32(v.Int())), true
	case value.Uint:
		return variant.NewUint32(uint32(v.Uint())), true
	case value.Int64:
		return variant.NewInt64(v.Int64()), true
	case value.Uint64:
		return variant.NewUint64(v.Uint64()), true
	case value.Float:
		return variant.NewDouble(float64(v.Float())), true
	case value.Double:
		return variant.NewDouble(v.Double()), true
	case value.String:
		return variant.NewString(v.String()), true
	case value.VariantType:
		if t == variant.TypeVariant {
			return variant.NewVariant(v.Variant()), true
		}
		return v.Variant(), true
	}
	return variant.Variant{}, false
}

func setFromVariant(v *value.Value, state variant.Variant) bool {
	switch v.Type().Fundamental() {
	case value.Boolean:
		v.SetBool(state.Bool())
	case value.Int:
		v.SetInt(int(state.Int32()))
	case value.Uint:
		v.SetUint(uint(state.Uint32()))
	case value.Int64:
		v.SetInt64(state.Int64())
	case value.Uint64:
		v.SetUint64(state.Uint64())
	case value.Float:
		v.SetFloat(float32(state.Double()))
	case value.Double:
		v.SetDouble(state.Double())
	case value.String:
		v.SetString(state.Str())
	case value.VariantType:
		v.SetVariant(state.Unbox())
	default:
		return false
	}
	return true
}
