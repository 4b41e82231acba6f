// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package value

import (
	"fmt"
	"math"

	"github.com/z5labs/strata/pkg/slogfield"
	"github.com/z5labs/strata/variant"
)

// Value is a polymorphic cell holding a value of any type with a value
// table. The zero Value is uninitialised; [Value.Init] must be called
// before any other operation and [Value.Unset] releases the contents.
type Value struct {
	typ Type
	num uint64
	ptr any
}

// New returns a Value of type t holding x, collected through the value
// table of t.
func New(t Type, x any) (Value, error) {
	var v Value
	if v.Init(t) == nil {
		return Value{}, UnsupportedTypeError{Type: t}
	}
	tab := t.table()
	if tab.Collect == nil || !tab.Collect(&v, x) {
		v.Unset()
		return Value{}, CollectError{Type: t, Arg: x}
	}
	return v, nil
}

// Of returns a Value for a Go value, picking the fundamental type
// matching the dynamic type of x. Instances are stored with their
// instance type.
func Of(x any) (Value, error) {
	switch x := x.(type) {
	case Value:
		var v Value
		x.Copy(v.Init(x.typ))
		return v, nil
	case bool:
		return New(Boolean, x)
	case int, int8, int16, int32:
		return New(Int, x)
	case uint, uint8, uint16, uint32:
		return New(Uint, x)
	case int64:
		return New(Int64, x)
	case uint64:
		return New(Uint64, x)
	case float32:
		return New(Float, x)
	case float64:
		return New(Double, x)
	case string:
		return New(String, x)
	case variant.Variant:
		return New(VariantType, x)
	case Instance:
		return New(x.InstanceType(), x)
	}
	return New(Pointer, x)
}

// UnsupportedTypeError is returned when a Value is requested for a type
// without a value table.
type UnsupportedTypeError struct {
	Type Type
}

// Error implements the [builtin.error] interface.
func (e UnsupportedTypeError) Error() string {
	return fmt.Sprintf("type does not support values: %s", e.Type)
}

// CollectError is returned when an argument can not be stored in a Value
// of the given type.
type CollectError struct {
	Type Type
	Arg  any
}

// Error implements the [builtin.error] interface.
func (e CollectError) Error() string {
	return fmt.Sprintf("can not collect %T into value of type %s", e.Arg, e.Type)
}

// Init initialises v to the default value of t. It returns v, or nil if
// t has no value table or v is already initialised.
func (v *Value) Init(t Type) *Value {
	tab := t.table()
	if tab == nil {
		logger().Error("can not initialise value of type without value table", slogfield.Type(t.Name()))
		return nil
	}
	if v.typ != Invalid {
		logger().Error(
			"can not initialise value which is already initialised",
			slogfield.Type(t.Name()),
			slogfield.String("current_type", v.typ.Name()),
		)
		return nil
	}
	*v = Value{typ: t}
	if tab.Init != nil {
		tab.Init(v)
	}
	return v
}

// InitFromInstance initialises v with the type of inst and stores inst
// in it, taking a reference if inst is reference counted.
func (v *Value) InitFromInstance(inst Instance) *Value {
	if inst == nil {
		logger().Error("can not initialise value from nil instance")
		return nil
	}
	t := inst.InstanceType()
	if t.Fundamental() != Object {
		if v.Init(t) == nil {
			return nil
		}
		v.SetInstance(inst)
		return v
	}
	if v.typ != Invalid {
		logger().Error("can not initialise value which is already initialised", slogfield.Type(t.Name()))
		return nil
	}
	if rc, ok := inst.(RefCounted); ok {
		rc.Ref()
	}
	*v = Value{typ: t, ptr: inst}
	return v
}

// Type returns the type of v, or [Invalid] if v is uninitialised.
func (v *Value) Type() Type {
	return v.typ
}

// IsInitialized reports whether v has been initialised.
func (v *Value) IsInitialized() bool {
	return v.typ != Invalid
}

// Holds reports whether v holds a value of type t or a descendant.
func (v *Value) Holds(t Type) bool {
	return v.typ != Invalid && v.typ.IsA(t)
}

// Copy copies v into dst. The type of dst must be a supertype of the type
// of v sharing the same value table.
func (v *Value) Copy(dst *Value) {
	if dst == nil {
		return
	}
	if !TypeCompatible(v.typ, dst.typ) {
		logger().Error(
			"can not copy value into incompatible value",
			slogfield.Type(v.typ.Name()),
			slogfield.String("dst_type", dst.typ.Name()),
		)
		return
	}
	if v == dst {
		return
	}
	tab := dst.typ.table()
	if tab.Free != nil {
		tab.Free(dst)
	}
	dst.num = 0
	dst.ptr = nil
	if tab.Copy != nil {
		tab.Copy(v, dst)
	}
}

// Reset frees the contents of v and reinitialises it to the default
// value of its type.
func (v *Value) Reset() *Value {
	if v.typ == Invalid {
		logger().Error("can not reset uninitialised value")
		return nil
	}
	tab := v.typ.table()
	if tab.Free != nil {
		tab.Free(v)
	}
	*v = Value{typ: v.typ}
	if tab.Init != nil {
		tab.Init(v)
	}
	return v
}

// Unset frees the contents of v and leaves it uninitialised. Unsetting an
// uninitialised value does nothing.
func (v *Value) Unset() {
	if v.typ == Invalid {
		return
	}
	tab := v.typ.table()
	if tab != nil && tab.Free != nil {
		tab.Free(v)
	}
	*v = Value{}
}

// FitsPointer reports whether the contents of v can be peeked as a pointer.
func (v *Value) FitsPointer() bool {
	if v.typ == Invalid {
		return false
	}
	return v.typ.table().PeekPointer != nil
}

// PeekPointer returns the pointer like contents of v without copying.
func (v *Value) PeekPointer() any {
	if !v.FitsPointer() {
		logger().Error("value does not fit a pointer", slogfield.Type(v.typ.Name()))
		return nil
	}
	return v.typ.table().PeekPointer(v)
}

// SetInstance stores inst in v. The value table of v must collect a
// single pointer.
func (v *Value) SetInstance(inst Instance) {
	if v.typ == Invalid {
		logger().Error("can not set instance on uninitialised value")
		return
	}
	tab := v.typ.table()
	if tab.CollectFormat != CollectPointer || tab.Collect == nil {
		logger().Error("value type does not collect a single pointer", slogfield.Type(v.typ.Name()))
		return
	}
	if inst != nil && !inst.InstanceType().IsA(v.typ) {
		logger().Error(
			"instance is not compatible with value type",
			slogfield.Type(v.typ.Name()),
			slogfield.String("instance_type", inst.InstanceType().Name()),
		)
		return
	}

	var tmp Value
	tmp.typ = v.typ
	if tab.Init != nil {
		tab.Init(&tmp)
	}
	var x any
	if inst != nil {
		x = inst
	}
	if !tab.Collect(&tmp, x) {
		logger().Error("failed to collect instance", slogfield.Type(v.typ.Name()))
		return
	}
	if tab.Free != nil {
		tab.Free(v)
	}
	*v = tmp
}

// Get returns the contents of v as a Go value.
func (v *Value) Get() any {
	if v.typ == Invalid {
		return nil
	}
	tab := v.typ.table()
	if tab.Get == nil {
		return nil
	}
	return tab.Get(v)
}

// Set replaces the contents of v with x collected through the value
// table of its type. It reports whether x was accepted.
func (v *Value) Set(x any) bool {
	if v.typ == Invalid {
		logger().Error("can not set uninitialised value")
		return false
	}
	tab := v.typ.table()
	if tab.Collect == nil {
		return false
	}
	tmp := Value{typ: v.typ}
	if tab.Init != nil {
		tab.Init(&tmp)
	}
	if !tab.Collect(&tmp, x) {
		return false
	}
	if tab.Free != nil {
		tab.Free(v)
	}
	*v = tmp
	return true
}

func (v *Value) holdsFundamental(f Type) bool {
	if v.typ == Invalid || v.typ.Fundamental() != f {
		logger().Error(
			"value does not hold expected type",
			slogfield.Type(f.Name()),
			slogfield.String("actual_type", v.typ.Name()),
		)
		return false
	}
	return true
}

// Bool returns the contents of a [Boolean] value.
func (v *Value) Bool() bool {
	return v.holdsFundamental(Boolean) && v.num != 0
}

// SetBool sets the contents of a [Boolean] value.
func (v *Value) SetBool(b bool) {
	if v.holdsFundamental(Boolean) {
		v.Set(b)
	}
}

// Int returns the contents of an [Int] value.
func (v *Value) Int() int {
	if !v.holdsFundamental(Int) {
		return 0
	}
	return int(int32(v.num))
}

// SetInt sets the contents of an [Int] value.
func (v *Value) SetInt(n int) {
	if v.holdsFundamental(Int) {
		v.num = uint64(int64(int32(n)))
	}
}

// Uint returns the contents of a [Uint] value.
func (v *Value) Uint() uint {
	if !v.holdsFundamental(Uint) {
		return 0
	}
	return uint(uint32(v.num))
}

// SetUint sets the contents of a [Uint] value.
func (v *Value) SetUint(n uint) {
	if v.holdsFundamental(Uint) {
		v.num = uint64(uint32(n))
	}
}

// Int64 returns the contents of an [Int64] value.
func (v *Value) Int64() int64 {
	if !v.holdsFundamental(Int64) {
		return 0
	}
	return int64(v.num)
}

// SetInt64 sets the contents of an [Int64] value.
func (v *Value) SetInt64(n int64) {
	if v.holdsFundamental(Int64) {
		v.num = uint64(n)
	}
}

// Uint64 returns the contents of a [Uint64] value.
func (v *Value) Uint64() uint64 {
	if !v.holdsFundamental(Uint64) {
		return 0
	}
	return v.num
}

// SetUint64 sets the contents of a [Uint64] value.
func (v *Value) SetUint64(n uint64) {
	if v.holdsFundamental(Uint64) {
		v.num = n
	}
}

// Float returns the contents of a [Float] value.
func (v *Value) Float() float32 {
	if !v.holdsFundamental(Float) {
		return 0
	}
	return math.Float32frombits(uint32(v.num))
}

// SetFloat sets the contents of a [Float] value.
func (v *Value) SetFloat(f float32) {
	if v.holdsFundamental(Float) {
		v.num = uint64(math.Float32bits(f))
	}
}

// Double returns the contents of a [Double] value.
func (v *Value) Double() float64 {
	if !v.holdsFundamental(Double) {
		return 0
	}
	return math.Float64frombits(v.num)
}

// SetDouble sets the contents of a [Double] value.
func (v *Value) SetDouble(f float64) {
	if v.holdsFundamental(Double) {
		v.num = math.Float64bits(f)
	}
}

// String returns the contents of a [String] value.
func (v *Value) String() string {
	if v.typ == Invalid || v.typ.Fundamental() != String {
		return fmt.Sprintf("<%s>", v.typ.Name())
	}
	s, _ := v.ptr.(string)
	return s
}

// SetString sets the contents of a [String] value.
func (v *Value) SetString(s string) {
	if v.holdsFundamental(String) {
		v.ptr = s
	}
}

// Pointer returns the contents of a [Pointer] or [Boxed] value.
func (v *Value) Pointer() any {
	if v.typ == Invalid {
		return nil
	}
	switch v.typ.Fundamental() {
	case Pointer, Boxed:
		return v.ptr
	}
	logger().Error("value does not hold a pointer", slogfield.Type(v.typ.Name()))
	return nil
}

// SetPointer sets the contents of a [Pointer] or [Boxed] value.
func (v *Value) SetPointer(p any) {
	if v.typ == Invalid {
		return
	}
	switch v.typ.Fundamental() {
	case Pointer, Boxed:
		v.ptr = p
	default:
		logger().Error("value does not hold a pointer", slogfield.Type(v.typ.Name()))
	}
}

// Instance returns the contents of an [Object] value.
func (v *Value) Instance() Instance {
	if !v.holdsFundamental(Object) {
		return nil
	}
	inst, _ := v.ptr.(Instance)
	return inst
}

// Variant returns the contents of a [VariantType] value.
func (v *Value) Variant() variant.Variant {
	if !v.holdsFundamental(VariantType) {
		return variant.Variant{}
	}
	vv, _ := v.ptr.(variant.Variant)
	return vv
}

// SetVariant sets the contents of a [VariantType] value.
func (v *Value) SetVariant(vv variant.Variant) {
	if v.holdsFundamental(VariantType) {
		v.ptr = vv
	}
}
