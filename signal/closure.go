// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package signal

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/z5labs/strata/pkg/slogfield"
	"github.com/z5labs/strata/value"
	"github.com/z5labs/strata/variant"
)

// Marshaller invokes a closure with its arguments collected into values.
// params[0] always holds the instance the signal is emitted on.
type Marshaller func(c *Closure, ret *value.Value, params []value.Value, hint *InvocationHint)

// VaMarshaller invokes a closure with its arguments passed directly,
// bypassing the collection into values.
type VaMarshaller func(c *Closure, ret *value.Value, instance value.Instance, args []any, hint *InvocationHint)

// Closure is a reference counted callable invoked by emissions.
//
// A new Closure is floating: the first [Closure.Sink] consumes the
// initial reference. Connecting a closure sinks it, so a closure passed
// straight to a connect call is owned by the handler.
type Closure struct {
	fn         any
	fnPtr      uintptr
	data       any
	marshal    Marshaller
	vaMarshal  VaMarshaller
	reflective bool

	refs     atomic.Int32
	floating atomic.Bool
	invalid  atomic.Bool

	mu           sync.Mutex
	notifiers    map[uint64]func()
	nextNotifier uint64
}

// ClosureOption configures a [Closure].
type ClosureOption func(*Closure)

// Data attaches data to the closure, which handlers can be matched by.
func Data(d any) ClosureOption {
	return func(c *Closure) {
		c.data = d
	}
}

// Marshallers overrides the marshallers of the closure.
func Marshallers(m Marshaller, va VaMarshaller) ClosureOption {
	return func(c *Closure) {
		c.marshal = m
		c.vaMarshal = va
		c.reflective = false
	}
}

func newClosure(fn any) *Closure {
	c := &Closure{fn: fn}
	if fn != nil {
		if rv := reflect.ValueOf(fn); rv.Kind() == reflect.Func {
			c.fnPtr = rv.Pointer()
		}
	}
	c.refs.Store(1)
	c.floating.Store(true)
	return c
}

// NewClosure returns a floating closure calling fn, which must be a
// func. The first parameter of fn receives the instance and the rest the
// signal arguments in order. If fn returns a value, the first result is
// stored as the return value of the closure.
//
// Common signatures are invoked directly, any other uses reflection.
func NewClosure(fn any, opts ...ClosureOption) *Closure {
	if fn == nil || reflect.TypeOf(fn).Kind() != reflect.Func {
		logger().Error("closure requires a func", slogfield.String("func_type", fmt.Sprintf("%T", fn)))
		return nil
	}
	c := newClosure(fn)
	c.marshal, c.vaMarshal = builtinMarshallers(fn)
	c.reflective = c.marshal == nil
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValuesFunc is the value array calling convention.
type ValuesFunc func(ret *value.Value, params []value.Value, hint *InvocationHint)

// NewValuesClosure returns a floating closure calling fn with the
// arguments collected into values. It has no va marshaller, so it
// disables the emission fast path.
func NewValuesClosure(fn ValuesFunc, opts ...ClosureOption) *Closure {
	if fn == nil {
		logger().Error("closure requires a func")
		return nil
	}
	c := newClosure(fn)
	c.marshal = func(c *Closure, ret *value.Value, params []value.Value, hint *InvocationHint) {
		c.fn.(ValuesFunc)(ret, params, hint)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Func returns the func invoked by the closure.
func (c *Closure) Func() any {
	return c.fn
}

// Data returns the data attached to the closure.
func (c *Closure) Data() any {
	return c.data
}

// Ref takes a reference on c.
func (c *Closure) Ref() *Closure {
	c.refs.Add(1)
	return c
}

// Unref drops a reference on c. Dropping the last reference invalidates
// the closure.
func (c *Closure) Unref() {
	if c.refs.Add(-1) == 0 {
		c.Invalidate()
	}
}

// Sink consumes the floating reference of c, if any.
func (c *Closure) Sink() {
	if c.floating.Swap(false) {
		c.Unref()
	}
}

// IsFloating reports whether c still has its floating reference.
func (c *Closure) IsFloating() bool {
	return c.floating.Load()
}

// IsValid reports whether c has not been invalidated.
func (c *Closure) IsValid() bool {
	return !c.invalid.Load()
}

// Invalidate marks c as invalid and runs its invalidate notifiers once.
// Handlers connected with c disconnect themselves. An invalid closure is
// never invoked.
func (c *Closure) Invalidate() {
	if c.invalid.Swap(true) {
		return
	}
	c.mu.Lock()
	notifiers := c.notifiers
	c.notifiers = nil
	c.mu.Unlock()

	ids := make([]uint64, 0, len(notifiers))
	for id := range notifiers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		notifiers[id]()
	}
}

// AddInvalidateNotifier registers f to run when c is invalidated. The
// returned id removes it again.
func (c *Closure) AddInvalidateNotifier(f func()) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.notifiers == nil {
		c.notifiers = make(map[uint64]func())
	}
	c.nextNotifier++
	c.notifiers[c.nextNotifier] = f
	return c.nextNotifier
}

// RemoveInvalidateNotifier removes a notifier added with
// [Closure.AddInvalidateNotifier].
func (c *Closure) RemoveInvalidateNotifier(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.notifiers, id)
}

// Invoke calls c with the value array convention.
func (c *Closure) Invoke(ret *value.Value, params []value.Value, hint *InvocationHint) {
	if c.invalid.Load() {
		return
	}
	m := c.marshal
	if m == nil && c.reflective {
		m = reflectMarshal
	}
	if m == nil {
		logger().Error("closure has no marshaller")
		return
	}
	c.Ref()
	defer c.Unref()
	m(c, ret, params, hint)
}

// InvokeVa calls c with its arguments passed directly.
func (c *Closure) InvokeVa(ret *value.Value, instance value.Instance, args []any, hint *InvocationHint) {
	if c.invalid.Load() {
		return
	}
	va := c.vaMarshal
	if va == nil && c.reflective {
		va = reflectVaMarshal
	}
	if va == nil {
		logger().Error("closure has no va marshaller")
		return
	}
	c.Ref()
	defer c.Unref()
	va(c, ret, instance, args, hint)
}

func (c *Closure) hasVaMarshaller() bool {
	return c.vaMarshal != nil || c.reflective
}

func (c *Closure) inheritMarshallers(m Marshaller, va VaMarshaller) {
	if c.marshal != nil || m == nil {
		return
	}
	c.marshal = m
	c.reflective = false
	if c.vaMarshal == nil {
		c.vaMarshal = va
	}
}

func instanceOf(v *value.Value) value.Instance {
	inst, _ := v.Get().(value.Instance)
	return inst
}

func argAt[T any](args []any, i int) T {
	var zero T
	if i >= len(args) {
		return zero
	}
	x, _ := args[i].(T)
	return x
}

func paramAt[T any](params []value.Value, i int) T {
	var zero T
	if i >= len(params) {
		return zero
	}
	x, _ := params[i].Get().(T)
	return x
}

// builtinMarshallers returns the marshaller pair for the common closure
// signatures, or nils if fn has none.
func builtinMarshallers(fn any) (Marshaller, VaMarshaller) {
	switch fn.(type) {
	case func(value.Instance):
		return func(c *Closure, _ *value.Value, params []value.Value, _ *InvocationHint) {
				c.fn.(func(value.Instance))(instanceOf(&params[0]))
			}, func(c *Closure, _ *value.Value, inst value.Instance, _ []any, _ *InvocationHint) {
				c.fn.(func(value.Instance))(inst)
			}
	case func(value.Instance) bool:
		return func(c *Closure, ret *value.Value, params []value.Value, _ *InvocationHint) {
				setBool(ret, c.fn.(func(value.Instance) bool)(instanceOf(&params[0])))
			}, func(c *Closure, ret *value.Value, inst value.Instance, _ []any, _ *InvocationHint) {
				setBool(ret, c.fn.(func(value.Instance) bool)(inst))
			}
	case func(value.Instance, string):
		return func(c *Closure, _ *value.Value, params []value.Value, _ *InvocationHint) {
				c.fn.(func(value.Instance, string))(instanceOf(&params[0]), paramAt[string](params, 1))
			}, func(c *Closure, _ *value.Value, inst value.Instance, args []any, _ *InvocationHint) {
				c.fn.(func(value.Instance, string))(inst, argAt[string](args, 0))
			}
	case func(value.Instance, bool):
		return func(c *Closure, _ *value.Value, params []value.Value, _ *InvocationHint) {
				c.fn.(func(value.Instance, bool))(instanceOf(&params[0]), paramAt[bool](params, 1))
			}, func(c *Closure, _ *value.Value, inst value.Instance, args []any, _ *InvocationHint) {
				c.fn.(func(value.Instance, bool))(inst, argAt[bool](args, 0))
			}
	case func(value.Instance, int):
		return func(c *Closure, _ *value.Value, params []value.Value, _ *InvocationHint) {
				c.fn.(func(value.Instance, int))(instanceOf(&params[0]), paramAt[int](params, 1))
			}, func(c *Closure, _ *value.Value, inst value.Instance, args []any, _ *InvocationHint) {
				c.fn.(func(value.Instance, int))(inst, argAt[int](args, 0))
			}
	case func(value.Instance, variant.Variant):
		return func(c *Closure, _ *value.Value, params []value.Value, _ *InvocationHint) {
				c.fn.(func(value.Instance, variant.Variant))(instanceOf(&params[0]), paramAt[variant.Variant](params, 1))
			}, func(c *Closure, _ *value.Value, inst value.Instance, args []any, _ *InvocationHint) {
				c.fn.(func(value.Instance, variant.Variant))(inst, argAt[variant.Variant](args, 0))
			}
	case func(value.Instance, string, bool):
		return func(c *Closure, _ *value.Value, params []value.Value, _ *InvocationHint) {
				c.fn.(func(value.Instance, string, bool))(
					instanceOf(&params[0]),
					paramAt[string](params, 1),
					paramAt[bool](params, 2),
				)
			}, func(c *Closure, _ *value.Value, inst value.Instance, args []any, _ *InvocationHint) {
				c.fn.(func(value.Instance, string, bool))(inst, argAt[string](args, 0), argAt[bool](args, 1))
			}
	case func(value.Instance, string, variant.Variant):
		return func(c *Closure, _ *value.Value, params []value.Value, _ *InvocationHint) {
				c.fn.(func(value.Instance, string, variant.Variant))(
					instanceOf(&params[0]),
					paramAt[string](params, 1),
					paramAt[variant.Variant](params, 2),
				)
			}, func(c *Closure, _ *value.Value, inst value.Instance, args []any, _ *InvocationHint) {
				c.fn.(func(value.Instance, string, variant.Variant))(
					inst,
					argAt[string](args, 0),
					argAt[variant.Variant](args, 1),
				)
			}
	}
	return nil, nil
}

func setBool(ret *value.Value, b bool) {
	if ret != nil && ret.IsInitialized() {
		ret.SetBool(b)
	}
}

func reflectMarshal(c *Closure, ret *value.Value, params []value.Value, _ *InvocationHint) {
	args := make([]any, len(params))
	for i := range params {
		args[i] = params[i].Get()
	}
	callReflect(c.fn, ret, args)
}

func reflectVaMarshal(c *Closure, ret *value.Value, inst value.Instance, args []any, _ *InvocationHint) {
	all := make([]any, 0, len(args)+1)
	all = append(all, inst)
	all = append(all, args...)
	callReflect(c.fn, ret, all)
}

// callReflect calls fn with args, dropping trailing args fn does not
// accept and converting between numeric kinds.
func callReflect(fn any, ret *value.Value, args []any) {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()

	in := make([]reflect.Value, ft.NumIn())
	for i := range in {
		pt := ft.In(i)
		if i >= len(args) || args[i] == nil {
			in[i] = reflect.Zero(pt)
			continue
		}
		av := reflect.ValueOf(args[i])
		switch {
		case av.Type().AssignableTo(pt):
			in[i] = av
		case isNumeric(av.Kind()) && isNumeric(pt.Kind()):
			in[i] = av.Convert(pt)
		default:
			logger().Error(
				"closure parameter does not accept signal argument",
				slogfield.Int("param", i),
				slogfield.String("param_type", pt.String()),
				slogfield.String("arg_type", av.Type().String()),
			)
			in[i] = reflect.Zero(pt)
		}
	}

	out := fv.Call(in)
	if ret == nil || !ret.IsInitialized() || len(out) == 0 {
		return
	}
	x := out[0].Interface()
	if ret.Set(x) {
		return
	}
	v, err := value.Of(x)
	if err != nil {
		return
	}
	defer v.Unset()
	value.Transform(&v, ret)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
