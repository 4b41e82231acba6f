// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package object provides the reference counted base of instances which
// notify about property changes.
package object

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/z5labs/strata/quark"
	"github.com/z5labs/strata/signal"
	"github.com/z5labs/strata/value"
)

// NotifySignal is emitted with the property name as detail and argument
// whenever a property of an object changes.
var NotifySignal = signal.New(
	"notify",
	value.Object,
	signal.RunFirst|signal.NoRecurse|signal.Detailed|signal.NoHooks,
	value.None,
	[]value.Type{value.String},
)

// Object is embedded by instances which need reference counting and
// property change notification. It must be initialised with [Object.Init]
// before use.
type Object struct {
	typ  value.Type
	self value.Instance
	refs atomic.Int32

	mu        sync.Mutex
	frozen    int
	pending   []string
	disposed  bool
	onDispose []func()
}

// Init initialises o as an instance of t. self is the value embedding o,
// which signals are connected to and emitted on. The object starts with
// a single reference owned by the caller.
func (o *Object) Init(t value.Type, self value.Instance) {
	o.typ = t
	o.self = self
	o.refs.Store(1)
}

// InstanceType implements the [value.Instance] interface.
func (o *Object) InstanceType() value.Type {
	return o.typ
}

// Self returns the value embedding o.
func (o *Object) Self() value.Instance {
	return o.self
}

// Ref implements the [value.RefCounted] interface.
func (o *Object) Ref() {
	o.refs.Add(1)
}

// Unref implements the [value.RefCounted] interface. Dropping the last
// reference disposes the object.
func (o *Object) Unref() {
	if o.refs.Add(-1) == 0 {
		o.Dispose()
	}
}

// RefCount returns the current number of references.
func (o *Object) RefCount() int {
	return int(o.refs.Load())
}

// OnDispose registers f to run when the object is disposed.
func (o *Object) OnDispose(f func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.onDispose = append(o.onDispose, f)
}

// Dispose runs the dispose callbacks and disconnects every handler of the
// object. It only has an effect the first time it is called.
func (o *Object) Dispose() {
	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		return
	}
	o.disposed = true
	fs := o.onDispose
	o.onDispose = nil
	o.mu.Unlock()

	for _, f := range slices.Backward(fs) {
		f()
	}
	signal.HandlersDestroy(o.self)
}

// Notify emits [NotifySignal] for prop, or queues it if notifications
// are frozen.
func (o *Object) Notify(prop string) {
	o.mu.Lock()
	if o.frozen > 0 {
		if !slices.Contains(o.pending, prop) {
			o.pending = append(o.pending, prop)
		}
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	signal.Emit(o.self, NotifySignal, quark.FromString(prop), prop)
}

// FreezeNotify queues notifications until [Object.ThawNotify] has been
// called as often as FreezeNotify. Repeated notifications for the same
// property are emitted once.
func (o *Object) FreezeNotify() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.frozen++
}

// ThawNotify undoes one [Object.FreezeNotify], emitting the queued
// notifications in order once no freeze is left.
func (o *Object) ThawNotify() {
	o.mu.Lock()
	if o.frozen == 0 {
		o.mu.Unlock()
		return
	}
	o.frozen--
	if o.frozen > 0 {
		o.mu.Unlock()
		return
	}
	pending := o.pending
	o.pending = nil
	o.mu.Unlock()

	for _, prop := range pending {
		signal.Emit(o.self, NotifySignal, quark.FromString(prop), prop)
	}
}

// ConnectNotify connects fn to change notifications of prop, or of every
// property if prop is empty.
func ConnectNotify(inst value.Instance, prop string, fn func(inst value.Instance, prop string)) signal.HandlerID {
	name := "notify"
	if prop != "" {
		name += "::" + prop
	}
	return signal.Connect(inst, name, fn)
}
