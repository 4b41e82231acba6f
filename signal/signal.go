// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package signal implements named, typed notifications attached to
// instances of registered types.
//
// Signals are registered once per owning type with [New]. Handlers are
// connected per instance and invoked by [Emit] or [Emitv] together with
// the class closure of the signal, in a fixed order:
//
//  1. the class closure, if the signal runs first
//  2. emission hooks
//  3. handlers connected without the after flag
//  4. the class closure, if the signal runs last
//  5. handlers connected with the after flag
//  6. the class closure, if the signal runs at cleanup
//
// Handlers connected while an emission is running are not invoked by
// that emission, and handlers disconnected while it runs are not invoked
// again by it.
package signal

import (
	"strings"
	"sync"

	"github.com/z5labs/strata/pkg/slogfield"
	"github.com/z5labs/strata/quark"
	"github.com/z5labs/strata/value"
)

// ID identifies a registered signal. Zero is never a valid ID.
type ID uint32

// Flags configure signal behaviour and describe the current stage of an
// emission in an [InvocationHint].
type Flags uint32

const (
	// RunFirst invokes the class closure before handlers.
	RunFirst Flags = 1 << iota
	// RunLast invokes the class closure after regular handlers and before
	// handlers connected with the after flag.
	RunLast
	// RunCleanup invokes the class closure once the emission is done.
	RunCleanup
	// NoRecurse restarts an emission instead of nesting it, if the signal
	// is emitted again on the same instance with the same detail.
	NoRecurse
	// Detailed signals accept a detail when emitted and connected to.
	Detailed
	// Action signals may be emitted freely from outside the instance.
	Action
	// NoHooks signals refuse emission hooks.
	NoHooks
	// MustCollect signals always collect their arguments into values.
	MustCollect
	// Deprecated signals log a warning when connected to.
	Deprecated

	// AccumulatorFirstRun is only set in an [InvocationHint], for the
	// first closure whose return value is accumulated.
	AccumulatorFirstRun Flags = 1 << 17
)

const runMask = RunFirst | RunLast | RunCleanup

// StaticScope may be or'ed into a parameter or return type to mark the
// argument as not needing a copy for the duration of the emission.
const StaticScope value.Type = 1 << 31

// InvocationHint describes the emission a closure is invoked from.
type InvocationHint struct {
	SignalID ID
	Detail   quark.Quark
	RunType  Flags
}

// Accumulator folds the return value of each invoked closure into the
// return value of the emission. Returning false stops the emission.
type Accumulator func(hint *InvocationHint, accu *value.Value, handlerReturn *value.Value) bool

type signalNode struct {
	id        ID
	name      string
	owner     value.Type
	flags     Flags
	destroyed bool

	params       []value.Type
	staticScope  []bool
	returnType   value.Type
	returnStatic bool

	classClosures map[value.Type]*Closure
	accumulator   Accumulator
	hooks         []*emissionHook
	marshal       Marshaller
	vaMarshal     VaMarshaller

	fastValid   bool
	fastOK      bool
	fastClosure *Closure
	fastAfter   bool
}

type signalKey struct {
	owner value.Type
	name  string
}

// mu guards every signal, handler and emission record. Closures and hooks
// are always invoked with mu released.
var (
	mu       sync.Mutex
	nodes    = []*signalNode{nil}
	keys     = make(map[signalKey]ID)
	releases []func()
)

func lock() {
	mu.Lock()
}

// unlock releases mu and then runs any cleanup that must not happen
// while holding it, e.g. dropping closure references.
func unlock() {
	rel := releases
	releases = nil
	mu.Unlock()
	for _, f := range rel {
		f()
	}
}

func deferRelease(f func()) {
	releases = append(releases, f)
}

func lookupNode(id ID) *signalNode {
	if id == 0 || int(id) >= len(nodes) {
		return nil
	}
	return nodes[id]
}

type options struct {
	classClosure *Closure
	accumulator  Accumulator
	marshal      Marshaller
	vaMarshal    VaMarshaller
}

// Option configures a signal registered with [New].
type Option func(*options)

// ClassClosure sets the default class closure of the signal.
func ClassClosure(c *Closure) Option {
	return func(o *options) {
		o.classClosure = c
	}
}

// WithAccumulator sets the accumulator used to fold closure return values.
func WithAccumulator(acc Accumulator) Option {
	return func(o *options) {
		o.accumulator = acc
	}
}

// WithMarshaller sets the marshallers inherited by closures connected to
// the signal which have none of their own.
func WithMarshaller(m Marshaller, va VaMarshaller) Option {
	return func(o *options) {
		o.marshal = m
		o.vaMarshal = va
	}
}

// IsValidName reports whether name is a valid signal name: a letter
// followed by letters and digits, with segments joined by '-' or '_'.
func IsValidName(name string) bool {
	if name == "" || !isAlpha(name[0]) {
		return false
	}
	prevSep := false
	for i := 1; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '-' || c == '_':
			if prevSep {
				return false
			}
			prevSep = true
		case isAlpha(c) || ('0' <= c && c <= '9'):
			prevSep = false
		default:
			return false
		}
	}
	return !prevSep
}

func isAlpha(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func canonicalName(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

// New registers a signal named name on owner and returns its ID. The
// class closure, accumulator and marshallers are set with opts.
//
// Registering a signal which already exists on owner returns the
// existing ID. Zero is returned if the registration is invalid.
func New(name string, owner value.Type, flags Flags, returnType value.Type, params []value.Type, opts ...Option) ID {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if !IsValidName(name) {
		logger().Error("invalid signal name", slogfield.Signal(name))
		return 0
	}
	if !owner.IsValid() {
		logger().Error("invalid owner type", slogfield.Signal(name))
		return 0
	}
	if flags&AccumulatorFirstRun != 0 {
		logger().Error("signal flags may not include AccumulatorFirstRun", slogfield.Signal(name))
		return 0
	}
	if flags&runMask == 0 {
		flags |= RunLast
	}

	rtype := returnType &^ StaticScope
	if rtype != value.None && rtype != value.Invalid && !rtype.SupportsValue() {
		logger().Error("return type is not a value type", slogfield.Signal(name), slogfield.Type(rtype.Name()))
		return 0
	}
	if rtype == value.Invalid {
		rtype = value.None
	}
	if rtype == value.None && o.accumulator != nil {
		logger().Error("signal without return value can not have an accumulator", slogfield.Signal(name))
		return 0
	}
	if rtype != value.None && flags&runMask == RunFirst {
		logger().Error("signal with return value can not only run first", slogfield.Signal(name))
		return 0
	}

	ptypes := make([]value.Type, len(params))
	static := make([]bool, len(params))
	for i, p := range params {
		ptypes[i] = p &^ StaticScope
		static[i] = p&StaticScope != 0
		if !ptypes[i].SupportsValue() {
			logger().Error(
				"parameter is not a value type",
				slogfield.Signal(name),
				slogfield.Int("param", i+1),
				slogfield.Type(ptypes[i].Name()),
			)
			return 0
		}
	}

	canonical := canonicalName(name)

	lock()
	defer unlock()

	id := lookupLocked(canonical, owner)
	node := lookupNode(id)
	if node != nil && !node.destroyed {
		logger().Warn(
			"signal already exists",
			slogfield.Signal(canonical),
			slogfield.Type(node.owner.Name()),
		)
		if node.owner == owner {
			return id
		}
		return 0
	}
	if node != nil && node.owner != owner {
		logger().Error(
			"signal was previously created for another type",
			slogfield.Signal(canonical),
			slogfield.Type(node.owner.Name()),
		)
		return 0
	}

	if node == nil {
		id = ID(len(nodes))
		node = &signalNode{id: id, name: canonical, owner: owner}
		nodes = append(nodes, node)
		keys[signalKey{owner: owner, name: canonical}] = id
		quark.FromString(canonical)
	}
	node.destroyed = false
	node.flags = flags
	node.params = ptypes
	node.staticScope = static
	node.returnType = rtype
	node.returnStatic = returnType&StaticScope != 0
	node.accumulator = o.accumulator
	node.marshal = o.marshal
	node.vaMarshal = o.vaMarshal
	node.classClosures = nil
	node.hooks = nil
	node.fastValid = false

	if o.classClosure != nil {
		node.addClassClosure(value.Invalid, o.classClosure)
	}
	return id
}

func (n *signalNode) addClassClosure(itype value.Type, c *Closure) {
	if n.classClosures == nil {
		n.classClosures = make(map[value.Type]*Closure)
	}
	c.Ref()
	c.Sink()
	c.inheritMarshallers(n.marshal, n.vaMarshal)
	n.classClosures[itype] = c
	n.fastValid = false
}

// findClassClosure returns the class closure for itype, walking itype up
// to the default closure, and the type it is registered for.
func (n *signalNode) findClassClosure(itype value.Type) (*Closure, value.Type, bool) {
	if len(n.classClosures) == 0 {
		return nil, value.Invalid, false
	}
	if c, ok := n.classClosures[value.Invalid]; ok && len(n.classClosures) == 1 {
		return c, value.Invalid, true
	}
	for t := itype; ; t = t.Parent() {
		if c, ok := n.classClosures[t]; ok {
			return c, t, true
		}
		if t == value.Invalid {
			return nil, value.Invalid, false
		}
	}
}

// OverrideClassClosure overrides the class closure of the signal for
// instances of itype and its descendants. itype must descend from the
// owner of the signal and not already have an override.
func OverrideClassClosure(id ID, itype value.Type, c *Closure) {
	if c == nil {
		logger().Error("can not override class closure with nil closure")
		return
	}

	lock()
	defer unlock()

	node := lookupNode(id)
	if node == nil || node.destroyed {
		logger().Error("invalid signal id", slogfield.Uint32("signal_id", uint32(id)))
		return
	}
	if !itype.IsA(node.owner) {
		logger().Error(
			"type does not derive from the signal owner",
			slogfield.Signal(node.name),
			slogfield.Type(itype.Name()),
		)
		return
	}
	if _, ok := node.classClosures[itype]; ok {
		logger().Error(
			"type is already overridden for signal",
			slogfield.Signal(node.name),
			slogfield.Type(itype.Name()),
		)
		return
	}
	node.addClassClosure(itype, c)
}

// SetVaMarshaller changes the va marshaller inherited by closures
// connected to the signal.
func SetVaMarshaller(id ID, va VaMarshaller) {
	lock()
	defer unlock()

	node := lookupNode(id)
	if node == nil {
		logger().Error("invalid signal id", slogfield.Uint32("signal_id", uint32(id)))
		return
	}
	node.vaMarshal = va
	for _, c := range node.classClosures {
		c.inheritMarshallers(node.marshal, va)
	}
	node.fastValid = false
}

// Lookup finds the signal named name on itype, its ancestors or the
// interfaces it implements. Zero is returned if there is no such signal.
func Lookup(name string, itype value.Type) ID {
	lock()
	defer unlock()

	return lookupLocked(name, itype)
}

func lookupLocked(name string, itype value.Type) ID {
	for t := itype; t != value.Invalid; t = t.Parent() {
		if id, ok := keys[signalKey{owner: t, name: name}]; ok {
			return id
		}
	}
	ifaces := itype.Interfaces()
	for i := len(ifaces) - 1; i >= 0; i-- {
		if id, ok := keys[signalKey{owner: ifaces[i], name: name}]; ok {
			return id
		}
	}
	if strings.Contains(name, "_") {
		return lookupLocked(canonicalName(name), itype)
	}
	return 0
}

// ListIDs returns the signals registered directly on itype.
func ListIDs(itype value.Type) []ID {
	lock()
	defer unlock()

	var ids []ID
	for _, n := range nodes[1:] {
		if n.owner == itype && !n.destroyed {
			ids = append(ids, n.id)
		}
	}
	return ids
}

// Name returns the canonical name of the signal.
func Name(id ID) string {
	lock()
	defer unlock()

	node := lookupNode(id)
	if node == nil {
		return ""
	}
	return node.name
}

// Query describes a registered signal.
type Query struct {
	ID         ID
	Name       string
	Owner      value.Type
	Flags      Flags
	ReturnType value.Type
	Params     []value.Type
}

// QuerySignal returns the description of the signal.
func QuerySignal(id ID) (Query, bool) {
	lock()
	defer unlock()

	node := lookupNode(id)
	if node == nil || node.destroyed {
		return Query{}, false
	}
	return Query{
		ID:         node.id,
		Name:       node.name,
		Owner:      node.owner,
		Flags:      node.flags,
		ReturnType: node.returnType,
		Params:     append([]value.Type(nil), node.params...),
	}, true
}

// DestroyForType destroys every signal owned by itype. Emitting or
// connecting to a destroyed signal is refused.
func DestroyForType(itype value.Type) {
	lock()
	defer unlock()

	for _, n := range nodes[1:] {
		if n.owner != itype || n.destroyed {
			continue
		}
		n.destroyed = true
		n.fastValid = false
		for _, c := range n.classClosures {
			deferRelease(c.Unref)
		}
		n.classClosures = nil
		for _, h := range n.hooks {
			if h.destroy != nil {
				deferRelease(h.destroy)
			}
		}
		n.hooks = nil
	}
}

// ParseNameError is returned by [ParseName] for malformed detailed
// signal names.
type ParseNameError struct {
	Name string
}

// Error implements the [builtin.error] interface.
func (e ParseNameError) Error() string {
	return "invalid detailed signal name: " + e.Name
}

// UnknownSignalError is returned when a signal name does not resolve.
type UnknownSignalError struct {
	Name string
	Type value.Type
}

// Error implements the [builtin.error] interface.
func (e UnknownSignalError) Error() string {
	return "unknown signal " + e.Name + " for type " + e.Type.Name()
}

// ParseName resolves a detailed signal name of the form "name" or
// "name::detail" for itype. If force is false, a detail which has never
// been interned resolves to the zero quark.
func ParseName(detailedSignal string, itype value.Type, force bool) (ID, quark.Quark, error) {
	lock()
	defer unlock()

	return parseNameLocked(detailedSignal, itype, force)
}

func parseNameLocked(detailedSignal string, itype value.Type, force bool) (ID, quark.Quark, error) {
	name, detail, hasDetail := strings.Cut(detailedSignal, "::")
	if strings.Contains(name, ":") || (hasDetail && (detail == "" || strings.Contains(detail, ":"))) {
		return 0, 0, ParseNameError{Name: detailedSignal}
	}

	id := lookupLocked(name, itype)
	node := lookupNode(id)
	if node == nil || node.destroyed {
		return 0, 0, UnknownSignalError{Name: name, Type: itype}
	}
	if !hasDetail {
		return id, 0, nil
	}
	if node.flags&Detailed == 0 {
		return 0, 0, ParseNameError{Name: detailedSignal}
	}
	if force {
		return id, quark.FromString(detail), nil
	}
	return id, quark.TryString(detail), nil
}
