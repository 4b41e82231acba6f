// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package signal

import (
	"slices"

	"github.com/z5labs/strata/pkg/slogfield"
	"github.com/z5labs/strata/quark"
	"github.com/z5labs/strata/value"
)

type emissionState uint8

const (
	stateRun emissionState = iota
	stateStop
	stateRestart
	stateHook
)

type emission struct {
	instance value.Instance
	hint     InvocationHint
	state    emissionState
	popped   bool

	// chainType is the type whose class closure is running, or
	// value.None outside of class closures.
	chainType value.Type
}

// emissions is the stack of running emissions, innermost last.
var emissions []*emission

func pushEmission(e *emission) {
	emissions = append(emissions, e)
}

func popEmission(e *emission) {
	e.popped = true
	for i := len(emissions) - 1; i >= 0; i-- {
		if emissions[i] == e {
			emissions = slices.Delete(emissions, i, i+1)
			return
		}
	}
}

func findEmission(instance value.Instance, id ID, detail quark.Quark) *emission {
	for i := len(emissions) - 1; i >= 0; i-- {
		e := emissions[i]
		if e.instance == instance && e.hint.SignalID == id && e.hint.Detail == detail {
			return e
		}
	}
	return nil
}

func innermostEmission(instance value.Instance) *emission {
	for i := len(emissions) - 1; i >= 0; i-- {
		if emissions[i].instance == instance {
			return emissions[i]
		}
	}
	return nil
}

// updateFastPath caches whether emissions of n may bypass the collection
// of arguments into values, and the class closure they would invoke.
func (n *signalNode) updateFastPath() {
	n.fastValid = true
	n.fastOK = false
	n.fastClosure = nil
	n.fastAfter = false

	if n.flags&MustCollect != 0 || len(n.hooks) > 0 || !n.owner.IsA(value.Object) {
		return
	}
	switch len(n.classClosures) {
	case 0:
	case 1:
		c, ok := n.classClosures[value.Invalid]
		if !ok {
			return
		}
		run := n.flags & runMask
		if run != RunFirst && run != RunLast {
			return
		}
		if !c.hasVaMarshaller() {
			return
		}
		n.fastClosure = c
		n.fastAfter = run == RunLast
	default:
		return
	}
	n.fastOK = true
}

func accumulate(hint *InvocationHint, ret, handlerReturn *value.Value, acc Accumulator) bool {
	if acc == nil {
		return true
	}
	cont := acc(hint, ret, handlerReturn)
	handlerReturn.Reset()
	hint.RunType &^= AccumulatorFirstRun
	return cont
}

// validateLocked reports whether the signal may be emitted on instance
// with detail and returns its node.
func validateLocked(instance value.Instance, id ID, detail quark.Quark) *signalNode {
	node := lookupNode(id)
	if node == nil || node.destroyed || !instance.InstanceType().IsA(node.owner) {
		logger().Warn(
			"signal id is invalid for instance",
			slogfield.Uint32("signal_id", uint32(id)),
			slogfield.Type(instance.InstanceType().Name()),
		)
		return nil
	}
	if detail != 0 && node.flags&Detailed == 0 {
		logger().Warn("signal does not support details", slogfield.Signal(node.name), slogfield.Detail(detail.String()))
		return nil
	}
	return node
}

func unsetAll(vs []value.Value) {
	for i := range vs {
		vs[i].Unset()
	}
}

// Emit emits the signal with detail on instance. args are collected into
// values of the parameter types of the signal; if one does not fit,
// nothing is invoked. The return value is uninitialised for signals
// without a return type.
func Emit(instance value.Instance, id ID, detail quark.Quark, args ...any) value.Value {
	if instance == nil {
		logger().Error("can not emit signal on nil instance")
		return value.Value{}
	}

	lock()
	node := validateLocked(instance, id, detail)
	if node == nil {
		unlock()
		return value.Value{}
	}
	if len(args) != len(node.params) {
		logger().Error(
			"wrong number of signal arguments",
			slogfield.Signal(node.name),
			slogfield.Int("expected", len(node.params)),
			slogfield.Int("actual", len(args)),
		)
		unlock()
		return value.Value{}
	}
	ptypes, rtype := node.params, node.returnType
	unlock()

	params := make([]value.Value, len(args)+1)
	defer unsetAll(params)
	params[0].InitFromInstance(instance)
	for i, a := range args {
		v, err := value.New(ptypes[i], a)
		if err != nil {
			logger().Error(
				"can not collect signal argument",
				slogfield.Signal(Name(id)),
				slogfield.Int("param", i+1),
				slogfield.Error(err),
			)
			return value.Value{}
		}
		params[i+1] = v
	}

	lock()
	if !node.fastValid {
		node.updateFastPath()
	}
	if node.fastOK {
		closure, after, fast := node.fastClosure, node.fastAfter, true
		if l := lookupHandlers(instance, id); l != nil {
			for _, h := range l.hs {
				if h.blockCount != 0 || !h.matchesDetail(detail) {
					continue
				}
				if closure != nil || !h.closure.hasVaMarshaller() {
					fast = false
					break
				}
				closure, after = h.closure, h.after
			}
		}
		if fast && closure == nil && rtype == value.None {
			unlock()
			return value.Value{}
		}
		// a restart would run more than one closure
		if closure != nil && node.flags&NoRecurse != 0 {
			fast = false
		}
		if fast {
			return emitFast(node, instance, detail, closure, after, params)
		}
	}
	unlock()

	var ret value.Value
	if rtype != value.None {
		ret.Init(rtype)
	}
	emitUnlocked(node, detail, instance, &ret, params)
	return ret
}

// emitFast invokes the single closure of an emission directly. It is
// called with mu held and releases it.
func emitFast(node *signalNode, instance value.Instance, detail quark.Quark, closure *Closure, after bool, params []value.Value) value.Value {
	runType := RunFirst
	if after {
		runType = RunLast
	}
	e := &emission{
		instance:  instance,
		hint:      InvocationHint{SignalID: node.id, Detail: detail, RunType: runType | AccumulatorFirstRun},
		state:     stateRun,
		chainType: instance.InstanceType(),
	}
	pushEmission(e)
	acc, rtype := node.accumulator, node.returnType
	unlock()

	defer func() {
		lock()
		popEmission(e)
		unlock()
	}()

	var ret value.Value
	if rtype != value.None {
		ret.Init(rtype)
	}
	if closure == nil {
		return ret
	}

	var accu value.Value
	returnAccu := &ret
	if rtype == value.None {
		returnAccu = nil
	} else if acc != nil {
		accu.Init(rtype)
		defer accu.Unset()
		returnAccu = &accu
	}

	args := make([]any, len(params)-1)
	for i := range args {
		args[i] = params[i+1].Get()
	}
	closure.InvokeVa(returnAccu, instance, args, &e.hint)
	accumulate(&e.hint, &ret, &accu, acc)
	return ret
}

// EmitByName is like [Emit] with the signal given by its detailed name.
func EmitByName(instance value.Instance, detailedSignal string, args ...any) value.Value {
	if instance == nil {
		logger().Error("can not emit signal on nil instance")
		return value.Value{}
	}
	id, detail, err := ParseName(detailedSignal, instance.InstanceType(), true)
	if err != nil {
		logger().Warn(
			"can not emit signal",
			slogfield.Signal(detailedSignal),
			slogfield.Type(instance.InstanceType().Name()),
			slogfield.Error(err),
		)
		return value.Value{}
	}
	return Emit(instance, id, detail, args...)
}

// Emitv emits the signal with detail. params[0] holds the instance and
// the rest the signal arguments, which must hold the parameter types of
// the signal. ret receives the return value and must hold the return
// type of the signal, if it has one. If the arguments are invalid, no
// closure is invoked and ret is left untouched.
func Emitv(params []value.Value, id ID, detail quark.Quark, ret *value.Value) {
	if len(params) == 0 {
		logger().Error("can not emit signal without instance")
		return
	}
	instance := instanceOf(&params[0])
	if instance == nil {
		logger().Error("can not emit signal on nil instance")
		return
	}

	lock()
	node := validateLocked(instance, id, detail)
	if node == nil {
		unlock()
		return
	}
	if len(params)-1 != len(node.params) {
		logger().Error(
			"wrong number of signal arguments",
			slogfield.Signal(node.name),
			slogfield.Int("expected", len(node.params)),
			slogfield.Int("actual", len(params)-1),
		)
		unlock()
		return
	}
	for i, pt := range node.params {
		if !params[i+1].Holds(pt) {
			logger().Error(
				"value for signal parameter has incompatible type",
				slogfield.Signal(node.name),
				slogfield.Int("param", i+1),
				slogfield.Type(pt.Name()),
				slogfield.String("value_type", params[i+1].Type().Name()),
			)
			unlock()
			return
		}
	}
	rtype := node.returnType
	if rtype != value.None && ret != nil && !ret.Holds(rtype) {
		logger().Error(
			"return value has incompatible type",
			slogfield.Signal(node.name),
			slogfield.Type(rtype.Name()),
			slogfield.String("value_type", ret.Type().Name()),
		)
		unlock()
		return
	}

	if !node.fastValid {
		node.updateFastPath()
	}
	if node.fastOK && node.fastClosure == nil && lookupHandlers(instance, id) == nil {
		unlock()
		return
	}
	unlock()

	if rtype == value.None {
		ret = nil
	} else if ret == nil {
		var scratch value.Value
		scratch.Init(rtype)
		defer scratch.Unset()
		ret = &scratch
	}
	emitUnlocked(node, detail, instance, ret, params)
}

type stageResult uint8

const (
	stageDone stageResult = iota
	stageStop
	stageRestart
)

type emitRun struct {
	node         *signalNode
	instance     value.Instance
	params       []value.Value
	e            *emission
	acc          Accumulator
	accu         value.Value
	ret          *value.Value
	returnAccu   *value.Value
	rtype        value.Type
	flags        Flags
	classClosure *Closure
}

// invoke runs c with mu released and folds its return value into the
// emission. It is called and returns with mu held.
func (r *emitRun) invoke(c *Closure, ret *value.Value) {
	unlock()
	c.Invoke(ret, r.params, &r.e.hint)
	cont := accumulate(&r.e.hint, r.ret, &r.accu, r.acc)
	lock()
	if !cont && r.e.state == stateRun {
		r.e.state = stateStop
	}
}

func (r *emitRun) invokeClass() stageResult {
	r.e.state = stateRun
	r.e.chainType = r.instance.InstanceType()
	r.invoke(r.classClosure, r.returnAccu)
	r.e.chainType = value.None
	return r.result()
}

func (r *emitRun) result() stageResult {
	switch r.e.state {
	case stateStop:
		return stageStop
	case stateRestart:
		return stageRestart
	}
	return stageDone
}

func (r *emitRun) invokeHandlers(snapshot []*handler, after bool, maxSeq HandlerID) stageResult {
	if len(snapshot) == 0 {
		return r.result()
	}
	r.e.state = stateRun
	for _, h := range snapshot {
		if h.after != after {
			continue
		}
		if h.seq == 0 || h.seq > maxSeq || h.blockCount != 0 || !h.matchesDetail(r.e.hint.Detail) {
			continue
		}
		r.invoke(h.closure, r.returnAccu)
		if r.e.state != stateRun {
			break
		}
	}
	return r.result()
}

// stages runs the class closure, hooks and handlers of one pass of the
// emission. It is called and returns with mu held.
func (r *emitRun) stages() stageResult {
	var snapshot []*handler
	if l := lookupHandlers(r.instance, r.node.id); l != nil {
		snapshot = slices.Clone(l.hs)
	}
	maxSeq := handlerSeq

	r.e.hint.RunType = RunFirst | AccumulatorFirstRun

	if r.flags&RunFirst != 0 && r.classClosure != nil {
		if res := r.invokeClass(); res != stageDone {
			return res
		}
	}

	if len(r.node.hooks) > 0 {
		r.e.state = stateHook
		r.node.runHooks(r.e, r.params)
		if r.e.state == stateRestart {
			return stageRestart
		}
	}

	if res := r.invokeHandlers(snapshot, false, maxSeq); res != stageDone {
		return res
	}

	r.e.hint.RunType = r.e.hint.RunType&^RunFirst | RunLast

	if r.flags&RunLast != 0 && r.classClosure != nil {
		if res := r.invokeClass(); res != stageDone {
			return res
		}
	}

	return r.invokeHandlers(snapshot, true, maxSeq)
}

// cleanup runs the class closure of signals which run at cleanup. It is
// called and returns with mu held.
func (r *emitRun) cleanup() stageResult {
	r.e.hint.RunType = r.e.hint.RunType&AccumulatorFirstRun | RunCleanup
	if r.flags&RunCleanup == 0 || r.classClosure == nil {
		return stageDone
	}

	r.e.state = stateStop
	r.e.chainType = r.instance.InstanceType()

	var scratch value.Value
	var target *value.Value
	if r.rtype != value.None {
		if r.acc != nil {
			target = &r.accu
		} else {
			scratch.Init(r.rtype)
			target = &scratch
		}
	}
	unlock()
	r.classClosure.Invoke(target, r.params, &r.e.hint)
	accumulate(&r.e.hint, r.ret, &r.accu, r.acc)
	scratch.Unset()
	lock()

	r.e.chainType = value.None
	if r.e.state == stateRestart {
		return stageRestart
	}
	return stageDone
}

func emitUnlocked(node *signalNode, detail quark.Quark, instance value.Instance, ret *value.Value, params []value.Value) {
	lock()
	if node.flags&NoRecurse != 0 {
		if e := findEmission(instance, node.id, detail); e != nil {
			e.state = stateRestart
			unlock()
			return
		}
	}

	r := &emitRun{
		node:     node,
		instance: instance,
		params:   params,
		acc:      node.accumulator,
		ret:      ret,
		rtype:    node.returnType,
		flags:    node.flags,
		e: &emission{
			instance:  instance,
			hint:      InvocationHint{SignalID: node.id, Detail: detail},
			chainType: value.None,
		},
	}
	r.returnAccu = ret
	if r.acc != nil {
		r.accu.Init(r.rtype)
		r.returnAccu = &r.accu
	}
	pushEmission(r.e)
	r.classClosure, _, _ = node.findClassClosure(instance.InstanceType())

	defer func() {
		if !r.e.popped {
			lock()
			popEmission(r.e)
			unlock()
		}
		r.accu.Unset()
	}()

	for {
		if r.stages() == stageRestart {
			continue
		}
		if r.cleanup() == stageRestart {
			continue
		}
		break
	}
	popEmission(r.e)
	unlock()
}

// StopEmission stops the innermost running emission of the signal with
// detail on instance. Closures still to be invoked by it are skipped,
// apart from a class closure which runs at cleanup. Emissions can not be
// stopped from emission hooks.
func StopEmission(instance value.Instance, id ID, detail quark.Quark) {
	if instance == nil {
		logger().Error("can not stop emission on nil instance")
		return
	}

	lock()
	defer unlock()

	node := validateLocked(instance, id, detail)
	if node == nil {
		return
	}
	e := findEmission(instance, id, detail)
	if e == nil {
		logger().Warn("no emission of signal to stop", slogfield.Signal(node.name))
		return
	}
	switch e.state {
	case stateHook:
		logger().Error("emission of signal can not be stopped from an emission hook", slogfield.Signal(node.name))
	case stateRun:
		e.state = stateStop
	}
}

// StopEmissionByName is like [StopEmission] with the signal given by its
// detailed name.
func StopEmissionByName(instance value.Instance, detailedSignal string) {
	if instance == nil {
		logger().Error("can not stop emission on nil instance")
		return
	}
	id, detail, err := ParseName(detailedSignal, instance.InstanceType(), false)
	if err != nil {
		logger().Warn("can not stop emission", slogfield.Signal(detailedSignal), slogfield.Error(err))
		return
	}
	StopEmission(instance, id, detail)
}

// InvocationHintOf returns the hint of the innermost emission running on
// instance.
func InvocationHintOf(instance value.Instance) (InvocationHint, bool) {
	lock()
	defer unlock()

	e := innermostEmission(instance)
	if e == nil {
		return InvocationHint{}, false
	}
	return e.hint, true
}

// ChainFromOverridden invokes the class closure overridden by the class
// closure currently running on the instance held by params[0]. It must
// only be called from a class closure.
func ChainFromOverridden(params []value.Value, ret *value.Value) {
	if len(params) == 0 {
		logger().Error("can not chain without instance")
		return
	}
	instance := instanceOf(&params[0])
	if instance == nil {
		logger().Error("can not chain on nil instance")
		return
	}

	lock()
	e, closure, chainType, restoreType := chainTargetLocked(instance)
	if closure == nil {
		unlock()
		return
	}
	e.chainType = chainType
	unlock()

	defer func() {
		lock()
		e.chainType = restoreType
		unlock()
	}()
	closure.Invoke(ret, params, &e.hint)
}

// chainTargetLocked finds the class closure one level up the override
// chain of the class closure running on instance.
func chainTargetLocked(instance value.Instance) (e *emission, c *Closure, chainType, restoreType value.Type) {
	e = innermostEmission(instance)
	if e == nil {
		logger().Warn(
			"no signal is being emitted for instance",
			slogfield.Type(instance.InstanceType().Name()),
		)
		return nil, nil, 0, 0
	}
	node := lookupNode(e.hint.SignalID)
	if e.chainType == value.None {
		logger().Warn(
			"signal can not be chained from the current emission stage",
			slogfield.Signal(node.name),
		)
		return nil, nil, 0, 0
	}

	_, restoreType, _ = node.findClassClosure(e.chainType)
	parent, parentType, ok := node.findClassClosure(restoreType.Parent())
	if !ok || parentType == restoreType {
		return e, nil, 0, 0
	}
	return e, parent, parentType, restoreType
}

// ChainFromOverriddenHandler is like [ChainFromOverridden] with the
// arguments of the signal passed directly.
func ChainFromOverriddenHandler(instance value.Instance, args ...any) value.Value {
	if instance == nil {
		logger().Error("can not chain on nil instance")
		return value.Value{}
	}

	lock()
	e := innermostEmission(instance)
	if e == nil {
		logger().Warn(
			"no signal is being emitted for instance",
			slogfield.Type(instance.InstanceType().Name()),
		)
		unlock()
		return value.Value{}
	}
	node := lookupNode(e.hint.SignalID)
	ptypes, rtype := node.params, node.returnType
	unlock()

	if len(args) != len(ptypes) {
		logger().Error(
			"wrong number of signal arguments",
			slogfield.Signal(node.name),
			slogfield.Int("expected", len(ptypes)),
			slogfield.Int("actual", len(args)),
		)
		return value.Value{}
	}

	params := make([]value.Value, len(args)+1)
	defer unsetAll(params)
	params[0].InitFromInstance(instance)
	for i, a := range args {
		v, err := value.New(ptypes[i], a)
		if err != nil {
			logger().Error(
				"can not collect signal argument",
				slogfield.Signal(node.name),
				slogfield.Int("param", i+1),
				slogfield.Error(err),
			)
			return value.Value{}
		}
		params[i+1] = v
	}

	var ret value.Value
	var retp *value.Value
	if rtype != value.None {
		retp = ret.Init(rtype)
	}
	ChainFromOverridden(params, retp)
	return ret
}
