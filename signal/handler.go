// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package signal

import (
	"math"
	"reflect"
	"slices"

	"github.com/z5labs/strata/pkg/slogfield"
	"github.com/z5labs/strata/quark"
	"github.com/z5labs/strata/value"
)

// HandlerID identifies a connected handler. Handler ids increase
// monotonically across all signals and instances, and zero is never a
// valid HandlerID.
type HandlerID uint64

type handler struct {
	seq        HandlerID
	signal     ID
	instance   value.Instance
	detail     quark.Quark
	closure    *Closure
	after      bool
	blockCount uint16
	notifierID uint64
}

func (h *handler) matchesDetail(detail quark.Quark) bool {
	return h.detail == 0 || h.detail == detail
}

// handlerList keeps every handler connected without the after flag ahead
// of those connected with it.
type handlerList struct {
	hs      []*handler
	nBefore int
}

func (l *handlerList) insert(h *handler) {
	if h.after {
		l.hs = append(l.hs, h)
		return
	}
	l.hs = slices.Insert(l.hs, l.nBefore, h)
	l.nBefore++
}

func (l *handlerList) remove(h *handler) {
	i := slices.Index(l.hs, h)
	if i < 0 {
		return
	}
	l.hs = slices.Delete(slices.Clone(l.hs), i, i+1)
	if !h.after {
		l.nBefore--
	}
}

// Instances are used as map keys, so they must be comparable, e.g.
// pointers.
var (
	handlerSeq HandlerID
	handlers   = make(map[value.Instance]map[ID]*handlerList)
	byID       = make(map[HandlerID]*handler)
)

func lookupHandlers(instance value.Instance, id ID) *handlerList {
	return handlers[instance][id]
}

// ConnectClosureByID connects c to the signal on instance and returns
// the id of the new handler, or zero if the connection is invalid.
func ConnectClosureByID(instance value.Instance, id ID, detail quark.Quark, c *Closure, after bool) HandlerID {
	if instance == nil || c == nil {
		logger().Error("connecting requires an instance and a closure")
		return 0
	}

	lock()
	defer unlock()

	node := lookupNode(id)
	if node == nil || node.destroyed {
		logger().Error("invalid signal id", slogfield.Uint32("signal_id", uint32(id)))
		return 0
	}
	if detail != 0 && node.flags&Detailed == 0 {
		logger().Error("signal does not support details", slogfield.Signal(node.name), slogfield.Detail(detail.String()))
		return 0
	}
	if !instance.InstanceType().IsA(node.owner) {
		logger().Error(
			"signal is invalid for instance",
			slogfield.Signal(node.name),
			slogfield.Type(instance.InstanceType().Name()),
		)
		return 0
	}
	return connectLocked(node, instance, detail, c, after)
}

func connectLocked(node *signalNode, instance value.Instance, detail quark.Quark, c *Closure, after bool) HandlerID {
	if node.flags&Deprecated != 0 {
		logger().Warn("signal is deprecated", slogfield.Signal(node.name))
	}

	handlerSeq++
	h := &handler{
		seq:      handlerSeq,
		signal:   node.id,
		instance: instance,
		detail:   detail,
		closure:  c,
		after:    after,
	}
	c.Ref()
	c.Sink()
	c.inheritMarshallers(node.marshal, node.vaMarshal)

	byInstance, ok := handlers[instance]
	if !ok {
		byInstance = make(map[ID]*handlerList)
		handlers[instance] = byInstance
	}
	l, ok := byInstance[node.id]
	if !ok {
		l = &handlerList{}
		byInstance[node.id] = l
	}
	l.insert(h)
	byID[h.seq] = h
	node.fastValid = false

	seq := h.seq
	h.notifierID = c.AddInvalidateNotifier(func() {
		lock()
		defer unlock()
		if h, ok := byID[seq]; ok {
			disconnectLocked(h)
		}
	})
	return h.seq
}

// ConnectClosure connects c to the detailed signal, e.g. "notify::name",
// on instance.
func ConnectClosure(instance value.Instance, detailedSignal string, c *Closure, after bool) HandlerID {
	if instance == nil || c == nil {
		logger().Error("connecting requires an instance and a closure")
		return 0
	}

	lock()
	defer unlock()

	id, detail, err := parseNameLocked(detailedSignal, instance.InstanceType(), true)
	if err != nil {
		logger().Error(
			"can not connect to signal",
			slogfield.Signal(detailedSignal),
			slogfield.Type(instance.InstanceType().Name()),
			slogfield.Error(err),
		)
		return 0
	}
	return connectLocked(lookupNode(id), instance, detail, c, after)
}

// Connect connects fn to the detailed signal on instance. See
// [NewClosure] for the accepted funcs.
func Connect(instance value.Instance, detailedSignal string, fn any, opts ...ClosureOption) HandlerID {
	c := NewClosure(fn, opts...)
	if c == nil {
		return 0
	}
	return ConnectClosure(instance, detailedSignal, c, false)
}

// ConnectAfter is like [Connect] but the handler runs after the class
// closure of signals which run last.
func ConnectAfter(instance value.Instance, detailedSignal string, fn any, opts ...ClosureOption) HandlerID {
	c := NewClosure(fn, opts...)
	if c == nil {
		return 0
	}
	return ConnectClosure(instance, detailedSignal, c, true)
}

func handlerFor(instance value.Instance, id HandlerID) *handler {
	h, ok := byID[id]
	if !ok || h.instance != instance {
		logger().Warn("instance has no handler with id", slogfield.HandlerID(uint64(id)))
		return nil
	}
	return h
}

// Block blocks the handler. A blocked handler is skipped by emissions
// until it has been unblocked as often as it was blocked.
func Block(instance value.Instance, id HandlerID) {
	lock()
	defer unlock()

	h := handlerFor(instance, id)
	if h == nil {
		return
	}
	if h.blockCount == math.MaxUint16 {
		logger().Error("handler block count overflow", slogfield.HandlerID(uint64(id)))
		return
	}
	h.blockCount++
}

// Unblock undoes one [Block] of the handler.
func Unblock(instance value.Instance, id HandlerID) {
	lock()
	defer unlock()

	h := handlerFor(instance, id)
	if h == nil {
		return
	}
	if h.blockCount == 0 {
		logger().Warn("handler is not blocked", slogfield.HandlerID(uint64(id)))
		return
	}
	h.blockCount--
}

// Disconnect disconnects the handler. It is not invoked again, even by
// an emission which is currently running.
func Disconnect(instance value.Instance, id HandlerID) {
	lock()
	defer unlock()

	h := handlerFor(instance, id)
	if h == nil {
		return
	}
	disconnectLocked(h)
}

func disconnectLocked(h *handler) {
	delete(byID, h.seq)
	if byInstance, ok := handlers[h.instance]; ok {
		if l, ok := byInstance[h.signal]; ok {
			l.remove(h)
			if len(l.hs) == 0 {
				delete(byInstance, h.signal)
			}
		}
		if len(byInstance) == 0 {
			delete(handlers, h.instance)
		}
	}
	h.seq = 0
	h.blockCount = 1
	if node := lookupNode(h.signal); node != nil {
		node.fastValid = false
	}

	c, nid := h.closure, h.notifierID
	deferRelease(func() {
		c.RemoveInvalidateNotifier(nid)
		c.Unref()
	})
}

// HandlerIsConnected reports whether the handler is connected on instance.
func HandlerIsConnected(instance value.Instance, id HandlerID) bool {
	lock()
	defer unlock()

	h, ok := byID[id]
	return ok && h.instance == instance
}

// HandlersDestroy disconnects every handler connected on instance.
func HandlersDestroy(instance value.Instance) {
	lock()
	defer unlock()

	var hs []*handler
	for _, l := range handlers[instance] {
		hs = append(hs, l.hs...)
	}
	for _, h := range hs {
		disconnectLocked(h)
	}
}

// MatchType selects the fields of a [Match] which handlers are compared
// against.
type MatchType uint8

const (
	MatchID MatchType = 1 << iota
	MatchDetail
	MatchClosure
	MatchFunc
	MatchData
	MatchUnblocked
)

// Match describes the handlers selected by the match functions.
type Match struct {
	Mask    MatchType
	Signal  ID
	Detail  quark.Quark
	Closure *Closure
	Func    any
	Data    any
}

func (m Match) matches(h *handler) bool {
	switch {
	case m.Mask&MatchID != 0 && h.signal != m.Signal:
		return false
	case m.Mask&MatchDetail != 0 && h.detail != m.Detail:
		return false
	case m.Mask&MatchClosure != 0 && h.closure != m.Closure:
		return false
	case m.Mask&MatchFunc != 0 && h.closure.fnPtr != funcPointer(m.Func):
		return false
	case m.Mask&MatchData != 0 && !sameData(h.closure.data, m.Data):
		return false
	case m.Mask&MatchUnblocked != 0 && h.blockCount != 0:
		return false
	}
	return true
}

func funcPointer(fn any) uintptr {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return 0
	}
	return rv.Pointer()
}

func sameData(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// findLocked returns the handlers on instance selected by m, in
// connection order.
func findLocked(instance value.Instance, m Match) []*handler {
	var found []*handler
	for id, l := range handlers[instance] {
		if m.Mask&MatchID != 0 && id != m.Signal {
			continue
		}
		for _, h := range l.hs {
			if m.matches(h) {
				found = append(found, h)
			}
		}
	}
	slices.SortFunc(found, func(a, b *handler) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	return found
}

// HandlerFind returns the first handler on instance selected by m, or
// zero if there is none.
func HandlerFind(instance value.Instance, m Match) HandlerID {
	if m.Mask == 0 {
		logger().Error("handler match requires a mask")
		return 0
	}

	lock()
	defer unlock()

	found := findLocked(instance, m)
	if len(found) == 0 {
		return 0
	}
	return found[0].seq
}

func matchedLocked(instance value.Instance, m Match, op string) []*handler {
	if m.Mask&(MatchClosure|MatchFunc|MatchData) == 0 {
		logger().Error(
			"handler match must select a closure, func or data",
			slogfield.String("operation", op),
		)
		return nil
	}
	return findLocked(instance, m)
}

// BlockMatched blocks every handler on instance selected by m and
// returns their number. m must select a closure, func or data.
func BlockMatched(instance value.Instance, m Match) int {
	lock()
	defer unlock()

	found := matchedLocked(instance, m, "block")
	n := 0
	for _, h := range found {
		if h.blockCount == math.MaxUint16 {
			logger().Error("handler block count overflow", slogfield.HandlerID(uint64(h.seq)))
			continue
		}
		h.blockCount++
		n++
	}
	return n
}

// UnblockMatched unblocks every handler on instance selected by m and
// returns their number. m must select a closure, func or data.
func UnblockMatched(instance value.Instance, m Match) int {
	lock()
	defer unlock()

	found := matchedLocked(instance, m, "unblock")
	n := 0
	for _, h := range found {
		if h.blockCount == 0 {
			logger().Warn("handler is not blocked", slogfield.HandlerID(uint64(h.seq)))
			continue
		}
		h.blockCount--
		n++
	}
	return n
}

// DisconnectMatched disconnects every handler on instance selected by m
// and returns their number. m must select a closure, func or data.
func DisconnectMatched(instance value.Instance, m Match) int {
	lock()
	defer unlock()

	found := matchedLocked(instance, m, "disconnect")
	for _, h := range found {
		disconnectLocked(h)
	}
	return len(found)
}

// HasHandlerPending reports whether emitting the signal with detail on
// instance would invoke a handler other than the default class closure.
// Blocked handlers are only considered if mayBeBlocked is true.
func HasHandlerPending(instance value.Instance, id ID, detail quark.Quark, mayBeBlocked bool) bool {
	lock()
	defer unlock()

	node := lookupNode(id)
	if node == nil || node.destroyed {
		logger().Error("invalid signal id", slogfield.Uint32("signal_id", uint32(id)))
		return false
	}
	if detail != 0 && node.flags&Detailed == 0 {
		logger().Error("signal does not support details", slogfield.Signal(node.name), slogfield.Detail(detail.String()))
		return false
	}

	if l := lookupHandlers(instance, id); l != nil {
		for _, h := range l.hs {
			if h.matchesDetail(detail) && (mayBeBlocked || h.blockCount == 0) {
				return true
			}
		}
	}
	_, t, ok := node.findClassClosure(instance.InstanceType())
	return ok && t != value.Invalid
}
