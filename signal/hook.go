// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package signal

import (
	"github.com/z5labs/strata/pkg/slogfield"
	"github.com/z5labs/strata/quark"
	"github.com/z5labs/strata/value"
)

// HookID identifies an emission hook. Zero is never a valid HookID.
type HookID uint64

// EmissionHook observes every emission of a signal, on any instance.
// Returning false removes the hook.
type EmissionHook func(hint *InvocationHint, params []value.Value) bool

type emissionHook struct {
	id      HookID
	detail  quark.Quark
	fn      EmissionHook
	destroy func()
	removed bool
}

var hookSeq HookID

// AddEmissionHook adds fn as an emission hook of the signal, limited to
// emissions with detail unless detail is zero. destroy, if not nil, is
// called once the hook is removed.
func AddEmissionHook(id ID, detail quark.Quark, fn EmissionHook, destroy func()) HookID {
	if fn == nil {
		logger().Error("emission hook requires a func")
		return 0
	}

	lock()
	defer unlock()

	node := lookupNode(id)
	if node == nil || node.destroyed {
		logger().Error("invalid signal id", slogfield.Uint32("signal_id", uint32(id)))
		return 0
	}
	if node.flags&NoHooks != 0 {
		logger().Error("signal does not support emission hooks", slogfield.Signal(node.name))
		return 0
	}
	if detail != 0 && node.flags&Detailed == 0 {
		logger().Error("signal does not support details", slogfield.Signal(node.name), slogfield.Detail(detail.String()))
		return 0
	}

	hookSeq++
	node.hooks = append(node.hooks, &emissionHook{
		id:      hookSeq,
		detail:  detail,
		fn:      fn,
		destroy: destroy,
	})
	node.fastValid = false
	return hookSeq
}

// RemoveEmissionHook removes an emission hook added with [AddEmissionHook].
func RemoveEmissionHook(id ID, hookID HookID) {
	lock()
	defer unlock()

	node := lookupNode(id)
	if node == nil {
		logger().Error("invalid signal id", slogfield.Uint32("signal_id", uint32(id)))
		return
	}
	for _, h := range node.hooks {
		if h.id == hookID {
			node.removeHook(h)
			return
		}
	}
	logger().Warn(
		"signal has no emission hook with id",
		slogfield.Signal(node.name),
		slogfield.Uint64("hook_id", uint64(hookID)),
	)
}

func (n *signalNode) removeHook(h *emissionHook) {
	if h.removed {
		return
	}
	h.removed = true
	for i, have := range n.hooks {
		if have == h {
			n.hooks = append(n.hooks[:i:i], n.hooks[i+1:]...)
			break
		}
	}
	n.fastValid = false
	if h.destroy != nil {
		deferRelease(h.destroy)
	}
}

// runHooks invokes the emission hooks of n. It is called and returns
// with mu held.
func (n *signalNode) runHooks(e *emission, params []value.Value) {
	hooks := append([]*emissionHook(nil), n.hooks...)
	for _, h := range hooks {
		if h.removed || (h.detail != 0 && h.detail != e.hint.Detail) {
			continue
		}
		hint := e.hint
		unlock()
		keep := h.fn(&hint, params)
		lock()
		if !keep {
			n.removeHook(h)
		}
	}
}
