// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package action

import (
	"slices"
	"sync"

	"github.com/z5labs/strata/object"
	"github.com/z5labs/strata/pkg/slogfield"
	"github.com/z5labs/strata/signal"
	"github.com/z5labs/strata/value"
	"github.com/z5labs/strata/variant"
)

// TypeSimpleGroup is the instance type of [SimpleGroup].
var TypeSimpleGroup = value.Register(value.Object, "SimpleActionGroup", nil)

func init() {
	value.AddInterface(TypeSimpleGroup, TypeGroup)
	value.AddInterface(TypeSimpleGroup, TypeMap)
}

// Map is a mutable container of actions keyed by name.
type Map interface {
	// LookupAction returns the named action or nil.
	LookupAction(name string) Action

	// AddAction adds a, replacing any action of the same name.
	AddAction(a Action)

	// RemoveAction removes the named action if there is one.
	RemoveAction(name string)
}

type mapEntry struct {
	action   Action
	handlers []signal.HandlerID
}

// SimpleGroup is a [Map] which is also a [Group] over the actions it
// contains. Changes of the enabled flag or state of an action are
// re-emitted as group signals.
type SimpleGroup struct {
	GroupBase

	mu      sync.Mutex
	actions map[string]*mapEntry
}

// NewSimpleGroup returns an empty group.
func NewSimpleGroup() *SimpleGroup {
	g := &SimpleGroup{}
	g.Init(TypeSimpleGroup, g)
	return g
}

// Init initialises g as an instance of t. self is the value embedding
// g which signals are emitted on.
func (g *SimpleGroup) Init(t value.Type, self Group) {
	g.GroupBase.Init(t, self)
	g.actions = make(map[string]*mapEntry)
	g.OnDispose(g.removeAll)
}

// ListActions implements the [Group] interface. The names are sorted.
func (g *SimpleGroup) ListActions() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	names := make([]string, 0, len(g.actions))
	for name := range g.actions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// QueryAction implements the [Group] interface.
func (g *SimpleGroup) QueryAction(name string) (Info, bool) {
	a := g.LookupAction(name)
	if a == nil {
		return Info{}, false
	}
	return Info{
		Enabled:       a.Enabled(),
		ParameterType: a.ParameterType(),
		StateType:     a.StateType(),
		StateHint:     a.StateHint(),
		State:         a.State(),
	}, true
}

// ActivateAction implements the [Group] interface.
func (g *SimpleGroup) ActivateAction(name string, parameter variant.Variant) {
	a := g.LookupAction(name)
	if a == nil {
		logger().Error("can not activate unknown action", slogfield.Action(name))
		return
	}
	a.Activate(parameter)
}

// ChangeActionState implements the [Group] interface.
func (g *SimpleGroup) ChangeActionState(name string, v variant.Variant) {
	a := g.LookupAction(name)
	if a == nil {
		logger().Error("can not change state of unknown action", slogfield.Action(name))
		return
	}
	a.ChangeState(v)
}

// LookupAction implements the [Map] interface.
func (g *SimpleGroup) LookupAction(name string) Action {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.actions[name]
	if !ok {
		return nil
	}
	return e.action
}

// AddAction implements the [Map] interface. An action of the same name
// is removed first, so subscribers observe its removal before the
// addition of a.
func (g *SimpleGroup) AddAction(a Action) {
	if a == nil {
		logger().Error("can not add nil action")
		return
	}
	name := a.Name()
	if name == "" {
		logger().Error("can not add action without name")
		return
	}

	old := g.LookupAction(name)
	if old == a {
		return
	}
	if old != nil {
		g.RemoveAction(name)
	}

	e := &mapEntry{action: a}
	if _, ok := a.(interface{ Notify(string) }); ok {
		e.handlers = append(e.handlers, object.ConnectNotify(a, "enabled", func(value.Instance, string) {
			g.ActionEnabledChanged(name, a.Enabled())
		}))
		if !a.StateType().IsZero() {
			e.handlers = append(e.handlers, object.ConnectNotify(a, "state", func(value.Instance, string) {
				g.ActionStateChanged(name, a.State())
			}))
		}
	}
	if rc, ok := a.(value.RefCounted); ok {
		rc.Ref()
	}

	g.mu.Lock()
	g.actions[name] = e
	g.mu.Unlock()

	g.ActionAdded(name)
}

// RemoveAction implements the [Map] interface.
func (g *SimpleGroup) RemoveAction(name string) {
	g.mu.Lock()
	e, ok := g.actions[name]
	g.mu.Unlock()
	if !ok {
		return
	}

	g.ActionRemoved(name)

	g.mu.Lock()
	if g.actions[name] == e {
		delete(g.actions, name)
	}
	g.mu.Unlock()
	e.release()
}

func (g *SimpleGroup) removeAll() {
	g.mu.Lock()
	entries := g.actions
	g.actions = make(map[string]*mapEntry)
	g.mu.Unlock()

	for _, e := range entries {
		e.release()
	}
}

func (e *mapEntry) release() {
	for _, id := range e.handlers {
		signal.Disconnect(e.action, id)
	}
	if rc, ok := e.action.(value.RefCounted); ok {
		rc.Unref()
	}
}

// Lookup returns the named action of m if it is a [Simple] action.
func Lookup(m Map, name string) (*Simple, bool) {
	a, ok := m.LookupAction(name).(*Simple)
	return a, ok
}

// SetEnabled enables or disables the named [Simple] action of m. It
// reports whether such an action exists.
func SetEnabled(m Map, name string, enabled bool) bool {
	a, ok := Lookup(m, name)
	if !ok {
		return false
	}
	a.SetEnabled(enabled)
	return true
}
