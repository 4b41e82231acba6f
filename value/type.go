// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package value provides the process wide type registry, polymorphic
// [Value] cells and the registry of transforms between value types.
package value

import (
	"sync"

	"github.com/z5labs/strata/pkg/slogfield"
)

// Type identifies a registered type. The zero Type is [Invalid].
type Type uint32

// Fundamental types. Every registered type descends from exactly one of
// these.
const (
	Invalid Type = iota
	None
	Interface
	Boolean
	Int
	Uint
	Int64
	Uint64
	Float
	Double
	String
	Pointer
	Boxed
	Object
	VariantType
)

// Instance is implemented by anything signals can be connected to and
// emitted on.
type Instance interface {
	InstanceType() Type
}

// RefCounted is implemented by instances whose lifetime is managed by
// reference counting. Values holding such instances take a reference.
type RefCounted interface {
	Ref()
	Unref()
}

type typeNode struct {
	name        string
	parent      Type
	fundamental Type
	table       *Table
	ifaces      []Type
	children    []Type
}

var registry = struct {
	mu     sync.RWMutex
	nodes  []*typeNode
	byName map[string]Type
}{
	byName: make(map[string]Type),
}

func init() {
	registerFundamentals()
	registerDefaultTransforms()
}

func registerFundamentals() {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	fundamentals := []struct {
		name  string
		table *Table
	}{
		{name: "invalid"},
		{name: "void"},
		{name: "Interface"},
		{name: "bool", table: boolTable},
		{name: "int", table: intTable},
		{name: "uint", table: uintTable},
		{name: "int64", table: int64Table},
		{name: "uint64", table: uint64Table},
		{name: "float", table: floatTable},
		{name: "double", table: doubleTable},
		{name: "string", table: stringTable},
		{name: "pointer", table: pointerTable},
		{name: "boxed", table: boxedTable},
		{name: "Object", table: objectTable},
		{name: "variant", table: variantTable},
	}
	for i, f := range fundamentals {
		registry.nodes = append(registry.nodes, &typeNode{
			name:        f.name,
			fundamental: Type(i),
			table:       f.table,
		})
		if i != int(Invalid) {
			registry.byName[f.name] = Type(i)
		}
	}
}

func node(t Type) *typeNode {
	if int(t) >= len(registry.nodes) {
		return nil
	}
	return registry.nodes[t]
}

// Register registers a new type named name deriving from parent. A nil
// table inherits the value table of the parent.
//
// Registering the same name under the same parent again returns the
// existing type. If the name is already registered elsewhere in the
// hierarchy, [Invalid] is returned.
func Register(parent Type, name string, table *Table) Type {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if existing, ok := registry.byName[name]; ok {
		if registry.nodes[existing].parent == parent && existing > VariantType {
			return existing
		}
		logger().Error(
			"type name already registered elsewhere in the hierarchy",
			slogfield.Type(name),
		)
		return Invalid
	}

	p := node(parent)
	if p == nil || parent == Invalid || parent == None {
		logger().Error("invalid parent type", slogfield.Type(name), slogfield.Uint32("parent", uint32(parent)))
		return Invalid
	}
	if table == nil {
		table = p.table
	}

	t := Type(len(registry.nodes))
	registry.nodes = append(registry.nodes, &typeNode{
		name:        name,
		parent:      parent,
		fundamental: p.fundamental,
		table:       table,
	})
	registry.byName[name] = t
	p.children = append(p.children, t)
	return t
}

// RegisterInterface registers a new interface type.
func RegisterInterface(name string) Type {
	return Register(Interface, name, nil)
}

// AddInterface records that instanceType implements iface.
func AddInterface(instanceType, iface Type) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	n, in := node(instanceType), node(iface)
	if n == nil || in == nil || in.fundamental != Interface {
		logger().Error(
			"can not add interface",
			slogfield.Uint32("instance_type", uint32(instanceType)),
			slogfield.Uint32("interface", uint32(iface)),
		)
		return
	}
	for _, have := range n.ifaces {
		if have == iface {
			return
		}
	}
	n.ifaces = append(n.ifaces, iface)
}

// FromName returns the type registered under name.
func FromName(name string) Type {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	return registry.byName[name]
}

// Name returns the registered name of t.
func (t Type) Name() string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	n := node(t)
	if n == nil {
		return "invalid"
	}
	return n.name
}

// String implements the [fmt.Stringer] interface.
func (t Type) String() string {
	return t.Name()
}

// Parent returns the parent of t, or [Invalid] for fundamental types.
func (t Type) Parent() Type {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	n := node(t)
	if n == nil {
		return Invalid
	}
	return n.parent
}

// Fundamental returns the fundamental type t descends from.
func (t Type) Fundamental() Type {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	n := node(t)
	if n == nil {
		return Invalid
	}
	return n.fundamental
}

// Interfaces returns the interfaces implemented by t and its ancestors.
func (t Type) Interfaces() []Type {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	var ifaces []Type
	for n := node(t); n != nil; n = node(n.parent) {
		ifaces = append(ifaces, n.ifaces...)
		if n.parent == Invalid {
			break
		}
	}
	return ifaces
}

// IsValid reports whether t is a registered type other than [Invalid].
func (t Type) IsValid() bool {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	return t != Invalid && node(t) != nil
}

// SupportsValue reports whether t has a value table.
func (t Type) SupportsValue() bool {
	return t.table() != nil
}

// IsA reports whether t is ancestor or descends from it. If ancestor is
// an interface, IsA reports whether t or one of its ancestors implements it.
func (t Type) IsA(ancestor Type) bool {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	return isA(t, ancestor)
}

func isA(t, ancestor Type) bool {
	if t == ancestor {
		return t != Invalid
	}
	a := node(ancestor)
	if a == nil {
		return false
	}
	for n := node(t); n != nil; n = node(n.parent) {
		if a.fundamental == Interface {
			for _, iface := range n.ifaces {
				if iface == ancestor {
					return true
				}
			}
		}
		if n.parent == ancestor {
			return true
		}
		if n.parent == Invalid {
			return false
		}
	}
	return false
}

// ancestors returns t followed by its parents and then the interfaces
// implemented along the way.
func ancestors(t Type) []Type {
	var chain, ifaces []Type
	for n := node(t); n != nil; n = node(n.parent) {
		chain = append(chain, t)
		ifaces = append(ifaces, n.ifaces...)
		if n.parent == Invalid {
			break
		}
		t = n.parent
	}
	return append(chain, ifaces...)
}

func (t Type) table() *Table {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	n := node(t)
	if n == nil {
		return nil
	}
	return n.table
}
