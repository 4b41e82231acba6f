// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package value

import (
	"strconv"
	"sync"

	"github.com/z5labs/strata/pkg/slogfield"
)

// TransformFunc converts src into dst. dst is freshly initialised with
// its own type when the function is called.
type TransformFunc func(src, dst *Value)

type transformKey struct {
	src Type
	dst Type
}

var transforms = struct {
	mu      sync.RWMutex
	entries map[transformKey]TransformFunc
}{
	entries: make(map[transformKey]TransformFunc),
}

// RegisterTransform registers fn as the transform from src to dst,
// replacing any previously registered one.
func RegisterTransform(src, dst Type, fn TransformFunc) {
	if fn == nil {
		logger().Error("can not register nil transform")
		return
	}
	if src.table() == nil || dst.table() == nil {
		logger().Error(
			"can not register transform for type without value table",
			slogfield.Type(src.Name()),
			slogfield.String("dst_type", dst.Name()),
		)
		return
	}

	transforms.mu.Lock()
	defer transforms.mu.Unlock()

	transforms.entries[transformKey{src: src, dst: dst}] = fn
}

// TypeCompatible reports whether values of src can be copied into values
// of dst, i.e. dst is a supertype of src and both share a value table.
func TypeCompatible(src, dst Type) bool {
	if src == Invalid || dst == Invalid {
		return false
	}
	if src == dst {
		return true
	}
	srcTable := src.table()
	return srcTable != nil && srcTable == dst.table() && src.IsA(dst)
}

// Transformable reports whether values of src can be transformed into
// values of dst.
func Transformable(src, dst Type) bool {
	if TypeCompatible(src, dst) {
		return true
	}
	return lookupTransform(src, dst) != nil
}

// lookupTransform walks src up its ancestry and, for each ancestor, walks
// dst up its ancestry. The first registered transform between ancestors
// whose current value tables equal those of src and dst is returned.
func lookupTransform(src, dst Type) TransformFunc {
	srcChain, dstChain := tabledAncestors(src), tabledAncestors(dst)
	if len(srcChain) == 0 || len(dstChain) == 0 {
		return nil
	}

	transforms.mu.RLock()
	defer transforms.mu.RUnlock()

	for _, s := range srcChain {
		if s.table != srcChain[0].table {
			continue
		}
		for _, d := range dstChain {
			if d.table != dstChain[0].table {
				continue
			}
			fn, ok := transforms.entries[transformKey{src: s.typ, dst: d.typ}]
			if ok {
				return fn
			}
		}
	}
	return nil
}

type tabledType struct {
	typ   Type
	table *Table
}

// tabledAncestors returns the ancestors of t paired with the value
// tables they have now. It is empty if t has no value table.
func tabledAncestors(t Type) []tabledType {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	n := node(t)
	if n == nil || n.table == nil {
		return nil
	}
	chain := ancestors(t)
	out := make([]tabledType, 0, len(chain))
	for _, a := range chain {
		an := node(a)
		if an == nil {
			continue
		}
		out = append(out, tabledType{typ: a, table: an.table})
	}
	return out
}

// Transform stores the contents of src into dst. Compatible types are
// copied, otherwise a registered transform is used. If neither applies
// dst is left untouched and false is returned.
func Transform(src, dst *Value) bool {
	if src == nil || dst == nil || !src.IsInitialized() || !dst.IsInitialized() {
		logger().Error("can not transform uninitialised value")
		return false
	}
	if TypeCompatible(src.typ, dst.typ) {
		src.Copy(dst)
		return true
	}

	fn := lookupTransform(src.typ, dst.typ)
	if fn == nil {
		return false
	}
	t := dst.typ
	dst.Unset()
	dst.Init(t)
	fn(src, dst)
	return true
}

func registerDefaultTransforms() {
	numeric := []Type{Boolean, Int, Uint, Int64, Uint64, Float, Double}
	for _, s := range numeric {
		for _, d := range numeric {
			if s == d {
				continue
			}
			RegisterTransform(s, d, numericTransform)
		}
		RegisterTransform(s, String, numericToString)
	}
}

func numericTransform(src, dst *Value) {
	var i int64
	var u uint64
	var f float64
	isFloat, isUnsigned := false, false

	switch src.typ.Fundamental() {
	case Boolean:
		if src.num != 0 {
			i = 1
		}
	case Int:
		i = int64(int32(src.num))
	case Uint:
		u, isUnsigned = uint64(uint32(src.num)), true
	case Int64:
		i = int64(src.num)
	case Uint64:
		u, isUnsigned = src.num, true
	case Float:
		f, isFloat = float64(src.Float()), true
	case Double:
		f, isFloat = src.Double(), true
	}
	if isUnsigned {
		i = int64(u)
	}
	if isFloat {
		i, u = int64(f), uint64(f)
	} else if !isUnsigned {
		u = uint64(i)
	}

	switch dst.typ.Fundamental() {
	case Boolean:
		dst.num = 0
		if i != 0 || u != 0 || f != 0 {
			dst.num = 1
		}
	case Int:
		dst.num = uint64(int64(int32(i)))
	case Uint:
		dst.num = uint64(uint32(u))
	case Int64:
		dst.num = uint64(i)
	case Uint64:
		dst.num = u
	case Float:
		if !isFloat {
			f = float64(i)
			if isUnsigned {
				f = float64(u)
			}
		}
		dst.SetFloat(float32(f))
	case Double:
		if !isFloat {
			f = float64(i)
			if isUnsigned {
				f = float64(u)
			}
		}
		dst.SetDouble(f)
	}
}

func numericToString(src, dst *Value) {
	var s string
	switch src.typ.Fundamental() {
	case Boolean:
		s = "FALSE"
		if src.num != 0 {
			s = "TRUE"
		}
	case Int:
		s = strconv.FormatInt(int64(int32(src.num)), 10)
	case Uint:
		s = strconv.FormatUint(uint64(uint32(src.num)), 10)
	case Int64:
		s = strconv.FormatInt(int64(src.num), 10)
	case Uint64:
		s = strconv.FormatUint(src.num, 10)
	case Float:
		s = strconv.FormatFloat(float64(src.Float()), 'f', 6, 32)
	case Double:
		s = strconv.FormatFloat(src.Double(), 'f', 6, 64)
	}
	dst.SetString(s)
}
