// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package variant provides immutable, self describing tagged values.
//
// A [Variant] pairs a [Type] with a value. Variants are used to carry
// action parameters and state, platform data dictionaries and targets of
// detailed action names. Variants have a textual representation which
// can be produced with [Variant.Print] and read back with [Parse].
//
// Variants are immutable values, so callers always pass owned values and
// there is no notion of floating references.
package variant

import (
	"math"
	"sort"
	"unicode/utf8"
)

// Variant is an immutable typed value.
// The zero Variant is invalid, see [Variant.IsValid].
type Variant struct {
	t Type
	v any
}

// NewBool returns a boolean Variant.
func NewBool(b bool) Variant { return Variant{t: TypeBoolean, v: b} }

// NewByte returns a byte Variant.
func NewByte(b uint8) Variant { return Variant{t: TypeByte, v: b} }

// NewInt16 returns an int16 Variant.
func NewInt16(n int16) Variant { return Variant{t: TypeInt16, v: n} }

// NewUint16 returns a uint16 Variant.
func NewUint16(n uint16) Variant { return Variant{t: TypeUint16, v: n} }

// NewInt32 returns an int32 Variant.
func NewInt32(n int32) Variant { return Variant{t: TypeInt32, v: n} }

// NewUint32 returns a uint32 Variant.
func NewUint32(n uint32) Variant { return Variant{t: TypeUint32, v: n} }

// NewInt64 returns an int64 Variant.
func NewInt64(n int64) Variant { return Variant{t: TypeInt64, v: n} }

// NewUint64 returns a uint64 Variant.
func NewUint64(n uint64) Variant { return Variant{t: TypeUint64, v: n} }

// NewDouble returns a double Variant.
func NewDouble(f float64) Variant { return Variant{t: TypeDouble, v: f} }

// NewString returns a string Variant. The zero Variant is returned if
// s is not valid UTF-8.
func NewString(s string) Variant {
	if !utf8.ValidString(s) {
		return Variant{}
	}
	return Variant{t: TypeString, v: s}
}

// NewObjectPath returns an object path Variant. The zero Variant
// is returned if s is not a valid object path.
func NewObjectPath(s string) Variant {
	if !IsObjectPath(s) {
		return Variant{}
	}
	return Variant{t: TypeObjectPath, v: s}
}

// NewSignature returns a signature Variant. The zero Variant
// is returned if s is not a valid signature.
func NewSignature(s string) Variant {
	if !IsSignature(s) {
		return Variant{}
	}
	return Variant{t: TypeSignature, v: s}
}

// NewVariant boxes child into a Variant of type "v".
func NewVariant(child Variant) Variant {
	if !child.IsValid() {
		return Variant{}
	}
	return Variant{t: TypeVariant, v: []Variant{child}}
}

// NewArray returns an array of elem typed items. If elem is the zero Type
// it is taken from the first item. The zero Variant is returned if an item
// does not have the element type or if no type can be determined.
func NewArray(elem Type, items ...Variant) Variant {
	if elem.IsZero() {
		if len(items) == 0 {
			return Variant{}
		}
		elem = items[0].t
	}
	if !elem.IsDefinite() {
		return Variant{}
	}
	for _, it := range items {
		if it.t != elem {
			return Variant{}
		}
	}
	return Variant{t: NewArrayType(elem), v: clone(items)}
}

// NewStrings returns an "as" Variant. The zero Variant is returned if
// any of ss is not valid UTF-8.
func NewStrings(ss ...string) Variant {
	items := make([]Variant, len(ss))
	for i, s := range ss {
		items[i] = NewString(s)
		if !items[i].IsValid() {
			return Variant{}
		}
	}
	return Variant{t: TypeStrings, v: items}
}

// NewTuple returns a tuple of the given items.
func NewTuple(items ...Variant) Variant {
	ts := make([]Type, len(items))
	for i, it := range items {
		if !it.IsValid() {
			return Variant{}
		}
		ts[i] = it.t
	}
	return Variant{t: NewTupleType(ts...), v: clone(items)}
}

// NewDictEntry returns a dictionary entry. The key must be of a basic type.
func NewDictEntry(key, value Variant) Variant {
	if !key.t.IsBasic() || !value.IsValid() {
		return Variant{}
	}
	return Variant{t: NewDictEntryType(key.t, value.t), v: []Variant{key, value}}
}

// NewMaybe returns a maybe of elem. A nil child is "nothing".
func NewMaybe(elem Type, child *Variant) Variant {
	if child == nil {
		if !elem.IsDefinite() {
			return Variant{}
		}
		return Variant{t: NewMaybeType(elem), v: []Variant{}}
	}
	if elem.IsZero() {
		elem = child.t
	}
	if child.t != elem {
		return Variant{}
	}
	return Variant{t: NewMaybeType(elem), v: []Variant{*child}}
}

// NewVardict returns an "a{sv}" dictionary. Entries are sorted by key.
func NewVardict(m map[string]Variant) Variant {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]Variant, 0, len(keys))
	for _, k := range keys {
		items = append(items, NewDictEntry(NewString(k), NewVariant(m[k])))
	}
	return Variant{t: TypeVardict, v: items}
}

func clone(vs []Variant) []Variant {
	out := make([]Variant, len(vs))
	copy(out, vs)
	return out
}

// IsValid reports whether v holds a value.
func (v Variant) IsValid() bool {
	return !v.t.IsZero()
}

// Type returns the type of v.
func (v Variant) Type() Type {
	return v.t
}

// IsOfType reports whether the type of v matches pattern.
func (v Variant) IsOfType(pattern Type) bool {
	return v.IsValid() && v.t.Is(pattern)
}

// Bool returns the value of a boolean Variant.
func (v Variant) Bool() bool {
	b, _ := v.v.(bool)
	return b
}

// Byte returns the value of a byte Variant.
func (v Variant) Byte() uint8 {
	n, _ := v.v.(uint8)
	return n
}

// Int16 returns the value of an int16 Variant.
func (v Variant) Int16() int16 {
	n, _ := v.v.(int16)
	return n
}

// Uint16 returns the value of a uint16 Variant.
func (v Variant) Uint16() uint16 {
	n, _ := v.v.(uint16)
	return n
}

// Int32 returns the value of an int32 Variant.
func (v Variant) Int32() int32 {
	n, _ := v.v.(int32)
	return n
}

// Uint32 returns the value of a uint32 Variant.
func (v Variant) Uint32() uint32 {
	n, _ := v.v.(uint32)
	return n
}

// Int64 returns the value of an int64 Variant.
func (v Variant) Int64() int64 {
	n, _ := v.v.(int64)
	return n
}

// Uint64 returns the value of a uint64 Variant.
func (v Variant) Uint64() uint64 {
	n, _ := v.v.(uint64)
	return n
}

// Double returns the value of a double Variant.
func (v Variant) Double() float64 {
	f, _ := v.v.(float64)
	return f
}

// Str returns the value of a string, object path or signature Variant.
func (v Variant) Str() string {
	s, _ := v.v.(string)
	return s
}

// Strs returns the values of an "as" Variant.
func (v Variant) Strs() []string {
	if v.t != TypeStrings {
		return nil
	}
	items := v.v.([]Variant)
	ss := make([]string, len(items))
	for i, it := range items {
		ss[i] = it.Str()
	}
	return ss
}

// NChildren returns the number of children of a container Variant.
func (v Variant) NChildren() int {
	items, _ := v.v.([]Variant)
	return len(items)
}

// Child returns the i'th child of a container Variant.
func (v Variant) Child(i int) Variant {
	items, _ := v.v.([]Variant)
	if i < 0 || i >= len(items) {
		return Variant{}
	}
	return items[i]
}

// Children returns a copy of the children of a container Variant.
func (v Variant) Children() []Variant {
	items, _ := v.v.([]Variant)
	return clone(items)
}

// Unbox returns the child of a Variant of type "v".
func (v Variant) Unbox() Variant {
	if !v.t.IsVariant() {
		return Variant{}
	}
	return v.Child(0)
}

// Maybe returns the child of a maybe Variant and whether it is present.
func (v Variant) Maybe() (Variant, bool) {
	if !v.t.IsMaybe() || v.NChildren() == 0 {
		return Variant{}, false
	}
	return v.Child(0), true
}

// Lookup finds key in a dictionary with string keys. Values of type "v"
// are unboxed.
func (v Variant) Lookup(key string) (Variant, bool) {
	if !v.t.IsDict() || v.t.s[2] != 's' {
		return Variant{}, false
	}
	for _, entry := range v.v.([]Variant) {
		if entry.Child(0).Str() != key {
			continue
		}
		val := entry.Child(1)
		if val.t.IsVariant() {
			val = val.Unbox()
		}
		return val, true
	}
	return Variant{}, false
}

// Vardict returns the entries of an "a{sv}" Variant.
func (v Variant) Vardict() map[string]Variant {
	if v.t != TypeVardict {
		return nil
	}
	m := make(map[string]Variant, v.NChildren())
	for _, entry := range v.v.([]Variant) {
		m[entry.Child(0).Str()] = entry.Child(1).Unbox()
	}
	return m
}

// AsInt64 converts any integer Variant to an int64.
func (v Variant) AsInt64() (int64, bool) {
	switch n := v.v.(type) {
	case uint8:
		return int64(n), true
	case int16:
		return int64(n), true
	case uint16:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

// Equal reports whether v and o have the same type and value.
func (v Variant) Equal(o Variant) bool {
	if v.t != o.t {
		return false
	}
	switch x := v.v.(type) {
	case []Variant:
		y := o.v.([]Variant)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !x[i].Equal(y[i]) {
				return false
			}
		}
		return true
	case float64:
		y := o.v.(float64)
		if math.IsNaN(x) && math.IsNaN(y) {
			return true
		}
		return x == y
	default:
		return v.v == o.v
	}
}

// IsObjectPath reports whether s is a valid object path such as "/a/b_c".
func IsObjectPath(s string) bool {
	if s == "" || s[0] != '/' {
		return false
	}
	if s == "/" {
		return true
	}
	prev := byte('/')
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '/':
			if prev == '/' {
				return false
			}
		case isAlnum(c) || c == '_':
		default:
			return false
		}
		prev = c
	}
	return prev != '/'
}

// IsSignature reports whether s is a valid signature, a concatenation of
// zero or more definite types.
func IsSignature(s string) bool {
	for i := 0; i < len(s); {
		end := typeEnd(s, i)
		if end < 0 {
			return false
		}
		if !(Type{s: s[i:end]}).IsDefinite() {
			return false
		}
		i = end
	}
	return true
}

func isAlnum(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
