// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package variant

import (
	"fmt"
	"strings"
)

// Type describes the shape of a [Variant] using the compact type string
// notation, e.g. "s", "as", "(ii)" or "a{sv}".
//
// The zero Type is invalid and describes nothing.
type Type struct {
	s string
}

// Commonly used types.
var (
	TypeBoolean    = Type{"b"}
	TypeByte       = Type{"y"}
	TypeInt16      = Type{"n"}
	TypeUint16     = Type{"q"}
	TypeInt32      = Type{"i"}
	TypeUint32     = Type{"u"}
	TypeInt64      = Type{"x"}
	TypeUint64     = Type{"t"}
	TypeDouble     = Type{"d"}
	TypeString     = Type{"s"}
	TypeObjectPath = Type{"o"}
	TypeSignature  = Type{"g"}
	TypeVariant    = Type{"v"}
	TypeUnit       = Type{"()"}
	TypeStrings    = Type{"as"}
	TypeVardict    = Type{"a{sv}"}

	// TypeAny matches any type. It is only valid as a pattern.
	TypeAny = Type{"*"}
	// TypeBasic matches any basic type. It is only valid as a pattern.
	TypeBasic = Type{"?"}
	// TypeTuple matches any tuple type. It is only valid as a pattern.
	TypeTuple = Type{"r"}
)

// InvalidTypeError is returned when a type string is malformed.
type InvalidTypeError struct {
	Text string
}

// Error implements the [builtin.error] interface.
func (e InvalidTypeError) Error() string {
	return fmt.Sprintf("invalid type string: %q", e.Text)
}

// ParseType validates s as exactly one complete type.
func ParseType(s string) (Type, error) {
	end := typeEnd(s, 0)
	if end != len(s) || end <= 0 {
		return Type{}, InvalidTypeError{Text: s}
	}
	return Type{s: s}, nil
}

// MustParseType is like [ParseType] but panics if s is invalid.
func MustParseType(s string) Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}

// typeEnd returns the index just past the complete type starting at i,
// or -1 if there is no valid type there.
func typeEnd(s string, i int) int {
	if i >= len(s) {
		return -1
	}
	switch c := s[i]; {
	case strings.IndexByte(basicChars, c) >= 0, c == 'v', c == '*', c == '?', c == 'r':
		return i + 1
	case c == 'a' || c == 'm':
		return typeEnd(s, i+1)
	case c == '(':
		i++
		for i < len(s) && s[i] != ')' {
			i = typeEnd(s, i)
			if i < 0 {
				return -1
			}
		}
		if i >= len(s) {
			return -1
		}
		return i + 1
	case c == '{':
		if i+1 >= len(s) || !isBasicPattern(s[i+1]) {
			return -1
		}
		i = typeEnd(s, i+2)
		if i < 0 || i >= len(s) || s[i] != '}' {
			return -1
		}
		return i + 1
	default:
		return -1
	}
}

const basicChars = "bynqiuxtdsog"

func isBasicPattern(c byte) bool {
	return strings.IndexByte(basicChars, c) >= 0 || c == '?'
}

// String returns the type string.
func (t Type) String() string {
	return t.s
}

// IsZero reports whether t is the zero Type.
func (t Type) IsZero() bool {
	return t.s == ""
}

// IsDefinite reports whether t contains no wildcards.
func (t Type) IsDefinite() bool {
	return t.s != "" && !strings.ContainsAny(t.s, "*?r")
}

// IsBasic reports whether t is a basic (non-container) type.
func (t Type) IsBasic() bool {
	return len(t.s) == 1 && isBasicPattern(t.s[0])
}

// IsArray reports whether t is an array type.
func (t Type) IsArray() bool { return strings.HasPrefix(t.s, "a") }

// IsDict reports whether t is an array of dictionary entries.
func (t Type) IsDict() bool { return strings.HasPrefix(t.s, "a{") }

// IsMaybe reports whether t is a maybe type.
func (t Type) IsMaybe() bool { return strings.HasPrefix(t.s, "m") }

// IsTuple reports whether t is a tuple type.
func (t Type) IsTuple() bool { return strings.HasPrefix(t.s, "(") || t.s == "r" }

// IsDictEntry reports whether t is a dictionary entry type.
func (t Type) IsDictEntry() bool { return strings.HasPrefix(t.s, "{") }

// IsVariant reports whether t is the variant type.
func (t Type) IsVariant() bool { return t.s == "v" }

// IsNumeric reports whether t is one of the integer or floating point types.
func (t Type) IsNumeric() bool {
	return len(t.s) == 1 && strings.IndexByte("ynqiuxtd", t.s[0]) >= 0
}

// Elem returns the element type of an array or maybe type.
func (t Type) Elem() Type {
	if !t.IsArray() && !t.IsMaybe() {
		return Type{}
	}
	return Type{s: t.s[1:]}
}

// Items returns the item types of a tuple or dictionary entry type.
func (t Type) Items() []Type {
	if len(t.s) < 2 || (t.s[0] != '(' && t.s[0] != '{') {
		return nil
	}
	var items []Type
	for i := 1; i < len(t.s)-1; {
		end := typeEnd(t.s, i)
		items = append(items, Type{s: t.s[i:end]})
		i = end
	}
	return items
}

// Key returns the key type of a dictionary entry type.
func (t Type) Key() Type {
	if !t.IsDictEntry() {
		return Type{}
	}
	return Type{s: t.s[1:2]}
}

// Value returns the value type of a dictionary entry type.
func (t Type) Value() Type {
	if !t.IsDictEntry() {
		return Type{}
	}
	return Type{s: t.s[2 : len(t.s)-1]}
}

// Is reports whether t matches pattern, where pattern may contain wildcards.
func (t Type) Is(pattern Type) bool {
	i, j := 0, 0
	for i < len(t.s) && j < len(pattern.s) {
		p := pattern.s[j]
		switch {
		case p == '*':
			i = typeEnd(t.s, i)
			j++
		case p == '?':
			if !isBasicPattern(t.s[i]) {
				return false
			}
			i++
			j++
		case p == 'r':
			if t.s[i] != '(' {
				return false
			}
			i = typeEnd(t.s, i)
			j++
		case p == t.s[i]:
			i++
			j++
		default:
			return false
		}
		if i < 0 {
			return false
		}
	}
	return i == len(t.s) && j == len(pattern.s)
}

// NewArrayType returns the type of arrays of elem.
func NewArrayType(elem Type) Type { return Type{s: "a" + elem.s} }

// NewMaybeType returns the type of maybes of elem.
func NewMaybeType(elem Type) Type { return Type{s: "m" + elem.s} }

// NewTupleType returns the type of tuples containing items.
func NewTupleType(items ...Type) Type {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, it := range items {
		sb.WriteString(it.s)
	}
	sb.WriteByte(')')
	return Type{s: sb.String()}
}

// NewDictEntryType returns the type of dictionary entries.
func NewDictEntryType(key, value Type) Type {
	return Type{s: "{" + key.s + value.s + "}"}
}
