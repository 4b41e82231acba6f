// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package variant

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// String implements the [fmt.Stringer] interface. It is equivalent to
// calling [Variant.Print] with type annotations enabled.
func (v Variant) String() string {
	return v.Print(true)
}

// Print formats v in the text format understood by [Parse].
//
// If annotate is true, type annotations are added wherever the type
// could not otherwise be inferred, so that parsing the result with no
// expected type yields a Variant equal to v.
func (v Variant) Print(annotate bool) string {
	var sb strings.Builder
	printTo(&sb, v, annotate)
	return sb.String()
}

func printTo(sb *strings.Builder, v Variant, annotate bool) {
	if !v.IsValid() {
		sb.WriteString("<invalid>")
		return
	}

	switch c := v.t.s[0]; c {
	case 'm':
		if annotate {
			fmt.Fprintf(sb, "@%s ", v.t.s)
		}
		child, ok := v.Maybe()
		if !ok {
			sb.WriteString("nothing")
			return
		}
		sb.WriteString("just ")
		printTo(sb, child, annotate)

	case 'a':
		printArray(sb, v, annotate)

	case '(':
		items := v.v.([]Variant)
		sb.WriteByte('(')
		for i, it := range items {
			if i > 0 {
				sb.WriteString(", ")
			}
			printTo(sb, it, annotate)
		}
		if len(items) == 1 {
			sb.WriteByte(',')
		}
		sb.WriteByte(')')

	case '{':
		sb.WriteByte('{')
		printTo(sb, v.Child(0), annotate)
		sb.WriteString(", ")
		printTo(sb, v.Child(1), annotate)
		sb.WriteByte('}')

	case 'v':
		sb.WriteByte('<')
		printTo(sb, v.Unbox(), true)
		sb.WriteByte('>')

	case 'b':
		sb.WriteString(strconv.FormatBool(v.Bool()))

	case 'y':
		if annotate {
			sb.WriteString("byte ")
		}
		fmt.Fprintf(sb, "0x%02x", v.Byte())

	case 'n', 'q', 'u', 'x', 't':
		if annotate {
			sb.WriteString(keywordFor(c))
			sb.WriteByte(' ')
		}
		n, ok := v.AsInt64()
		if ok {
			sb.WriteString(strconv.FormatInt(n, 10))
		} else {
			sb.WriteString(strconv.FormatUint(v.Uint64(), 10))
		}

	case 'i':
		sb.WriteString(strconv.FormatInt(int64(v.Int32()), 10))

	case 'd':
		sb.WriteString(formatDouble(v.Double()))

	case 's':
		sb.WriteString(quote(v.Str()))

	case 'o', 'g':
		if annotate {
			sb.WriteString(keywordFor(c))
			sb.WriteByte(' ')
		}
		sb.WriteString(quote(v.Str()))
	}
}

func printArray(sb *strings.Builder, v Variant, annotate bool) {
	items := v.v.([]Variant)
	if len(items) == 0 {
		if annotate {
			fmt.Fprintf(sb, "@%s ", v.t.s)
		}
		if v.t.IsDict() {
			sb.WriteString("{}")
			return
		}
		sb.WriteString("[]")
		return
	}

	if v.t.IsDict() {
		sb.WriteByte('{')
		for i, entry := range items {
			if i > 0 {
				sb.WriteString(", ")
			}
			printTo(sb, entry.Child(0), annotate && i == 0)
			sb.WriteString(": ")
			printTo(sb, entry.Child(1), annotate && i == 0)
		}
		sb.WriteByte('}')
		return
	}

	sb.WriteByte('[')
	for i, it := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		printTo(sb, it, annotate && i == 0)
	}
	sb.WriteByte(']')
}

func keywordFor(c byte) string {
	switch c {
	case 'y':
		return "byte"
	case 'n':
		return "int16"
	case 'q':
		return "uint16"
	case 'i':
		return "int32"
	case 'u':
		return "uint32"
	case 'x':
		return "int64"
	case 't':
		return "uint64"
	case 'd':
		return "double"
	case 's':
		return "string"
	case 'o':
		return "objectpath"
	case 'g':
		return "signature"
	case 'b':
		return "boolean"
	}
	return ""
}

func formatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func quote(s string) string {
	q := byte('\'')
	if strings.IndexByte(s, '\'') >= 0 && strings.IndexByte(s, '"') < 0 {
		q = '"'
	}

	var sb strings.Builder
	sb.WriteByte(q)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '\a':
			sb.WriteString(`\a`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\v':
			sb.WriteString(`\v`)
		default:
			if r == rune(q) {
				sb.WriteByte('\\')
				sb.WriteByte(q)
				continue
			}
			if unicode.IsPrint(r) {
				sb.WriteRune(r)
				continue
			}
			if r > 0xffff {
				fmt.Fprintf(&sb, `\U%08x`, r)
				continue
			}
			fmt.Fprintf(&sb, `\u%04x`, r)
		}
	}
	sb.WriteByte(q)
	return sb.String()
}
