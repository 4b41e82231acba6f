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
	"unicode/utf8"
)

// ParseError describes why and where text could not be parsed.
type ParseError struct {
	Start int
	End   int
	Msg   string
}

// Error implements the [builtin.error] interface.
func (e ParseError) Error() string {
	return fmt.Sprintf("%d-%d: %s", e.Start, e.End, e.Msg)
}

// Parse parses text into a Variant.
//
// If expected is non-nil the result has exactly that type, otherwise the
// type is inferred from the text, defaulting integers to "i", floating
// point numbers to "d" and strings to "s".
func Parse(expected *Type, text string) (Variant, error) {
	p := &parser{src: text}
	p.next()
	root, err := p.value()
	if err != nil {
		return Variant{}, err
	}
	if p.tok.kind != tokEOF {
		return Variant{}, p.errorf(p.tok, "expected end of input")
	}

	pat, err := root.pattern()
	if err != nil {
		return Variant{}, err
	}

	var t Type
	if expected != nil {
		if !expected.IsDefinite() {
			return Variant{}, ParseError{Start: 0, End: len(text), Msg: "expected type must be definite"}
		}
		if !pat.matches(expected.s) {
			return Variant{}, ParseError{
				Start: root.span().start,
				End:   root.span().end,
				Msg:   fmt.Sprintf("value can not be parsed as type %q", expected.s),
			}
		}
		t = *expected
	} else {
		s, err := pat.resolve()
		if err != nil {
			return Variant{}, ParseError{Start: root.span().start, End: root.span().end, Msg: err.Error()}
		}
		t = Type{s: s}
	}
	return root.get(t)
}

// MustParse is like [Parse] but panics on error.
func MustParse(expected *Type, text string) Variant {
	v, err := Parse(expected, text)
	if err != nil {
		panic(err)
	}
	return v
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokPunct
	tokString
	tokNumber
	tokWord
	tokType
)

type token struct {
	kind  tokKind
	text  string
	start int
	end   int
}

type parser struct {
	src string
	pos int
	tok token
	err error
}

func (p *parser) errorf(t token, format string, args ...any) ParseError {
	return ParseError{Start: t.start, End: t.end, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) next() {
	for p.pos < len(p.src) && strings.IndexByte(" \t\n\r", p.src[p.pos]) >= 0 {
		p.pos++
	}
	start := p.pos
	if p.pos >= len(p.src) {
		p.tok = token{kind: tokEOF, start: start, end: start}
		return
	}

	c := p.src[p.pos]
	switch {
	case strings.IndexByte("()[]{}<>,:", c) >= 0:
		p.pos++
		p.tok = token{kind: tokPunct, text: p.src[start:p.pos], start: start, end: p.pos}

	case c == '\'' || c == '"':
		p.pos++
		for p.pos < len(p.src) && p.src[p.pos] != c {
			if p.src[p.pos] == '\\' {
				p.pos++
			}
			p.pos++
		}
		if p.pos < len(p.src) {
			p.pos++
		}
		p.pos = min(p.pos, len(p.src))
		p.tok = token{kind: tokString, text: p.src[start:p.pos], start: start, end: p.pos}

	case c == '@':
		p.pos++
		end := typeEnd(p.src, p.pos)
		if end < 0 {
			end = p.pos
		}
		p.pos = end
		p.tok = token{kind: tokType, text: p.src[start+1 : p.pos], start: start, end: p.pos}

	case c == '-' || c == '+' || c == '.' || ('0' <= c && c <= '9'):
		p.pos++
		for p.pos < len(p.src) {
			d := p.src[p.pos]
			prev := p.src[p.pos-1]
			if isAlnum(d) || d == '.' || ((d == '+' || d == '-') && (prev == 'e' || prev == 'E') && !strings.ContainsAny(p.src[start:p.pos], "xX")) {
				p.pos++
				continue
			}
			break
		}
		p.tok = token{kind: tokNumber, text: p.src[start:p.pos], start: start, end: p.pos}

	case isAlnum(c) || c == '_':
		for p.pos < len(p.src) && (isAlnum(p.src[p.pos]) || p.src[p.pos] == '_') {
			p.pos++
		}
		p.tok = token{kind: tokWord, text: p.src[start:p.pos], start: start, end: p.pos}

	default:
		_, size := utf8.DecodeRuneInString(p.src[p.pos:])
		p.pos += size
		p.tok = token{kind: tokPunct, text: p.src[start:p.pos], start: start, end: p.pos}
	}
}

func (p *parser) isPunct(s string) bool {
	return p.tok.kind == tokPunct && p.tok.text == s
}

func (p *parser) expect(s string) (token, error) {
	t := p.tok
	if !p.isPunct(s) {
		return t, p.errorf(t, "expected '%s'", s)
	}
	p.next()
	return t, nil
}

type span struct {
	start int
	end   int
}

type node interface {
	span() span
	pattern() (*pattern, error)
	get(t Type) (Variant, error)
}

func (p *parser) value() (node, error) {
	t := p.tok
	switch t.kind {
	case tokEOF:
		return nil, p.errorf(t, "expected value")
	case tokString:
		p.next()
		s, err := unquote(t)
		if err != nil {
			return nil, err
		}
		return &stringNode{sp: span{t.start, t.end}, val: s}, nil
	case tokNumber:
		p.next()
		return newNumberNode(t)
	case tokType:
		p.next()
		typ, err := ParseType(t.text)
		if err != nil || !typ.IsDefinite() {
			return nil, p.errorf(t, "invalid type annotation '%s'", t.text)
		}
		child, err := p.value()
		if err != nil {
			return nil, err
		}
		return &typedNode{sp: span{t.start, child.span().end}, t: typ, child: child}, nil
	case tokWord:
		return p.word()
	}

	switch t.text {
	case "(":
		return p.tuple()
	case "[":
		return p.array()
	case "{":
		return p.dict()
	case "<":
		p.next()
		child, err := p.value()
		if err != nil {
			return nil, err
		}
		end, err := p.expect(">")
		if err != nil {
			return nil, err
		}
		return &variantNode{sp: span{t.start, end.end}, child: child}, nil
	}
	return nil, p.errorf(t, "unexpected '%s'", t.text)
}

var keywordTypes = map[string]string{
	"boolean":    "b",
	"byte":       "y",
	"int16":      "n",
	"uint16":     "q",
	"int32":      "i",
	"uint32":     "u",
	"int64":      "x",
	"uint64":     "t",
	"double":     "d",
	"string":     "s",
	"objectpath": "o",
	"signature":  "g",
}

func (p *parser) word() (node, error) {
	t := p.tok
	p.next()
	switch t.text {
	case "true", "false":
		return &boolNode{sp: span{t.start, t.end}, val: t.text == "true"}, nil
	case "nothing":
		return &maybeNode{sp: span{t.start, t.end}}, nil
	case "just":
		child, err := p.value()
		if err != nil {
			return nil, err
		}
		return &maybeNode{sp: span{t.start, child.span().end}, child: child}, nil
	case "inf", "nan":
		return newNumberNode(t)
	}
	if ts, ok := keywordTypes[t.text]; ok {
		child, err := p.value()
		if err != nil {
			return nil, err
		}
		return &typedNode{sp: span{t.start, child.span().end}, t: Type{s: ts}, child: child}, nil
	}
	return nil, p.errorf(t, "unknown keyword '%s'", t.text)
}

func (p *parser) tuple() (node, error) {
	start := p.tok.start
	p.next()
	n := &tupleNode{}
	for !p.isPunct(")") {
		item, err := p.value()
		if err != nil {
			return nil, err
		}
		n.items = append(n.items, item)
		if p.isPunct(",") {
			p.next()
			continue
		}
		if !p.isPunct(")") {
			return nil, p.errorf(p.tok, "expected ',' or ')'")
		}
	}
	n.sp = span{start, p.tok.end}
	p.next()
	return n, nil
}

func (p *parser) array() (node, error) {
	start := p.tok.start
	p.next()
	n := &arrayNode{}
	for !p.isPunct("]") {
		item, err := p.value()
		if err != nil {
			return nil, err
		}
		n.items = append(n.items, item)
		if p.isPunct(",") {
			p.next()
			continue
		}
		if !p.isPunct("]") {
			return nil, p.errorf(p.tok, "expected ',' or ']'")
		}
	}
	n.sp = span{start, p.tok.end}
	p.next()
	return n, nil
}

// dict parses either a dictionary "{k: v, ...}" or a single dictionary
// entry "{k, v}".
func (p *parser) dict() (node, error) {
	start := p.tok.start
	p.next()
	if p.isPunct("}") {
		n := &dictNode{sp: span{start, p.tok.end}}
		p.next()
		return n, nil
	}

	key, err := p.value()
	if err != nil {
		return nil, err
	}
	if p.isPunct(",") {
		p.next()
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		end, err := p.expect("}")
		if err != nil {
			return nil, err
		}
		return &entryNode{sp: span{start, end.end}, key: key, val: val}, nil
	}

	n := &dictNode{}
	for {
		if _, err := p.expect(":"); err != nil {
			return nil, err
		}
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		n.keys = append(n.keys, key)
		n.vals = append(n.vals, val)
		if p.isPunct("}") {
			break
		}
		if _, err := p.expect(","); err != nil {
			return nil, err
		}
		key, err = p.value()
		if err != nil {
			return nil, err
		}
	}
	n.sp = span{start, p.tok.end}
	p.next()
	return n, nil
}

func unquote(t token) (string, error) {
	text := t.text
	if len(text) < 2 || text[len(text)-1] != text[0] {
		return "", ParseError{Start: t.start, End: t.end, Msg: "unterminated string constant"}
	}
	body := text[1 : len(text)-1]

	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", ParseError{Start: t.start, End: t.end, Msg: "unterminated escape"}
		}
		switch e := body[i]; e {
		case 'a':
			sb.WriteByte('\a')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'v':
			sb.WriteByte('\v')
		case 'u', 'U':
			width := 4
			if e == 'U' {
				width = 8
			}
			if i+width >= len(body)+1 || i+1+width > len(body) {
				return "", ParseError{Start: t.start + 1 + i, End: t.end, Msg: "invalid unicode escape"}
			}
			r, err := strconv.ParseUint(body[i+1:i+1+width], 16, 32)
			if err != nil || !utf8.ValidRune(rune(r)) {
				return "", ParseError{Start: t.start + 1 + i, End: t.start + 2 + i + width, Msg: "invalid unicode escape"}
			}
			sb.WriteRune(rune(r))
			i += width
		default:
			sb.WriteByte(e)
		}
	}
	if !utf8.ValidString(sb.String()) {
		return "", ParseError{Start: t.start, End: t.end, Msg: "string is not valid utf-8"}
	}
	return sb.String(), nil
}

// pattern is a partially known type used for inference. Besides the
// usual type characters it uses '*' for anything, 'N' for any number,
// 'D' for a floating point number and 'S' for any string like type.
type pattern struct {
	kind     byte
	children []*pattern
}

var anyPattern = &pattern{kind: '*'}

func patternOf(s string) *pattern {
	p, _ := patternAt(s, 0)
	return p
}

func patternAt(s string, i int) (*pattern, int) {
	switch c := s[i]; c {
	case 'a', 'm':
		child, end := patternAt(s, i+1)
		return &pattern{kind: c, children: []*pattern{child}}, end
	case '(', '{':
		closer := byte(')')
		if c == '{' {
			closer = '}'
		}
		p := &pattern{kind: c}
		i++
		for s[i] != closer {
			var child *pattern
			child, i = patternAt(s, i)
			p.children = append(p.children, child)
		}
		return p, i + 1
	default:
		return &pattern{kind: c}, i + 1
	}
}

func isIntegerKind(c byte) bool {
	return strings.IndexByte("ynqiuxt", c) >= 0
}

func merge(a, b *pattern) (*pattern, error) {
	switch {
	case a.kind == '*':
		return b, nil
	case b.kind == '*':
		return a, nil
	}
	if a.kind == b.kind {
		if len(a.children) != len(b.children) {
			return nil, fmt.Errorf("unable to find a common type")
		}
		out := &pattern{kind: a.kind}
		for i := range a.children {
			c, err := merge(a.children[i], b.children[i])
			if err != nil {
				return nil, err
			}
			out.children = append(out.children, c)
		}
		return out, nil
	}

	x, y := a.kind, b.kind
	if x > y {
		x, y = y, x
	}
	switch {
	case x == 'D' && y == 'N', x == 'D' && y == 'd':
		return &pattern{kind: 'd'}, nil
	case x == 'N' && (isIntegerKind(y) || y == 'd'):
		return &pattern{kind: y}, nil
	case x == 'S' && (y == 's' || y == 'o' || y == 'g'):
		return &pattern{kind: y}, nil
	case y == 'N' && (isIntegerKind(x) || x == 'd'):
		return &pattern{kind: x}, nil
	case y == 'S' && (x == 's' || x == 'o' || x == 'g'):
		return &pattern{kind: x}, nil
	}
	return nil, fmt.Errorf("unable to find a common type")
}

func (p *pattern) resolve() (string, error) {
	switch p.kind {
	case '*':
		return "", fmt.Errorf("unable to infer type")
	case 'N':
		return "i", nil
	case 'D':
		return "d", nil
	case 'S':
		return "s", nil
	}
	var sb strings.Builder
	sb.WriteByte(p.kind)
	for _, c := range p.children {
		s, err := c.resolve()
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	switch p.kind {
	case '(':
		sb.WriteByte(')')
	case '{':
		sb.WriteByte('}')
	}
	return sb.String(), nil
}

func (p *pattern) matches(t string) bool {
	q := patternOf(t)
	if m, err := merge(p, q); err == nil {
		s, err := m.resolve()
		if err == nil && s == t {
			return true
		}
	}
	// a value written without "just" may still fill a maybe type
	if t[0] == 'm' && p.kind != 'm' && p.kind != '*' {
		return p.matches(t[1:])
	}
	return false
}

type stringNode struct {
	sp  span
	val string
}

func (n *stringNode) span() span { return n.sp }

func (n *stringNode) pattern() (*pattern, error) { return &pattern{kind: 'S'}, nil }

func (n *stringNode) get(t Type) (Variant, error) {
	switch t.s {
	case "s":
		return NewString(n.val), nil
	case "o":
		if !IsObjectPath(n.val) {
			return Variant{}, ParseError{Start: n.sp.start, End: n.sp.end, Msg: "not a valid object path"}
		}
		return NewObjectPath(n.val), nil
	case "g":
		if !IsSignature(n.val) {
			return Variant{}, ParseError{Start: n.sp.start, End: n.sp.end, Msg: "not a valid signature"}
		}
		return NewSignature(n.val), nil
	}
	return wrapMaybe(n, t)
}

type boolNode struct {
	sp  span
	val bool
}

func (n *boolNode) span() span { return n.sp }

func (n *boolNode) pattern() (*pattern, error) { return &pattern{kind: 'b'}, nil }

func (n *boolNode) get(t Type) (Variant, error) {
	if t == TypeBoolean {
		return NewBool(n.val), nil
	}
	return wrapMaybe(n, t)
}

type numberNode struct {
	sp      span
	text    string
	isFloat bool
}

func newNumberNode(t token) (node, error) {
	text := t.text
	digits := strings.TrimLeft(text, "+-")
	lower := strings.ToLower(digits)
	n := &numberNode{sp: span{t.start, t.end}, text: text}
	switch {
	case lower == "inf" || lower == "nan":
		n.isFloat = true
	case strings.HasPrefix(lower, "0x"):
	case strings.ContainsAny(lower, ".e"):
		n.isFloat = true
	}
	if digits == "" {
		return nil, ParseError{Start: t.start, End: t.end, Msg: "invalid number"}
	}
	return n, nil
}

func (n *numberNode) span() span { return n.sp }

func (n *numberNode) pattern() (*pattern, error) {
	if n.isFloat {
		return &pattern{kind: 'D'}, nil
	}
	return &pattern{kind: 'N'}, nil
}

func (n *numberNode) errorf(format string, args ...any) error {
	return ParseError{Start: n.sp.start, End: n.sp.end, Msg: fmt.Sprintf(format, args...)}
}

func (n *numberNode) get(t Type) (Variant, error) {
	if t == TypeDouble {
		f, err := parseFloat(n.text)
		if err != nil {
			return Variant{}, n.errorf("invalid floating point number '%s'", n.text)
		}
		return NewDouble(f), nil
	}
	if len(t.s) != 1 || !isIntegerKind(t.s[0]) {
		return wrapMaybe(n, t)
	}
	if n.isFloat {
		return Variant{}, n.errorf("floating point number used where integer expected")
	}

	neg, mag, err := parseInteger(n.text)
	if err != nil {
		return Variant{}, n.errorf("invalid integer '%s'", n.text)
	}

	var lo int64
	var hi uint64
	switch t.s[0] {
	case 'y':
		lo, hi = 0, math.MaxUint8
	case 'n':
		lo, hi = math.MinInt16, math.MaxInt16
	case 'q':
		lo, hi = 0, math.MaxUint16
	case 'i':
		lo, hi = math.MinInt32, math.MaxInt32
	case 'u':
		lo, hi = 0, math.MaxUint32
	case 'x':
		lo, hi = math.MinInt64, math.MaxInt64
	case 't':
		lo, hi = 0, math.MaxUint64
	}
	if neg {
		if lo == 0 && mag != 0 {
			return Variant{}, n.errorf("number out of range for type '%s'", t.s)
		}
		if mag > uint64(-(lo+1))+1 {
			return Variant{}, n.errorf("number out of range for type '%s'", t.s)
		}
	} else if mag > hi {
		return Variant{}, n.errorf("number out of range for type '%s'", t.s)
	}

	signed := int64(mag)
	if neg {
		signed = -int64(mag)
		if mag == 1<<63 {
			signed = math.MinInt64
		}
	}
	switch t.s[0] {
	case 'y':
		return NewByte(uint8(mag)), nil
	case 'n':
		return NewInt16(int16(signed)), nil
	case 'q':
		return NewUint16(uint16(mag)), nil
	case 'i':
		return NewInt32(int32(signed)), nil
	case 'u':
		return NewUint32(uint32(mag)), nil
	case 'x':
		return NewInt64(signed), nil
	default:
		return NewUint64(mag), nil
	}
}

func parseInteger(text string) (neg bool, mag uint64, err error) {
	switch {
	case strings.HasPrefix(text, "-"):
		neg = true
		text = text[1:]
	case strings.HasPrefix(text, "+"):
		text = text[1:]
	}
	base := 10
	switch {
	case strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X"):
		base = 16
		text = text[2:]
	case len(text) > 1 && text[0] == '0':
		base = 8
		text = text[1:]
	}
	mag, err = strconv.ParseUint(text, base, 64)
	return neg, mag, err
}

func parseFloat(text string) (float64, error) {
	switch strings.ToLower(text) {
	case "inf", "+inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	case "nan", "+nan", "-nan":
		return math.NaN(), nil
	}
	if !strings.ContainsAny(text, ".eE") {
		neg, mag, err := parseInteger(text)
		if err != nil {
			return 0, err
		}
		f := float64(mag)
		if neg {
			f = -f
		}
		return f, nil
	}
	return strconv.ParseFloat(text, 64)
}

type tupleNode struct {
	sp    span
	items []node
}

func (n *tupleNode) span() span { return n.sp }

func (n *tupleNode) pattern() (*pattern, error) {
	p := &pattern{kind: '('}
	for _, it := range n.items {
		c, err := it.pattern()
		if err != nil {
			return nil, err
		}
		p.children = append(p.children, c)
	}
	return p, nil
}

func (n *tupleNode) get(t Type) (Variant, error) {
	if !t.IsTuple() {
		return wrapMaybe(n, t)
	}
	types := t.Items()
	if len(types) != len(n.items) {
		return Variant{}, ParseError{Start: n.sp.start, End: n.sp.end, Msg: "tuple has the wrong number of items"}
	}
	items := make([]Variant, len(n.items))
	for i, it := range n.items {
		v, err := it.get(types[i])
		if err != nil {
			return Variant{}, err
		}
		items[i] = v
	}
	return Variant{t: t, v: items}, nil
}

type arrayNode struct {
	sp    span
	items []node
}

func (n *arrayNode) span() span { return n.sp }

func (n *arrayNode) pattern() (*pattern, error) {
	elem := anyPattern
	for _, it := range n.items {
		c, err := it.pattern()
		if err != nil {
			return nil, err
		}
		elem, err = merge(elem, c)
		if err != nil {
			return nil, ParseError{Start: it.span().start, End: it.span().end, Msg: "unable to find a common type for array elements"}
		}
	}
	return &pattern{kind: 'a', children: []*pattern{elem}}, nil
}

func (n *arrayNode) get(t Type) (Variant, error) {
	if !t.IsArray() {
		return wrapMaybe(n, t)
	}
	elem := t.Elem()
	items := make([]Variant, len(n.items))
	for i, it := range n.items {
		v, err := it.get(elem)
		if err != nil {
			return Variant{}, err
		}
		items[i] = v
	}
	return Variant{t: t, v: items}, nil
}

type dictNode struct {
	sp   span
	keys []node
	vals []node
}

func (n *dictNode) span() span { return n.sp }

func (n *dictNode) pattern() (*pattern, error) {
	key, val := anyPattern, anyPattern
	for i := range n.keys {
		kp, err := n.keys[i].pattern()
		if err != nil {
			return nil, err
		}
		key, err = merge(key, kp)
		if err != nil {
			return nil, ParseError{Start: n.keys[i].span().start, End: n.keys[i].span().end, Msg: "unable to find a common type for dictionary keys"}
		}
		vp, err := n.vals[i].pattern()
		if err != nil {
			return nil, err
		}
		val, err = merge(val, vp)
		if err != nil {
			return nil, ParseError{Start: n.vals[i].span().start, End: n.vals[i].span().end, Msg: "unable to find a common type for dictionary values"}
		}
	}
	entry := &pattern{kind: '{', children: []*pattern{key, val}}
	return &pattern{kind: 'a', children: []*pattern{entry}}, nil
}

func (n *dictNode) get(t Type) (Variant, error) {
	if !t.IsDict() {
		return wrapMaybe(n, t)
	}
	entryType := t.Elem()
	kt, vt := entryType.Key(), entryType.Value()
	items := make([]Variant, len(n.keys))
	for i := range n.keys {
		k, err := n.keys[i].get(kt)
		if err != nil {
			return Variant{}, err
		}
		v, err := n.vals[i].get(vt)
		if err != nil {
			return Variant{}, err
		}
		items[i] = Variant{t: entryType, v: []Variant{k, v}}
	}
	return Variant{t: t, v: items}, nil
}

type entryNode struct {
	sp  span
	key node
	val node
}

func (n *entryNode) span() span { return n.sp }

func (n *entryNode) pattern() (*pattern, error) {
	kp, err := n.key.pattern()
	if err != nil {
		return nil, err
	}
	vp, err := n.val.pattern()
	if err != nil {
		return nil, err
	}
	return &pattern{kind: '{', children: []*pattern{kp, vp}}, nil
}

func (n *entryNode) get(t Type) (Variant, error) {
	if !t.IsDictEntry() {
		return wrapMaybe(n, t)
	}
	k, err := n.key.get(t.Key())
	if err != nil {
		return Variant{}, err
	}
	v, err := n.val.get(t.Value())
	if err != nil {
		return Variant{}, err
	}
	return Variant{t: t, v: []Variant{k, v}}, nil
}

type maybeNode struct {
	sp    span
	child node
}

func (n *maybeNode) span() span { return n.sp }

func (n *maybeNode) pattern() (*pattern, error) {
	if n.child == nil {
		return &pattern{kind: 'm', children: []*pattern{anyPattern}}, nil
	}
	c, err := n.child.pattern()
	if err != nil {
		return nil, err
	}
	return &pattern{kind: 'm', children: []*pattern{c}}, nil
}

func (n *maybeNode) get(t Type) (Variant, error) {
	if !t.IsMaybe() {
		return Variant{}, ParseError{Start: n.sp.start, End: n.sp.end, Msg: fmt.Sprintf("maybe value used where type '%s' expected", t.s)}
	}
	if n.child == nil {
		return Variant{t: t, v: []Variant{}}, nil
	}
	v, err := n.child.get(t.Elem())
	if err != nil {
		return Variant{}, err
	}
	return Variant{t: t, v: []Variant{v}}, nil
}

type variantNode struct {
	sp    span
	child node
}

func (n *variantNode) span() span { return n.sp }

func (n *variantNode) pattern() (*pattern, error) { return &pattern{kind: 'v'}, nil }

func (n *variantNode) get(t Type) (Variant, error) {
	if !t.IsVariant() {
		return wrapMaybe(n, t)
	}
	cp, err := n.child.pattern()
	if err != nil {
		return Variant{}, err
	}
	s, err := cp.resolve()
	if err != nil {
		return Variant{}, ParseError{Start: n.sp.start, End: n.sp.end, Msg: err.Error()}
	}
	child, err := n.child.get(Type{s: s})
	if err != nil {
		return Variant{}, err
	}
	return NewVariant(child), nil
}

type typedNode struct {
	sp    span
	t     Type
	child node
}

func (n *typedNode) span() span { return n.sp }

func (n *typedNode) pattern() (*pattern, error) {
	cp, err := n.child.pattern()
	if err != nil {
		return nil, err
	}
	if !cp.matches(n.t.s) {
		return nil, ParseError{Start: n.sp.start, End: n.sp.end, Msg: fmt.Sprintf("value does not match type annotation '%s'", n.t.s)}
	}
	return patternOf(n.t.s), nil
}

func (n *typedNode) get(t Type) (Variant, error) {
	if t != n.t {
		return wrapMaybe(n, t)
	}
	return n.child.get(t)
}

// wrapMaybe handles values written without "just" where a maybe type is
// expected, e.g. "5" parsed as "mi".
func wrapMaybe(n node, t Type) (Variant, error) {
	if !t.IsMaybe() {
		return Variant{}, ParseError{Start: n.span().start, End: n.span().end, Msg: fmt.Sprintf("value can not be used as type '%s'", t.s)}
	}
	v, err := n.get(t.Elem())
	if err != nil {
		return Variant{}, err
	}
	return Variant{t: t, v: []Variant{v}}, nil
}
