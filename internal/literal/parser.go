package literal

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxDepth = 256

type SyntaxError struct {
	Msg    string
	Offset int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("literal: %s at offset %d", e.Msg, e.Offset)
}

type parser struct {
	src   string
	pos   int
	depth int
}

// Parse reads a comma separated list of literals. An empty or blank input is an empty list.
func Parse(raw string) ([]Value, error) {
	p := &parser{src: raw}

	values := []Value{}
	for {
		p.skipSpace()
		if p.eof() {
			return values, nil
		}

		v, err := p.value()
		if err != nil {
			return nil, err
		}
		values = append(values, v)

		p.skipSpace()
		if p.eof() {
			return values, nil
		}
		if p.peek() != ',' {
			return nil, p.errorf("expected ',' between arguments, found %q", p.peek())
		}
		p.pos++
	}
}

// ParseValue reads exactly one literal.
func ParseValue(raw string) (Value, error) {
	p := &parser{src: raw}

	p.skipSpace()
	v, err := p.value()
	if err != nil {
		return Value{}, err
	}

	p.skipSpace()
	if !p.eof() {
		return Value{}, p.errorf("unexpected trailing %q", p.peek())
	}

	return v, nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Msg: fmt.Sprintf(format, args...), Offset: p.pos}
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		p.pos += size
	}
}

func (p *parser) value() (Value, error) {
	if p.eof() {
		return Value{}, p.errorf("unexpected end of input")
	}

	c := p.peek()
	switch {
	case c == '[':
		return p.array()
	case c == '{':
		return p.object()
	case c == '"' || c == '\'' || c == '`':
		s, err := p.str()
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case c == '-' || c == '+' || c == '.' || isDigit(c):
		return p.number()
	case isIdentStart(c):
		return p.keyword()
	default:
		return Value{}, p.errorf("unexpected %q", c)
	}
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return p.errorf("nesting deeper than %d", maxDepth)
	}
	return nil
}

func (p *parser) array() (Value, error) {
	if err := p.enter(); err != nil {
		return Value{}, err
	}
	defer func() { p.depth-- }()

	// consume '['
	p.pos++

	var elems []Value
	for {
		p.skipSpace()
		if p.eof() {
			return Value{}, p.errorf("unterminated array")
		}
		if p.peek() == ']' {
			p.pos++
			return Array(elems...), nil
		}

		v, err := p.value()
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, v)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return Array(elems...), nil
		default:
			return Value{}, p.errorf("expected ',' or ']' in array")
		}
	}
}

func (p *parser) object() (Value, error) {
	if err := p.enter(); err != nil {
		return Value{}, err
	}
	defer func() { p.depth-- }()

	// consume '{'
	p.pos++

	var fields []Field
	for {
		p.skipSpace()
		if p.eof() {
			return Value{}, p.errorf("unterminated object")
		}
		if p.peek() == '}' {
			p.pos++
			return Object(fields...), nil
		}

		key, err := p.key()
		if err != nil {
			return Value{}, err
		}

		p.skipSpace()
		if p.peek() != ':' {
			return Value{}, p.errorf("expected ':' after object key %q", key)
		}
		p.pos++

		p.skipSpace()
		v, err := p.value()
		if err != nil {
			return Value{}, err
		}
		fields = append(fields, Field{Key: key, Value: v})

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return Object(fields...), nil
		default:
			return Value{}, p.errorf("expected ',' or '}' in object")
		}
	}
}

func (p *parser) key() (string, error) {
	c := p.peek()
	switch {
	case c == '"' || c == '\'':
		return p.str()
	case isDigit(c):
		v, err := p.number()
		if err != nil {
			return "", err
		}
		return v.NumberText(), nil
	case isIdentStart(c):
		return p.ident(), nil
	default:
		return "", p.errorf("invalid object key starting with %q", c)
	}
}

func (p *parser) ident() string {
	start := p.pos
	for !p.eof() && isIdentPart(p.peek()) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) keyword() (Value, error) {
	start := p.pos
	switch word := p.ident(); word {
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	case "null":
		return Null(), nil
	case "undefined":
		return Undefined(), nil
	default:
		p.pos = start
		return Value{}, p.errorf("unsupported identifier %q", word)
	}
}

func (p *parser) number() (Value, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
	}

	// 0x, 0o and 0b integers
	if p.pos+1 < len(p.src) && p.src[p.pos] == '0' && strings.ContainsRune("xXoObB", rune(p.src[p.pos+1])) {
		p.pos += 2
		for !p.eof() && (isHexDigit(p.peek()) || p.peek() == '_') {
			p.pos++
		}
		n, err := strconv.ParseInt(p.src[start:p.pos], 0, 64)
		if err != nil {
			return Value{}, &SyntaxError{Msg: "invalid integer literal", Offset: start}
		}
		return Number(float64(n)), p.checkNumberEnd()
	}

	digits := p.digits()
	if p.peek() == '.' {
		p.pos++
		digits += p.digits()
	}
	if digits == 0 {
		return Value{}, &SyntaxError{Msg: "invalid number literal", Offset: start}
	}

	if c := p.peek(); c == 'e' || c == 'E' {
		p.pos++
		if c := p.peek(); c == '-' || c == '+' {
			p.pos++
		}
		if p.digits() == 0 {
			return Value{}, &SyntaxError{Msg: "invalid exponent", Offset: start}
		}
	}

	text := strings.ReplaceAll(p.src[start:p.pos], "_", "")
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Value{}, &SyntaxError{Msg: "invalid number literal", Offset: start}
	}

	return Number(f), p.checkNumberEnd()
}

func (p *parser) digits() int {
	n := 0
	for !p.eof() && (isDigit(p.peek()) || (n > 0 && p.peek() == '_')) {
		if p.peek() != '_' {
			n++
		}
		p.pos++
	}
	return n
}

func (p *parser) checkNumberEnd() error {
	if !p.eof() && isIdentPart(p.peek()) {
		return p.errorf("identifier directly after number")
	}
	return nil
}

func (p *parser) str() (string, error) {
	quote := p.peek()
	start := p.pos
	p.pos++

	var b strings.Builder
	for {
		if p.eof() {
			return "", &SyntaxError{Msg: "unterminated string", Offset: start}
		}

		c := p.peek()
		switch {
		case c == quote:
			p.pos++
			return b.String(), nil
		case c == '\\':
			p.pos++
			if err := p.escape(&b); err != nil {
				return "", err
			}
		case quote == '`' && c == '$' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '{':
			return "", p.errorf("template substitutions are not literals")
		case (c == '\n' || c == '\r') && quote != '`':
			return "", p.errorf("newline in string")
		default:
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			b.WriteRune(r)
			p.pos += size
		}
	}
}

func (p *parser) escape(b *strings.Builder) error {
	if p.eof() {
		return p.errorf("unterminated escape")
	}

	c := p.peek()
	p.pos++
	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'v':
		b.WriteByte('\v')
	case '0':
		b.WriteByte(0)
	case '\n':
		// line continuation
	case 'x':
		return p.hexEscape(b, 2)
	case 'u':
		if p.peek() == '{' {
			end := strings.IndexByte(p.src[p.pos:], '}')
			if end < 0 {
				return p.errorf("unterminated unicode escape")
			}
			n, err := strconv.ParseUint(p.src[p.pos+1:p.pos+end], 16, 32)
			if err != nil || n > unicode.MaxRune {
				return p.errorf("invalid unicode escape")
			}
			b.WriteRune(rune(n))
			p.pos += end + 1
			return nil
		}
		return p.hexEscape(b, 4)
	default:
		// \\, \', \" and any other character stand for themselves
		r, size := utf8.DecodeRuneInString(p.src[p.pos-1:])
		b.WriteRune(r)
		p.pos += size - 1
	}

	return nil
}

func (p *parser) hexEscape(b *strings.Builder, width int) error {
	if p.pos+width > len(p.src) {
		return p.errorf("short hex escape")
	}
	n, err := strconv.ParseUint(p.src[p.pos:p.pos+width], 16, 32)
	if err != nil {
		return p.errorf("invalid hex escape")
	}
	b.WriteRune(rune(n))
	p.pos += width
	return nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
