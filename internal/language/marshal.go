package language

import (
	"strconv"
	"strings"

	"github.com/inacomp/submission-judge/internal/literal"
)

const (
	unsupportedArray  = "Array conversion not supported"
	unsupportedObject = "Object conversion not supported in this language"
)

// Marshal spells v as a literal of the language.
func (d *Descriptor) Marshal(v literal.Value) string {
	switch v.Kind {
	case literal.KindNull:
		return d.Null
	case literal.KindUndefined:
		return d.Undefined
	case literal.KindBool:
		if v.Bool {
			return d.True
		}
		return d.False
	case literal.KindNumber:
		return v.NumberText()
	case literal.KindString:
		return d.Quote(v.Str)
	case literal.KindArray:
		if len(v.Elems) == 0 {
			return d.EmptyArray
		}
		return d.array(d, v)
	case literal.KindObject:
		if d.object == nil {
			return d.Quote(unsupportedObject)
		}
		return d.object(d, v.Fields)
	default:
		return d.Null
	}
}

// Quote renders s as a double quoted string literal.
func (d *Descriptor) Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if strings.ContainsRune(d.ExtraEscapes, r) {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')

	return b.String()
}

func (d *Descriptor) marshalAll(values []literal.Value) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, d.Marshal(v))
	}
	return out
}

func bracketArray(d *Descriptor, v literal.Value) string {
	return "[" + strings.Join(d.marshalAll(v.Elems), ", ") + "]"
}

func phpArray(d *Descriptor, v literal.Value) string {
	return "array(" + strings.Join(d.marshalAll(v.Elems), ", ") + ")"
}

func rustArray(d *Descriptor, v literal.Value) string {
	return "vec![" + strings.Join(d.marshalAll(v.Elems), ", ") + "]"
}

// braceList renders nested arrays as initializer lists, {{1, 2}, {3}}.
func braceList(d *Descriptor, v literal.Value) string {
	elems := make([]string, 0, len(v.Elems))
	for _, e := range v.Elems {
		if e.Kind == literal.KindArray {
			elems = append(elems, braceList(d, e))
			continue
		}
		elems = append(elems, d.Marshal(e))
	}
	return "{" + strings.Join(elems, ", ") + "}"
}

func cppArray(d *Descriptor, v literal.Value) string {
	leaf, _, ok := v.First()
	if !ok || leaf.Kind == literal.KindNumber {
		return braceList(d, v)
	}

	typ, ok := cppType(v)
	if !ok {
		return braceList(d, v)
	}

	return typ + braceList(d, v)
}

func cppType(v literal.Value) (string, bool) {
	switch v.Kind {
	case literal.KindArray:
		if len(v.Elems) == 0 {
			return "", false
		}
		inner, ok := cppType(v.Elems[0])
		if !ok {
			return "", false
		}
		return "std::vector<" + inner + ">", true
	case literal.KindString:
		return "std::string", true
	case literal.KindBool:
		return "bool", true
	case literal.KindNumber:
		if allIntegers(v) {
			return "int", true
		}
		return "double", true
	default:
		return "", false
	}
}

func javaArray(d *Descriptor, v literal.Value) string {
	typ, depth, ok := leafType(v, "String", "boolean")
	if !ok {
		return d.Quote(unsupportedArray)
	}

	return "new " + typ + strings.Repeat("[]", depth) + braceList(d, v)
}

func cArray(d *Descriptor, v literal.Value) string {
	typ, depth, ok := leafType(v, "const char*", "bool")
	if !ok {
		return d.Quote(unsupportedArray)
	}

	// only the outermost dimension may be left open
	dims := make([]int, depth)
	innerDims(v, 0, dims)

	var b strings.Builder
	b.WriteString("(")
	b.WriteString(typ)
	b.WriteString("[]")
	for _, n := range dims[1:] {
		b.WriteString("[")
		b.WriteString(strconv.Itoa(max(n, 1)))
		b.WriteString("]")
	}
	b.WriteString(")")
	b.WriteString(braceList(d, v))

	return b.String()
}

// leafType names the element type of an array from its first leaf. Numeric arrays are int
// unless any number in them has a fraction.
func leafType(v literal.Value, stringType, boolType string) (string, int, bool) {
	leaf, depth, ok := v.First()
	if !ok {
		return "", 0, false
	}

	switch leaf.Kind {
	case literal.KindNumber:
		if allIntegers(v) {
			return "int", depth, true
		}
		return "double", depth, true
	case literal.KindString:
		return stringType, depth, true
	case literal.KindBool:
		return boolType, depth, true
	default:
		return "", 0, false
	}
}

func innerDims(v literal.Value, level int, dims []int) {
	if v.Kind != literal.KindArray || level >= len(dims) {
		return
	}
	dims[level] = max(dims[level], len(v.Elems))
	for _, e := range v.Elems {
		innerDims(e, level+1, dims)
	}
}

func allIntegers(v literal.Value) bool {
	switch v.Kind {
	case literal.KindArray:
		for _, e := range v.Elems {
			if !allIntegers(e) {
				return false
			}
		}
		return true
	case literal.KindNumber:
		return v.IsInteger()
	default:
		return true
	}
}

func jsonObject(d *Descriptor, fields []literal.Field) string {
	entries := make([]string, 0, len(fields))
	for _, f := range fields {
		entries = append(entries, d.Quote(f.Key)+": "+d.Marshal(f.Value))
	}
	return "{" + strings.Join(entries, ", ") + "}"
}

func rubyHash(d *Descriptor, fields []literal.Field) string {
	entries := make([]string, 0, len(fields))
	for _, f := range fields {
		if isSymbol(f.Key) {
			entries = append(entries, f.Key+": "+d.Marshal(f.Value))
			continue
		}
		entries = append(entries, d.Quote(f.Key)+" => "+d.Marshal(f.Value))
	}
	return "{" + strings.Join(entries, ", ") + "}"
}

func phpObject(d *Descriptor, fields []literal.Field) string {
	entries := make([]string, 0, len(fields))
	for _, f := range fields {
		entries = append(entries, d.Quote(f.Key)+" => "+d.Marshal(f.Value))
	}
	return "array(" + strings.Join(entries, ", ") + ")"
}

func isSymbol(key string) bool {
	if key == "" {
		return false
	}
	for i, r := range key {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
