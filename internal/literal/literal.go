// Package literal parses test case argument lists.
//
// Test inputs are written as JavaScript-like expression lists (`[1, 2], "abc", {k: true}`). The
// parser accepts only literal syntax and builds a [Value] tree; it never evaluates anything.
package literal

import (
	"math"
	"strconv"
)

type Kind int

const (
	KindNull Kind = iota
	KindUndefined
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindUndefined:
		return "undefined"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

type Value struct {
	Kind   Kind
	Bool   bool
	Number float64
	Str    string
	Elems  []Value
	// Object fields in source order
	Fields []Field
}

type Field struct {
	Key   string
	Value Value
}

func Null() Value             { return Value{Kind: KindNull} }
func Undefined() Value        { return Value{Kind: KindUndefined} }
func Bool(b bool) Value       { return Value{Kind: KindBool, Bool: b} }
func Number(f float64) Value  { return Value{Kind: KindNumber, Number: f} }
func String(s string) Value   { return Value{Kind: KindString, Str: s} }
func Array(e ...Value) Value  { return Value{Kind: KindArray, Elems: e} }
func Object(f ...Field) Value { return Value{Kind: KindObject, Fields: f} }

// IsInteger follows JavaScript's Number.isInteger, so 2.0 is an integer.
func (v Value) IsInteger() bool {
	return v.Kind == KindNumber &&
		!math.IsInf(v.Number, 0) &&
		!math.IsNaN(v.Number) &&
		v.Number == math.Trunc(v.Number)
}

// NumberText renders a number the way JavaScript's String(n) would for the values the parser
// can produce: integers without a fraction, everything else in shortest round-trip form.
func (v Value) NumberText() string {
	f := v.Number
	if f == 0 {
		// -0 prints as 0
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}

	return strconv.FormatFloat(f, 'f', -1, 64)
}

// First returns the first leaf (non-array) value reached by descending through first elements.
// ok is false when an empty array is met on the way down.
func (v Value) First() (leaf Value, depth int, ok bool) {
	for v.Kind == KindArray {
		if len(v.Elems) == 0 {
			return Value{}, depth + 1, false
		}
		v = v.Elems[0]
		depth++
	}

	return v, depth, true
}
