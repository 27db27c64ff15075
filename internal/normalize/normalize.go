// Package normalize canonicalizes program output so it can be compared with the expected value
// of a test case.
//
// The shape of the expected value decides the rules: bracketed values are arrays, true and false
// are booleans and anything starting with a decimal number is a float with the expected
// precision. Everything else is compared verbatim after trimming.
package normalize

import (
	"encoding/json"
	"math"
	"math/big"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/inacomp/submission-judge/internal/language"
	"github.com/inacomp/submission-judge/internal/literal"
)

type shape int

const (
	shapeVerbatim shape = iota
	shapeArray
	shapeBoolean
	shapeFloat
)

var (
	floatPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	printREntry = regexp.MustCompile(`\[?\d+\]?\s*=>\s*([^,\n]+)`)
	identityRef = regexp.MustCompile(`(?i)\[.@[a-f0-9]+`)
)

func classify(expected string) shape {
	switch {
	case strings.HasPrefix(expected, "[") && strings.HasSuffix(expected, "]"):
		return shapeArray
	case strings.EqualFold(expected, "true") || strings.EqualFold(expected, "false"):
		return shapeBoolean
	case floatPrefix.MatchString(expected) && strings.Contains(expected, "."):
		return shapeFloat
	default:
		return shapeVerbatim
	}
}

// Normalize rewrites raw into the canonical form implied by expected.
func Normalize(raw, expected, languageID string) string {
	raw = strings.TrimSpace(raw)
	expected = strings.TrimSpace(expected)
	rules := language.Resolve(languageID).Normalization

	switch classify(expected) {
	case shapeArray:
		return normalizeArray(raw, rules)
	case shapeBoolean:
		return normalizeBoolean(raw, rules)
	case shapeFloat:
		return normalizeFloat(raw, expected)
	default:
		return raw
	}
}

// Equivalent reports whether raw matches expected once both are normalized. Arrays are compared
// element by element, recursively for nested arrays.
func Equivalent(raw, expected, languageID string) bool {
	expected = strings.TrimSpace(expected)
	normalized := Normalize(raw, expected, languageID)

	if classify(expected) == shapeArray {
		var want, got []any
		if json.Unmarshal([]byte(expected), &want) == nil && json.Unmarshal([]byte(normalized), &got) == nil {
			return sameSequence(want, got)
		}
	}

	return normalized == Normalize(expected, expected, languageID)
}

func sameSequence(want, got []any) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if !reflect.DeepEqual(want[i], got[i]) {
			return false
		}
	}
	return true
}

func normalizeArray(raw string, rules language.Normalization) string {
	hasBracket := strings.Contains(raw, "[")
	hasBrace := strings.Contains(raw, "{")

	if rules.SpaceSeparatedArrays && !hasBracket && !hasBrace {
		return "[" + strings.Join(strings.Fields(raw), ",") + "]"
	}

	if rules.BraceArrays && !hasBracket && hasBrace && strings.Contains(raw, "}") {
		r := strings.NewReplacer("{", "[", "}", "]")
		return stripSpace(r.Replace(raw))
	}

	if rules.IdentityHashArrays && !(hasBracket && strings.Contains(raw, "]")) && identityRef.MatchString(raw) {
		return "[]"
	}

	if rules.PrintRArrays && strings.HasPrefix(strings.ToLower(raw), "array") {
		if matches := printREntry.FindAllStringSubmatch(raw, -1); len(matches) > 0 {
			values := make([]string, 0, len(matches))
			for _, m := range matches {
				values = append(values, strings.TrimSpace(m[1]))
			}
			return "[" + strings.Join(values, ",") + "]"
		}
	}

	if hasBracket && strings.Contains(raw, "]") {
		return stripSpace(raw)
	}

	return raw
}

func normalizeBoolean(raw string, rules language.Normalization) string {
	if canonical, ok := rules.BoolTokens[raw]; ok {
		return canonical
	}
	return strings.ToLower(raw)
}

func normalizeFloat(raw, expected string) string {
	precision := 0
	if _, fraction, ok := strings.Cut(expected, "."); ok {
		fraction, _, _ = strings.Cut(fraction, ".")
		precision = len(fraction)
	}

	prefix := floatPrefix.FindString(raw)
	if prefix == "" {
		return raw
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsInf(f, 0) {
		return raw
	}

	return toFixed(f, precision)
}

// toFixed formats f with exactly precision decimals, rounding halves away from zero.
func toFixed(f float64, precision int) string {
	if math.Abs(f) >= 1e21 {
		return literal.Number(f).NumberText()
	}

	r := new(big.Rat).SetFloat64(math.Abs(f))
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(precision)), nil)
	r.Mul(r, new(big.Rat).SetInt(scale))

	q, m := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if m.Lsh(m, 1).Cmp(r.Denom()) >= 0 {
		q.Add(q, big.NewInt(1))
	}

	digits := q.String()
	if len(digits) <= precision {
		digits = strings.Repeat("0", precision-len(digits)+1) + digits
	}

	out := digits
	if precision > 0 {
		cut := len(digits) - precision
		out = digits[:cut] + "." + digits[cut:]
	}
	if f < 0 {
		out = "-" + out
	}

	return out
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
