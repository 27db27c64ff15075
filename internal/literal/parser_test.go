package literal_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inacomp/submission-judge/internal/literal"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []literal.Value
	}{
		{
			name:     "Empty",
			input:    "",
			expected: []literal.Value{},
		},
		{
			name:     "Blank",
			input:    "  \n\t ",
			expected: []literal.Value{},
		},
		{
			name:     "Integers",
			input:    "1, -2, +3",
			expected: []literal.Value{literal.Number(1), literal.Number(-2), literal.Number(3)},
		},
		{
			name:     "Floats",
			input:    "1.5, .25, 2., 1e3, 2.5E-2",
			expected: []literal.Value{literal.Number(1.5), literal.Number(.25), literal.Number(2), literal.Number(1000), literal.Number(0.025)},
		},
		{
			name:     "Radix",
			input:    "0x1F, 0o17, 0b101, 1_000",
			expected: []literal.Value{literal.Number(31), literal.Number(15), literal.Number(5), literal.Number(1000)},
		},
		{
			name:  "Keywords",
			input: "true, false, null, undefined",
			expected: []literal.Value{
				literal.Bool(true), literal.Bool(false), literal.Null(), literal.Undefined(),
			},
		},
		{
			name:  "Strings",
			input: `"abc", 'd"e', ` + "`f'g`",
			expected: []literal.Value{
				literal.String("abc"), literal.String(`d"e`), literal.String("f'g"),
			},
		},
		{
			name:  "Escapes",
			input: `"a\nb\t\"c\"", 'it\'s', "A\x42\q"`,
			expected: []literal.Value{
				literal.String("a\nb\t\"c\""), literal.String("it's"), literal.String("ABq"),
			},
		},
		{
			name:  "NestedArrays",
			input: "[[1, 2], [3], []]",
			expected: []literal.Value{
				literal.Array(
					literal.Array(literal.Number(1), literal.Number(2)),
					literal.Array(literal.Number(3)),
					literal.Array(),
				),
			},
		},
		{
			name:  "TrailingCommas",
			input: "[1, 2,], {a: 1,},",
			expected: []literal.Value{
				literal.Array(literal.Number(1), literal.Number(2)),
				literal.Object(literal.Field{Key: "a", Value: literal.Number(1)}),
			},
		},
		{
			name:  "ObjectKeys",
			input: `{name: "x", "quoted key": [1], 'single': null, 7: true}`,
			expected: []literal.Value{
				literal.Object(
					literal.Field{Key: "name", Value: literal.String("x")},
					literal.Field{Key: "quoted key", Value: literal.Array(literal.Number(1))},
					literal.Field{Key: "single", Value: literal.Null()},
					literal.Field{Key: "7", Value: literal.Bool(true)},
				),
			},
		},
		{
			name:  "Mixed",
			input: `[1,2,3], 4, "needle"`,
			expected: []literal.Value{
				literal.Array(literal.Number(1), literal.Number(2), literal.Number(3)),
				literal.Number(4),
				literal.String("needle"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := literal.Parse(tt.input)
			require.NoError(t, err, "failed to parse input")

			assert.Equal(t, tt.expected, actual, "unexpected values")
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		offset int
	}{
		{name: "Unterminated string", input: `"abc`, offset: 0},
		{name: "Unterminated array", input: "[1, 2", offset: 5},
		{name: "Missing comma", input: "1 2", offset: 2},
		{name: "Identifier", input: "foo", offset: 0},
		{name: "Call", input: "Math.max(1)", offset: 0},
		{name: "Template substitution", input: "`a${b}`", offset: 2},
		{name: "Bad exponent", input: "1e", offset: 0},
		{name: "Missing colon", input: "{a 1}", offset: 3},
		{name: "Lone comma", input: ",", offset: 0},
		{name: "Number suffix", input: "12px", offset: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := literal.Parse(tt.input)
			require.Error(t, err, "expected parse to fail")

			var syntaxErr *literal.SyntaxError
			require.ErrorAs(t, err, &syntaxErr, "expected syntax error")
			assert.Equal(t, tt.offset, syntaxErr.Offset, "unexpected error offset")
		})
	}

	t.Run("DepthLimit", func(t *testing.T) {
		input := strings.Repeat("[", 300) + strings.Repeat("]", 300)

		_, err := literal.Parse(input)
		require.Error(t, err, "expected depth limit to be enforced")
	})
}

func TestParseValue(t *testing.T) {
	v, err := literal.ParseValue(" [1, 2] ")
	require.NoError(t, err, "failed to parse value")
	assert.Equal(t, literal.Array(literal.Number(1), literal.Number(2)), v)

	_, err = literal.ParseValue("1, 2")
	require.Error(t, err, "expected trailing input to fail")
}

func TestValue(t *testing.T) {
	t.Run("NumberText", func(t *testing.T) {
		assert.Equal(t, "0", literal.Number(0).NumberText())
		assert.Equal(t, "42", literal.Number(42).NumberText())
		assert.Equal(t, "-1.5", literal.Number(-1.5).NumberText())
		assert.Equal(t, "1e+21", literal.Number(1e21).NumberText())
	})

	t.Run("IsInteger", func(t *testing.T) {
		assert.True(t, literal.Number(2).IsInteger())
		assert.False(t, literal.Number(2.5).IsInteger())
		assert.False(t, literal.String("2").IsInteger())
	})

	t.Run("First", func(t *testing.T) {
		leaf, depth, ok := literal.Array(literal.Array(literal.String("a"))).First()
		require.True(t, ok)
		assert.Equal(t, literal.String("a"), leaf)
		assert.Equal(t, 2, depth)

		_, _, ok = literal.Array(literal.Array()).First()
		assert.False(t, ok)
	})
}
