// Package language holds one descriptor per supported judge language.
//
// A descriptor carries everything that differs between languages: how argument literals are
// spelled, the program scaffold around the user's function, and how raw program output is
// normalized before comparison. Adding a language means adding one entry to the table.
package language

import (
	"strings"
	"text/template"

	"github.com/inacomp/submission-judge/internal/literal"
)

// Judge0 language identifiers
const (
	IDC          = "1"
	IDCLegacy    = "6"
	IDCPP        = "11"
	IDJava       = "14"
	IDJavaScript = "15"
	IDPHP        = "18"
	IDPython     = "19"
	IDRuby       = "22"
	IDRust       = "23"
)

type (
	arrayFormatter  func(d *Descriptor, v literal.Value) string
	objectFormatter func(d *Descriptor, fields []literal.Field) string
)

// Normalization describes how a language tends to print values that the canonical scaffold
// did not produce, e.g. a user printing from inside their function.
type Normalization struct {
	// Bare values separated by whitespace are an array
	SpaceSeparatedArrays bool
	// {1, 2} is an array
	BraceArrays bool
	// Object.toString() of an array, like [I@1b6d3586
	IdentityHashArrays bool
	// print_r style "0 => a" listings
	PrintRArrays bool
	// Raw output token to canonical true or false
	BoolTokens map[string]string
}

type Descriptor struct {
	ID      string
	Name    string
	Aliases []string

	Null       string
	Undefined  string
	True       string
	False      string
	EmptyArray string
	// Runes escaped with a backslash inside string literals in addition to the usual ones
	ExtraEscapes string

	Normalization Normalization

	array    arrayFormatter
	object   objectFormatter
	scaffold *template.Template
}

type scaffoldData struct {
	UserCode string
	Call     string
}

var (
	descriptors = []*Descriptor{
		{
			ID:         IDJavaScript,
			Name:       "javascript",
			Null:       "null",
			Undefined:  "undefined",
			True:       "true",
			False:      "false",
			EmptyArray: "[]",
			array:      bracketArray,
			object:     jsonObject,
			scaffold:   mustScaffold(IDJavaScript, javascriptScaffold),
		},
		{
			ID:         IDPython,
			Name:       "python",
			Null:       "None",
			Undefined:  "None",
			True:       "True",
			False:      "False",
			EmptyArray: "[]",
			Normalization: Normalization{
				BoolTokens: map[string]string{"True": "true", "False": "false"},
			},
			array:    bracketArray,
			object:   jsonObject,
			scaffold: mustScaffold(IDPython, pythonScaffold),
		},
		{
			ID:           IDRuby,
			Name:         "ruby",
			Null:         "nil",
			Undefined:    "nil",
			True:         "true",
			False:        "false",
			EmptyArray:   "[]",
			ExtraEscapes: "#",
			array:        bracketArray,
			object:       rubyHash,
			scaffold:     mustScaffold(IDRuby, rubyScaffold),
		},
		{
			ID:           IDPHP,
			Name:         "php",
			Null:         "null",
			Undefined:    "null",
			True:         "true",
			False:        "false",
			EmptyArray:   "array()",
			ExtraEscapes: "$",
			Normalization: Normalization{
				PrintRArrays: true,
				BoolTokens:   map[string]string{"1": "true", "": "false", "0": "false"},
			},
			array:    phpArray,
			object:   phpObject,
			scaffold: mustScaffold(IDPHP, phpScaffold),
		},
		{
			ID:         IDC,
			Name:       "c",
			Aliases:    []string{IDCLegacy},
			Null:       "NULL",
			Undefined:  "NULL",
			True:       "true",
			False:      "false",
			EmptyArray: "NULL",
			Normalization: Normalization{
				SpaceSeparatedArrays: true,
				BraceArrays:          true,
				BoolTokens:           map[string]string{"1": "true", "0": "false"},
			},
			array:    cArray,
			scaffold: mustScaffold(IDC, cScaffold),
		},
		{
			ID:         IDCPP,
			Name:       "cpp",
			Null:       "nullptr",
			Undefined:  "nullptr",
			True:       "true",
			False:      "false",
			EmptyArray: "{}",
			Normalization: Normalization{
				SpaceSeparatedArrays: true,
				BraceArrays:          true,
				BoolTokens:           map[string]string{"1": "true", "0": "false"},
			},
			array:    cppArray,
			scaffold: mustScaffold(IDCPP, cppScaffold),
		},
		{
			ID:         IDJava,
			Name:       "java",
			Null:       "null",
			Undefined:  "null",
			True:       "true",
			False:      "false",
			EmptyArray: "new int[0]",
			Normalization: Normalization{
				IdentityHashArrays: true,
			},
			array:    javaArray,
			scaffold: mustScaffold(IDJava, javaScaffold),
		},
		{
			ID:         IDRust,
			Name:       "rust",
			Null:       "None",
			Undefined:  "None",
			True:       "true",
			False:      "false",
			EmptyArray: "vec![]",
			array:      rustArray,
			scaffold:   mustScaffold(IDRust, rustScaffold),
		},
	}

	// Default is used for identifiers outside the table. Its scaffold prints the raw result.
	Default = &Descriptor{
		ID:         "",
		Name:       "default",
		Null:       "null",
		Undefined:  "undefined",
		True:       "true",
		False:      "false",
		EmptyArray: "[]",
		array:      bracketArray,
		object:     jsonObject,
		scaffold:   mustScaffold("default", defaultScaffold),
	}

	byID = index(descriptors)
)

func index(ds []*Descriptor) map[string]*Descriptor {
	m := make(map[string]*Descriptor, len(ds))
	for _, d := range ds {
		m[d.ID] = d
		for _, alias := range d.Aliases {
			m[alias] = d
		}
	}
	return m
}

func mustScaffold(name, text string) *template.Template {
	return template.Must(template.New(name).Parse(text))
}

// Lookup finds the descriptor registered for id or one of its aliases.
func Lookup(id string) (*Descriptor, bool) {
	d, ok := byID[strings.TrimSpace(id)]
	return d, ok
}

// Resolve is Lookup with a fallback to Default.
func Resolve(id string) *Descriptor {
	if d, ok := Lookup(id); ok {
		return d
	}
	return Default
}

// All returns the supported descriptors in table order.
func All() []*Descriptor {
	out := make([]*Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// Render wraps userCode in the language scaffold with a single call of functionName.
func (d *Descriptor) Render(userCode, functionName string, args []string) string {
	var b strings.Builder
	data := scaffoldData{
		UserCode: userCode,
		Call:     functionName + "(" + strings.Join(args, ", ") + ")",
	}

	// scaffolds only reference the two string fields and strings.Builder never fails
	_ = d.scaffold.Execute(&b, data)

	return b.String()
}
