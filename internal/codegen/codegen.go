// Package codegen builds the program submitted to the judge for one test case.
package codegen

import (
	"github.com/inacomp/submission-judge/internal/language"
	"github.com/inacomp/submission-judge/internal/literal"
)

// Generate wraps userCode in the scaffold of languageID with a call of functionName on the
// arguments in rawInput. Input that is not a literal list is passed as one string argument.
func Generate(userCode, functionName, rawInput, languageID string) string {
	d := language.Resolve(languageID)

	return d.Render(userCode, functionName, Arguments(d, rawInput))
}

// Arguments marshals rawInput into argument literals for d.
func Arguments(d *language.Descriptor, rawInput string) []string {
	values, err := literal.Parse(rawInput)
	if err != nil {
		values = []literal.Value{literal.String(rawInput)}
	}

	args := make([]string, 0, len(values))
	for _, v := range values {
		args = append(args, d.Marshal(v))
	}

	return args
}
