// Package jobschema decodes queue payloads into submission jobs.
//
// A payload is checked against the embedded JSON schema before it is decoded, then the decoded
// job goes through struct validation. Any failure means the payload can never be evaluated.
package jobschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/inacomp/submission-judge/internal/types"
	"github.com/inacomp/submission-judge/internal/validator"
)

//go:embed submission_job.schema.json
var schemaJSON string

var Schema = jsonschema.MustCompileString("submission_job.schema.json", schemaJSON)

var validate = validator.Create()

// ValidationError lists schema violations keyed by keyword location.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "job failed schema validation: " + strings.Join(parts, "; ")
}

// Validate checks raw JSON against the job schema.
func Validate(data []byte) error {
	doc, err := decodeDocument(data)
	if err != nil {
		return fmt.Errorf("job is not valid json: %w", err)
	}

	err = Schema.Validate(doc)
	var validationErr *jsonschema.ValidationError
	if errors.As(err, &validationErr) {
		errs := validationErr.BasicOutput().Errors
		fieldMap := make(map[string]string, len(errs))
		for _, e := range errs {
			if e.Error == "" {
				continue
			}
			fieldMap[e.KeywordLocation] = e.Error
		}
		return &ValidationError{Fields: fieldMap}
	}
	return err
}

// decodeDocument keeps numbers as json.Number so the schema sees integers exactly.
func decodeDocument(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after the job document")
	}
	return doc, nil
}

// Decode validates data and returns the job it describes.
func Decode(data []byte) (*types.SubmissionJob, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	var job types.SubmissionJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}

	if err := ValidateJob(&job); err != nil {
		return nil, err
	}

	return &job, nil
}

// ValidateJob runs struct validation on an already decoded job.
func ValidateJob(job *types.SubmissionJob) error {
	if err := validate.Validate(job); err != nil {
		return fmt.Errorf("job failed validation: %w", err)
	}
	return nil
}
