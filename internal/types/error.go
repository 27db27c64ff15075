package types

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Error is the payload of an error frame sent back to a relay client that sent a frame the
// relay could not handle.
type Error struct {
	// The event of the rejected frame, empty when the frame could not be decoded
	Event   string             `json:"event,omitempty"`
	Fields  *map[string]string `json:"fields,omitempty"`
	Message string             `json:"message"`
}

func StringError(err string) Error {
	return Error{Message: err}
}

// ValidationError lists the payload fields that failed validation, keyed by their wire name.
func ValidationError(err error) Error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return Error{Message: "validation error"}
	}

	errorMap := make(map[string]string, len(validationErrors))
	for _, fieldError := range validationErrors {
		errorMap[fieldError.Field()] = fmt.Sprintf("failed the %q check", fieldError.Tag())
	}

	return Error{Message: "validation error", Fields: &errorMap}
}

// ForEvent returns a copy of e attributed to event.
func (e Error) ForEvent(event string) Error {
	e.Event = event
	return e
}
