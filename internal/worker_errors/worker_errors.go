package workererrors

import (
	"errors"
	"fmt"

	"github.com/inacomp/submission-judge/internal/types"
)

// ExitError carries the process exit code of a worker command along with its cause.
type ExitError struct {
	Err  error
	Code int
}

func (e ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%d", e.Code)
	}

	return fmt.Sprintf("%d: %s", e.Code, e.Err.Error())
}

func (e ExitError) Unwrap() error {
	return e.Err
}

func ExitErrorWrap(code int, err error) error {
	return ExitError{Code: code, Err: err}
}

// ExitCode maps a command result to the process exit code. Errors without an ExitError in
// their chain exit with types.ExitErrored.
func ExitCode(err error) int {
	if err == nil {
		return types.ExitNormal
	}

	var ee ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return types.ExitErrored
}

// Expected reports whether err only signals a failed verdict, which callers need not log.
func Expected(err error) bool {
	return ExitCode(err) == types.ExitFailed
}
