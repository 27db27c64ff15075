package workererrors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inacomp/submission-judge/internal/types"
	workererrors "github.com/inacomp/submission-judge/internal/worker_errors"
)

func TestExitError(t *testing.T) {
	inner := errors.New("job file missing")
	err := fmt.Errorf("evaluate: %w", workererrors.ExitErrorWrap(types.ExitFailed, inner))

	var ee workererrors.ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, types.ExitFailed, ee.Code)
	require.ErrorIs(t, err, inner)
	assert.Equal(t, "2: job file missing", ee.Error())

	assert.Equal(t, "1", workererrors.ExitError{Code: types.ExitErrored}.Error())
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     int
		expected bool
	}{
		{name: "Nil", err: nil, code: types.ExitNormal},
		{name: "Plain", err: errors.New("boom"), code: types.ExitErrored},
		{name: "Failed", err: workererrors.ExitErrorWrap(types.ExitFailed, errors.New("job failed")), code: types.ExitFailed, expected: true},
		{
			name: "Wrapped",
			err:  fmt.Errorf("consume: %w", workererrors.ExitErrorWrap(types.ExitErrored, errors.New("redis down"))),
			code: types.ExitErrored,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, workererrors.ExitCode(tt.err))
			assert.Equal(t, tt.expected, workererrors.Expected(tt.err))
		})
	}
}
