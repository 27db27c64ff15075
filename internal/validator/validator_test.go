package validator_test

import (
	"errors"
	"testing"

	playground "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inacomp/submission-judge/internal/validator"
)

type request struct {
	UserID string `json:"userId" validate:"required"`
	Mode   string `json:"mode"   validate:"oneof=a b"`
	Hidden string `json:"-"      validate:"required"`
	Param  string `param:"id"    json:"ignored" validate:"required"`
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()

	var errs playground.ValidationErrors
	require.True(t, errors.As(err, &errs), "expected validation errors, got %v", err)

	fields := map[string]string{}
	for _, fe := range errs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}

func TestValidate(t *testing.T) {
	v := validator.Create()

	t.Run("Valid", func(t *testing.T) {
		err := v.Validate(&request{UserID: "u", Mode: "a", Hidden: "h", Param: "p"})
		require.NoError(t, err)
	})

	t.Run("UsesWireNames", func(t *testing.T) {
		err := v.Validate(&request{Mode: "c"})
		fields := fieldErrors(t, err)

		assert.Equal(t, "required", fields["userId"])
		assert.Equal(t, "oneof", fields["mode"])
		assert.Equal(t, "required", fields["id"], "param tag wins over json")
		assert.Contains(t, fields, "Hidden", "fields hidden from json keep their go name")
	})
}

type frame struct {
	RoomID   string `json:"roomId"   validate:"roomid"`
	Function string `json:"function" validate:"identifier"`
}

func TestDomainTags(t *testing.T) {
	v := validator.Create()

	tests := []struct {
		name   string
		frame  frame
		failed []string
	}{
		{name: "Valid", frame: frame{RoomID: "u1:p1", Function: "two_sum2"}},
		{name: "RoomWithoutSeparator", frame: frame{RoomID: "u1p1", Function: "f"}, failed: []string{"roomId"}},
		{name: "RoomMissingProblem", frame: frame{RoomID: "u1:", Function: "f"}, failed: []string{"roomId"}},
		{name: "FunctionWithCall", frame: frame{RoomID: "u1:p1", Function: "f()"}, failed: []string{"function"}},
		{name: "FunctionLeadingDigit", frame: frame{RoomID: "u1:p1", Function: "1f"}, failed: []string{"function"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.frame)
			if len(tt.failed) == 0 {
				require.NoError(t, err)
				return
			}

			fields := fieldErrors(t, err)
			for _, name := range tt.failed {
				assert.Contains(t, fields, name)
			}
		})
	}
}
