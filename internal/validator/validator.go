package validator

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Echo compatible validator with proper tag semantics
type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	return cv.validator.Struct(i)
}

// isIdentifier accepts names that are valid functions in every supported language. The
// name is spliced into generated source, so anything else is rejected.
func isIdentifier(fl validator.FieldLevel) bool {
	return identifierPattern.MatchString(fl.Field().String())
}

// isRoomID accepts `userId:problemId` with both parts present.
func isRoomID(fl validator.FieldLevel) bool {
	userID, problemID, ok := strings.Cut(fl.Field().String(), ":")
	return ok && userID != "" && problemID != ""
}

func Create() CustomValidator {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		paramName := strings.SplitN(field.Tag.Get("param"), ",", 2)[0]
		if paramName != "" {
			return paramName
		}

		jsonName := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if jsonName == "-" {
			return ""
		}
		if jsonName == "-," {
			return "-"
		}
		return jsonName
	})

	// Only fails on duplicate or empty tags
	_ = validate.RegisterValidation("identifier", isIdentifier)
	_ = validate.RegisterValidation("roomid", isRoomID)

	return CustomValidator{validator: validate}
}
