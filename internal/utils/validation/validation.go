// Package validation wraps go-playground/validator and turns its errors into
// apperr validation failures: one human-readable message per request field,
// keyed by the field's JSON name.
//
// The rules live on the request types as validate:"..." struct tags. Two
// rules are registered here in addition to the built-in ones:
//
//	notblank  rejects empty and whitespace-only strings
//	past      a "YYYY-MM-DD" date strictly before today (UTC)
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/aanand-mishra/student-records-api/internal/apperr"
	"github.com/aanand-mishra/student-records-api/internal/types"
)

// now is swapped in tests.
var now = time.Now

// validate is safe for concurrent use and caches struct metadata, so one
// instance serves the whole process.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON key ("birthDate") rather than the Go name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// RegisterValidation only fails on an empty tag or nil func.
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("past", isPast); err != nil {
		panic(err)
	}
	return v
}

func isPast(fl validator.FieldLevel) bool {
	d, err := types.ParseDate(fl.Field().String())
	if err != nil {
		return false
	}
	return d.Before(types.DateOf(now().UTC()).Time)
}

// Struct validates v against its struct tags. It returns nil or an
// *apperr.Error of KindValidation.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError: v was not a struct.
		return apperr.Internal(err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = message(fe.Field(), fe.Tag())
	}
	return apperr.Validation(fields)
}

// Var validates a single value, such as a path or query parameter, and
// reports a failure under field.
func Var(field string, value any, tag string) error {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Internal(err)
	}
	return apperr.Validation(map[string]string{
		field: message(field, verrs[0].Tag()),
	})
}

func message(field, tag string) string {
	label := Label(field)
	switch tag {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", label)
	case "email":
		return fmt.Sprintf("%s should be valid", label)
	case "datetime":
		return fmt.Sprintf("%s must be a valid date (YYYY-MM-DD)", label)
	case "past":
		return fmt.Sprintf("%s must be in the past", label)
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}

// Label turns a camelCase field name into a sentence-case label:
// "birthDate" becomes "Birth date".
func Label(field string) string {
	var b strings.Builder
	for i, r := range field {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
