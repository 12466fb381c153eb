// Package validate checks request structs with struct tags and reports the
// first failure as an apperr validation error.
package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/carelink/telehealth/internal/platform/apperr"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so they match the request body.
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return val
}

// Struct validates s.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperr.Validation(fe.Field(), message(fe))
	}
	return apperr.Validation("body", err.Error())
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required."
	case "max":
		return fe.Field() + " is too long."
	case "min":
		return fe.Field() + " is too short."
	case "oneof":
		return fe.Field() + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ") + "."
	case "uuid", "uuid4":
		return fe.Field() + " is not a valid id."
	case "url", "http_url":
		return fe.Field() + " must be a valid link."
	}
	return fe.Field() + " is invalid."
}
