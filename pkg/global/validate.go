package global

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldMessages maps "field.tag" (json field name, failed validate tag) to the
// message shown to the shopper.
type FieldMessages map[string]string

// ValidateStruct runs the validate tags on v and returns the first failing
// field as a ValidationError.
func ValidateStruct(v interface{}, messages FieldMessages) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	msg, ok := messages[fe.Field()+"."+fe.Tag()]
	if !ok {
		msg = "Campo inválido"
	}
	return ValidationError{Field: fe.Field(), Message: msg, Code: validationCode(fe.Tag())}
}

func validationCode(tag string) string {
	switch tag {
	case "required":
		return "required"
	case "email":
		return "invalid_format"
	case "oneof":
		return "invalid_choice"
	case "min":
		return "min_length"
	default:
		return tag
	}
}
