package render

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	validaterules "github.com/nkiryanov/vendorpos/internal/service/validate"
)

func configureValidator(v *validator.Validate) {
	_ = v.RegisterValidation("phone", validatePhone)
	_ = v.RegisterValidation("pin", validatePIN)
	v.RegisterTagNameFunc(useJSONTagNames)
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

func validatePhone(fl validator.FieldLevel) bool {
	return validaterules.PhoneNumber(fl.Field().String()) == nil
}

func validatePIN(fl validator.FieldLevel) bool {
	return validaterules.PIN(fl.Field().String()) == nil
}

// Client facing message for a failed validation tag
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return fmt.Sprintf("Value is too short (minimum %s)", fe.Param())
	case "max":
		return fmt.Sprintf("Value is too long (maximum %s)", fe.Param())
	case "email":
		return "Invalid email address"
	case "oneof":
		return fmt.Sprintf("Value must be one of: %s", fe.Param())
	case "eqfield":
		return "Values do not match"
	case "phone":
		return "Phone number must have exactly 8 digits"
	case "pin":
		return "PIN must have 4 to 6 digits"
	default:
		return "Invalid value"
	}
}
