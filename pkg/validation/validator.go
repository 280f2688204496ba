package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

var (
	inputKinds = map[string]struct{}{"text": {}, "url": {}, "image": {}, "qr": {}, "advisor": {}}
	userTypes  = map[string]struct{}{"INVESTOR": {}, "REGULATOR": {}, "ADMIN": {}}
	riskLevels = map[string]struct{}{"LOW": {}, "MEDIUM": {}, "HIGH": {}}
)

// Get returns the shared validator with the custom tags registered.
func Get() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation("input_kind", setMember(inputKinds, strings.ToLower))
		_ = validate.RegisterValidation("user_type", setMember(userTypes, strings.ToUpper))
		_ = validate.RegisterValidation("risk_level", setMember(riskLevels, strings.ToUpper))
	})
	return validate
}

func setMember(set map[string]struct{}, normalize func(string) string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == "" {
			return true
		}
		_, ok := set[normalize(value)]
		return ok
	}
}

// ValidateStruct validates s and converts field failures into a *ValidationError.
func ValidateStruct(s interface{}) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return NewValidationError(verrs)
	}
	return err
}
