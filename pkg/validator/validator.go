package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator provides validation functionality
type Validator interface {
	Validate(interface{}) error
}

// Rule is a custom tag applied to string fields.
type Rule struct {
	Tag string
	Fn  func(string) bool
}

type structValidator struct {
	v *validator.Validate
}

func New(rules ...Rule) (Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := Register(v, rules...); err != nil {
		return nil, err
	}
	return &structValidator{v: v}, nil
}

// Register installs rules on v and reports fields by their JSON name. It is
// also used on gin's binding engine.
func Register(v *validator.Validate, rules ...Rule) error {
	v.RegisterTagNameFunc(jsonFieldName)
	for _, rule := range rules {
		fn := rule.Fn
		if err := v.RegisterValidation(rule.Tag, func(fl validator.FieldLevel) bool {
			if fl.Field().Kind() != reflect.String {
				return false
			}
			return fn(fl.Field().String())
		}); err != nil {
			return fmt.Errorf("failed to register %s: %w", rule.Tag, err)
		}
	}
	return nil
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

func (s *structValidator) Validate(obj interface{}) error {
	err := s.v.Struct(obj)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	return errors.New(Describe(fieldErrs))
}

// Describe renders validation errors as one readable sentence.
func Describe(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msgs = append(msgs, describeField(fe))
	}
	return strings.Join(msgs, "; ")
}

func describeField(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
