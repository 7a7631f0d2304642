package middleware

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin/binding"
	playground "github.com/go-playground/validator/v10"

	apperrors "github.com/jwalitptl/medreturn-api/pkg/errors"
	"github.com/jwalitptl/medreturn-api/pkg/validator"
)

// RegisterBindingRules installs custom validation tags on gin's binding engine
// so they apply to ShouldBind* calls.
func RegisterBindingRules(rules ...validator.Rule) error {
	v, ok := binding.Validator.Engine().(*playground.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding validator %T", binding.Validator.Engine())
	}
	return validator.Register(v, rules...)
}

// BindingError converts a ShouldBind* failure into a bad request.
func BindingError(err error) error {
	var fieldErrs playground.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return apperrors.BadRequest(validator.Describe(fieldErrs), err)
	}
	return apperrors.BadRequest("invalid request body", err)
}
