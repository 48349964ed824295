package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/yigit/libris/internal/pkg/validation"
)

// RegisterValidators adds the custom binding rules to gin's validator engine
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	return v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return validation.ValidUsername(fl.Field().String())
	})
}
