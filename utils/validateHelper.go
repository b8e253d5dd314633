package utils

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the shared validator; it caches struct metadata so
// one instance is kept for the process.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct runs `validate:"..."` tags on input.
func ValidateStruct(input any) error {
	return GetValidator().Struct(input)
}
