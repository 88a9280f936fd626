package api

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	app_errors "avatar-relay/internal/errors"

	"github.com/go-playground/validator/v10"
)

// This file provides a shared validation helper for API request bodies.

var (
	validate *validator.Validate
	once     sync.Once
)

// getInstance initializes the validator on first use.
func getInstance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// validateRequest checks a payload against its `validate` tags. Failures are
// returned wrapped in app_errors.ErrValidation with one line per field.
func validateRequest(payload any) error {
	err := getInstance().Struct(payload)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: an unexpected error occurred during validation: %s", app_errors.ErrValidation, err.Error())
	}

	var errorMessages []string
	for _, fieldErr := range validationErrors {
		// e.g. "Field 'Query' failed on the 'required' tag"
		errorMessages = append(errorMessages, fmt.Sprintf("Field '%s' failed on the '%s' tag", fieldErr.Field(), fieldErr.Tag()))
	}

	return fmt.Errorf("%w: %s", app_errors.ErrValidation, strings.Join(errorMessages, "; "))
}
