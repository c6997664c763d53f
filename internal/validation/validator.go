package validation

import (
	"regexp"
	"strings"

	"placement-tests/internal/domain"
)

// test ids are ULIDs when generated, but callers may supply their own
var testIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Validator provides request validation functionality
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateTestID validates a test id taken from a path or body.
func (v *Validator) ValidateTestID(id string) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if strings.TrimSpace(id) == "" {
		errors = append(errors, domain.NewMissingFieldError("id"))
		return errors
	}
	if !testIDPattern.MatchString(id) {
		errors = append(errors, domain.NewInvalidValueError("id", id))
	}
	return errors
}
