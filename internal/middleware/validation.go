package middleware

import (
	"placement-tests/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// ValidationMiddleware provides request validation middleware
type ValidationMiddleware struct {
	validator *validation.Validator
}

// NewValidationMiddleware creates a new validation middleware instance
func NewValidationMiddleware() *ValidationMiddleware {
	return &ValidationMiddleware{
		validator: validation.NewValidator(),
	}
}

// ValidateTestID validates the :id path parameter and stores it under "validated_test_id".
func (vm *ValidationMiddleware) ValidateTestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if errors := vm.validator.ValidateTestID(id); len(errors) > 0 {
			return errors // This will be handled by ErrorHandler middleware
		}
		c.Locals("validated_test_id", id)
		return c.Next()
	}
}
