package middleware

import (
	"errors"
	"log"

	"lms/apperr"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse maps an engine error onto the response envelope. Unknown
// errors are logged and reported as a generic retryable failure.
func ErrorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrInvalidState):
		status = fiber.StatusConflict
	case errors.Is(err, apperr.ErrValidation):
		status = fiber.StatusUnprocessableEntity
	}

	if status == fiber.StatusInternalServerError {
		log.Printf("[API] %s %s failed: %v", c.Method(), c.Path(), err)
		return JsonResponse(c, status, false, "Something went wrong, please try again!", nil)
	}

	message := apperr.Message(err)
	if message == "" {
		message = err.Error()
	}
	return JsonResponse(c, status, false, message, nil)
}
