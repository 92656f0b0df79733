package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/snbstore/internal/database"
	"github.com/example/snbstore/internal/services"
)

// toHTTPError maps service and store error kinds onto HTTP statuses. Anything
// unrecognized falls through to the fiber error handler as a 500.
func toHTTPError(err error) error {
	switch {
	case err == nil:
		return nil
	case database.IsValidation(err):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case database.IsConflict(err):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case database.IsNotFound(err):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrInsufficientStock):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, services.ErrNotCancellable),
		errors.Is(err, services.ErrNotReturnable):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	default:
		return err
	}
}
