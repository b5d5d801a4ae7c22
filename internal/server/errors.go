package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	voynich "github.com/voynich-dev/voynich"
)

// Error is the JSON error body returned by every failing endpoint.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e Error) Error() string { return e.Message }

// NewError creates an Error with an explicit status code.
func NewError(code int, msg string) Error {
	return Error{Code: code, Message: msg}
}

// ValidationError carries per-field validation failures.
type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string { return "validation failed" }

// NewValidationError wraps field errors with a 400 status.
func NewValidationError(fields map[string]string) ValidationError {
	return ValidationError{Status: fiber.StatusBadRequest, Errors: fields}
}

// ErrorHandler maps domain errors to HTTP statuses: missing records to 404,
// conversion failures to 422, splitter misconfiguration and validation to
// 400, everything else to 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	switch e := err.(type) {
	case Error:
		return c.Status(e.Code).JSON(e)
	case ValidationError:
		return c.Status(e.Status).JSON(e)
	}

	var convErr *voynich.ConversionError
	var splitErr *voynich.SplitError
	var fiberErr *fiber.Error
	switch {
	case errors.Is(err, voynich.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(NewError(fiber.StatusNotFound, "not found"))
	case errors.As(err, &convErr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(NewError(fiber.StatusUnprocessableEntity, convErr.Error()))
	case errors.As(err, &splitErr):
		return c.Status(fiber.StatusBadRequest).JSON(NewError(fiber.StatusBadRequest, splitErr.Error()))
	case errors.As(err, &fiberErr):
		return c.Status(fiberErr.Code).JSON(NewError(fiberErr.Code, fiberErr.Message))
	}
	return c.Status(fiber.StatusInternalServerError).JSON(NewError(fiber.StatusInternalServerError, err.Error()))
}
