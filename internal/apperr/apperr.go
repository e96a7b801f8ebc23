package apperr

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/scout-app/scout-api/internal/validation"
)

// ErrNotImplemented is matched by every error produced by NotImplemented.
var ErrNotImplemented = errors.New("not implemented")

type notImplementedError struct {
	endpoint string
}

func (e notImplementedError) Error() string {
	return fmt.Sprintf("%s endpoint not yet implemented", e.endpoint)
}

func (e notImplementedError) Is(target error) bool {
	return target == ErrNotImplemented
}

// NotImplemented reports that the named endpoint has no backing behaviour.
func NotImplemented(endpoint string) error {
	return notImplementedError{endpoint: endpoint}
}

// Unprocessable wraps a request decoding failure as a 422 response.
func Unprocessable(err error) error {
	return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
}

// Status returns the HTTP status Handler writes for err.
func Status(err error) int {
	var (
		verrs validation.Errors
		ferr  *fiber.Error
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.As(err, &ferr):
		return ferr.Code
	default:
		return http.StatusInternalServerError
	}
}

// Handler renders every error as a JSON {"detail": ...} body.
func Handler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var (
			verrs validation.Errors
			ferr  *fiber.Error
		)
		switch {
		case errors.As(err, &verrs):
			return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{
				"detail": "validation failed",
				"errors": verrs,
			})
		case errors.Is(err, ErrNotImplemented):
			return c.Status(http.StatusNotImplemented).JSON(fiber.Map{"detail": err.Error()})
		case errors.As(err, &ferr):
			return c.Status(ferr.Code).JSON(fiber.Map{"detail": ferr.Message})
		}

		if logger != nil {
			logger.Error("unhandled request error",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.Any("error", err),
			)
		}
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"detail": "internal server error"})
	}
}
