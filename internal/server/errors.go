package server

import (
	"errors"

	"farmops-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler renders typed pipeline errors as {"error", "details"} with the
// matching status. Anything untyped is logged and reported as a 500.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		var ae *apperr.Error
		if errors.As(err, &ae) {
			body := fiber.Map{"error": ae.Message}
			if len(ae.Details) > 0 {
				body["details"] = ae.Details
			}
			return c.Status(apperr.HTTPStatus(err)).JSON(body)
		}

		log.Error("unexpected error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unexpected server error",
		})
	}
}
