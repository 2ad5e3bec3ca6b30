package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/gmgr/gmgr/internal/gpio"
)

// respondError renders a *gpio.Error as the JSON body {"error": <message>}
// with the matching HTTP status.
func respondError(c *fiber.Ctx, err error) error {
	var gerr *gpio.Error
	if errors.As(err, &gerr) {
		return c.Status(gerr.StatusCode()).JSON(fiber.Map{
			"error": gerr.Message,
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}
