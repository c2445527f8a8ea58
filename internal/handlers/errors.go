package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/example/ricestore/internal/services"
)

var kindStatus = map[services.ErrorKind]int{
	services.KindUnauthorized:      fiber.StatusUnauthorized,
	services.KindNotFound:          fiber.StatusNotFound,
	services.KindInvalidInput:      fiber.StatusBadRequest,
	services.KindInsufficientStock: fiber.StatusConflict,
	services.KindEmptyCart:         fiber.StatusBadRequest,
	services.KindForbidden:         fiber.StatusForbidden,
	services.KindConflict:          fiber.StatusConflict,
	services.KindStore:             fiber.StatusInternalServerError,
}

// ErrorHandler renders every failure as {"success": false, "message": ...}.
// Store and unexpected errors are logged and replaced by a generic message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := services.ErrStore.Message

	var svcErr *services.Error
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &svcErr):
		status = kindStatus[svcErr.Kind]
		if status == 0 {
			status = fiber.StatusInternalServerError
		}
		message = svcErr.Message
	case errors.As(err, &fiberErr):
		status = fiberErr.Code
		message = fiberErr.Message
	case errors.Is(err, gorm.ErrRecordNotFound):
		status = fiber.StatusNotFound
		message = "not found"
	}

	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

func parseID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return nil
}
