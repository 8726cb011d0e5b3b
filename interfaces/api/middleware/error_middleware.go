package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"vidstream/pkg/logger"
	"vidstream/pkg/utils"
)

func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		errCode := utils.ErrCodeInternalError
		message := "Internal server error"

		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
			message = e.Message
			switch code {
			case fiber.StatusBadRequest:
				errCode = utils.ErrCodeBadRequest
			case fiber.StatusNotFound:
				errCode = utils.ErrCodeNotFound
			case fiber.StatusServiceUnavailable:
				errCode = utils.ErrCodeUnavailable
			}
		}

		if code >= fiber.StatusInternalServerError {
			logger.ErrorContext(c.UserContext(), "Unhandled request error", "path", c.Path(), "error", err)
		} else {
			logger.DebugContext(c.UserContext(), "Request rejected", "path", c.Path(), "status", code, "error", err)
		}

		return utils.ErrorResponse(c, code, errCode, message, nil)
	}
}
