package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CorsMiddleware allows read-only cross-origin access; allowOrigins is a
// comma separated list, "*" when empty
func CorsMiddleware(allowOrigins string) fiber.Handler {
	if allowOrigins == "" {
		allowOrigins = "*"
	}
	return cors.New(cors.Config{
		AllowOrigins:  allowOrigins,
		AllowMethods:  "GET,POST,OPTIONS,HEAD",
		AllowHeaders:  "Origin,Content-Type,Accept,Cache-Control,X-Requested-With,X-Request-ID",
		ExposeHeaders: "Content-Length,Content-Type,X-Request-ID",
	})
}
