package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupMetricsRoutes serves the default Prometheus registry
func SetupMetricsRoutes(app *fiber.App, path string) {
	if path == "" {
		path = "/metrics"
	}
	app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
}
