package routes

import (
	"github.com/gofiber/fiber/v2"

	"vidstream/interfaces/api/handlers"
)

// SetupRoutes wires the public API process
func SetupRoutes(app *fiber.App, h *handlers.Handlers) {
	SetupHealthRoutes(app, h)

	api := app.Group("/api/v1")
	SetupTrendingRoutes(api, h)
	SetupVideoRoutes(api, h)
	SetupMonitoringRoutes(api, h)
}

// SetupWorkerRoutes wires the worker's admin listener
func SetupWorkerRoutes(app *fiber.App, h *handlers.Handlers) {
	SetupHealthRoutes(app, h)

	api := app.Group("/api/v1")
	SetupStorageRoutes(api, h)
	SetupMonitoringRoutes(api, h)
}

func SetupHealthRoutes(app *fiber.App, h *handlers.Handlers) {
	app.Get("/health", h.HealthHandler.Liveness)
	app.Get("/health/ready", h.HealthHandler.Readiness)
}

func SetupTrendingRoutes(router fiber.Router, h *handlers.Handlers) {
	trending := router.Group("/trending")
	trending.Get("/", h.TrendingHandler.GetTrending)
	trending.Get("/categories", h.TrendingHandler.GetCategories)
}

func SetupVideoRoutes(router fiber.Router, h *handlers.Handlers) {
	videos := router.Group("/videos")
	videos.Get("/stats", h.VideoHandler.GetStats)
	videos.Get("/:id/status", h.VideoHandler.GetStatus)
}

func SetupStorageRoutes(router fiber.Router, h *handlers.Handlers) {
	storage := router.Group("/storage")
	storage.Get("/stats", h.StorageHandler.GetStorageStats)
	storage.Post("/cleanup", h.StorageHandler.TriggerCleanup)
}

func SetupMonitoringRoutes(router fiber.Router, h *handlers.Handlers) {
	monitoring := router.Group("/monitoring")
	monitoring.Get("/queue", h.MonitoringHandler.GetQueueStatus)
	monitoring.Get("/jobs", h.MonitoringHandler.GetScheduledJobs)
}
