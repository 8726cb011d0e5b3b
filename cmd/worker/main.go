package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"vidstream/interfaces/api/handlers"
	"vidstream/interfaces/api/middleware"
	"vidstream/interfaces/api/routes"
	"vidstream/pkg/di"
	"vidstream/pkg/logger"
)

func main() {
	container := di.NewContainer(di.RoleWorker)

	if err := container.Initialize(); err != nil {
		panic("Failed to initialize container: " + err.Error())
	}
	cfg := container.GetConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := container.JobConsumer.Start(ctx, container.MediaProcessingService.ProcessJob); err != nil {
		logger.Error("Failed to start job consumer", "error", err)
		_ = container.Cleanup()
		os.Exit(1)
	}
	container.EventScheduler.Start()

	logger.Info("Worker started",
		"driver", cfg.Queue.Driver,
		"concurrency", cfg.Worker.Concurrency,
		"storage", cfg.Storage.Type,
	)

	// admin listener: health checks, metrics, storage maintenance
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		AppName:               cfg.App.Name + "-worker",
		DisableStartupMessage: true,
	})
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware())
	if cfg.Metrics.Enabled {
		routes.SetupMetricsRoutes(app, cfg.Metrics.Path)
	}
	routes.SetupWorkerRoutes(app, handlers.NewHandlers(container.GetHandlerServices()))

	go func() {
		if err := app.Listen(":" + cfg.Worker.HTTPPort); err != nil {
			logger.Error("Worker admin listener stopped", "error", err)
		}
	}()

	sig := <-sigChan
	logger.Info("Received shutdown signal", "signal", sig.String())
	cancel()

	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		logger.Warn("Admin listener shutdown failed", "error", err)
	}

	// Cleanup stops the consumer first so in-flight jobs can settle
	if err := container.Cleanup(); err != nil {
		logger.Error("Error during cleanup", "error", err)
	}
	logger.Info("Worker shutdown complete")
}
