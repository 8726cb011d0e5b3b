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
	container := di.NewContainer(di.RoleAPI)

	if err := container.Initialize(); err != nil {
		// logger may not be ready yet
		panic("Failed to initialize container: " + err.Error())
	}
	cfg := container.GetConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := container.StartBackground(ctx); err != nil {
		logger.Error("Failed to start background services", "error", err)
		os.Exit(1)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(),
		AppName:      cfg.App.Name,
		ReadTimeout:  30 * time.Second,
		IdleTimeout:  2 * time.Minute,

		EnablePrintRoutes: cfg.IsDevelopment(),
	})

	// request id must come before the logger
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware())
	if cfg.IsProduction() && cfg.App.CORSOrigins == "*" {
		logger.Warn("CORS allows every origin in production")
	}
	app.Use(middleware.CorsMiddleware(cfg.App.CORSOrigins))

	if cfg.Metrics.Enabled {
		routes.SetupMetricsRoutes(app, cfg.Metrics.Path)
	}
	if container.Hub != nil {
		routes.SetupWebSocketRoutes(app, container.Hub)
	}

	h := handlers.NewHandlers(container.GetHandlerServices())
	routes.SetupRoutes(app, h)

	setupGracefulShutdown(app, container, cancel)

	logger.Info("Server starting",
		"port", cfg.App.Port,
		"env", cfg.App.Env,
		"app", cfg.App.Name,
	)
	logger.Info("Endpoints available",
		"health", "http://localhost:"+cfg.App.Port+"/health",
		"api", "http://localhost:"+cfg.App.Port+"/api/v1",
		"websocket", "ws://localhost:"+cfg.App.Port+"/ws/progress",
	)

	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logger.Error("Server failed to start", "error", err)
		os.Exit(1)
	}
}

func setupGracefulShutdown(app *fiber.App, container *di.Container, cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-c
		logger.Info("Gracefully shutting down...", "signal", sig.String())

		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Warn("HTTP server shutdown failed", "error", err)
		}
		// closes websocket clients
		cancel()

		if err := container.Cleanup(); err != nil {
			logger.Error("Error during cleanup", "error", err)
		}

		logger.Info("Shutdown complete")
		os.Exit(0)
	}()
}
