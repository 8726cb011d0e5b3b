package handlers

import (
	"github.com/gofiber/fiber/v2"

	"vidstream/domain/ports"
	"vidstream/pkg/logger"
	"vidstream/pkg/scheduler"
	"vidstream/pkg/utils"
)

// MonitoringHandler exposes queue depth and scheduled task state
type MonitoringHandler struct {
	queue     ports.JobQueuePort
	scheduler scheduler.EventScheduler
}

func NewMonitoringHandler(queue ports.JobQueuePort, eventScheduler scheduler.EventScheduler) *MonitoringHandler {
	return &MonitoringHandler{
		queue:     queue,
		scheduler: eventScheduler,
	}
}

// GetQueueStatus GET /api/v1/monitoring/queue
func (h *MonitoringHandler) GetQueueStatus(c *fiber.Ctx) error {
	ctx := c.UserContext()

	if h.queue == nil {
		return utils.ServiceUnavailableResponse(c, "Job queue not available")
	}

	status, err := h.queue.GetQueueStatus(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to get queue status", "error", err)
		return utils.ServiceUnavailableResponse(c, "Job queue not reachable")
	}

	return utils.SuccessResponse(c, status)
}

// GetScheduledJobs GET /api/v1/monitoring/jobs
func (h *MonitoringHandler) GetScheduledJobs(c *fiber.Ctx) error {
	if h.scheduler == nil {
		return utils.ServiceUnavailableResponse(c, "Scheduler not running in this process")
	}

	return utils.SuccessResponse(c, fiber.Map{
		"running": h.scheduler.IsRunning(),
		"jobs":    h.scheduler.ListJobs(),
	})
}
