package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"vidstream/domain/repositories"
	"vidstream/domain/services"
	"vidstream/pkg/logger"
	"vidstream/pkg/utils"
)

type VideoHandler struct {
	statusService services.VideoStatusService
}

func NewVideoHandler(statusService services.VideoStatusService) *VideoHandler {
	return &VideoHandler{statusService: statusService}
}

// GetStatus GET /api/v1/videos/:id/status
func (h *VideoHandler) GetStatus(c *fiber.Ctx) error {
	ctx := c.UserContext()

	videoID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequestResponse(c, "Invalid video ID")
	}

	status, err := h.statusService.GetProcessingStatus(ctx, videoID)
	if errors.Is(err, repositories.ErrVideoNotFound) {
		return utils.NotFoundResponse(c, "Video not found")
	}
	if err != nil {
		logger.ErrorContext(ctx, "Failed to get video status", "video_id", videoID, "error", err)
		return utils.InternalServerErrorResponse(c)
	}

	return utils.SuccessResponse(c, status)
}

// GetStats GET /api/v1/videos/stats
func (h *VideoHandler) GetStats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	stats, err := h.statusService.GetStats(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to get processing stats", "error", err)
		return utils.InternalServerErrorResponse(c)
	}

	return utils.SuccessResponse(c, stats)
}
