package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"vidstream/domain/services"
	"vidstream/pkg/logger"
	"vidstream/pkg/utils"
)

type StorageHandler struct {
	storageService services.StorageService
}

func NewStorageHandler(storageService services.StorageService) *StorageHandler {
	return &StorageHandler{storageService: storageService}
}

// GetStorageStats GET /api/v1/storage/stats
func (h *StorageHandler) GetStorageStats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	if h.storageService == nil {
		return utils.ServiceUnavailableResponse(c, "Storage service is not available")
	}

	stats, err := h.storageService.GetStorageStats(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to get storage stats", "error", err)
		return utils.InternalServerErrorResponse(c)
	}

	return utils.SuccessResponse(c, fiber.Map{
		"raw": stats,
		"formatted": fiber.Map{
			"diskTotal": utils.FormatBytes(stats.DiskTotal),
			"diskFree":  utils.FormatBytes(stats.DiskFree),
			"tempSize":  utils.FormatBytes(uint64(stats.TempSize)),
		},
	})
}

// TriggerCleanup POST /api/v1/storage/cleanup
func (h *StorageHandler) TriggerCleanup(c *fiber.Ctx) error {
	ctx := c.UserContext()

	if h.storageService == nil {
		return utils.ServiceUnavailableResponse(c, "Storage service is not available")
	}

	logger.InfoContext(ctx, "Manual storage cleanup triggered")

	// the request ctx ends with the response
	go func() {
		if _, err := h.storageService.RunCleanup(context.WithoutCancel(ctx)); err != nil {
			logger.ErrorContext(ctx, "Manual storage cleanup failed", "error", err)
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(utils.Response{
		Success: true,
		Data:    fiber.Map{"message": "Cleanup started"},
	})
}
