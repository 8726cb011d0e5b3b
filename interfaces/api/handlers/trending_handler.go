package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"vidstream/domain/dto"
	"vidstream/domain/services"
	"vidstream/pkg/logger"
	"vidstream/pkg/utils"
)

type TrendingHandler struct {
	trendingService services.TrendingQueryService
}

func NewTrendingHandler(trendingService services.TrendingQueryService) *TrendingHandler {
	return &TrendingHandler{trendingService: trendingService}
}

// GetTrending GET /api/v1/trending?category=&timeRange=&limit=&offset=
func (h *TrendingHandler) GetTrending(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var query dto.TrendingQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.BadRequestResponse(c, "Invalid query parameters")
	}
	if errs := utils.ValidateStruct(&query); len(errs) > 0 {
		return utils.ValidationErrorResponse(c, errs)
	}

	result, err := h.trendingService.GetTrending(ctx, &query)
	if errors.Is(err, services.ErrInvalidQuery) {
		return utils.BadRequestResponse(c, err.Error())
	}
	if err != nil {
		logger.ErrorContext(ctx, "Failed to get trending videos", "error", err)
		return utils.InternalServerErrorResponse(c)
	}

	return utils.PaginatedSuccessResponse(c, result, result.Total, result.Limit, result.Offset)
}

// GetCategories GET /api/v1/trending/categories
func (h *TrendingHandler) GetCategories(c *fiber.Ctx) error {
	ctx := c.UserContext()

	categories, err := h.trendingService.GetCategories(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to get trending categories", "error", err)
		return utils.InternalServerErrorResponse(c)
	}

	return utils.SuccessResponse(c, categories)
}
