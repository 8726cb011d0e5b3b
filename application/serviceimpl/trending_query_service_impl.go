package serviceimpl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vidstream/domain/dto"
	"vidstream/domain/ports"
	"vidstream/domain/repositories"
	"vidstream/domain/services"
	"vidstream/pkg/logger"
	"vidstream/pkg/utils"
)

const trendingCategoriesKey = "trending:categories"

type TrendingQueryServiceImpl struct {
	videoRepo   repositories.VideoRepository
	cache       ports.CachePort // optional
	categoryTTL time.Duration
	now         func() time.Time
}

func NewTrendingQueryService(videoRepo repositories.VideoRepository, cache ports.CachePort, categoryTTL time.Duration) services.TrendingQueryService {
	if categoryTTL <= 0 {
		categoryTTL = time.Minute
	}
	return &TrendingQueryServiceImpl{
		videoRepo:   videoRepo,
		cache:       cache,
		categoryTTL: categoryTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *TrendingQueryServiceImpl) GetTrending(ctx context.Context, query *dto.TrendingQuery) (*dto.TrendingListResponse, error) {
	var q dto.TrendingQuery
	if query != nil {
		q = *query
	}
	if errs := utils.ValidateStruct(&q); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s %s", services.ErrInvalidQuery, errs[0].Field, errs[0].Message)
	}
	q.Normalize()

	window, ok := dto.TimeRangeWindow(q.TimeRange)
	if !ok {
		return nil, fmt.Errorf("%w: unknown timeRange %q", services.ErrInvalidQuery, q.TimeRange)
	}

	videos, total, err := s.videoRepo.FindTrending(ctx, repositories.TrendingFilter{
		Category: q.Category,
		Since:    s.now().Add(-window),
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load trending videos: %w", err)
	}

	category := q.Category
	if category == "" {
		category = dto.CategoryAll
	}

	return &dto.TrendingListResponse{
		Videos:    dto.VideosToTrendingResponses(videos),
		Total:     total,
		Limit:     q.Limit,
		Offset:    q.Offset,
		TimeRange: q.TimeRange,
		Category:  category,
	}, nil
}

// GetCategories is served from the cache when one is configured. Cache
// errors fall through to the database.
func (s *TrendingQueryServiceImpl) GetCategories(ctx context.Context) ([]string, error) {
	if s.cache != nil {
		var cached []string
		err := s.cache.GetJSON(ctx, trendingCategoriesKey, &cached)
		switch {
		case err == nil:
			return nonNil(cached), nil
		case !errors.Is(err, ports.ErrCacheMiss):
			logger.WarnContext(ctx, "Category cache read failed", "error", err)
		}
	}

	categories, err := s.videoRepo.ListTrendingCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list trending categories: %w", err)
	}
	categories = nonNil(categories)

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, trendingCategoriesKey, categories, s.categoryTTL); err != nil {
			logger.WarnContext(ctx, "Category cache write failed", "error", err)
		}
	}
	return categories, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
