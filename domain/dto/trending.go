package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// === Time ranges ===

const (
	TimeRangeNow   = "now"
	TimeRangeToday = "today"
	TimeRangeWeek  = "week"

	// CategoryAll selects every category, including uncategorised videos
	CategoryAll = "all"

	DefaultTrendingLimit = 20
	MaxTrendingLimit     = 100
)

var timeRangeWindows = map[string]time.Duration{
	TimeRangeNow:   4 * time.Hour,
	TimeRangeToday: 24 * time.Hour,
	TimeRangeWeek:  7 * 24 * time.Hour,
}

// TimeRangeWindow maps a time range name onto its look-back window
func TimeRangeWindow(timeRange string) (time.Duration, bool) {
	d, ok := timeRangeWindows[timeRange]
	return d, ok
}

// === Requests ===

type TrendingQuery struct {
	Category  string `query:"category" validate:"omitempty,max=100"`
	TimeRange string `query:"timeRange" validate:"omitempty,oneof=now today week"`
	Limit     int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset    int    `query:"offset" validate:"min=0"`
}

// Normalize fills defaults after validation
func (q *TrendingQuery) Normalize() {
	q.Category = strings.TrimSpace(q.Category)
	if strings.EqualFold(q.Category, CategoryAll) {
		q.Category = ""
	}
	if q.TimeRange == "" {
		q.TimeRange = TimeRangeToday
	}
	if q.Limit == 0 {
		q.Limit = DefaultTrendingLimit
	}
}

// === Responses ===

type TrendingVideoResponse struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Category      *string    `json:"category"`
	ThumbnailURL  *string    `json:"thumbnailUrl"`
	VideoURL      *string    `json:"videoUrl"`
	Duration      int        `json:"duration"`
	Views         int64      `json:"views"`
	TrendingScore float64    `json:"trendingScore"`
	PublishedAt   *time.Time `json:"publishedAt"`
}

type TrendingListResponse struct {
	Videos    []TrendingVideoResponse `json:"videos"`
	Total     int64                   `json:"total"`
	Limit     int                     `json:"limit"`
	Offset    int                     `json:"offset"`
	TimeRange string                  `json:"timeRange"`
	Category  string                  `json:"category"`
}
