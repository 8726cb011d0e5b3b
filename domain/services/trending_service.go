package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"vidstream/domain/dto"
)

// ErrInvalidQuery wraps every rejected trending query parameter
var ErrInvalidQuery = errors.New("invalid trending query")

// TrendingCalculatorService recomputes trending scores for every ready video
type TrendingCalculatorService interface {
	RunOnce(ctx context.Context) (*CalculatorRunSummary, error)
	RegisterJob() error
}

type CalculatorRunSummary struct {
	Batches  int           `json:"batches"`
	Scored   int           `json:"scored"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// SnapshotRecorderService records view counts and prunes old snapshots
type SnapshotRecorderService interface {
	RunOnce(ctx context.Context) (*SnapshotRunSummary, error)
	RegisterJob() error
}

type SnapshotRunSummary struct {
	Recorded int   `json:"recorded"`
	Pruned   int64 `json:"pruned"`
}

type TrendingQueryService interface {
	GetTrending(ctx context.Context, query *dto.TrendingQuery) (*dto.TrendingListResponse, error)
	GetCategories(ctx context.Context) ([]string, error)
}

type VideoStatusService interface {
	GetProcessingStatus(ctx context.Context, videoID uuid.UUID) (*dto.VideoStatusResponse, error)
	GetStats(ctx context.Context) (*dto.ProcessingStatsResponse, error)
}
