package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"vidstream/domain/models"
)

var (
	ErrVideoNotFound = errors.New("video not found")

	// ErrStatusConflict is returned when a conditional transition matched no
	// row because the video is no longer in the expected state.
	ErrStatusConflict = errors.New("video status changed concurrently")
)

// ReadyUpdate - fields written by the ready transition
type ReadyUpdate struct {
	VideoURL     string
	ThumbnailURL string
}

// TrendingFilter - trending read path. Since is a lower bound on published_at.
type TrendingFilter struct {
	Category string // empty = all categories
	Since    time.Time
	Limit    int
	Offset   int
}

// VideoRepository exposes only field-scoped writes. Each lifecycle write is
// conditional on the current status so concurrent deliveries cannot step on
// each other.
type VideoRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error)

	// ClaimForProcessing moves pending -> processing (progress 10), stamps the
	// first heartbeat and reports whether this caller won the claim.
	ClaimForProcessing(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	// UpdateProgress writes a checkpoint and refreshes the heartbeat; ignored
	// unless the video is processing
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int, at time.Time) error

	// Heartbeat refreshes processing_heartbeat_at; ignored unless processing
	Heartbeat(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkReady moves processing -> ready, sets URLs, progress 100 and
	// published_at if it was never set.
	MarkReady(ctx context.Context, id uuid.UUID, update ReadyUpdate, now time.Time) error

	// MarkFailed moves processing -> failed. Progress keeps its last value.
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error

	// ListReadyBatch pages ready videos by id (keyset), returning at most limit rows after afterID
	ListReadyBatch(ctx context.Context, afterID uuid.UUID, limit int) ([]*models.Video, error)

	UpdateTrendingScore(ctx context.Context, id uuid.UUID, score float64, at time.Time) error

	CountComments(ctx context.Context, videoID uuid.UUID) (int64, error)

	FindTrending(ctx context.Context, filter TrendingFilter) ([]*models.Video, int64, error)

	// ListTrendingCategories - distinct non-null categories of ready, positively scored videos
	ListTrendingCategories(ctx context.Context) ([]string, error)

	// GetStuckProcessing - processing videos whose last heartbeat is older than threshold
	GetStuckProcessing(ctx context.Context, threshold time.Time) ([]*models.Video, error)

	CountByStatus(ctx context.Context, status models.VideoStatus) (int64, error)
}
