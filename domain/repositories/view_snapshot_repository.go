package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vidstream/domain/models"
)

// ViewSnapshotRepository is append/read/prune only. Snapshots are never updated.
type ViewSnapshotRepository interface {
	CreateBatch(ctx context.Context, snapshots []*models.ViewSnapshot) error

	// GetRecent returns up to limit snapshots for a video, newest first
	GetRecent(ctx context.Context, videoID uuid.UUID, limit int) ([]*models.ViewSnapshot, error)

	// DeleteOlderThan hard-deletes every snapshot with timestamp < cutoff
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
