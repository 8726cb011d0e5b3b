package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vidstream/domain/models"
	"vidstream/domain/repositories"
)

const snapshotInsertBatch = 500

type ViewSnapshotRepositoryImpl struct {
	db *gorm.DB
}

func NewViewSnapshotRepository(db *gorm.DB) repositories.ViewSnapshotRepository {
	return &ViewSnapshotRepositoryImpl{db: db}
}

func (r *ViewSnapshotRepositoryImpl) CreateBatch(ctx context.Context, snapshots []*models.ViewSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(snapshots, snapshotInsertBatch).Error
}

func (r *ViewSnapshotRepositoryImpl) GetRecent(ctx context.Context, videoID uuid.UUID, limit int) ([]*models.ViewSnapshot, error) {
	var snapshots []*models.ViewSnapshot
	err := r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("captured_at DESC").
		Limit(limit).
		Find(&snapshots).Error
	return snapshots, err
}

func (r *ViewSnapshotRepositoryImpl) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("captured_at < ?", cutoff).
		Delete(&models.ViewSnapshot{})
	return result.RowsAffected, result.Error
}
