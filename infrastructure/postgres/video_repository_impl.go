package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vidstream/domain/models"
	"vidstream/domain/repositories"
)

type VideoRepositoryImpl struct {
	db *gorm.DB
}

func NewVideoRepository(db *gorm.DB) repositories.VideoRepository {
	return &VideoRepositoryImpl{db: db}
}

func (r *VideoRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	var video models.Video
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repositories.ErrVideoNotFound
	}
	if err != nil {
		return nil, err
	}
	return &video, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// Lifecycle transitions (media worker)
// ═══════════════════════════════════════════════════════════════════════════════

func (r *VideoRepositoryImpl) ClaimForProcessing(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Video{}).
		Where("id = ? AND status = ?", id, models.VideoStatusPending).
		Updates(map[string]interface{}{
			"status":                  models.VideoStatusProcessing,
			"processing_progress":     10,
			"processing_error":        nil,
			"processing_started_at":   now,
			"processing_heartbeat_at": now,
			"updated_at":              now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *VideoRepositoryImpl) UpdateProgress(ctx context.Context, id uuid.UUID, progress int, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Video{}).
		Where("id = ? AND status = ?", id, models.VideoStatusProcessing).
		UpdateColumns(map[string]interface{}{
			"processing_progress":     progress,
			"processing_heartbeat_at": at,
		}).Error
}

func (r *VideoRepositoryImpl) Heartbeat(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Video{}).
		Where("id = ? AND status = ?", id, models.VideoStatusProcessing).
		UpdateColumn("processing_heartbeat_at", at).Error
}

func (r *VideoRepositoryImpl) MarkReady(ctx context.Context, id uuid.UUID, update repositories.ReadyUpdate, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Video{}).
		Where("id = ? AND status = ?", id, models.VideoStatusProcessing).
		Updates(map[string]interface{}{
			"status":              models.VideoStatusReady,
			"video_url":           update.VideoURL,
			"thumbnail_url":       update.ThumbnailURL,
			"processing_progress": 100,
			"processing_error":    nil,
			"published_at":        gorm.Expr("COALESCE(published_at, ?)", now),
			"updated_at":          now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrStatusConflict
	}
	return nil
}

func (r *VideoRepositoryImpl) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Video{}).
		Where("id = ? AND status = ?", id, models.VideoStatusProcessing).
		Updates(map[string]interface{}{
			"status":           models.VideoStatusFailed,
			"processing_error": message,
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrStatusConflict
	}
	return nil
}

func (r *VideoRepositoryImpl) GetStuckProcessing(ctx context.Context, threshold time.Time) ([]*models.Video, error) {
	var videos []*models.Video
	err := r.db.WithContext(ctx).
		Select("id", "status", "processing_progress", "processing_started_at", "processing_heartbeat_at").
		Where("status = ? AND COALESCE(processing_heartbeat_at, processing_started_at) < ?", models.VideoStatusProcessing, threshold).
		Order("processing_started_at ASC").
		Find(&videos).Error
	return videos, err
}

func (r *VideoRepositoryImpl) CountByStatus(ctx context.Context, status models.VideoStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Video{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// ═══════════════════════════════════════════════════════════════════════════════
// Trending (calculator + read path)
// ═══════════════════════════════════════════════════════════════════════════════

func (r *VideoRepositoryImpl) ListReadyBatch(ctx context.Context, afterID uuid.UUID, limit int) ([]*models.Video, error) {
	var videos []*models.Video
	err := r.db.WithContext(ctx).
		Select("id", "status", "views", "category", "published_at", "created_at").
		Where("status = ? AND id > ?", models.VideoStatusReady, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&videos).Error
	return videos, err
}

// UpdateTrendingScore touches only the score columns; a video that left
// ready in the meantime keeps its old score.
func (r *VideoRepositoryImpl) UpdateTrendingScore(ctx context.Context, id uuid.UUID, score float64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Video{}).
		Where("id = ? AND status = ?", id, models.VideoStatusReady).
		UpdateColumns(map[string]interface{}{
			"trending_score":       score,
			"last_trending_update": at,
		}).Error
}

func (r *VideoRepositoryImpl) CountComments(ctx context.Context, videoID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("video_id = ?", videoID).Count(&count).Error
	return count, err
}

func (r *VideoRepositoryImpl) FindTrending(ctx context.Context, filter repositories.TrendingFilter) ([]*models.Video, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Video{}).
		Where("status = ? AND trending_score > 0", models.VideoStatusReady)

	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if !filter.Since.IsZero() {
		query = query.Where("published_at >= ?", filter.Since)
	}
	// count and page from the same filtered statement
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var videos []*models.Video
	err := query.
		Order("trending_score DESC").
		Order("id ASC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&videos).Error
	if err != nil {
		return nil, 0, err
	}

	return videos, total, nil
}

func (r *VideoRepositoryImpl) ListTrendingCategories(ctx context.Context) ([]string, error) {
	var categories []string
	err := r.db.WithContext(ctx).
		Model(&models.Video{}).
		Where("status = ? AND trending_score > 0", models.VideoStatusReady).
		Where("category IS NOT NULL AND category <> ''").
		Distinct("category").
		Order("category ASC").
		Pluck("category", &categories).Error
	return categories, err
}
