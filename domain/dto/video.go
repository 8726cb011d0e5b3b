package dto

import (
	"time"

	"github.com/google/uuid"

	"vidstream/domain/models"
)

type VideoStatusResponse struct {
	ID           uuid.UUID          `json:"id"`
	Status       models.VideoStatus `json:"status"`
	Progress     int                `json:"progress"`
	Error        *string            `json:"error,omitempty"`
	VideoURL     *string            `json:"videoUrl,omitempty"`
	ThumbnailURL *string            `json:"thumbnailUrl,omitempty"`
	PublishedAt  *time.Time         `json:"publishedAt,omitempty"`
	StartedAt    *time.Time         `json:"processingStartedAt,omitempty"`
}

// ProcessingStatsResponse - video counts per lifecycle status plus queue depth
type ProcessingStatsResponse struct {
	Pending    int64        `json:"pending"`
	Processing int64        `json:"processing"`
	Ready      int64        `json:"ready"`
	Failed     int64        `json:"failed"`
	Queue      *QueueStatus `json:"queue,omitempty"`
}

type QueueStatus struct {
	Driver      string `json:"driver"`
	Queue       string `json:"queue"`
	Pending     uint64 `json:"pending"`
	AckPending  uint64 `json:"ackPending"`
	Redelivered uint64 `json:"redelivered"`
}
