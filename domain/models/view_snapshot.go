package models

import (
	"time"

	"github.com/google/uuid"
)

// ViewSnapshot is an append-only sample of a video's view counter.
// Rows are never updated; they are pruned once past the retention horizon.
type ViewSnapshot struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	VideoID   uuid.UUID `gorm:"type:uuid;not null;index:idx_view_snapshots_video_time,priority:1"`
	Views     int64     `gorm:"not null"`
	Timestamp time.Time `gorm:"column:captured_at;type:timestamptz;not null;index;index:idx_view_snapshots_video_time,priority:2"`
}

func (ViewSnapshot) TableName() string {
	return "view_snapshots"
}
