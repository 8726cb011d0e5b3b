package models

import (
	"time"

	"github.com/google/uuid"
)

// VideoStatus is the processing lifecycle state of a video
type VideoStatus string

const (
	VideoStatusPending    VideoStatus = "pending"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusReady      VideoStatus = "ready"
	VideoStatusFailed     VideoStatus = "failed"
)

// Legal lifecycle edges. ready and failed have none.
var videoTransitions = map[VideoStatus][]VideoStatus{
	VideoStatusPending:    {VideoStatusProcessing},
	VideoStatusProcessing: {VideoStatusReady, VideoStatusFailed},
}

// CanTransitionTo reports whether next is a legal successor of s
func (s VideoStatus) CanTransitionTo(next VideoStatus) bool {
	for _, allowed := range videoTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s
func (s VideoStatus) IsTerminal() bool {
	return s == VideoStatusReady || s == VideoStatusFailed
}

func (s VideoStatus) IsValid() bool {
	switch s {
	case VideoStatusPending, VideoStatusProcessing, VideoStatusReady, VideoStatusFailed:
		return true
	}
	return false
}

// Video is one uploaded asset.
//
// Write ownership is split between actors and every write is field-scoped:
// the media worker owns status, URLs, progress and error; the trending
// calculator owns the score fields; the playback path owns views.
type Video struct {
	ID          uuid.UUID `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Title       string    `gorm:"size:255;not null"`
	Description string    `gorm:"type:text"`
	Category    *string   `gorm:"size:100;index"`
	Duration    int       `gorm:"default:0"` // seconds

	Status       VideoStatus `gorm:"size:20;default:'pending';index"`
	VideoURL     *string     `gorm:"type:text"`
	ThumbnailURL *string     `gorm:"type:text"`
	Views        int64       `gorm:"default:0"`

	ProcessingProgress    int        `gorm:"default:0"`
	ProcessingError       *string    `gorm:"type:text"`
	ProcessingStartedAt   *time.Time `gorm:"type:timestamptz"`
	ProcessingHeartbeatAt *time.Time `gorm:"type:timestamptz"` // refreshed by the owning worker
	PublishedAt           *time.Time `gorm:"type:timestamptz;index"`

	TrendingScore      float64    `gorm:"default:0;index"`
	LastTrendingUpdate *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Video) TableName() string {
	return "videos"
}

func (v *Video) IsPending() bool {
	return v.Status == VideoStatusPending
}

// ReferenceTime is publishedAt, or createdAt for never-published videos
func (v *Video) ReferenceTime() time.Time {
	if v.PublishedAt != nil {
		return *v.PublishedAt
	}
	return v.CreatedAt
}

// CategoryName returns "" for uncategorised videos
func (v *Video) CategoryName() string {
	if v.Category == nil {
		return ""
	}
	return *v.Category
}
