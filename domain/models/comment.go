package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment rows are written by the social features. Here they are only counted.
type Comment struct {
	ID        uuid.UUID `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	VideoID   uuid.UUID `gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID `gorm:"type:uuid;not null"`
	Content   string    `gorm:"type:text"`
	CreatedAt time.Time
}

func (Comment) TableName() string {
	return "comments"
}
