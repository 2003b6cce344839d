package domain

import (
	"time"

	"github.com/google/uuid"
)

// GreylistEntry counts strikes against a user across platforms.
type GreylistEntry struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:idx_greylist_user_platform" json:"user_id"`
	Platform  string    `gorm:"size:16;not null;uniqueIndex:idx_greylist_user_platform" json:"platform"`
	Count     int       `gorm:"not null;default:0" json:"count"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (GreylistEntry) TableName() string { return "greylist" }
