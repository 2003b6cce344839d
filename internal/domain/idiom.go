package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Uploader identifies who submitted an idiom on which chat platform.
type Uploader struct {
	Nickname string `json:"nickname"`
	ID       string `json:"id"`
	Platform string `json:"platform"`
}

// Idiom is one stored idiom image and its metadata. The image itself lives in
// object storage under <image_hash>.<image_ext>; ImageHash is the 16-hex-char
// digest of the image bytes and is the stable public identity of the record.
type Idiom struct {
	ID          uuid.UUID                     `gorm:"type:uuid;primaryKey" json:"id"`
	ImageHash   string                        `gorm:"size:16;uniqueIndex;not null" json:"image_hash"`
	ImageExt    string                        `gorm:"size:8;not null" json:"image_ext"`
	Tags        datatypes.JSONSlice[string]   `json:"tags"`
	OCRText     datatypes.JSONSlice[string]   `gorm:"column:ocr_text" json:"ocr_text"`
	Catalogue   datatypes.JSONSlice[string]   `json:"catalogue"`
	Comment     datatypes.JSONSlice[string]   `json:"comment"`
	Uploader    datatypes.JSONType[Uploader]  `json:"uploader"`
	UnderReview bool                          `gorm:"not null;index" json:"under_review"`
	CreatedAt   time.Time                     `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time                     `gorm:"not null" json:"updated_at"`
}

func (Idiom) TableName() string { return "idioms" }

// Filename is the object-storage key for the idiom's image.
func (i *Idiom) Filename() string {
	return i.ImageHash + "." + i.ImageExt
}

// UploaderCount is one row of the uploader leaderboard.
type UploaderCount struct {
	UploaderID string `json:"uploader_id"`
	Count      int64  `json:"count"`
}
