package models

import "time"

// AppraisalImage is a stored photo belonging to exactly one appraisal.
// Rows are created at upload time (after the blob upload confirmed) and are
// immutable afterwards. DisplayOrder is the user's selection order, unique and
// contiguous from 0 per appraisal; the image at order 0 is the primary one.
type AppraisalImage struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	AppraisalID  uint   `gorm:"not null;index;uniqueIndex:ux_appraisal_display_order,priority:1" json:"appraisal_id"`
	StoragePath  string `gorm:"type:varchar(255);not null" json:"storage_path"`
	FileName     string `gorm:"type:varchar(255);not null" json:"file_name"`
	FileSize     int64  `gorm:"type:bigint" json:"file_size"`
	MimeType     string `gorm:"type:varchar(50)" json:"mime_type"`
	DisplayOrder int    `gorm:"not null;uniqueIndex:ux_appraisal_display_order,priority:2" json:"display_order"`
	IsPrimary    bool   `gorm:"default:false" json:"is_primary"`
	// capture provenance, extracted from EXIF when present
	CameraModel *string    `gorm:"type:varchar(255)" json:"camera_model,omitempty"`
	TakenAt     *time.Time `gorm:"type:datetime" json:"taken_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
