package models

import "time"

// ProviderAccount links an OAuth identity to a local user.
type ProviderAccount struct {
	ID             uint   `gorm:"primarykey"`
	UserID         uint   `gorm:"not null;index"`
	Provider       string `gorm:"type:varchar(50);not null;uniqueIndex:ux_provider_user,priority:1"`
	ProviderUserID string `gorm:"type:varchar(255);not null;uniqueIndex:ux_provider_user,priority:2"`
	AccessToken    string `gorm:"type:text"`
	RefreshToken   string `gorm:"type:text"`
	ExpiresAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	User User `gorm:"foreignKey:UserID"`
}
