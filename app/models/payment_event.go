package models

import "time"

// PaymentEvent records every received payment webhook for idempotent
// processing. ProviderEventID is unique per provider; replays are dropped.
type PaymentEvent struct {
	ID              uint   `gorm:"primarykey"`
	Provider        string `gorm:"type:varchar(50);not null;uniqueIndex:ux_provider_event,priority:1"`
	ProviderEventID string `gorm:"type:varchar(255);not null;uniqueIndex:ux_provider_event,priority:2"`
	EventType       string `gorm:"type:varchar(100);not null"`
	Payload         JSON   `gorm:"type:json"`
	SignatureValid  bool   `gorm:"not null"`
	CreatedAt       time.Time
}
