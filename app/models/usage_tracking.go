package models

import "time"

// UnlimitedAppraisals is the sentinel allowance for plans without a monthly cap.
const UnlimitedAppraisals = -1

// UsageTracking holds the per-user appraisal counter for the current billing
// period. AppraisalsLimit of -1 means unlimited. The used counter is only ever
// advanced through the entitlement repository's conditional update; reading
// code must treat it as eventually stale.
type UsageTracking struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	User            User      `gorm:"foreignKey:UserID" json:"-"`
	Plan            string    `gorm:"type:varchar(50);not null;default:'free'" json:"plan"`
	AppraisalsUsed  int       `gorm:"not null;default:0" json:"appraisals_used"`
	AppraisalsLimit int       `gorm:"not null;default:3" json:"appraisals_limit"`
	PeriodStart     time.Time `gorm:"type:timestamp;not null" json:"period_start"`
	PeriodEnd       time.Time `gorm:"type:timestamp;not null" json:"period_end"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsUnlimited reports whether the tracked plan has no monthly cap.
func (u *UsageTracking) IsUnlimited() bool {
	return u.AppraisalsLimit == UnlimitedAppraisals
}

// Remaining returns how many plan appraisals are left this period.
// Unlimited plans report -1.
func (u *UsageTracking) Remaining() int {
	if u.IsUnlimited() {
		return UnlimitedAppraisals
	}
	r := u.AppraisalsLimit - u.AppraisalsUsed
	if r < 0 {
		return 0
	}
	return r
}

// PeriodExpired reports whether the billing period has rolled over.
func (u *UsageTracking) PeriodExpired(now time.Time) bool {
	return now.After(u.PeriodEnd)
}
