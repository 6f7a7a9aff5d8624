package models

import "time"

const (
	CreditSourcePurchase = "purchase"
	CreditSourceGrant    = "grant"
)

// AppraisalCredit is a purchased, non-expiring grant of extra appraisals.
// A user may hold several grants; their total spendable credit is the sum of
// CreditsRemaining across all grants. CreditsRemaining only decreases, one at
// a time, via the entitlement repository's conditional update.
type AppraisalCredit struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;index" json:"user_id"`
	User             User      `gorm:"foreignKey:UserID" json:"-"`
	CreditsPurchased int       `gorm:"not null" json:"credits_purchased"`
	CreditsRemaining int       `gorm:"not null" json:"credits_remaining"`
	Source           string    `gorm:"type:varchar(50);not null;default:'purchase'" json:"source"`
	PaymentRef       string    `gorm:"type:varchar(191);default:null" json:"-"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SumCreditsRemaining returns the spendable credit total for a set of grants.
func SumCreditsRemaining(grants []AppraisalCredit) int {
	total := 0
	for _, g := range grants {
		total += g.CreditsRemaining
	}
	return total
}
