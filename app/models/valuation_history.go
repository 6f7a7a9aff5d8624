package models

import "time"

const (
	AnalysisTypeAIInitial    = "ai_initial"
	AnalysisTypeAIRevision   = "ai_revision"
	AnalysisTypeExpertReview = "expert_review"
)

// ValuationHistory is an append-only audit record of every analysis performed
// against an appraisal. PerformedBy identifies the acting agent; for AI
// analyses it is the model version string. Rows are never mutated or deleted.
type ValuationHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AppraisalID  uint      `gorm:"not null;index" json:"appraisal_id"`
	AnalysisType string    `gorm:"type:varchar(32);not null" json:"analysis_type"`
	AnalysisData JSON      `gorm:"type:json;not null" json:"analysis_data"`
	PerformedBy  string    `gorm:"type:varchar(191);not null" json:"performed_by"`
	Notes        string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}
