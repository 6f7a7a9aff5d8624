package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSON is a type for storing raw JSON documents in the database
type JSON json.RawMessage

// Value implements the driver.Valuer interface
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements the sql.Scanner interface
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = JSON("{}")
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("invalid scan source")
	}
	*j = JSON(bytes)
	return nil
}

// MarshalJSON implements the json.Marshaler interface
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = JSON(data)
	return nil
}

// Appraisal lifecycle states. A record is created pending, moves to analyzing
// once the entitlement is consumed and images are stored, and ends in
// completed or failed. ExpertReview is only reachable from completed when a
// human reviewer claims a flagged result.
const (
	AppraisalStatusPending      = "pending"
	AppraisalStatusAnalyzing    = "analyzing"
	AppraisalStatusCompleted    = "completed"
	AppraisalStatusFailed       = "failed"
	AppraisalStatusExpertReview = "expert_review"
)

// StringSlice stores a list of strings as a JSON column.
type StringSlice []string

// Value implements the driver.Valuer interface
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("invalid scan source")
	}
	return json.Unmarshal(bytes, (*[]string)(s))
}

// Appraisal is a single valuation request: the submitted item, its lifecycle
// status and, once analysis completed, the structured result fields.
// Records are kept as history and never deleted in normal operation.
type Appraisal struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	UUID            string `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"uuid"`
	UserID          *uint  `gorm:"index" json:"user_id"` // nullable for anonymous trials
	User            *User  `gorm:"foreignKey:UserID" json:"-"`
	Category        string `gorm:"type:varchar(100);not null" json:"category"`
	ItemDescription string `gorm:"type:text;not null" json:"item_description"`
	Status          string `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	FailureReason   string `gorm:"type:text" json:"failure_reason,omitempty"`
	AIAnalysis      *JSON  `gorm:"type:json" json:"ai_analysis,omitempty"`

	// Structured result, written only on the analyzing -> completed transition.
	ItemIdentification   string      `gorm:"type:text" json:"item_identification,omitempty"`
	EstimatedValueLow    *float64    `gorm:"type:decimal(12,2)" json:"estimated_value_low,omitempty"`
	EstimatedValueHigh   *float64    `gorm:"type:decimal(12,2)" json:"estimated_value_high,omitempty"`
	Currency             string      `gorm:"type:varchar(10);not null;default:'USD'" json:"currency"`
	ConfidenceScore      *int        `gorm:"type:int" json:"confidence_score,omitempty"`
	ConditionAssessment  string      `gorm:"type:text" json:"condition_assessment,omitempty"`
	ConditionRating      string      `gorm:"type:varchar(20)" json:"condition_rating,omitempty"`
	ValuationMethodology string      `gorm:"type:text" json:"valuation_methodology,omitempty"`
	MarketContext        string      `gorm:"type:text" json:"market_context,omitempty"`
	MarketType           string      `gorm:"type:varchar(20)" json:"market_type,omitempty"`
	Recommendations      StringSlice `gorm:"type:json" json:"recommendations,omitempty"`
	RequiresExpertReview bool        `gorm:"default:false" json:"requires_expert_review"`

	ViewCount int `gorm:"default:0" json:"view_count"`

	Images      []AppraisalImage   `gorm:"foreignKey:AppraisalID" json:"images,omitempty"`
	History     []ValuationHistory `gorm:"foreignKey:AppraisalID" json:"history,omitempty"`
	CreatedAt   time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt *time.Time         `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
}

// BeforeCreate assigns the public UUID if none was set
func (a *Appraisal) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == "" {
		a.UUID = uuid.New().String()
	}
	return nil
}

// IsTerminal reports whether the appraisal reached a final state.
func (a *Appraisal) IsTerminal() bool {
	switch a.Status {
	case AppraisalStatusCompleted, AppraisalStatusFailed, AppraisalStatusExpertReview:
		return true
	}
	return false
}

// PrimaryImage returns the image at display order 0, or nil.
func (a *Appraisal) PrimaryImage() *AppraisalImage {
	for i := range a.Images {
		if a.Images[i].DisplayOrder == 0 {
			return &a.Images[i]
		}
	}
	return nil
}
