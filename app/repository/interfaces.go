package repository

import (
	"time"

	"github.com/vkarlsson/vardera/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByResetToken(token string) (*models.User, error)
	Update(user *models.User) error
	Count() (int64, error)
}

// AppraisalRepository defines the interface for appraisal-related database
// operations. Status moves only through UpdateStatus/Complete/MarkFailed,
// which guard on the expected current status so the lifecycle stays monotonic
// under concurrent writers.
type AppraisalRepository interface {
	Create(appraisal *models.Appraisal) error
	GetByID(id uint) (*models.Appraisal, error)
	GetByUUID(uuid string) (*models.Appraisal, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Appraisal, error)
	CountByUserID(userID uint) (int64, error)

	UpdateStatus(id uint, from, to string) error
	MarkFailed(id uint, reason string) error
	Complete(id uint, result *AppraisalResult) error
	ApplyRevision(id uint, result *AppraisalResult) error

	AddImage(image *models.AppraisalImage) error
	GetImages(appraisalID uint) ([]models.AppraisalImage, error)

	AppendHistory(entry *models.ValuationHistory) error
	GetHistory(appraisalID uint) ([]models.ValuationHistory, error)

	ListStaleAnalyzing(updatedBefore time.Time) ([]models.Appraisal, error)
}

// AppraisalResult carries the structured fields written on the
// analyzing -> completed transition.
type AppraisalResult struct {
	ItemIdentification   string
	EstimatedValueLow    float64
	EstimatedValueHigh   float64
	Currency             string
	ConfidenceScore      int
	ConditionAssessment  string
	ConditionRating      string
	ValuationMethodology string
	MarketContext        string
	MarketType           string
	Recommendations      []string
	RequiresExpertReview bool
	RawAnalysis          []byte
	CompletedAt          time.Time
}
