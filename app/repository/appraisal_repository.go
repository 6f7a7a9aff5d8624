package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vkarlsson/vardera/app/models"
)

// ErrStatusConflict is returned when a guarded status transition found the
// record in a different state than expected.
var ErrStatusConflict = fmt.Errorf("appraisal status changed concurrently")

type appraisalRepository struct {
	db *gorm.DB
}

// NewAppraisalRepository creates an appraisal repository backed by GORM.
func NewAppraisalRepository(db *gorm.DB) AppraisalRepository {
	return &appraisalRepository{db: db}
}

func (r *appraisalRepository) Create(appraisal *models.Appraisal) error {
	return r.db.Create(appraisal).Error
}

func (r *appraisalRepository) GetByID(id uint) (*models.Appraisal, error) {
	var appraisal models.Appraisal
	err := r.db.Preload("Images", func(db *gorm.DB) *gorm.DB {
		return db.Order("display_order ASC")
	}).First(&appraisal, id).Error
	if err != nil {
		return nil, err
	}
	return &appraisal, nil
}

func (r *appraisalRepository) GetByUUID(uuid string) (*models.Appraisal, error) {
	var appraisal models.Appraisal
	err := r.db.Preload("Images", func(db *gorm.DB) *gorm.DB {
		return db.Order("display_order ASC")
	}).Preload("History", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).Where("uuid = ?", uuid).First(&appraisal).Error
	if err != nil {
		return nil, err
	}
	return &appraisal, nil
}

func (r *appraisalRepository) GetByUserID(userID uint, offset, limit int) ([]models.Appraisal, error) {
	var appraisals []models.Appraisal
	err := r.db.Preload("Images", func(db *gorm.DB) *gorm.DB {
		return db.Order("display_order ASC")
	}).Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&appraisals).Error
	return appraisals, err
}

func (r *appraisalRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Appraisal{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// UpdateStatus moves an appraisal from one lifecycle state to the next. The
// WHERE guard on the current status keeps the lifecycle monotonic: a sweeper
// and a late analysis result cannot both win.
func (r *appraisalRepository) UpdateStatus(id uint, from, to string) error {
	res := r.db.Model(&models.Appraisal{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *appraisalRepository) MarkFailed(id uint, reason string) error {
	return r.db.Model(&models.Appraisal{}).
		Where("id = ? AND status IN ?", id, []string{
			models.AppraisalStatusPending,
			models.AppraisalStatusAnalyzing,
		}).
		Updates(map[string]interface{}{
			"status":         models.AppraisalStatusFailed,
			"failure_reason": reason,
		}).Error
}

// Complete writes the structured result fields and the terminal status in one
// update, guarded on the analyzing state.
func (r *appraisalRepository) Complete(id uint, result *AppraisalResult) error {
	recommendations, err := json.Marshal(result.Recommendations)
	if err != nil {
		return err
	}

	res := r.db.Model(&models.Appraisal{}).
		Where("id = ? AND status = ?", id, models.AppraisalStatusAnalyzing).
		Updates(map[string]interface{}{
			"status":                 models.AppraisalStatusCompleted,
			"item_identification":    result.ItemIdentification,
			"estimated_value_low":    result.EstimatedValueLow,
			"estimated_value_high":   result.EstimatedValueHigh,
			"currency":               result.Currency,
			"confidence_score":       result.ConfidenceScore,
			"condition_assessment":   result.ConditionAssessment,
			"condition_rating":       result.ConditionRating,
			"valuation_methodology":  result.ValuationMethodology,
			"market_context":         result.MarketContext,
			"market_type":            result.MarketType,
			"recommendations":        string(recommendations),
			"requires_expert_review": result.RequiresExpertReview,
			"ai_analysis":            string(result.RawAnalysis),
			"completed_at":           result.CompletedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// ApplyRevision overwrites the structured result of an already completed
// appraisal (ai_revision). The status stays completed.
func (r *appraisalRepository) ApplyRevision(id uint, result *AppraisalResult) error {
	recommendations, err := json.Marshal(result.Recommendations)
	if err != nil {
		return err
	}

	res := r.db.Model(&models.Appraisal{}).
		Where("id = ? AND status = ?", id, models.AppraisalStatusCompleted).
		Updates(map[string]interface{}{
			"item_identification":    result.ItemIdentification,
			"estimated_value_low":    result.EstimatedValueLow,
			"estimated_value_high":   result.EstimatedValueHigh,
			"currency":               result.Currency,
			"confidence_score":       result.ConfidenceScore,
			"condition_assessment":   result.ConditionAssessment,
			"condition_rating":       result.ConditionRating,
			"valuation_methodology":  result.ValuationMethodology,
			"market_context":         result.MarketContext,
			"market_type":            result.MarketType,
			"recommendations":        string(recommendations),
			"requires_expert_review": result.RequiresExpertReview,
			"ai_analysis":            string(result.RawAnalysis),
			"completed_at":           result.CompletedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *appraisalRepository) AddImage(image *models.AppraisalImage) error {
	return r.db.Create(image).Error
}

func (r *appraisalRepository) GetImages(appraisalID uint) ([]models.AppraisalImage, error) {
	var images []models.AppraisalImage
	err := r.db.Where("appraisal_id = ?", appraisalID).
		Order("display_order ASC").
		Find(&images).Error
	return images, err
}

func (r *appraisalRepository) AppendHistory(entry *models.ValuationHistory) error {
	return r.db.Create(entry).Error
}

func (r *appraisalRepository) GetHistory(appraisalID uint) ([]models.ValuationHistory, error) {
	var history []models.ValuationHistory
	err := r.db.Where("appraisal_id = ?", appraisalID).
		Order("created_at ASC").
		Find(&history).Error
	return history, err
}

func (r *appraisalRepository) ListStaleAnalyzing(updatedBefore time.Time) ([]models.Appraisal, error) {
	var appraisals []models.Appraisal
	err := r.db.Where("status = ? AND updated_at < ?", models.AppraisalStatusAnalyzing, updatedBefore).
		Find(&appraisals).Error
	return appraisals, err
}
