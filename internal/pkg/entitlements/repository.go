package entitlements

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/vkarlsson/vardera/app/models"
)

// Repository provides the storage operations the evaluator needs. The consume
// methods must be atomic with respect to concurrent calls for the same user:
// they return false, not an error, when the guarded condition no longer holds.
type Repository interface {
	EnsureUsage(userID uint) (*models.UsageTracking, error)
	RolloverPeriod(userID uint, now time.Time) error
	SumCredits(userID uint) (int, error)
	ConsumePlanUsage(userID uint) (bool, error)
	ConsumeOldestCredit(userID uint) (bool, error)
	GrantCredits(userID uint, count int, source, paymentRef string) (*models.AppraisalCredit, error)
	ListCredits(userID uint) ([]models.AppraisalCredit, error)
	SetPlan(userID uint, plan Plan) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an entitlement repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) EnsureUsage(userID uint) (*models.UsageTracking, error) {
	var usage models.UsageTracking
	err := r.db.Where("user_id = ?", userID).First(&usage).Error
	if err == nil {
		return &usage, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now()
	usage = models.UsageTracking{
		UserID:          userID,
		Plan:            string(PlanFree),
		AppraisalsUsed:  0,
		AppraisalsLimit: MonthlyAllowance(PlanFree),
		PeriodStart:     now,
		PeriodEnd:       now.AddDate(0, 1, 0),
	}
	if err := r.db.Create(&usage).Error; err != nil {
		// lost a create race; the row exists now
		if fetchErr := r.db.Where("user_id = ?", userID).First(&usage).Error; fetchErr == nil {
			return &usage, nil
		}
		return nil, err
	}
	return &usage, nil
}

// RolloverPeriod zeroes the counter and starts a fresh period. The guard on
// period_end makes it idempotent under concurrent rollovers.
func (r *gormRepository) RolloverPeriod(userID uint, now time.Time) error {
	return r.db.Model(&models.UsageTracking{}).
		Where("user_id = ? AND period_end < ?", userID, now).
		Updates(map[string]interface{}{
			"appraisals_used": 0,
			"period_start":    now,
			"period_end":      now.AddDate(0, 1, 0),
		}).Error
}

func (r *gormRepository) SumCredits(userID uint) (int, error) {
	var total int64
	err := r.db.Model(&models.AppraisalCredit{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(credits_remaining), 0)").
		Row().Scan(&total)
	return int(total), err
}

// ConsumePlanUsage advances the period counter iff the allowance still covers
// it. The conditional UPDATE closes the double-spend race; RowsAffected tells
// whether this caller won.
func (r *gormRepository) ConsumePlanUsage(userID uint) (bool, error) {
	res := r.db.Model(&models.UsageTracking{}).
		Where("user_id = ? AND (appraisals_limit = ? OR appraisals_used < appraisals_limit)",
			userID, models.UnlimitedAppraisals).
		UpdateColumn("appraisals_used", gorm.Expr("appraisals_used + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ConsumeOldestCredit spends one unit from the oldest grant that still has
// credit. Credits are fungible, so oldest-first is just a stable tie-break.
// The decrement is a compare-and-swap on the grant row, retried a few times
// when a concurrent consumer drains the selected grant first.
func (r *gormRepository) ConsumeOldestCredit(userID uint) (bool, error) {
	for attempt := 0; attempt < 3; attempt++ {
		var grant models.AppraisalCredit
		err := r.db.Where("user_id = ? AND credits_remaining > 0", userID).
			Order("created_at ASC, id ASC").
			First(&grant).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		res := r.db.Model(&models.AppraisalCredit{}).
			Where("id = ? AND credits_remaining > 0", grant.ID).
			UpdateColumn("credits_remaining", gorm.Expr("credits_remaining - 1"))
		if res.Error != nil {
			return false, res.Error
		}
		if res.RowsAffected > 0 {
			return true, nil
		}
		// grant was drained between select and update; pick the next one
	}
	return false, nil
}

func (r *gormRepository) GrantCredits(userID uint, count int, source, paymentRef string) (*models.AppraisalCredit, error) {
	if count <= 0 {
		return nil, errors.New("credit count must be positive")
	}
	grant := &models.AppraisalCredit{
		UserID:           userID,
		CreditsPurchased: count,
		CreditsRemaining: count,
		Source:           source,
		PaymentRef:       paymentRef,
	}
	if err := r.db.Create(grant).Error; err != nil {
		return nil, err
	}
	return grant, nil
}

func (r *gormRepository) ListCredits(userID uint) ([]models.AppraisalCredit, error) {
	var grants []models.AppraisalCredit
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&grants).Error
	return grants, err
}

// SetPlan switches the tracked plan and its allowance. The used counter is
// kept; an upgrade mid-period immediately widens the remaining allowance.
func (r *gormRepository) SetPlan(userID uint, plan Plan) error {
	if _, err := r.EnsureUsage(userID); err != nil {
		return err
	}
	return r.db.Model(&models.UsageTracking{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"plan":             string(plan),
			"appraisals_limit": MonthlyAllowance(plan),
		}).Error
}
