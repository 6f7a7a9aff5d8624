package entitlements

import (
	"errors"
	"strings"
	"time"

	"github.com/vkarlsson/vardera/app/models"
)

type Plan string

const (
	PlanFree       Plan = "free"
	PlanPremium    Plan = "premium"
	PlanPremiumMax Plan = "premium_max"
)

// ErrLimitReached is returned when neither the plan allowance nor purchased
// credits can cover one more appraisal. Callers surface it with an
// upgrade/purchase call to action.
var ErrLimitReached = errors.New("appraisal limit reached")

// MonthlyAllowance returns how many appraisals a plan includes per billing
// period. models.UnlimitedAppraisals (-1) means no cap.
func MonthlyAllowance(plan Plan) int {
	switch plan {
	case PlanPremiumMax:
		return models.UnlimitedAppraisals
	case PlanPremium:
		return 50
	default:
		return 3
	}
}

// NormalizePlan maps arbitrary plan strings to a known plan, defaulting to free.
func NormalizePlan(plan string) Plan {
	switch Plan(strings.ToLower(strings.TrimSpace(plan))) {
	case PlanPremium:
		return PlanPremium
	case PlanPremiumMax:
		return PlanPremiumMax
	default:
		return PlanFree
	}
}

// Source says which pool an allowed appraisal draws from.
type Source string

const (
	SourceUnlimited Source = "unlimited"
	SourcePlan      Source = "plan"
	SourceCredit    Source = "credit"
)

// Decision is the evaluator's answer to "may this account start one more
// appraisal right now".
type Decision struct {
	Allowed          bool   `json:"allowed"`
	Source           Source `json:"source,omitempty"`
	PlanRemaining    int    `json:"plan_remaining"`
	CreditsRemaining int    `json:"credits_remaining"`
}

// Evaluator gates appraisal submissions against the plan allowance and the
// purchased credit balance. Check is the read-only form-gating view; Consume
// performs the authoritative atomic spend at submission time. Both fail
// closed: if storage is unreachable, the answer is an error, not an allow.
type Evaluator struct {
	repo Repository
	now  func() time.Time
}

// NewEvaluator creates an evaluator from an injected repository.
func NewEvaluator(repo Repository) *Evaluator {
	return &Evaluator{repo: repo, now: time.Now}
}

// Check answers without consuming anything. It is used to disable the submit
// form preemptively; the race between Check and use is closed by Consume.
func (e *Evaluator) Check(userID uint) (*Decision, error) {
	usage, err := e.usageForNow(userID)
	if err != nil {
		return nil, err
	}

	credits, err := e.repo.SumCredits(userID)
	if err != nil {
		return nil, err
	}

	d := &Decision{
		PlanRemaining:    usage.Remaining(),
		CreditsRemaining: credits,
	}

	switch {
	case usage.IsUnlimited():
		d.Allowed = true
		d.Source = SourceUnlimited
	case usage.AppraisalsUsed < usage.AppraisalsLimit:
		d.Allowed = true
		d.Source = SourcePlan
	case credits > 0:
		d.Allowed = true
		d.Source = SourceCredit
	}

	return d, nil
}

// Consume atomically spends one appraisal slot: the plan counter while the
// allowance lasts, then the oldest credit grant. With one slot left and two
// concurrent calls, exactly one succeeds; the other gets ErrLimitReached.
func (e *Evaluator) Consume(userID uint) (*Decision, error) {
	usage, err := e.usageForNow(userID)
	if err != nil {
		return nil, err
	}

	ok, err := e.repo.ConsumePlanUsage(userID)
	if err != nil {
		return nil, err
	}
	if ok {
		source := SourcePlan
		if usage.IsUnlimited() {
			source = SourceUnlimited
		}
		return e.decision(userID, source)
	}

	ok, err = e.repo.ConsumeOldestCredit(userID)
	if err != nil {
		return nil, err
	}
	if ok {
		return e.decision(userID, SourceCredit)
	}

	return nil, ErrLimitReached
}

// usageForNow loads the usage row, creating a default free-plan row for new
// users and rolling the counter over when the billing period expired.
func (e *Evaluator) usageForNow(userID uint) (*models.UsageTracking, error) {
	usage, err := e.repo.EnsureUsage(userID)
	if err != nil {
		return nil, err
	}
	if usage.PeriodExpired(e.now()) {
		if err := e.repo.RolloverPeriod(userID, e.now()); err != nil {
			return nil, err
		}
		usage, err = e.repo.EnsureUsage(userID)
		if err != nil {
			return nil, err
		}
	}
	return usage, nil
}

func (e *Evaluator) decision(userID uint, source Source) (*Decision, error) {
	d := &Decision{Allowed: true, Source: source}

	if usage, err := e.repo.EnsureUsage(userID); err == nil {
		d.PlanRemaining = usage.Remaining()
	}
	if credits, err := e.repo.SumCredits(userID); err == nil {
		d.CreditsRemaining = credits
	}

	return d, nil
}
