package appraisal

import "github.com/vkarlsson/vardera/app/models"

// transitions is the lifecycle graph. pending never skips to completed; the
// two terminal automation states are completed and failed. expert_review is a
// human-escalation slot reachable from completed only.
var transitions = map[string][]string{
	models.AppraisalStatusPending:   {models.AppraisalStatusAnalyzing, models.AppraisalStatusFailed},
	models.AppraisalStatusAnalyzing: {models.AppraisalStatusCompleted, models.AppraisalStatusFailed},
	models.AppraisalStatusCompleted: {models.AppraisalStatusExpertReview},
}

// CanTransition reports whether the lifecycle allows moving from one status
// to another.
func CanTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
