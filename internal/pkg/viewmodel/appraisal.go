package viewmodel

// AppraisalImage is one gallery entry on the result page.
type AppraisalImage struct {
	URL          string
	FileName     string
	IsPrimary    bool
	DisplayOrder int
	CameraModel  string
	TakenAt      string
}

// Appraisal carries everything the result page renders.
type Appraisal struct {
	UUID        string
	Category    string
	Description string
	Status      string
	InProgress  bool

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

	FailureReason string
	SubmittedAt   string
	CompletedAt   string
	ViewCount     int

	Images   []AppraisalImage
	ShareURL string

	// Owner-only controls
	CanReanalyze bool
}

// DashboardEntry is one row in the user's appraisal list.
type DashboardEntry struct {
	UUID               string
	ItemIdentification string
	Category           string
	Status             string
	EstimatedValueLow  float64
	EstimatedValueHigh float64
	Currency           string
	ThumbnailURL       string
	SubmittedAt        string
}

// Entitlement summarizes the usage box on the dashboard.
type Entitlement struct {
	Plan             string
	Used             int
	Limit            int
	Unlimited        bool
	CreditsRemaining int
}
