package valuation

import (
	"errors"
	"fmt"
)

// ErrNoInput is returned when neither text nor images were provided.
var ErrNoInput = errors.New("please provide text or images for valuation")

const (
	textBaseValue     = 50.0
	perCharacterValue = 0.1
	perImageValue     = 100.0

	textConfidence     = 20
	perImageConfidence = 15
	confidenceCap      = 95
)

// AccuracyMessage is shown with every quick estimate. Swedish, the audience
// of the tool.
const AccuracyMessage = "Ju mer information och bilder AI:n får, desto mer exakt blir värderingen. För bästa resultat, beskriv objektet noggrant och ladda upp tydliga bilder från olika vinklar."

// Input is one quick-valuation request. ImageCount stands in for the images
// themselves; the estimator never inspects pixel data.
type Input struct {
	Text       string
	ImageCount int
}

// Estimate is a heuristic quick valuation, clearly separated from the AI
// appraisal flow.
type Estimate struct {
	Valuation    float64  `json:"valuation"`
	Confidence   int      `json:"confidence"`
	Message      string   `json:"message"`
	Explanations []string `json:"explanations"`
}

// Calculate produces a deterministic estimate from the amount of material
// provided. Text contributes a base value plus a per-character amount, each
// image a fixed amount; confidence grows with both and is capped.
func Calculate(in Input) (*Estimate, error) {
	if in.Text == "" && in.ImageCount <= 0 {
		return nil, ErrNoInput
	}

	est := &Estimate{}

	if in.Text != "" {
		est.Valuation += textBaseValue + float64(len(in.Text))*perCharacterValue
		est.Confidence += textConfidence
		est.Explanations = append(est.Explanations, "Text provided contributed to the valuation.")
	}

	if in.ImageCount > 0 {
		est.Valuation += float64(in.ImageCount) * perImageValue
		est.Confidence += in.ImageCount * perImageConfidence
		est.Explanations = append(est.Explanations,
			fmt.Sprintf("%d image(s) provided significantly contributed to the valuation.", in.ImageCount))
	}

	if est.Confidence > confidenceCap {
		est.Confidence = confidenceCap
	}

	switch {
	case est.Confidence < 30:
		est.Explanations = append(est.Explanations,
			"The confidence in this valuation is low. Providing more details and images will improve accuracy.")
	case est.Confidence < 60:
		est.Explanations = append(est.Explanations,
			"The confidence in this valuation is moderate. More details and/or images could improve it.")
	default:
		est.Explanations = append(est.Explanations,
			"The confidence in this valuation is good. The information provided was helpful.")
	}

	est.Message = AccuracyMessage

	return est, nil
}
