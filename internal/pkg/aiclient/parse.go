package aiclient

import (
	"encoding/json"
	"fmt"
)

// Result is the structured appraisal decoded from the provider reply.
// ConfidenceScore is clamped to [0,100] and EstimatedValueLow <=
// EstimatedValueHigh always holds for a parsed result.
type Result struct {
	ItemIdentification   string   `json:"itemIdentification"`
	EstimatedValueLow    float64  `json:"estimatedValueLow"`
	EstimatedValueHigh   float64  `json:"estimatedValueHigh"`
	Currency             string   `json:"currency"`
	ConditionAssessment  string   `json:"conditionAssessment"`
	ConditionRating      string   `json:"conditionRating"`
	ValuationMethodology string   `json:"valuationMethodology"`
	MarketContext        string   `json:"marketContext"`
	MarketType           string   `json:"marketType"`
	Recommendations      []string `json:"recommendations"`
	ConfidenceScore      int      `json:"confidenceScore"`
	RequiresExpertReview bool     `json:"requiresExpertReview"`
	Limitations          string   `json:"limitations"`
	Sources              []string `json:"sources"`

	// ModelVersion is set by the client, not decoded from the reply.
	ModelVersion string `json:"-"`
}

// rawResult uses pointers for the numeric fields so that missing values can be
// told apart from zero values.
type rawResult struct {
	ItemIdentification   string   `json:"itemIdentification"`
	EstimatedValueLow    *float64 `json:"estimatedValueLow"`
	EstimatedValueHigh   *float64 `json:"estimatedValueHigh"`
	Currency             string   `json:"currency"`
	ConditionAssessment  string   `json:"conditionAssessment"`
	ConditionRating      string   `json:"conditionRating"`
	ValuationMethodology string   `json:"valuationMethodology"`
	MarketContext        string   `json:"marketContext"`
	MarketType           string   `json:"marketType"`
	Recommendations      []string `json:"recommendations"`
	ConfidenceScore      *float64 `json:"confidenceScore"`
	RequiresExpertReview bool     `json:"requiresExpertReview"`
	Limitations          string   `json:"limitations"`
	Sources              []string `json:"sources"`
}

var conditionRatings = map[string]bool{
	"Excellent": true,
	"Very Good": true,
	"Good":      true,
	"Fair":      true,
	"Poor":      true,
}

// ExtractJSONObject returns the first balanced top-level JSON object literal
// found in s. The scan is string-aware so braces inside string values do not
// confuse it. The second return value is false when no complete object exists.
func ExtractJSONObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

// ParseResult locates and decodes the structured appraisal object in a
// free-form provider reply. Required fields are the item identification, both
// value estimates and the confidence score; anything else is repaired rather
// than rejected (clamped confidence, swapped inverted range, unknown condition
// mapped to Fair).
func ParseResult(reply string) (*Result, error) {
	literal, ok := ExtractJSONObject(reply)
	if !ok {
		return nil, &ParseError{Reason: "no JSON object found in reply"}
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(literal), &raw); err != nil {
		return nil, &ParseError{Reason: "malformed JSON object", Err: err}
	}

	if raw.ItemIdentification == "" {
		return nil, &ParseError{Reason: "missing itemIdentification"}
	}
	if raw.EstimatedValueLow == nil || raw.EstimatedValueHigh == nil {
		return nil, &ParseError{Reason: "missing estimated value range"}
	}
	if raw.ConfidenceScore == nil {
		return nil, &ParseError{Reason: "missing confidenceScore"}
	}
	if *raw.EstimatedValueLow < 0 || *raw.EstimatedValueHigh < 0 {
		return nil, &ParseError{Reason: "negative estimated value"}
	}

	res := &Result{
		ItemIdentification:   raw.ItemIdentification,
		EstimatedValueLow:    *raw.EstimatedValueLow,
		EstimatedValueHigh:   *raw.EstimatedValueHigh,
		Currency:             raw.Currency,
		ConditionAssessment:  raw.ConditionAssessment,
		ConditionRating:      raw.ConditionRating,
		ValuationMethodology: raw.ValuationMethodology,
		MarketContext:        raw.MarketContext,
		MarketType:           raw.MarketType,
		Recommendations:      raw.Recommendations,
		RequiresExpertReview: raw.RequiresExpertReview,
		Limitations:          raw.Limitations,
		Sources:              raw.Sources,
	}

	if res.Currency == "" {
		res.Currency = "USD"
	}

	// Clamp instead of reject: the score is advisory.
	score := int(*raw.ConfidenceScore)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	res.ConfidenceScore = score

	// An inverted range is kept (swapped) but flagged for expert review.
	if res.EstimatedValueLow > res.EstimatedValueHigh {
		res.EstimatedValueLow, res.EstimatedValueHigh = res.EstimatedValueHigh, res.EstimatedValueLow
		res.RequiresExpertReview = true
	}

	if !conditionRatings[res.ConditionRating] {
		if res.ConditionRating != "" {
			res.ConditionAssessment = fmt.Sprintf("%s (reported condition %q mapped to Fair)",
				res.ConditionAssessment, res.ConditionRating)
		}
		res.ConditionRating = "Fair"
	}

	return res, nil
}
