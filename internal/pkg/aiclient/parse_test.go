package aiclient

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wellFormedObject = `{
  "itemIdentification": "Seiko 6309-7040 dive watch, 1978",
  "estimatedValueLow": 350,
  "estimatedValueHigh": 600,
  "currency": "USD",
  "conditionAssessment": "Visible scratches on case and bezel",
  "conditionRating": "Good",
  "valuationMethodology": "Comparable auction results for 6309 divers",
  "marketContext": "Steady collector demand for vintage Seiko divers",
  "marketType": "Auction",
  "recommendations": ["Service the movement", "Keep the original bezel insert", "Insure at the high estimate"],
  "confidenceScore": 72,
  "requiresExpertReview": false,
  "limitations": "Photo-based assessment only",
  "sources": ["auction archives"]
}`

func TestParseResult_SurroundingProseIsIgnored(t *testing.T) {
	t.Parallel()

	baseline, err := ParseResult(wellFormedObject)
	require.NoError(t, err)

	surroundings := []struct {
		name  string
		reply string
	}{
		{"no prose", wellFormedObject},
		{"leading prose", "Here is my appraisal of the watch:\n\n" + wellFormedObject},
		{"trailing prose", wellFormedObject + "\n\nLet me know if you need anything else."},
		{"both sides", "Certainly! My analysis follows.\n" + wellFormedObject + "\nI hope this helps."},
	}

	for _, tc := range surroundings {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseResult(tc.reply)
			require.NoError(t, err)
			assert.Equal(t, baseline, got)
		})
	}
}

func TestParseResult_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply string
	}{
		{"empty reply", ""},
		{"prose only", "I cannot value this item without clearer photos."},
		{"unterminated object", `{"itemIdentification": "something", "estimatedValueLow": 10`},
		{"missing identification", `{"estimatedValueLow": 10, "estimatedValueHigh": 20, "confidenceScore": 50}`},
		{"missing confidence", `{"itemIdentification": "x", "estimatedValueLow": 10, "estimatedValueHigh": 20}`},
		{"missing value range", `{"itemIdentification": "x", "confidenceScore": 50}`},
		{"negative estimate", `{"itemIdentification": "x", "estimatedValueLow": -5, "estimatedValueHigh": 20, "confidenceScore": 50}`},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseResult(tc.reply)
			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestParseResult_ClampsConfidence(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		in   float64
		want int
	}{
		{-20, 0},
		{0, 0},
		{55.7, 55},
		{100, 100},
		{140, 100},
	} {
		reply := fmt.Sprintf(`{"itemIdentification": "x", "estimatedValueLow": 10, "estimatedValueHigh": 20, "confidenceScore": %v}`, tc.in)
		got, err := ParseResult(reply)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.ConfidenceScore)
	}
}

func TestParseResult_InvertedRangeIsSwappedAndFlagged(t *testing.T) {
	t.Parallel()

	reply := `{"itemIdentification": "x", "estimatedValueLow": 900, "estimatedValueHigh": 300, "confidenceScore": 80}`
	got, err := ParseResult(reply)
	require.NoError(t, err)

	assert.Equal(t, float64(300), got.EstimatedValueLow)
	assert.Equal(t, float64(900), got.EstimatedValueHigh)
	assert.True(t, got.RequiresExpertReview)
}

func TestParseResult_UnknownConditionMapsToFair(t *testing.T) {
	t.Parallel()

	reply := `{"itemIdentification": "x", "estimatedValueLow": 10, "estimatedValueHigh": 20, "confidenceScore": 50, "conditionRating": "Mint", "conditionAssessment": "Like new"}`
	got, err := ParseResult(reply)
	require.NoError(t, err)

	assert.Equal(t, "Fair", got.ConditionRating)
	assert.Contains(t, got.ConditionAssessment, "Mint")
}

func TestParseResult_DefaultsCurrency(t *testing.T) {
	t.Parallel()

	reply := `{"itemIdentification": "x", "estimatedValueLow": 10, "estimatedValueHigh": 20, "confidenceScore": 50}`
	got, err := ParseResult(reply)
	require.NoError(t, err)
	assert.Equal(t, "USD", got.Currency)
}

func TestExtractJSONObject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    string
		want  string
		found bool
	}{
		{"plain object", `{"a": 1}`, `{"a": 1}`, true},
		{"nested object", `x {"a": {"b": 2}} y`, `{"a": {"b": 2}}`, true},
		{"brace inside string", `{"a": "}"}`, `{"a": "}"}`, true},
		{"escaped quote inside string", `{"a": "say \"}\" loud"}`, `{"a": "say \"}\" loud"}`, true},
		{"nothing", "no braces here", "", false},
		{"unbalanced", `{"a": 1`, "", false},
		{"first of several", `{"a": 1} {"b": 2}`, `{"a": 1}`, true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ExtractJSONObject(tc.in)
			assert.Equal(t, tc.found, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
