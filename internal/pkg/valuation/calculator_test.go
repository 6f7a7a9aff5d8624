package valuation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name           string
		input          Input
		wantValuation  float64
		wantConfidence int
	}{
		{
			name:           "text and two images",
			input:          Input{Text: strings.Repeat("a", 100), ImageCount: 2},
			wantValuation:  260, // 50 + 100*0.1 + 2*100
			wantConfidence: 50,  // 20 + 2*15
		},
		{
			name:           "text only",
			input:          Input{Text: strings.Repeat("a", 40)},
			wantValuation:  54,
			wantConfidence: 20,
		},
		{
			name:           "single image only",
			input:          Input{ImageCount: 1},
			wantValuation:  100,
			wantConfidence: 15,
		},
		{
			name:           "confidence capped at 95",
			input:          Input{Text: "x", ImageCount: 10},
			wantValuation:  50.1 + 1000,
			wantConfidence: 95,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Calculate(tc.input)
			require.NoError(t, err)
			assert.InDelta(t, tc.wantValuation, got.Valuation, 0.001)
			assert.Equal(t, tc.wantConfidence, got.Confidence)
			assert.Equal(t, AccuracyMessage, got.Message)
			assert.NotEmpty(t, got.Explanations)
		})
	}
}

func TestCalculate_EmptyInputRejected(t *testing.T) {
	_, err := Calculate(Input{})
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = Calculate(Input{ImageCount: -1})
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestCalculate_ConfidenceTierMessages(t *testing.T) {
	low, err := Calculate(Input{Text: "short"})
	require.NoError(t, err)
	assert.Contains(t, low.Explanations[len(low.Explanations)-1], "low")

	moderate, err := Calculate(Input{Text: "short", ImageCount: 2})
	require.NoError(t, err)
	assert.Contains(t, moderate.Explanations[len(moderate.Explanations)-1], "moderate")

	good, err := Calculate(Input{Text: "short", ImageCount: 3})
	require.NoError(t, err)
	assert.Contains(t, good.Explanations[len(good.Explanations)-1], "good")
}

func TestCalculate_Deterministic(t *testing.T) {
	in := Input{Text: "a vintage brooch", ImageCount: 2}
	first, err := Calculate(in)
	require.NoError(t, err)
	second, err := Calculate(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
