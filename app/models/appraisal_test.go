package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppraisalIsTerminal(t *testing.T) {
	cases := []struct {
		status   string
		terminal bool
	}{
		{AppraisalStatusPending, false},
		{AppraisalStatusAnalyzing, false},
		{AppraisalStatusCompleted, true},
		{AppraisalStatusFailed, true},
		{AppraisalStatusExpertReview, true},
	}
	for _, tc := range cases {
		a := Appraisal{Status: tc.status}
		assert.Equal(t, tc.terminal, a.IsTerminal(), "status %s", tc.status)
	}
}

func TestAppraisalPrimaryImage(t *testing.T) {
	a := Appraisal{Images: []AppraisalImage{
		{FileName: "back.jpg", DisplayOrder: 1},
		{FileName: "front.jpg", DisplayOrder: 0},
	}}
	img := a.PrimaryImage()
	assert.NotNil(t, img)
	assert.Equal(t, "front.jpg", img.FileName)

	assert.Nil(t, (&Appraisal{}).PrimaryImage())
}
