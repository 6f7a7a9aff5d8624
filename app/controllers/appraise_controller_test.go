package controllers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vkarlsson/vardera/internal/pkg/entitlements"
)

func TestAppraiseFormGate(t *testing.T) {
	t.Run("check error disables the form", func(t *testing.T) {
		state := appraiseFormGate(nil, errors.New("connection refused"))
		assert.Equal(t, false, state["Allowed"])
		assert.Equal(t, true, state["Unavailable"])
	})

	t.Run("anonymous visitor may open the form", func(t *testing.T) {
		state := appraiseFormGate(nil, nil)
		assert.Equal(t, true, state["Allowed"])
		assert.NotContains(t, state, "Unavailable")
	})

	t.Run("decision carries the remaining quota", func(t *testing.T) {
		state := appraiseFormGate(&entitlements.Decision{
			Allowed:          true,
			PlanRemaining:    2,
			CreditsRemaining: 5,
		}, nil)
		assert.Equal(t, true, state["Allowed"])
		assert.Equal(t, 2, state["PlanRemaining"])
		assert.Equal(t, 5, state["CreditsRemaining"])
	})

	t.Run("exhausted quota blocks submission", func(t *testing.T) {
		state := appraiseFormGate(&entitlements.Decision{Allowed: false}, nil)
		assert.Equal(t, false, state["Allowed"])
		assert.NotContains(t, state, "Unavailable")
	})
}
