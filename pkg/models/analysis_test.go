package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalysisStatus_Transitions(t *testing.T) {
	cases := []struct {
		from    AnalysisStatus
		to      AnalysisStatus
		allowed bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusAnalyzing, false},
		{StatusPending, StatusCompleted, false},

		{StatusProcessing, StatusAnalyzing, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusDelivering, false},

		{StatusAnalyzing, StatusDelivering, true},
		{StatusAnalyzing, StatusFailed, true},
		{StatusAnalyzing, StatusCompleted, false},

		// Una volta in delivering il risultato è persistito: il task può
		// solo completare, con o senza consegna
		{StatusDelivering, StatusCompleted, true},
		{StatusDelivering, StatusCompletedNoDelivery, true},
		{StatusDelivering, StatusFailed, false},

		{StatusCompleted, StatusProcessing, false},
		{StatusFailed, StatusProcessing, false},
		{StatusCompletedNoDelivery, StatusCompleted, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestAnalysisStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCompletedNoDelivery.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())

	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.False(t, StatusAnalyzing.IsTerminal())
	assert.False(t, StatusDelivering.IsTerminal())
}

func TestAnalysisStatus_UnknownStateHasNoTransitions(t *testing.T) {
	assert.False(t, AnalysisStatus("bogus").CanTransitionTo(StatusProcessing))
}
